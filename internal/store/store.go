// Package store reconciles the remote problem API with the local mirror.
// Every operation tries the API first; when the API is unreachable the same
// change is applied in memory and persisted to the mirror instead.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"boulder-catalog/internal/client"
	"boulder-catalog/internal/domain"
	"boulder-catalog/internal/mirror"
)

var (
	ErrNotFound = errors.New("problem not found")
	ErrClosed   = errors.New("store is closed")
)

type Remote interface {
	List(ctx context.Context) ([]domain.Problem, error)
	GetByID(ctx context.Context, id int) (domain.Problem, error)
	Create(ctx context.Context, req *domain.CreateProblemRequest) (domain.Problem, error)
	Update(ctx context.Context, id int, req *domain.UpdateProblemRequest) (domain.Problem, error)
	Delete(ctx context.Context, id int) error
	NextID(ctx context.Context) (int, error)
}

type Mirror interface {
	Load() (mirror.Snapshot, error)
	Save(snapshot mirror.Snapshot) error
}

// Outcome is how an operation ended.
type Outcome int

const (
	// Success means the API handled the operation.
	Success Outcome = iota
	// Degraded means the API was unreachable and the change was made locally.
	Degraded
	// Failed means nothing changed.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Degraded:
		return "degraded"
	default:
		return "failed"
	}
}

type State struct {
	Routes    []domain.Problem
	NextID    int
	IsLoading bool
	Error     string
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

type Store struct {
	remote Remote
	mirror Mirror
	now    func() time.Time
	logger *log.Logger

	mu        sync.Mutex
	routes    []domain.Problem
	nextID    int
	isLoading bool
	errMsg    string
	closed    bool

	listeners    map[int]func(State)
	nextListener int
}

// New builds a store and loads it, so the returned state is always usable.
func New(ctx context.Context, remote Remote, m Mirror, opts ...Option) *Store {
	s := &Store{
		remote:    remote,
		mirror:    m,
		now:       time.Now,
		logger:    log.Default(),
		routes:    []domain.Problem{},
		nextID:    1,
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Load(ctx)
	return s
}

// Load refreshes the state from the API, or from the mirror when the API
// fails.
func (s *Store) Load(ctx context.Context) Outcome {
	if !s.begin() {
		return Failed
	}

	routes, err := s.remote.List(ctx)
	var next int
	if err == nil {
		next, err = s.remote.NextID(ctx)
	}

	if err == nil {
		if routes == nil {
			routes = []domain.Problem{}
		}
		s.mu.Lock()
		s.routes = routes
		s.nextID = max(next, domain.MaxID(routes)+1)
		s.mu.Unlock()

		s.persist()
		s.finish("")
		return Success
	}

	s.logger.Printf("Failed to load problems: %v", err)

	snapshot, mirrorErr := s.mirror.Load()
	if mirrorErr != nil {
		s.logger.Printf("Failed to read local mirror: %v", mirrorErr)
		snapshot = mirror.EmptySnapshot()
	}

	s.mu.Lock()
	s.routes = snapshot.Routes
	s.nextID = snapshot.NextID
	s.mu.Unlock()

	s.finish(fmt.Sprintf("Failed to load problems from the server, showing local copy: %v", err))
	return Degraded
}

// AddRoute creates a problem. On the degraded path the problem takes the
// current next id.
func (s *Store) AddRoute(ctx context.Context, req *domain.CreateProblemRequest) (domain.Problem, Outcome, error) {
	if !s.begin() {
		return domain.Problem{}, Failed, ErrClosed
	}

	if err := domain.ValidateCreate(req); err != nil {
		s.finish(fmt.Sprintf("Invalid problem: %v", err))
		return domain.Problem{}, Failed, err
	}

	created, err := s.remote.Create(ctx, req)
	if err == nil {
		s.mu.Lock()
		s.routes = append(s.routes, created)
		s.nextID = max(s.nextID, created.ID+1)
		s.mu.Unlock()

		s.persist()
		s.finish("")
		return cloneProblem(created), Success, nil
	}

	if !client.IsUnavailable(err) {
		s.finish(fmt.Sprintf("Failed to add problem: %v", err))
		return domain.Problem{}, Failed, err
	}

	s.logger.Printf("Failed to add problem remotely, saving locally: %v", err)

	s.mu.Lock()
	p := *domain.NewProblem(s.nextID, req, s.now())
	s.routes = append(s.routes, p)
	s.nextID++
	s.mu.Unlock()

	s.persist()
	s.finish(fmt.Sprintf("Failed to add problem on the server, saved locally: %v", err))
	return cloneProblem(p), Degraded, nil
}

func (s *Store) UpdateRoute(ctx context.Context, id int, req *domain.UpdateProblemRequest) (domain.Problem, Outcome, error) {
	if !s.begin() {
		return domain.Problem{}, Failed, ErrClosed
	}

	if err := domain.ValidateUpdate(req); err != nil {
		s.finish(fmt.Sprintf("Invalid problem: %v", err))
		return domain.Problem{}, Failed, err
	}

	updated, err := s.remote.Update(ctx, id, req)
	if err == nil {
		s.mu.Lock()
		if i := s.indexOf(id); i >= 0 {
			s.routes[i] = updated
		} else {
			s.routes = append(s.routes, updated)
		}
		s.mu.Unlock()

		s.persist()
		s.finish("")
		return cloneProblem(updated), Success, nil
	}

	if errors.Is(err, client.ErrNotFound) {
		s.finish(fmt.Sprintf("Problem %d not found", id))
		return domain.Problem{}, Failed, ErrNotFound
	}
	if !client.IsUnavailable(err) {
		s.finish(fmt.Sprintf("Failed to update problem %d: %v", id, err))
		return domain.Problem{}, Failed, err
	}

	s.logger.Printf("Failed to update problem %d remotely, updating locally: %v", id, err)

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		s.finish(fmt.Sprintf("Problem %d not found", id))
		return domain.Problem{}, Failed, ErrNotFound
	}
	p := domain.ApplyUpdate(s.routes[i], req, s.now())
	s.routes[i] = p
	s.mu.Unlock()

	s.persist()
	s.finish(fmt.Sprintf("Failed to update problem on the server, saved locally: %v", err))
	return cloneProblem(p), Degraded, nil
}

func (s *Store) DeleteRoute(ctx context.Context, id int) (Outcome, error) {
	if !s.begin() {
		return Failed, ErrClosed
	}

	err := s.remote.Delete(ctx, id)
	if err == nil {
		s.mu.Lock()
		s.removeLocked(id)
		s.mu.Unlock()

		s.persist()
		s.finish("")
		return Success, nil
	}

	if errors.Is(err, client.ErrNotFound) {
		s.finish(fmt.Sprintf("Problem %d not found", id))
		return Failed, ErrNotFound
	}
	if !client.IsUnavailable(err) {
		s.finish(fmt.Sprintf("Failed to delete problem %d: %v", id, err))
		return Failed, err
	}

	s.logger.Printf("Failed to delete problem %d remotely, deleting locally: %v", id, err)

	s.mu.Lock()
	removed := s.removeLocked(id)
	s.mu.Unlock()

	if !removed {
		s.finish(fmt.Sprintf("Problem %d not found", id))
		return Failed, ErrNotFound
	}

	s.persist()
	s.finish(fmt.Sprintf("Failed to delete problem on the server, deleted locally: %v", err))
	return Degraded, nil
}

// GetRoute fetches one problem from the API, falling back to memory.
func (s *Store) GetRoute(ctx context.Context, id int) (domain.Problem, Outcome, error) {
	if !s.begin() {
		return domain.Problem{}, Failed, ErrClosed
	}

	p, err := s.remote.GetByID(ctx, id)
	if err == nil {
		s.finish("")
		return p, Success, nil
	}

	if errors.Is(err, client.ErrNotFound) {
		s.finish(fmt.Sprintf("Problem %d not found", id))
		return domain.Problem{}, Failed, ErrNotFound
	}
	if !client.IsUnavailable(err) {
		s.finish(fmt.Sprintf("Failed to fetch problem %d: %v", id, err))
		return domain.Problem{}, Failed, err
	}

	local, ok := s.RouteByID(id)
	if !ok {
		s.finish(fmt.Sprintf("Problem %d not found", id))
		return domain.Problem{}, Failed, ErrNotFound
	}

	s.finish(fmt.Sprintf("Failed to fetch problem from the server, showing local copy: %v", err))
	return local, Degraded, nil
}

func (s *Store) RouteByID(id int) (domain.Problem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		return cloneProblem(s.routes[i]), true
	}
	return domain.Problem{}, false
}

func (s *Store) Routes() []domain.Problem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProblems(s.routes)
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Subscribe registers fn to receive the state after every transition.
// The returned function removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Close drops all listeners. Operations after Close fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.listeners = make(map[int]func(State))
	return nil
}

func (s *Store) begin() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.isLoading = true
	s.errMsg = ""
	state, listeners := s.stateLocked(), s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, state)
	return true
}

func (s *Store) finish(errMsg string) {
	s.mu.Lock()
	s.isLoading = false
	s.errMsg = errMsg
	state, listeners := s.stateLocked(), s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, state)
}

// persist writes the current state to the mirror. Failures are logged only.
func (s *Store) persist() {
	s.mu.Lock()
	snapshot := mirror.Snapshot{Routes: cloneProblems(s.routes), NextID: s.nextID}
	s.mu.Unlock()

	if err := s.mirror.Save(snapshot); err != nil {
		s.logger.Printf("Failed to write local mirror: %v", err)
	}
}

func (s *Store) indexOf(id int) int {
	for i, p := range s.routes {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(id int) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	routes := make([]domain.Problem, 0, len(s.routes)-1)
	routes = append(routes, s.routes[:i]...)
	s.routes = append(routes, s.routes[i+1:]...)
	return true
}

func (s *Store) stateLocked() State {
	return State{
		Routes:    cloneProblems(s.routes),
		NextID:    s.nextID,
		IsLoading: s.isLoading,
		Error:     s.errMsg,
	}
}

func (s *Store) listenersLocked() []func(State) {
	listeners := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	return listeners
}

func notify(listeners []func(State), state State) {
	for _, fn := range listeners {
		fn(state)
	}
}

func cloneProblems(problems []domain.Problem) []domain.Problem {
	out := make([]domain.Problem, len(problems))
	for i, p := range problems {
		out[i] = cloneProblem(p)
	}
	return out
}

func cloneProblem(p domain.Problem) domain.Problem {
	if p.Holds != nil {
		p.Holds = append([]domain.Hold(nil), p.Holds...)
	}
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		p.UpdatedAt = &t
	}
	return p
}

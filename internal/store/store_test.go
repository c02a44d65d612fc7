package store

import (
	"context"
	"errors"
	"io"
	"log"
	"reflect"
	"sync"
	"testing"
	"time"

	"boulder-catalog/internal/client"
	"boulder-catalog/internal/domain"
	"boulder-catalog/internal/mirror"
)

var (
	serverTime = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	localTime  = time.Date(2024, 6, 2, 18, 30, 0, 0, time.UTC)
)

// fakeRemote behaves like the API: ids come from a high-water mark.
type fakeRemote struct {
	mu        sync.Mutex
	problems  []domain.Problem
	highWater int
	offline   bool
	reject    error
	calls     int
}

func (f *fakeRemote) fail() error {
	f.calls++
	if f.offline {
		return &client.TransportError{Op: "test", Err: errors.New("connection refused")}
	}
	return f.reject
}

func (f *fakeRemote) next() int {
	return max(domain.MaxID(f.problems), f.highWater) + 1
}

func (f *fakeRemote) List(ctx context.Context) ([]domain.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	return append([]domain.Problem{}, f.problems...), nil
}

func (f *fakeRemote) GetByID(ctx context.Context, id int) (domain.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return domain.Problem{}, err
	}
	for _, p := range f.problems {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Problem{}, client.ErrNotFound
}

func (f *fakeRemote) Create(ctx context.Context, req *domain.CreateProblemRequest) (domain.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return domain.Problem{}, err
	}
	p := *domain.NewProblem(f.next(), req, serverTime)
	f.highWater = p.ID
	f.problems = append(f.problems, p)
	return p, nil
}

func (f *fakeRemote) Update(ctx context.Context, id int, req *domain.UpdateProblemRequest) (domain.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return domain.Problem{}, err
	}
	for i, p := range f.problems {
		if p.ID == id {
			f.problems[i] = domain.ApplyUpdate(p, req, serverTime)
			return f.problems[i], nil
		}
	}
	return domain.Problem{}, client.ErrNotFound
}

func (f *fakeRemote) Delete(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	for i, p := range f.problems {
		if p.ID == id {
			f.problems = append(f.problems[:i], f.problems[i+1:]...)
			return nil
		}
	}
	return client.ErrNotFound
}

func (f *fakeRemote) NextID(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return 0, err
	}
	return f.next(), nil
}

func (f *fakeRemote) setOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

type brokenMirror struct{}

func (brokenMirror) Load() (mirror.Snapshot, error) {
	return mirror.Snapshot{}, errors.New("disk unreadable")
}

func (brokenMirror) Save(mirror.Snapshot) error {
	return errors.New("disk full")
}

func newTestStore(t *testing.T, remote Remote, m Mirror) *Store {
	t.Helper()
	s := New(context.Background(), remote, m,
		WithClock(func() time.Time { return localTime }),
		WithLogger(log.New(io.Discard, "", 0)),
	)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func sameRoutes(a, b []domain.Problem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Name != b[i].Name || a[i].Grade != b[i].Grade || !a[i].CreatedAt.Equal(b[i].CreatedAt) {
			return false
		}
		if !sameTime(a[i].UpdatedAt, b[i].UpdatedAt) || len(a[i].Holds) != len(b[i].Holds) {
			return false
		}
	}
	return true
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func newMemoryMirror() (*mirror.Mirror, *mirror.MemoryStorage) {
	storage := mirror.NewMemoryStorage()
	return mirror.New(storage), storage
}

func seededRemote() *fakeRemote {
	return &fakeRemote{
		problems: []domain.Problem{
			{ID: 1, Name: "Warmup", Grade: "5a", Holds: []domain.Hold{}, CreatedAt: serverTime},
			{ID: 2, Name: "Crimpy", Grade: "6b+", Holds: []domain.Hold{{X: 0.2, Y: 0.8, Type: domain.HoldStart}}, CreatedAt: serverTime},
		},
	}
}

func TestNew_LoadsFromRemote(t *testing.T) {
	m, _ := newMemoryMirror()
	s := newTestStore(t, seededRemote(), m)

	state := s.State()
	if len(state.Routes) != 2 || state.NextID != 3 {
		t.Errorf("unexpected state %+v", state)
	}
	if state.IsLoading || state.Error != "" {
		t.Errorf("expected idle state without error, got %+v", state)
	}

	snapshot, _ := m.Load()
	if len(snapshot.Routes) != 2 || snapshot.NextID != 3 {
		t.Errorf("expected mirror to be written through, got %+v", snapshot)
	}
}

func TestNew_FallsBackToMirror(t *testing.T) {
	m, storage := newMemoryMirror()
	storage.SetItem("pschitt-mur-problems", `{"routes":[{"id":4,"name":"Local","holds":[]}],"nextId":6}`)

	s := newTestStore(t, &fakeRemote{offline: true}, m)

	state := s.State()
	if len(state.Routes) != 1 || state.Routes[0].Name != "Local" || state.NextID != 6 {
		t.Errorf("expected mirror content, got %+v", state)
	}
	if state.Error == "" {
		t.Error("expected error message on degraded load")
	}
	if state.IsLoading {
		t.Error("isLoading must be false after load")
	}
	if _, ok, _ := storage.GetItem("pschitt-mur-problems"); ok {
		t.Error("legacy key should be migrated away")
	}
}

func TestNew_BrokenMirrorStillInitializes(t *testing.T) {
	s := newTestStore(t, &fakeRemote{offline: true}, brokenMirror{})

	state := s.State()
	if state.Routes == nil || len(state.Routes) != 0 || state.NextID != 1 {
		t.Errorf("expected empty state, got %+v", state)
	}
}

func TestAddRoute_FirstProblemGetsIDOne(t *testing.T) {
	remote := &fakeRemote{}
	m, _ := newMemoryMirror()
	s := newTestStore(t, remote, m)

	p, outcome, err := s.AddRoute(context.Background(), &domain.CreateProblemRequest{Name: "Test", Holds: []domain.Hold{}})
	if err != nil || outcome != Success {
		t.Fatalf("expected success, got %v %v", outcome, err)
	}
	if p.ID != 1 {
		t.Errorf("expected id 1, got %d", p.ID)
	}

	if s.State().NextID != 2 {
		t.Errorf("expected store nextId 2, got %d", s.State().NextID)
	}
	next, _ := remote.NextID(context.Background())
	if next != 2 {
		t.Errorf("expected remote nextId 2, got %d", next)
	}
}

func TestAddRoute_IDsStrictlyIncrease(t *testing.T) {
	remote := &fakeRemote{}
	m, _ := newMemoryMirror()
	s := newTestStore(t, remote, m)

	last := 0
	for i := 0; i < 6; i++ {
		remote.setOffline(i >= 3)

		p, outcome, err := s.AddRoute(context.Background(), &domain.CreateProblemRequest{Name: "p"})
		if err != nil || outcome == Failed {
			t.Fatalf("create %d failed: %v", i, err)
		}
		if p.ID <= last {
			t.Fatalf("id %d not greater than %d", p.ID, last)
		}
		last = p.ID
	}
}

func TestAddRoute_DegradedUsesNextID(t *testing.T) {
	remote := seededRemote()
	m, _ := newMemoryMirror()
	s := newTestStore(t, remote, m)
	prior := s.State().NextID
	remote.setOffline(true)

	p, outcome, err := s.AddRoute(context.Background(), &domain.CreateProblemRequest{Name: "Offline", Grade: "7a"})
	if err != nil || outcome != Degraded {
		t.Fatalf("expected degraded, got %v %v", outcome, err)
	}
	if p.ID != prior {
		t.Errorf("expected id %d, got %d", prior, p.ID)
	}
	if !p.CreatedAt.Equal(localTime) {
		t.Errorf("expected local createdAt, got %v", p.CreatedAt)
	}

	state := s.State()
	if state.Error == "" || state.IsLoading {
		t.Errorf("expected error set and loading cleared, got %+v", state)
	}
	if state.NextID != prior+1 {
		t.Errorf("expected nextId %d, got %d", prior+1, state.NextID)
	}

	snapshot, _ := m.Load()
	if !sameRoutes(snapshot.Routes, state.Routes) || snapshot.NextID != state.NextID {
		t.Errorf("mirror does not reflect state: %+v vs %+v", snapshot, state)
	}
}

func TestAddRoute_RejectedIsFailed(t *testing.T) {
	remote := seededRemote()
	m, _ := newMemoryMirror()
	s := newTestStore(t, remote, m)
	before := s.State()
	remote.reject = &client.ServerError{StatusCode: 400, Message: "Invalid request payload"}

	_, outcome, err := s.AddRoute(context.Background(), &domain.CreateProblemRequest{Name: "Rejected"})
	if outcome != Failed || err == nil {
		t.Fatalf("expected failure, got %v %v", outcome, err)
	}

	after := s.State()
	if !reflect.DeepEqual(before.Routes, after.Routes) || before.NextID != after.NextID {
		t.Error("rejected create must not change state")
	}
	if after.Error == "" || after.IsLoading {
		t.Errorf("unexpected state %+v", after)
	}
}

func TestUpdateRoute_KeepsIdentity(t *testing.T) {
	for _, offline := range []bool{false, true} {
		remote := seededRemote()
		m, _ := newMemoryMirror()
		s := newTestStore(t, remote, m)
		remote.setOffline(offline)

		name := "Renamed"
		holds := []domain.Hold{{X: 0.5, Y: 0.5, Type: domain.HoldTop}}
		p, outcome, err := s.UpdateRoute(context.Background(), 2, &domain.UpdateProblemRequest{Name: &name, Holds: &holds})
		if err != nil || outcome == Failed {
			t.Fatalf("offline=%v: update failed: %v", offline, err)
		}

		if p.ID != 2 || !p.CreatedAt.Equal(serverTime) {
			t.Errorf("offline=%v: identity changed: %+v", offline, p)
		}
		if p.Name != "Renamed" || p.Grade != "6b+" || len(p.Holds) != 1 || p.UpdatedAt == nil {
			t.Errorf("offline=%v: merge wrong: %+v", offline, p)
		}

		stored, _ := s.RouteByID(2)
		if !reflect.DeepEqual(stored, p) {
			t.Errorf("offline=%v: state not updated", offline)
		}

		snapshot, err := m.Load()
		if err != nil {
			t.Fatalf("offline=%v: mirror load: %v", offline, err)
		}
		state := s.State()
		if !sameRoutes(snapshot.Routes, state.Routes) || snapshot.NextID != state.NextID {
			t.Errorf("offline=%v: mirror does not reflect update: %+v vs %+v", offline, snapshot, state)
		}
		if offline && (snapshot.Routes[1].UpdatedAt == nil || !snapshot.Routes[1].UpdatedAt.Equal(localTime)) {
			t.Errorf("expected mirrored updatedAt %v, got %v", localTime, snapshot.Routes[1].UpdatedAt)
		}
	}
}

func TestWrites_RejectInvalidRequests(t *testing.T) {
	outOfBounds := []domain.Hold{{X: 5, Y: -1}}

	for _, offline := range []bool{false, true} {
		remote := seededRemote()
		m, storage := newMemoryMirror()
		s := newTestStore(t, remote, m)
		before := s.State()
		savedBefore, _, _ := storage.GetItem(mirror.CurrentKey)
		remote.setOffline(offline)
		remote.calls = 0

		_, outcome, err := s.AddRoute(context.Background(), &domain.CreateProblemRequest{Name: "", Holds: outOfBounds})
		var validationErr *domain.ValidationError
		if outcome != Failed || !errors.As(err, &validationErr) {
			t.Errorf("offline=%v: expected validation failure on add, got %v %v", offline, outcome, err)
		}

		_, outcome, err = s.UpdateRoute(context.Background(), 2, &domain.UpdateProblemRequest{Holds: &outOfBounds})
		if outcome != Failed || !errors.As(err, &validationErr) {
			t.Errorf("offline=%v: expected validation failure on update, got %v %v", offline, outcome, err)
		}

		if remote.calls != 0 {
			t.Errorf("offline=%v: invalid requests reached the remote %d times", offline, remote.calls)
		}
		after := s.State()
		if !reflect.DeepEqual(before.Routes, after.Routes) || before.NextID != after.NextID {
			t.Errorf("offline=%v: invalid request changed state", offline)
		}
		if after.Error == "" || after.IsLoading {
			t.Errorf("offline=%v: unexpected state %+v", offline, after)
		}
		if saved, _, _ := storage.GetItem(mirror.CurrentKey); saved != savedBefore {
			t.Errorf("offline=%v: invalid request was written to the mirror", offline)
		}
	}
}

func TestUpdateRoute_NotFound(t *testing.T) {
	for _, offline := range []bool{false, true} {
		remote := seededRemote()
		m, _ := newMemoryMirror()
		s := newTestStore(t, remote, m)
		remote.setOffline(offline)

		name := "x"
		_, outcome, err := s.UpdateRoute(context.Background(), 99, &domain.UpdateProblemRequest{Name: &name})
		if outcome != Failed || !errors.Is(err, ErrNotFound) {
			t.Errorf("offline=%v: expected not found, got %v %v", offline, outcome, err)
		}
	}
}

func TestDeleteRoute_Nonexistent(t *testing.T) {
	remote := seededRemote()
	m, _ := newMemoryMirror()
	s := newTestStore(t, remote, m)
	before := s.State()

	outcome, err := s.DeleteRoute(context.Background(), 99)
	if outcome != Failed || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v %v", outcome, err)
	}

	after := s.State()
	if !reflect.DeepEqual(before.Routes, after.Routes) || before.NextID != after.NextID {
		t.Error("state changed on failed delete")
	}
	if after.IsLoading {
		t.Error("isLoading must return to false")
	}
}

func TestDeleteRoute_DegradedMatchesOnline(t *testing.T) {
	online := newTestStore(t, seededRemote(), mirror.New(mirror.NewMemoryStorage()))

	offlineRemote := seededRemote()
	offlineMirror, _ := newMemoryMirror()
	offline := newTestStore(t, offlineRemote, offlineMirror)
	offlineRemote.setOffline(true)

	if outcome, err := online.DeleteRoute(context.Background(), 1); outcome != Success || err != nil {
		t.Fatalf("online delete: %v %v", outcome, err)
	}
	if outcome, err := offline.DeleteRoute(context.Background(), 1); outcome != Degraded || err != nil {
		t.Fatalf("offline delete: %v %v", outcome, err)
	}

	if !reflect.DeepEqual(online.Routes(), offline.Routes()) {
		t.Errorf("degraded delete differs: %+v vs %+v", online.Routes(), offline.Routes())
	}

	snapshot, _ := offlineMirror.Load()
	if len(snapshot.Routes) != 1 || snapshot.Routes[0].ID != 2 {
		t.Errorf("mirror does not reflect delete: %+v", snapshot)
	}
}

func TestDeleteRoute_DoesNotReuseID(t *testing.T) {
	remote := &fakeRemote{}
	s := newTestStore(t, remote, mirror.New(mirror.NewMemoryStorage()))

	first, _, _ := s.AddRoute(context.Background(), &domain.CreateProblemRequest{Name: "a"})
	s.DeleteRoute(context.Background(), first.ID)
	second, _, _ := s.AddRoute(context.Background(), &domain.CreateProblemRequest{Name: "b"})

	if second.ID == first.ID {
		t.Errorf("id %d reused", first.ID)
	}
}

func TestGetRoute(t *testing.T) {
	remote := seededRemote()
	s := newTestStore(t, remote, mirror.New(mirror.NewMemoryStorage()))

	a, outcome, err := s.GetRoute(context.Background(), 2)
	if err != nil || outcome != Success {
		t.Fatalf("expected success, got %v %v", outcome, err)
	}
	b, _, _ := s.GetRoute(context.Background(), 2)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("repeated fetch differs: %+v vs %+v", a, b)
	}

	remote.setOffline(true)
	c, outcome, err := s.GetRoute(context.Background(), 2)
	if err != nil || outcome != Degraded || c.Name != "Crimpy" {
		t.Errorf("expected local copy, got %+v %v %v", c, outcome, err)
	}

	if _, outcome, err := s.GetRoute(context.Background(), 42); outcome != Failed || !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v %v", outcome, err)
	}
}

func TestMirrorFailureIsIgnored(t *testing.T) {
	s := newTestStore(t, &fakeRemote{}, brokenMirror{})

	_, outcome, err := s.AddRoute(context.Background(), &domain.CreateProblemRequest{Name: "a"})
	if outcome != Success || err != nil {
		t.Errorf("mirror failure should not fail the operation: %v %v", outcome, err)
	}
	if s.State().Error != "" {
		t.Errorf("unexpected error %q", s.State().Error)
	}
}

func TestSubscribe(t *testing.T) {
	s := newTestStore(t, &fakeRemote{}, mirror.New(mirror.NewMemoryStorage()))

	var states []State
	unsubscribe := s.Subscribe(func(st State) {
		states = append(states, st)
	})

	s.AddRoute(context.Background(), &domain.CreateProblemRequest{Name: "a"})

	if len(states) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(states))
	}
	if !states[0].IsLoading || states[1].IsLoading {
		t.Errorf("expected loading then idle, got %+v", states)
	}
	if len(states[1].Routes) != 1 {
		t.Errorf("expected new route in final state, got %+v", states[1])
	}

	unsubscribe()
	s.AddRoute(context.Background(), &domain.CreateProblemRequest{Name: "b"})
	if len(states) != 2 {
		t.Errorf("listener called after unsubscribe")
	}
}

func TestClose(t *testing.T) {
	remote := &fakeRemote{}
	s := newTestStore(t, remote, mirror.New(mirror.NewMemoryStorage()))
	s.Close()

	calls := remote.calls
	if _, outcome, err := s.AddRoute(context.Background(), &domain.CreateProblemRequest{Name: "a"}); outcome != Failed || !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v %v", outcome, err)
	}
	if outcome, err := s.DeleteRoute(context.Background(), 1); outcome != Failed || !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v %v", outcome, err)
	}
	if remote.calls != calls {
		t.Error("closed store must not call the remote")
	}
}

func TestStateIsACopy(t *testing.T) {
	s := newTestStore(t, seededRemote(), mirror.New(mirror.NewMemoryStorage()))

	state := s.State()
	state.Routes[1].Holds[0].X = 0.99
	state.Routes[0].Name = "mutated"

	p, _ := s.RouteByID(2)
	if p.Holds[0].X != 0.2 {
		t.Error("state holds alias store memory")
	}
	if q, _ := s.RouteByID(1); q.Name != "Warmup" {
		t.Error("state routes alias store memory")
	}
}

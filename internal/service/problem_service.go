package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"boulder-catalog/internal/domain"
	"boulder-catalog/internal/repository"
)

const defaultMaxIDAttempts = 5

// ProblemNotifier is told about every committed change.
type ProblemNotifier interface {
	BroadcastProblemCreated(problem *domain.Problem) error
	BroadcastProblemUpdated(problem *domain.Problem) error
	BroadcastProblemDeleted(id int) error
}

type ProblemService struct {
	repo          repository.ProblemRepository
	notifier      ProblemNotifier
	maxIDAttempts int
	now           func() time.Time
}

func NewProblemService(repo repository.ProblemRepository, notifier ProblemNotifier, maxIDAttempts int) *ProblemService {
	if maxIDAttempts <= 0 {
		maxIDAttempts = defaultMaxIDAttempts
	}
	return &ProblemService{
		repo:          repo,
		notifier:      notifier,
		maxIDAttempts: maxIDAttempts,
		now:           time.Now,
	}
}

// Create stores a new problem under a freshly reserved id. Ids in the
// request are never trusted. A lost race for an id is retried with a new
// reservation up to maxIDAttempts times.
func (s *ProblemService) Create(ctx context.Context, req *domain.CreateProblemRequest) (*domain.Problem, error) {
	if err := domain.ValidateCreate(req); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxIDAttempts; attempt++ {
		id, err := s.repo.ReserveID(ctx)
		if errors.Is(err, repository.ErrIDConflict) {
			log.Printf("problem id reservation conflict (attempt %d/%d)", attempt, s.maxIDAttempts)
			continue
		}
		if err != nil {
			return nil, err
		}

		problem := domain.NewProblem(id, req, s.now().UTC())
		err = s.repo.Create(ctx, problem)
		if errors.Is(err, repository.ErrIDConflict) {
			log.Printf("problem %d already exists (attempt %d/%d)", id, attempt, s.maxIDAttempts)
			continue
		}
		if err != nil {
			return nil, err
		}

		if s.notifier != nil {
			if err := s.notifier.BroadcastProblemCreated(problem); err != nil {
				log.Printf("failed to broadcast problem %d: %v", problem.ID, err)
			}
		}

		return problem, nil
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrIDExhausted, s.maxIDAttempts)
}

func (s *ProblemService) List(ctx context.Context) ([]*domain.Problem, error) {
	return s.repo.List(ctx)
}

func (s *ProblemService) GetByID(ctx context.Context, id int) (*domain.Problem, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *ProblemService) Update(ctx context.Context, id int, req *domain.UpdateProblemRequest) (*domain.Problem, error) {
	if err := domain.ValidateUpdate(req); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := domain.ApplyUpdate(*existing, req, s.now().UTC())
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.BroadcastProblemUpdated(&updated); err != nil {
			log.Printf("failed to broadcast problem %d: %v", updated.ID, err)
		}
	}

	return &updated, nil
}

func (s *ProblemService) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.BroadcastProblemDeleted(id); err != nil {
			log.Printf("failed to broadcast deletion of problem %d: %v", id, err)
		}
	}

	return nil
}

func (s *ProblemService) NextID(ctx context.Context) (int, error) {
	return s.repo.NextID(ctx)
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"boulder-catalog/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// ErrIDConflict means another writer claimed the id first. The caller should
// compute a fresh id and try again.
var ErrIDConflict = errors.New("problem id already taken")

const (
	problemDocType = "problem"
	counterDocType = "counter"
	counterDocID   = "counter:problems"

	// Mango queries default to 25 rows.
	findLimit = 100000
)

type ProblemRepository interface {
	Create(ctx context.Context, problem *domain.Problem) error
	FindByID(ctx context.Context, id int) (*domain.Problem, error)
	List(ctx context.Context) ([]*domain.Problem, error)
	Update(ctx context.Context, problem *domain.Problem) error
	Delete(ctx context.Context, id int) error
	NextID(ctx context.Context) (int, error)
	ReserveID(ctx context.Context) (int, error)
}

type CouchDBProblemRepository struct {
	db *kivik.DB
}

type problemDoc struct {
	ID        string        `json:"_id"`
	Rev       string        `json:"_rev,omitempty"`
	DocType   string        `json:"doc_type"`
	ProblemID int           `json:"id"`
	Name      string        `json:"name"`
	Creator   string        `json:"creator"`
	Grade     string        `json:"grade"`
	Holds     []domain.Hold `json:"holds"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt *time.Time    `json:"updatedAt,omitempty"`
}

// counterDoc records the highest id ever handed out, so ids freed by a
// delete are not assigned again.
type counterDoc struct {
	ID      string `json:"_id"`
	Rev     string `json:"_rev,omitempty"`
	DocType string `json:"doc_type"`
	Last    int    `json:"last"`
}

func NewProblemRepository(client *kivik.Client, dbName string) *CouchDBProblemRepository {
	return &CouchDBProblemRepository{
		db: client.DB(dbName),
	}
}

func problemDocID(id int) string {
	return fmt.Sprintf("problem:%d", id)
}

func (r *CouchDBProblemRepository) Create(ctx context.Context, problem *domain.Problem) error {
	doc := problemToDoc(problem)

	_, err := r.db.Put(ctx, doc.ID, doc)
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return ErrIDConflict
		}
		return fmt.Errorf("failed to create problem: %w", err)
	}

	return nil
}

func (r *CouchDBProblemRepository) FindByID(ctx context.Context, id int) (*domain.Problem, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	return docToProblem(doc), nil
}

func (r *CouchDBProblemRepository) List(ctx context.Context) ([]*domain.Problem, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": problemDocType,
		},
		"limit": findLimit,
	}

	rows := r.db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list problems: %w", err)
	}
	defer rows.Close()

	problems := []*domain.Problem{}
	for rows.Next() {
		var doc problemDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan problem: %w", err)
		}
		problems = append(problems, docToProblem(&doc))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list problems: %w", err)
	}

	// Newest first.
	sort.SliceStable(problems, func(i, j int) bool {
		return problems[i].CreatedAt.After(problems[j].CreatedAt)
	})

	return problems, nil
}

func (r *CouchDBProblemRepository) Update(ctx context.Context, problem *domain.Problem) error {
	existing, err := r.get(ctx, problem.ID)
	if err != nil {
		return err
	}

	doc := problemToDoc(problem)
	doc.Rev = existing.Rev

	if _, err := r.db.Put(ctx, doc.ID, doc); err != nil {
		return fmt.Errorf("failed to update problem: %w", err)
	}

	return nil
}

func (r *CouchDBProblemRepository) Delete(ctx context.Context, id int) error {
	doc, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := r.db.Delete(ctx, doc.ID, doc.Rev); err != nil {
		return fmt.Errorf("failed to delete problem: %w", err)
	}

	return nil
}

// NextID reports the id the next create would receive, without claiming it.
func (r *CouchDBProblemRepository) NextID(ctx context.Context) (int, error) {
	counter, err := r.counter(ctx)
	if err != nil {
		return 0, err
	}

	maxID, err := r.maxID(ctx)
	if err != nil {
		return 0, err
	}

	return nextAfter(counter.Last, maxID), nil
}

// ReserveID claims the next id by advancing the counter document under its
// current revision. A concurrent reservation surfaces as ErrIDConflict.
func (r *CouchDBProblemRepository) ReserveID(ctx context.Context) (int, error) {
	counter, err := r.counter(ctx)
	if err != nil {
		return 0, err
	}

	maxID, err := r.maxID(ctx)
	if err != nil {
		return 0, err
	}

	counter.Last = nextAfter(counter.Last, maxID)

	if _, err := r.db.Put(ctx, counterDocID, counter); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return 0, ErrIDConflict
		}
		return 0, fmt.Errorf("failed to reserve problem id: %w", err)
	}

	return counter.Last, nil
}

func (r *CouchDBProblemRepository) get(ctx context.Context, id int) (*problemDoc, error) {
	row := r.db.Get(ctx, problemDocID(id))

	var doc problemDoc
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, domain.ErrProblemNotFound
		}
		return nil, fmt.Errorf("failed to get problem: %w", err)
	}

	return &doc, nil
}

func (r *CouchDBProblemRepository) counter(ctx context.Context) (*counterDoc, error) {
	row := r.db.Get(ctx, counterDocID)

	var doc counterDoc
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return &counterDoc{ID: counterDocID, DocType: counterDocType}, nil
		}
		return nil, fmt.Errorf("failed to read id counter: %w", err)
	}

	return &doc, nil
}

func (r *CouchDBProblemRepository) maxID(ctx context.Context) (int, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": problemDocType,
		},
		"fields": []string{"id"},
		"limit":  findLimit,
	}

	rows := r.db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to query problem ids: %w", err)
	}
	defer rows.Close()

	highest := 0
	for rows.Next() {
		var doc struct {
			ID int `json:"id"`
		}
		if err := rows.ScanDoc(&doc); err != nil {
			return 0, fmt.Errorf("failed to scan problem id: %w", err)
		}
		if doc.ID > highest {
			highest = doc.ID
		}
	}

	return highest, rows.Err()
}

func nextAfter(highWater, maxID int) int {
	if maxID > highWater {
		return maxID + 1
	}
	return highWater + 1
}

func problemToDoc(p *domain.Problem) *problemDoc {
	holds := p.Holds
	if holds == nil {
		holds = []domain.Hold{}
	}
	return &problemDoc{
		ID:        problemDocID(p.ID),
		DocType:   problemDocType,
		ProblemID: p.ID,
		Name:      p.Name,
		Creator:   p.Creator,
		Grade:     p.Grade,
		Holds:     holds,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func docToProblem(doc *problemDoc) *domain.Problem {
	holds := doc.Holds
	if holds == nil {
		holds = []domain.Hold{}
	}
	return &domain.Problem{
		ID:        doc.ProblemID,
		Name:      doc.Name,
		Creator:   doc.Creator,
		Grade:     doc.Grade,
		Holds:     holds,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

// Package mirror keeps the client-local copy of the problem list and the
// id counter, used when the API cannot be reached.
package mirror

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"boulder-catalog/internal/domain"
)

const CurrentKey = "boulder-catalog.problems.v2"

// LegacyKeys are checked in order when CurrentKey is absent.
var LegacyKeys = []string{"pschitt-mur-problems"}

type Snapshot struct {
	Routes []domain.Problem `json:"routes"`
	NextID int              `json:"nextId"`
}

func EmptySnapshot() Snapshot {
	return Snapshot{Routes: []domain.Problem{}, NextID: 1}
}

type Mirror struct {
	storage    Storage
	key        string
	legacyKeys []string
	now        func() time.Time
}

type Option func(*Mirror)

// WithClock sets the time stamped on migrated problems that have no
// createdAt.
func WithClock(now func() time.Time) Option {
	return func(m *Mirror) {
		m.now = now
	}
}

func New(storage Storage, opts ...Option) *Mirror {
	m := &Mirror{
		storage:    storage,
		key:        CurrentKey,
		legacyKeys: LegacyKeys,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load returns the persisted snapshot. A blob found only under a legacy key
// is moved to the current key first. Content that cannot be parsed yields
// an empty snapshot rather than an error.
func (m *Mirror) Load() (Snapshot, error) {
	raw, ok, err := m.storage.GetItem(m.key)
	if err != nil {
		return EmptySnapshot(), err
	}

	if !ok {
		raw, ok, err = m.migrate()
		if err != nil {
			return EmptySnapshot(), err
		}
		if !ok {
			return EmptySnapshot(), nil
		}
	}

	return decode(raw), nil
}

func (m *Mirror) Save(snapshot Snapshot) error {
	if snapshot.Routes == nil {
		snapshot.Routes = []domain.Problem{}
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode mirror: %w", err)
	}

	return m.storage.SetItem(m.key, string(data))
}

func (m *Mirror) migrate() (string, bool, error) {
	for _, legacy := range m.legacyKeys {
		raw, ok, err := m.storage.GetItem(legacy)
		if err != nil {
			return "", false, err
		}
		if !ok {
			continue
		}

		raw = m.backfill(raw)
		if err := m.storage.SetItem(m.key, raw); err != nil {
			return "", false, fmt.Errorf("failed to migrate %s: %w", legacy, err)
		}
		if err := m.storage.RemoveItem(legacy); err != nil {
			log.Printf("Failed to remove legacy mirror key %s: %v", legacy, err)
		}

		log.Printf("Migrated mirror from %s to %s", legacy, m.key)
		return raw, true, nil
	}

	return "", false, nil
}

// backfill stamps legacy problems saved without a createdAt, so they do not
// surface as the zero time. Content that does not parse is left for decode.
func (m *Mirror) backfill(raw string) string {
	var snapshot Snapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return raw
	}

	now := m.now().UTC()
	filled := 0
	for i := range snapshot.Routes {
		if snapshot.Routes[i].CreatedAt.IsZero() {
			snapshot.Routes[i].CreatedAt = now
			filled++
		}
	}
	if filled == 0 {
		return raw
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return raw
	}

	log.Printf("Backfilled createdAt for %d migrated problems", filled)
	return string(data)
}

func decode(raw string) Snapshot {
	var snapshot Snapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		log.Printf("Ignoring malformed mirror content: %v", err)
		return EmptySnapshot()
	}

	if snapshot.Routes == nil {
		snapshot.Routes = []domain.Problem{}
	}
	if floor := domain.MaxID(snapshot.Routes) + 1; snapshot.NextID < floor {
		snapshot.NextID = floor
	}

	return snapshot
}

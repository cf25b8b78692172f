// Package registry implements the in-memory stores for perfusion cases
// and their medication administration records. The stores are the
// repository-facing contract consumed by the HTTP layer and the export
// writers; they are safe for concurrent use, with a store-level mutex as
// the serialization point for writers.
package registry

import (
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/perfusionpro/perfusion-api/registry/entities"
)

// RecordPurger removes every medication record owned by a case. The
// CaseStore calls it while cascading a case deletion so that no orphan
// records survive.
type RecordPurger interface {
	PurgeCase(caseID uuid.UUID) int
}

// CaseStore owns the Case aggregates. All mutations are serialized by an
// internal mutex; readers get copies, never aliases into the store.
type CaseStore struct {
	mu      sync.RWMutex
	cases   map[uuid.UUID]*entities.Case
	orgCode string
	purger  RecordPurger
	now     func() time.Time
}

// NewCaseStore creates an empty store. orgCode prefixes generated case
// labels. purger may be nil when no ledger is attached (tests).
func NewCaseStore(orgCode string, purger RecordPurger) *CaseStore {
	return &CaseStore{
		cases:   make(map[uuid.UUID]*entities.Case),
		orgCode: orgCode,
		purger:  purger,
		now:     time.Now,
	}
}

// Create inserts a new draft case with a generated label and no timing
// data. It never fails.
func (s *CaseStore) Create() entities.Case {
	now := s.now()
	c := &entities.Case{
		ID:           uuid.New(),
		CaseLabel:    entities.NewCaseLabel(s.orgCode, now),
		Status:       entities.CaseDraft,
		DateCreated:  now,
		DateModified: now,
	}

	s.mu.Lock()
	s.cases[c.ID] = c
	s.mu.Unlock()

	return *c
}

// Get returns a copy of the case with the given id.
func (s *CaseStore) Get(id uuid.UUID) (entities.Case, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cases[id]
	if !ok {
		return entities.Case{}, false
	}
	return *c, true
}

// Update applies mutate to a copy of the stored case, validates the
// result and commits it with a fresh DateModified. A declined update
// returns a *ValidationError and leaves the stored case untouched.
// Identity and audit-creation fields cannot be changed by the mutator.
func (s *CaseStore) Update(id uuid.UUID, mutate func(*entities.Case)) (entities.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.cases[id]
	if !ok {
		return entities.Case{}, ErrNotFound
	}

	updated := *current
	mutate(&updated)

	// Immutable fields win over whatever the mutator did.
	updated.ID = current.ID
	updated.CaseLabel = current.CaseLabel
	updated.DateCreated = current.DateCreated

	if !updated.Status.Valid() {
		return entities.Case{}, validationErr("status", "unknown case status "+string(updated.Status))
	}
	if updated.PumpOnTime != nil && updated.PumpOffTime != nil &&
		updated.PumpOffTime.Before(*updated.PumpOnTime) {
		return entities.Case{}, validationErr("pump_off_time", "pump-off cannot precede pump-on")
	}

	updated.DateModified = s.now()
	s.cases[id] = &updated

	return updated, nil
}

// Delete removes the case and cascades deletion of every medication
// record it owns. Deleting an unknown id is a no-op, so a UI retry after
// a lost response cannot fail.
func (s *CaseStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	_, existed := s.cases[id]
	delete(s.cases, id)
	s.mu.Unlock()

	if existed && s.purger != nil {
		s.purger.PurgeCase(id)
	}
}

// List returns a lazy, restartable sequence of cases ordered by
// DateCreated descending. Each range over the sequence observes a fresh
// snapshot of the store; pagination is the caller's concern.
func (s *CaseStore) List() iter.Seq[entities.Case] {
	return func(yield func(entities.Case) bool) {
		for _, c := range s.snapshot() {
			if !yield(c) {
				return
			}
		}
	}
}

// Count returns the number of stored cases.
func (s *CaseStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cases)
}

func (s *CaseStore) snapshot() []entities.Case {
	s.mu.RLock()
	out := make([]entities.Case, 0, len(s.cases))
	for _, c := range s.cases {
		out = append(out, *c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DateCreated.Equal(out[j].DateCreated) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].DateCreated.After(out[j].DateCreated)
	})
	return out
}

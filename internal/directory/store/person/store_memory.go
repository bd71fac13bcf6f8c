package person

import (
	"context"
	"fmt"
	"sync"

	"palisade/internal/audit"
	"palisade/internal/directory/models"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/sentinel"
)

// InMemory keeps persons in a map guarded by one mutex. The same lock covers
// the version check, the write, and the audit append, which makes Mutate
// linearizable per person id and the mutation+audit pair atomic.
type InMemory struct {
	mu      sync.RWMutex
	persons map[id.PersonID]*models.Person
	trail   audit.Store
}

// NewInMemory builds a memory store appending audit records to trail.
func NewInMemory(trail audit.Store) *InMemory {
	return &InMemory{
		persons: make(map[id.PersonID]*models.Person),
		trail:   trail,
	}
}

func (s *InMemory) Create(ctx context.Context, person *models.Person, record audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.persons[person.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if err := s.trail.Append(ctx, record); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	s.persons[person.ID] = person.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, personID id.PersonID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	person, ok := s.persons[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return person.Clone(), nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Person, 0, len(s.persons))
	for _, person := range s.persons {
		out = append(out, person.Clone())
	}
	return out, nil
}

func (s *InMemory) Mutate(ctx context.Context, personID id.PersonID, expectedVersion int64, mutate func(p *models.Person) (audit.Record, error)) (*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.persons[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return nil, sentinel.ErrConflict
	}

	// Work on a copy; the stored value only changes once everything passed.
	working := stored.Clone()
	record, err := mutate(working)
	if err != nil {
		return nil, err
	}
	if err := s.trail.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("append audit record: %w", err)
	}
	s.persons[personID] = working
	return working.Clone(), nil
}

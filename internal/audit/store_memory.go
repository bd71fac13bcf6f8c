package audit

import (
	"context"
	"sync"

	id "palisade/pkg/domain"
)

// InMemoryStore keeps audit records in an append-only slice. Used in tests
// and single-process deployments.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append stores a copy of the record. It never rejects a valid record.
func (s *InMemoryStore) Append(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.Diff = copyDiff(record.Diff)
	s.records = append(s.records, record)
	return nil
}

// ListByPerson returns records for one person in append order.
func (s *InMemoryStore) ListByPerson(_ context.Context, personID id.PersonID) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, record := range s.records {
		if record.PersonID == personID {
			record.Diff = copyDiff(record.Diff)
			out = append(out, record)
		}
	}
	return out, nil
}

// Len reports the total number of records. Test helper.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func copyDiff(diff map[string]FieldChange) map[string]FieldChange {
	if diff == nil {
		return nil
	}
	out := make(map[string]FieldChange, len(diff))
	for k, v := range diff {
		out[k] = v
	}
	return out
}

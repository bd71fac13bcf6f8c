package sample

import (
	"context"
	"sync"

	"palisade/internal/biometric/models"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/sentinel"
)

// InMemory keeps samples in an append-only map guarded by a RWMutex.
// Snapshots returned by LiveByKind are deep copies, so an in-flight match
// keeps ranking against the state it started from.
type InMemory struct {
	mu      sync.RWMutex
	samples map[id.SampleID]*models.Sample
}

func NewInMemory() *InMemory {
	return &InMemory{samples: make(map[id.SampleID]*models.Sample)}
}

func (s *InMemory) Append(_ context.Context, sample *models.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.samples[sample.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.samples[sample.ID] = sample.Clone()
	return nil
}

func (s *InMemory) SoftDelete(_ context.Context, sampleID id.SampleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample, ok := s.samples[sampleID]
	if !ok {
		return sentinel.ErrNotFound
	}
	sample.IsDeleted = true
	return nil
}

func (s *InMemory) LiveByKind(_ context.Context, kind models.Kind) ([]*models.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Sample, 0, len(s.samples))
	for _, sample := range s.samples {
		if sample.Kind != kind || sample.IsDeleted {
			continue
		}
		out = append(out, sample.Clone())
	}
	return out, nil
}

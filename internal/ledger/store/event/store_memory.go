package event

import (
	"context"
	"sort"
	"sync"
	"time"

	"palisade/internal/ledger/models"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/sentinel"
)

// InMemory keeps events in insertion order under one mutex. The request_id
// index makes InsertIfAbsent a single atomic check-then-append.
type InMemory struct {
	mu        sync.Mutex
	events    []*models.Event
	byRequest map[string]*models.Event
	byID      map[id.EventID]*models.Event
}

func NewInMemory() *InMemory {
	return &InMemory{
		byRequest: make(map[string]*models.Event),
		byID:      make(map[id.EventID]*models.Event),
	}
}

func (s *InMemory) InsertIfAbsent(_ context.Context, event *models.Event) (*models.Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byRequest[event.RequestID]; ok {
		return clone(existing), false, nil
	}
	stored := clone(event)
	s.events = append(s.events, stored)
	s.byRequest[stored.RequestID] = stored
	s.byID[stored.ID] = stored
	return clone(stored), true, nil
}

func (s *InMemory) FindByRequestID(_ context.Context, requestID string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.byRequest[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(event), nil
}

func (s *InMemory) FindByID(_ context.Context, eventID id.EventID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.byID[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(event), nil
}

func (s *InMemory) ListByPerson(_ context.Context, personID id.PersonID, limit int) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Event
	for _, event := range s.events {
		if event.PersonID == personID {
			out = append(out, clone(event))
		}
	}
	return truncateNewestFirst(out, limit), nil
}

func (s *InMemory) ListByNode(_ context.Context, nodeID id.NodeID, since time.Time, limit int) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Event
	for _, event := range s.events {
		if event.NodeID == nodeID && !event.OccurredAt.Before(since) {
			out = append(out, clone(event))
		}
	}
	return truncateNewestFirst(out, limit), nil
}

func truncateNewestFirst(events []*models.Event, limit int) []*models.Event {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].OccurredAt.After(events[j].OccurredAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events
}

func clone(event *models.Event) *models.Event {
	out := *event
	if event.Vehicle != nil {
		vehicle := *event.Vehicle
		out.Vehicle = &vehicle
	}
	return &out
}

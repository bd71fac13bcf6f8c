package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	ledgermetrics "palisade/internal/ledger/metrics"
	"palisade/internal/ledger/models"
	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/sentinel"
	"palisade/pkg/requestcontext"
)

// EventStore persists entry events. InsertIfAbsent must be atomic on
// request_id: of N racing writers exactly one inserts, and all N receive
// the same stored event.
type EventStore interface {
	InsertIfAbsent(ctx context.Context, event *models.Event) (*models.Event, bool, error)
	FindByRequestID(ctx context.Context, requestID string) (*models.Event, error)
	FindByID(ctx context.Context, eventID id.EventID) (*models.Event, error)
	ListByPerson(ctx context.Context, personID id.PersonID, limit int) ([]*models.Event, error)
	ListByNode(ctx context.Context, nodeID id.NodeID, since time.Time, limit int) ([]*models.Event, error)
}

// PersonResolver answers whether a person exists in the directory.
type PersonResolver interface {
	Exists(ctx context.Context, personID id.PersonID) (bool, error)
}

// GateResolver maps a device serial to the node its gate belongs to.
// Serials that do not resolve to a gate node fail the referential check.
type GateResolver interface {
	ResolveGateDevice(ctx context.Context, serial string) (id.NodeID, error)
}

// ReplayCache answers replays without a store round trip. Both methods
// tolerate a nil implementation and cache failures are non-fatal.
type ReplayCache interface {
	Get(ctx context.Context, requestID string) (*models.Event, error)
	Put(ctx context.Context, event *models.Event) error
}

// Service is the EntryLedger.
type Service struct {
	events  EventStore
	persons PersonResolver
	gates   GateResolver
	cache   ReplayCache
	logger  *slog.Logger
	metrics *ledgermetrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *ledgermetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithReplayCache(cache ReplayCache) Option {
	return func(s *Service) { s.cache = cache }
}

func New(events EventStore, persons PersonResolver, gates GateResolver, opts ...Option) *Service {
	s := &Service{
		events:  events,
		persons: persons,
		gates:   gates,
		logger:  slog.Default(),
		tracer:  otel.Tracer("palisade/ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record writes one entry event, idempotently on request_id. A replayed
// request returns the originally stored event unchanged, regardless of the
// payload accompanying the replay; replayed reports whether that happened.
func (s *Service) Record(ctx context.Context, req models.Request) (event *models.Event, replayed bool, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Record")
	defer span.End()

	if req.RequestID == "" {
		return nil, false, dErrors.New(dErrors.CodeValidation, "request_id is required")
	}

	// Replay lookup comes before payload validation: the first write fixed
	// the event, and a retry with a garbled payload must still converge on it.
	if cached, err := s.replayLookup(ctx, req.RequestID); err == nil && cached != nil {
		s.metrics.RecordReplay()
		return cached, true, nil
	}

	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	personID, err := id.ParsePersonID(req.PersonID)
	if err != nil {
		return nil, false, err
	}
	exists, err := s.persons.Exists(ctx, personID)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not resolve person")
	}
	if !exists {
		return nil, false, dErrors.New(dErrors.CodeForeignKey, "person does not resolve")
	}

	nodeID, err := s.gates.ResolveGateDevice(ctx, req.DeviceSerial)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) || errors.Is(err, sentinel.ErrNotFound) {
			return nil, false, dErrors.New(dErrors.CodeForeignKey, "device serial does not resolve to a gate node")
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not resolve device")
	}

	start := time.Now()
	candidate := &models.Event{
		ID:           id.EventID(uuid.New()),
		RequestID:    req.RequestID,
		PersonID:     personID,
		NodeID:       nodeID,
		DeviceSerial: req.DeviceSerial,
		Method:       req.Method,
		MatchType:    req.MatchType,
		Direction:    req.Direction,
		Confidence:   req.Confidence,
		Vehicle:      req.Vehicle,
		OccurredAt:   req.OccurredAt,
		RecordedAt:   requestcontext.Now(ctx),
	}

	stored, inserted, err := s.events.InsertIfAbsent(ctx, candidate)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not record event")
	}
	if !inserted {
		s.metrics.RecordReplay()
		return stored, true, nil
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, stored); err != nil {
			s.logger.WarnContext(ctx, "replay cache put failed", "error", err)
		}
	}
	s.metrics.RecordEvent(string(stored.Method), string(stored.Direction), time.Since(start).Seconds())
	s.logger.InfoContext(ctx, "entry event recorded",
		"event_id", stored.ID.String(),
		"request_id", stored.RequestID,
		"person_id", stored.PersonID.String(),
		"direction", string(stored.Direction),
	)
	return stored, false, nil
}

// replayLookup tries the cache first and falls back to the store. Cache
// errors are logged and treated as misses.
func (s *Service) replayLookup(ctx context.Context, requestID string) (*models.Event, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, requestID)
		if err != nil {
			s.logger.WarnContext(ctx, "replay cache get failed", "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}
	existing, err := s.events.FindByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return existing, nil
}

// Get returns one event by id.
func (s *Service) Get(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not load event")
	}
	return event, nil
}

// HistoryByPerson lists a person's events, newest first.
func (s *Service) HistoryByPerson(ctx context.Context, personID id.PersonID, limit int) ([]*models.Event, error) {
	events, err := s.events.ListByPerson(ctx, personID, normalizeLimit(limit))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not list events")
	}
	return events, nil
}

// HistoryByNode lists a node's events since the given time, newest first.
func (s *Service) HistoryByNode(ctx context.Context, nodeID id.NodeID, since time.Time, limit int) ([]*models.Event, error) {
	events, err := s.events.ListByNode(ctx, nodeID, since, normalizeLimit(limit))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not list events")
	}
	return events, nil
}

const defaultHistoryLimit = 100

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	return limit
}

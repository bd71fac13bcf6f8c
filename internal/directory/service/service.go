package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"palisade/internal/audit"
	directorymetrics "palisade/internal/directory/metrics"
	"palisade/internal/directory/models"
	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/sentinel"
	"palisade/pkg/requestcontext"
)

// PersonStore persists the person aggregate. Implementations guarantee that
// a mutation and its audit record land in one atomic unit, and that Mutate
// is linearizable per person id: the version check, the write, and the audit
// append happen under one lock (memory) or one transaction with a row lock
// (postgres).
type PersonStore interface {
	// Create stores a new person together with its creation audit record.
	// Returns sentinel.ErrAlreadyUsed when the id is taken.
	Create(ctx context.Context, person *models.Person, record audit.Record) error
	// FindByID returns a snapshot of the person, or sentinel.ErrNotFound.
	FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error)
	// List returns snapshots of all persons.
	List(ctx context.Context) ([]*models.Person, error)
	// Mutate loads the person under lock, verifies the stored version equals
	// expectedVersion (sentinel.ErrConflict otherwise), applies mutate, and
	// persists the result with the audit record mutate returns, atomically
	// with no partial effects. An error from mutate aborts the whole unit.
	Mutate(ctx context.Context, personID id.PersonID, expectedVersion int64, mutate func(p *models.Person) (audit.Record, error)) (*models.Person, error)
}

// Service is the PersonDirectory: the only write path to person records.
type Service struct {
	persons PersonStore
	auditor *audit.Publisher
	logger  *slog.Logger
	metrics *directorymetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditor(auditor *audit.Publisher) Option {
	return func(s *Service) { s.auditor = auditor }
}

func WithMetrics(m *directorymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(persons PersonStore, opts ...Option) *Service {
	s := &Service{persons: persons, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enroll creates a person at version 0 with a "created" audit record.
func (s *Service) Enroll(ctx context.Context, draft models.Draft) (*models.Person, error) {
	personID, err := resolveDraftID(draft.ID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	person, err := models.NewPerson(personID, draft, now)
	if err != nil {
		return nil, err
	}

	record := audit.Record{
		ID:         id.AuditRecordID(uuid.New()),
		PersonID:   person.ID,
		Action:     audit.ActionCreated,
		OldVersion: 0,
		NewVersion: 0,
		Diff:       map[string]audit.FieldChange{"full_name": {New: person.FullName}},
		ActorID:    requestcontext.OperatorID(ctx),
		At:         now,
	}

	if err := s.persons.Create(ctx, person, record); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "person id already enrolled")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not enroll person")
	}

	s.metrics.RecordEnrollment()
	s.auditor.Mirror(ctx, record)
	s.logger.InfoContext(ctx, "person enrolled",
		"person_id", person.ID.String(),
		"category", string(person.Category),
	)
	return person, nil
}

// Update applies a patch iff the stored version equals expectedVersion.
// On success the version becomes expectedVersion+1 and exactly one audit
// record is appended in the same atomic unit.
func (s *Service) Update(ctx context.Context, personID id.PersonID, expectedVersion int64, patch models.Patch) (*models.Person, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "update", personID, expectedVersion, func(p *models.Person, now time.Time) (map[string]audit.FieldChange, error) {
		return patch.Apply(p, now), nil
	})
}

// Deactivate toggles the person to deactivated, same concurrency and audit
// contract as Update.
func (s *Service) Deactivate(ctx context.Context, personID id.PersonID, expectedVersion int64) (*models.Person, error) {
	return s.mutate(ctx, "deactivate", personID, expectedVersion, func(p *models.Person, now time.Time) (map[string]audit.FieldChange, error) {
		if err := p.CanDeactivate(); err != nil {
			return nil, err
		}
		p.ApplyDeactivation(now)
		return map[string]audit.FieldChange{
			"status": {Old: string(models.StatusActive), New: string(models.StatusDeactivated)},
		}, nil
	})
}

// Reactivate toggles the person back to active.
func (s *Service) Reactivate(ctx context.Context, personID id.PersonID, expectedVersion int64) (*models.Person, error) {
	return s.mutate(ctx, "reactivate", personID, expectedVersion, func(p *models.Person, now time.Time) (map[string]audit.FieldChange, error) {
		if err := p.CanReactivate(); err != nil {
			return nil, err
		}
		p.ApplyReactivation(now)
		return map[string]audit.FieldChange{
			"status": {Old: string(models.StatusDeactivated), New: string(models.StatusActive)},
		}, nil
	})
}

// Get returns the current person.
func (s *Service) Get(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	person, err := s.persons.FindByID(ctx, personID)
	if err != nil {
		return nil, wrapPersonErr(err)
	}
	return person, nil
}

func (s *Service) mutate(ctx context.Context, operation string, personID id.PersonID, expectedVersion int64, apply func(p *models.Person, now time.Time) (map[string]audit.FieldChange, error)) (*models.Person, error) {
	now := requestcontext.Now(ctx)
	var emitted audit.Record

	person, err := s.persons.Mutate(ctx, personID, expectedVersion, func(p *models.Person) (audit.Record, error) {
		diff, err := apply(p, now)
		if err != nil {
			return audit.Record{}, err
		}
		record := audit.Record{
			ID:         id.AuditRecordID(uuid.New()),
			PersonID:   p.ID,
			Action:     audit.ActionUpdated,
			OldVersion: p.Version,
			NewVersion: p.Version + 1,
			Diff:       diff,
			ActorID:    requestcontext.OperatorID(ctx),
			At:         now,
		}
		p.Version++
		p.UpdatedAt = now
		emitted = record
		return record, nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.RecordVersionConflict()
		}
		return nil, wrapPersonErr(err)
	}

	s.metrics.RecordMutation(operation)
	s.auditor.Mirror(ctx, emitted)
	s.logger.InfoContext(ctx, "person mutated",
		"person_id", personID.String(),
		"operation", operation,
		"version", person.Version,
	)
	return person, nil
}

func resolveDraftID(raw string) (id.PersonID, error) {
	if raw == "" {
		return id.PersonID(uuid.New()), nil
	}
	return id.ParsePersonID(raw)
}

func wrapPersonErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "person not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "stale person version; re-read and retry")
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation),
		dErrors.HasCode(err, dErrors.CodeValidation),
		dErrors.HasCode(err, dErrors.CodeConflict),
		dErrors.HasCode(err, dErrors.CodeNotFound):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "directory storage failure")
	}
}

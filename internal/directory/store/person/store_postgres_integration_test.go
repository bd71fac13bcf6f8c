//go:build integration

package person_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"palisade/internal/audit"
	"palisade/internal/directory/models"
	"palisade/internal/directory/store/person"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/sentinel"
	"palisade/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	trail    *audit.PostgresStore
	store    *person.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.trail = audit.NewPostgres(s.postgres.DB)
	s.store = person.NewPostgres(s.postgres.DB, s.trail)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"entry_events", "biometric_samples", "audit_records", "persons")
	s.Require().NoError(err)
}

func newTestPerson(name string) *models.Person {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Person{
		ID:        id.PersonID(uuid.New()),
		FullName:  name,
		Category:  models.CategoryResident,
		Status:    models.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func creationRecord(p *models.Person) audit.Record {
	return audit.Record{
		ID:       id.AuditRecordID(uuid.New()),
		PersonID: p.ID,
		Action:   audit.ActionCreated,
		At:       time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	p := newTestPerson("Ahmed Khan")
	s.Require().NoError(s.store.Create(ctx, p, creationRecord(p)))

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("Ahmed Khan", found.FullName)
	s.Equal(int64(0), found.Version)

	trail, err := s.trail.ListByPerson(ctx, p.ID)
	s.Require().NoError(err)
	s.Len(trail, 1)
}

func (s *PostgresStoreSuite) TestCreateDuplicateID() {
	ctx := context.Background()
	p := newTestPerson("Original")
	s.Require().NoError(s.store.Create(ctx, p, creationRecord(p)))

	dupe := newTestPerson("Duplicate")
	dupe.ID = p.ID
	err := s.store.Create(ctx, dupe, creationRecord(dupe))
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

	// the failed create must not leave an audit row behind
	trail, err := s.trail.ListByPerson(ctx, p.ID)
	s.Require().NoError(err)
	s.Len(trail, 1)
}

// TestConcurrentMutations verifies that of N racing updates against the same
// expected version exactly one commits, under real row locking.
func (s *PostgresStoreSuite) TestConcurrentMutations() {
	ctx := context.Background()
	p := newTestPerson("Contended")
	s.Require().NoError(s.store.Create(ctx, p, creationRecord(p)))

	const goroutines = 20
	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Mutate(ctx, p.ID, 0, func(current *models.Person) (audit.Record, error) {
				record := audit.Record{
					ID:         id.AuditRecordID(uuid.New()),
					PersonID:   current.ID,
					Action:     audit.ActionUpdated,
					OldVersion: current.Version,
					NewVersion: current.Version + 1,
					At:         time.Now().UTC(),
				}
				current.Version++
				return record, nil
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one mutation should win")
	s.Equal(int32(goroutines-1), conflictCount.Load())

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), found.Version)

	trail, err := s.trail.ListByPerson(ctx, p.ID)
	s.Require().NoError(err)
	s.Len(trail, 2)
}

func (s *PostgresStoreSuite) TestMutateAbortLeavesNoPartialEffects() {
	ctx := context.Background()
	p := newTestPerson("Stable")
	s.Require().NoError(s.store.Create(ctx, p, creationRecord(p)))

	boom := errors.New("mutation rejected")
	_, err := s.store.Mutate(ctx, p.ID, 0, func(current *models.Person) (audit.Record, error) {
		current.FullName = "should not persist"
		return audit.Record{}, boom
	})
	s.Require().ErrorIs(err, boom)

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("Stable", found.FullName)

	trail, err := s.trail.ListByPerson(ctx, p.ID)
	s.Require().NoError(err)
	s.Len(trail, 1)
}

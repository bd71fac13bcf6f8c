package person

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"palisade/internal/audit"
	"palisade/internal/directory/models"
	id "palisade/pkg/domain"
	"palisade/pkg/platform/sentinel"
)

type PersonStoreSuite struct {
	suite.Suite
	store *InMemory
	trail *audit.InMemoryStore
	ctx   context.Context
}

func TestPersonStoreSuite(t *testing.T) {
	suite.Run(t, new(PersonStoreSuite))
}

func (s *PersonStoreSuite) SetupTest() {
	s.trail = audit.NewInMemoryStore()
	s.store = NewInMemory(s.trail)
	s.ctx = context.Background()
}

func (s *PersonStoreSuite) newPerson(name string) *models.Person {
	now := time.Now()
	return &models.Person{
		ID:        id.PersonID(uuid.New()),
		FullName:  name,
		Category:  models.CategoryResident,
		Status:    models.StatusActive,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *PersonStoreSuite) creationRecord(p *models.Person) audit.Record {
	return audit.Record{
		ID:       id.AuditRecordID(uuid.New()),
		PersonID: p.ID,
		Action:   audit.ActionCreated,
		At:       time.Now(),
	}
}

func (s *PersonStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds person by ID", func() {
		person := s.newPerson("Ahmed Khan")
		s.Require().NoError(s.store.Create(s.ctx, person, s.creationRecord(person)))

		found, err := s.store.FindByID(s.ctx, person.ID)
		s.Require().NoError(err)
		s.Equal("Ahmed Khan", found.FullName)
		s.Equal(int64(0), found.Version)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.PersonID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate id", func() {
		person := s.newPerson("First")
		s.Require().NoError(s.store.Create(s.ctx, person, s.creationRecord(person)))

		dupe := s.newPerson("Second")
		dupe.ID = person.ID
		err := s.store.Create(s.ctx, dupe, s.creationRecord(dupe))
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})
}

func (s *PersonStoreSuite) TestMutateVersionContract() {
	person := s.newPerson("Versioned")
	s.Require().NoError(s.store.Create(s.ctx, person, s.creationRecord(person)))

	mutate := func(name string) func(p *models.Person) (audit.Record, error) {
		return func(p *models.Person) (audit.Record, error) {
			record := audit.Record{
				ID:         id.AuditRecordID(uuid.New()),
				PersonID:   p.ID,
				Action:     audit.ActionUpdated,
				OldVersion: p.Version,
				NewVersion: p.Version + 1,
				At:         time.Now(),
			}
			p.FullName = name
			p.Version++
			return record, nil
		}
	}

	s.Run("applies mutation at the expected version", func() {
		updated, err := s.store.Mutate(s.ctx, person.ID, 0, mutate("Renamed"))
		s.Require().NoError(err)
		s.Equal(int64(1), updated.Version)
		s.Equal("Renamed", updated.FullName)
	})

	s.Run("rejects stale expected version", func() {
		_, err := s.store.Mutate(s.ctx, person.ID, 0, mutate("Again"))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("leaves no partial effects when mutate fails", func() {
		trailBefore := s.trail.Len()
		_, err := s.store.Mutate(s.ctx, person.ID, 1, func(p *models.Person) (audit.Record, error) {
			p.FullName = "should not persist"
			return audit.Record{}, sentinel.ErrInvalidState
		})
		s.Require().Error(err)

		found, err := s.store.FindByID(s.ctx, person.ID)
		s.Require().NoError(err)
		s.Equal("Renamed", found.FullName)
		s.Equal(trailBefore, s.trail.Len())
	})
}

// TestConcurrentMutations verifies that of N racing updates against the same
// expected version exactly one wins.
func (s *PersonStoreSuite) TestConcurrentMutations() {
	person := s.newPerson("Contended")
	s.Require().NoError(s.store.Create(s.ctx, person, s.creationRecord(person)))

	const goroutines = 32
	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Mutate(s.ctx, person.ID, 0, func(p *models.Person) (audit.Record, error) {
				record := audit.Record{
					ID:         id.AuditRecordID(uuid.New()),
					PersonID:   p.ID,
					Action:     audit.ActionUpdated,
					OldVersion: p.Version,
					NewVersion: p.Version + 1,
					At:         time.Now(),
				}
				p.Version++
				return record, nil
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case err == sentinel.ErrConflict:
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one mutation should win")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should see a conflict")

	found, err := s.store.FindByID(s.ctx, person.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), found.Version)

	// One creation record plus exactly one mutation record.
	s.Equal(2, s.trail.Len())
}

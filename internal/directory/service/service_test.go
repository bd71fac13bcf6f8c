package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"palisade/internal/audit"
	"palisade/internal/directory/models"
	"palisade/internal/directory/store/person"
	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/requestcontext"
)

type DirectoryServiceSuite struct {
	suite.Suite
	service *Service
	trail   *audit.InMemoryStore
	ctx     context.Context
	now     time.Time
}

func TestDirectoryServiceSuite(t *testing.T) {
	suite.Run(t, new(DirectoryServiceSuite))
}

func (s *DirectoryServiceSuite) SetupTest() {
	s.trail = audit.NewInMemoryStore()
	s.service = New(person.NewInMemory(s.trail))
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *DirectoryServiceSuite) enroll(name string) *models.Person {
	enrolled, err := s.service.Enroll(s.ctx, models.Draft{
		FullName: name,
		Category: models.CategoryResident,
	})
	s.Require().NoError(err)
	return enrolled
}

func (s *DirectoryServiceSuite) TestEnroll() {
	s.Run("creates a person at version 0 with an audit record", func() {
		enrolled := s.enroll("Ahmed Khan")
		s.Equal(int64(0), enrolled.Version)
		s.Equal(models.StatusActive, enrolled.Status)

		trail, err := s.trail.ListByPerson(s.ctx, enrolled.ID)
		s.Require().NoError(err)
		s.Require().Len(trail, 1)
		s.Equal(audit.ActionCreated, trail[0].Action)
		s.Equal(int64(0), trail[0].NewVersion)
	})

	s.Run("rejects missing required fields", func() {
		_, err := s.service.Enroll(s.ctx, models.Draft{Category: models.CategoryVisitor})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects duplicate id", func() {
		first := s.enroll("Original")
		_, err := s.service.Enroll(s.ctx, models.Draft{
			ID:       first.ID.String(),
			FullName: "Impostor",
			Category: models.CategoryGuest,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *DirectoryServiceSuite) TestUpdate() {
	s.Run("bumps version by exactly one and appends one audit record", func() {
		enrolled := s.enroll("Before")
		newName := "After"
		updated, err := s.service.Update(s.ctx, enrolled.ID, 0, models.Patch{FullName: &newName})
		s.Require().NoError(err)
		s.Equal(int64(1), updated.Version)
		s.Equal("After", updated.FullName)

		trail, err := s.trail.ListByPerson(s.ctx, enrolled.ID)
		s.Require().NoError(err)
		s.Require().Len(trail, 2)
		s.Equal(audit.ActionUpdated, trail[1].Action)
		s.Equal(int64(0), trail[1].OldVersion)
		s.Equal(int64(1), trail[1].NewVersion)
		s.Equal("Before", trail[1].Diff["full_name"].Old)
		s.Equal("After", trail[1].Diff["full_name"].New)
	})

	s.Run("fails with conflict on stale version and writes nothing", func() {
		enrolled := s.enroll("Stable")
		name := "First"
		_, err := s.service.Update(s.ctx, enrolled.ID, 0, models.Patch{FullName: &name})
		s.Require().NoError(err)

		stale := "Second"
		_, err = s.service.Update(s.ctx, enrolled.ID, 0, models.Patch{FullName: &stale})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		current, err := s.service.Get(s.ctx, enrolled.ID)
		s.Require().NoError(err)
		s.Equal("First", current.FullName)
		s.Equal(int64(1), current.Version)

		trail, err := s.trail.ListByPerson(s.ctx, enrolled.ID)
		s.Require().NoError(err)
		s.Len(trail, 2)
	})

	s.Run("relationship edges are a flat keyed list", func() {
		enrolled := s.enroll("Hub")
		related := s.enroll("Spoke")

		relatedID := related.ID
		updated, err := s.service.Update(s.ctx, enrolled.ID, 0, models.Patch{
			PutRelationships: []models.Relationship{{RelatedID: &relatedID, Type: "household"}},
		})
		s.Require().NoError(err)
		s.Require().Len(updated.Relationships, 1)

		// putting the same edge twice does not duplicate it
		updated, err = s.service.Update(s.ctx, enrolled.ID, 1, models.Patch{
			PutRelationships: []models.Relationship{{RelatedID: &relatedID, Type: "household"}},
		})
		s.Require().NoError(err)
		s.Len(updated.Relationships, 1)

		updated, err = s.service.Update(s.ctx, enrolled.ID, 2, models.Patch{
			DropRelationship: []models.Relationship{{RelatedID: &relatedID, Type: "household"}},
		})
		s.Require().NoError(err)
		s.Empty(updated.Relationships)
	})
}

func (s *DirectoryServiceSuite) TestStatusTransitions() {
	s.Run("deactivate then reactivate, each audited", func() {
		enrolled := s.enroll("Toggler")

		deactivated, err := s.service.Deactivate(s.ctx, enrolled.ID, 0)
		s.Require().NoError(err)
		s.Equal(models.StatusDeactivated, deactivated.Status)
		s.Equal(int64(1), deactivated.Version)

		reactivated, err := s.service.Reactivate(s.ctx, enrolled.ID, 1)
		s.Require().NoError(err)
		s.Equal(models.StatusActive, reactivated.Status)
		s.Equal(int64(2), reactivated.Version)

		trail, err := s.trail.ListByPerson(s.ctx, enrolled.ID)
		s.Require().NoError(err)
		s.Len(trail, 3)
		s.Equal("active", trail[1].Diff["status"].Old)
		s.Equal("deactivated", trail[1].Diff["status"].New)
	})

	s.Run("double deactivation is an invariant violation, not a version bump", func() {
		enrolled := s.enroll("Once")
		_, err := s.service.Deactivate(s.ctx, enrolled.ID, 0)
		s.Require().NoError(err)

		_, err = s.service.Deactivate(s.ctx, enrolled.ID, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		current, err := s.service.Get(s.ctx, enrolled.ID)
		s.Require().NoError(err)
		s.Equal(int64(1), current.Version)
	})
}

func (s *DirectoryServiceSuite) TestGet() {
	_, err := s.service.Get(s.ctx, id.PersonID(uuid.New()))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

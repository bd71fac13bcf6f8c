package search

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"palisade/internal/directory/models"
	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
)

type fixedLister struct {
	persons []*models.Person
}

func (l *fixedLister) List(_ context.Context) ([]*models.Person, error) {
	return l.persons, nil
}

type SearchSuite struct {
	suite.Suite
	lister *fixedLister
	svc    *Service
	ctx    context.Context
}

func TestSearchSuite(t *testing.T) {
	suite.Run(t, new(SearchSuite))
}

func (s *SearchSuite) SetupTest() {
	s.lister = &fixedLister{}
	s.svc = New(s.lister)
	s.ctx = context.Background()
}

func (s *SearchSuite) add(p *models.Person) *models.Person {
	if p.ID.IsNil() {
		p.ID = id.PersonID(uuid.New())
	}
	s.lister.persons = append(s.lister.persons, p)
	return p
}

func (s *SearchSuite) TestFieldWeights() {
	s.Run("a name hit outranks an address hit", func() {
		byName := s.add(&models.Person{FullName: "Ahmed Khan"})
		s.add(&models.Person{FullName: "Sara Ali", Address: "12 Khan Street"})

		results, err := s.svc.Search(s.ctx, "khan", 10)
		s.Require().NoError(err)
		s.Require().Len(results, 2)
		s.Equal(byName.ID, results[0].Person.ID)
		s.Greater(results[0].Score, results[1].Score)
	})

	s.Run("an exact field match outranks a substring match", func() {
		exact := s.add(&models.Person{FullName: "Khan"})
		s.add(&models.Person{FullName: "Ahmed Khan"})

		results, err := s.svc.Search(s.ctx, "khan", 10)
		s.Require().NoError(err)
		s.Require().Len(results, 2)
		s.Equal(exact.ID, results[0].Person.ID)
	})

	s.Run("hits across several fields accumulate", func() {
		both := s.add(&models.Person{FullName: "Khan Ahmed", Address: "Khan Street"})
		nameOnly := s.add(&models.Person{FullName: "Khan Bashir"})

		results, err := s.svc.Search(s.ctx, "khan", 10)
		s.Require().NoError(err)
		s.Require().Len(results, 2)
		s.Equal(both.ID, results[0].Person.ID)
		s.Equal(nameOnly.ID, results[1].Person.ID)
	})
}

func (s *SearchSuite) TestContactAndIdentityFields() {
	byPhone := s.add(&models.Person{FullName: "Unrelated", Phone: "+92-300-5551234"})
	byIdentity := s.add(&models.Person{FullName: "Other", IdentityNumber: "35202-5551234-1"})

	results, err := s.svc.Search(s.ctx, "5551234", 10)
	s.Require().NoError(err)
	s.Require().Len(results, 2)
	found := map[uuid.UUID]bool{}
	for _, r := range results {
		found[uuid.UUID(r.Person.ID)] = true
	}
	s.True(found[uuid.UUID(byPhone.ID)])
	s.True(found[uuid.UUID(byIdentity.ID)])
}

func (s *SearchSuite) TestTieBreaks() {
	s.Run("verified persons rank above unverified at equal score", func() {
		verifiedAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		verified := s.add(&models.Person{FullName: "Khan One", VerifiedAt: &verifiedAt})
		s.add(&models.Person{FullName: "Khan Two"})

		results, err := s.svc.Search(s.ctx, "khan", 10)
		s.Require().NoError(err)
		s.Require().Len(results, 2)
		s.Equal(verified.ID, results[0].Person.ID)
	})

	s.Run("fully tied results order by id", func() {
		a := s.add(&models.Person{FullName: "Khan A"})
		b := s.add(&models.Person{FullName: "Khan B"})

		results, err := s.svc.Search(s.ctx, "khan", 10)
		s.Require().NoError(err)
		s.Require().Len(results, 2)
		want := []string{a.ID.String(), b.ID.String()}
		if want[0] > want[1] {
			want[0], want[1] = want[1], want[0]
		}
		s.Equal(want[0], results[0].Person.ID.String())
		s.Equal(want[1], results[1].Person.ID.String())
	})
}

func (s *SearchSuite) TestQueryHandling() {
	s.add(&models.Person{FullName: "Ahmed Khan"})

	s.Run("matching is case-insensitive", func() {
		results, err := s.svc.Search(s.ctx, "AHMED", 10)
		s.Require().NoError(err)
		s.Len(results, 1)
	})

	s.Run("non-matching query returns empty, not an error", func() {
		results, err := s.svc.Search(s.ctx, "nobody", 10)
		s.Require().NoError(err)
		s.Empty(results)
	})

	s.Run("blank query is a validation error", func() {
		_, err := s.svc.Search(s.ctx, "   ", 10)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("limit truncates", func() {
		s.add(&models.Person{FullName: "Ahmed Ali"})
		results, err := s.svc.Search(s.ctx, "ahmed", 1)
		s.Require().NoError(err)
		s.Len(results, 1)
	})
}

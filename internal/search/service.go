package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"palisade/internal/directory/models"
	dErrors "palisade/pkg/domain-errors"
)

// PersonLister supplies the search corpus. Satisfied by the directory
// person store; search never mutates.
type PersonLister interface {
	List(ctx context.Context) ([]*models.Person, error)
}

// Field weights. Names carry the most signal, contact and identity
// fields less, address least.
const (
	weightName     = 3.0
	weightContact  = 2.0
	weightIdentity = 2.0
	weightAddress  = 1.0
)

// An exact field match outranks any substring match on the same field.
const exactTier = 2.0

// Result pairs a person with its relevance score.
type Result struct {
	Person *models.Person `json:"person"`
	Score  float64        `json:"score"`
}

// Service is the SearchIndex. Scoring is recomputed per query against the
// live directory; results are a point-in-time view and carry no freshness
// guarantee beyond the snapshot they scored against.
type Service struct {
	persons PersonLister
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(persons PersonLister, opts ...Option) *Service {
	s := &Service{persons: persons, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search scores every person against the query and returns matches in
// relevance order. Ties break on verification recency, then id, so equal
// scores always list in a stable order.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "query is required")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	persons, err := s.persons.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not load directory")
	}

	results := make([]Result, 0, len(persons))
	for _, person := range persons {
		score := scorePerson(person, query)
		if score > 0 {
			results = append(results, Result{Person: person, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		vi, vj := results[i].Person.VerifiedAt, results[j].Person.VerifiedAt
		switch {
		case vi != nil && vj == nil:
			return true
		case vi == nil && vj != nil:
			return false
		case vi != nil && vj != nil && !vi.Equal(*vj):
			return vi.After(*vj)
		}
		return results[i].Person.ID.String() < results[j].Person.ID.String()
	})

	if len(results) > limit {
		results = results[:limit]
	}
	s.logger.DebugContext(ctx, "search completed", "query", query, "hits", len(results))
	return results, nil
}

const defaultLimit = 20

func scorePerson(person *models.Person, query string) float64 {
	var score float64
	score += scoreField(person.FullName, query, weightName)
	score += scoreField(person.Alias, query, weightName)
	score += scoreField(person.Phone, query, weightContact)
	score += scoreField(person.Email, query, weightContact)
	score += scoreField(person.IdentityNumber, query, weightIdentity)
	score += scoreField(person.Address, query, weightAddress)
	return score
}

func scoreField(value, query string, weight float64) float64 {
	value = strings.ToLower(value)
	if value == "" {
		return 0
	}
	if value == query {
		return weight * exactTier
	}
	if strings.Contains(value, query) {
		return weight
	}
	return 0
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	biometricmetrics "palisade/internal/biometric/metrics"
	"palisade/internal/biometric/models"
	id "palisade/pkg/domain"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/sentinel"
	"palisade/pkg/requestcontext"
)

// SampleStore persists biometric samples. LiveByKind must return a
// point-in-time snapshot reflecting only committed enrollments and
// deletions; a concurrent matcher never observes a partially-enrolled
// sample.
type SampleStore interface {
	Append(ctx context.Context, sample *models.Sample) error
	// SoftDelete marks a sample deleted. Returns sentinel.ErrNotFound for
	// unknown ids; deleting an already-deleted sample is a no-op.
	SoftDelete(ctx context.Context, sampleID id.SampleID) error
	LiveByKind(ctx context.Context, kind models.Kind) ([]*models.Sample, error)
}

// PersonResolver answers whether a person exists. Satisfied by the
// directory store through a thin adapter so this module never mutates
// person records.
type PersonResolver interface {
	Exists(ctx context.Context, personID id.PersonID) (bool, error)
}

// TemplateScorer computes the distance between two fingerprint templates.
// The comparison algorithm lives outside this core; this service owns only
// storage, candidate-set construction, and ranking/threshold policy.
type TemplateScorer interface {
	Distance(ctx context.Context, probe, candidate []byte) (float64, error)
}

// Service is the BiometricIndex.
type Service struct {
	samples SampleStore
	persons PersonResolver
	scorer  TemplateScorer
	logger  *slog.Logger
	metrics *biometricmetrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *biometricmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTemplateScorer(scorer TemplateScorer) Option {
	return func(s *Service) { s.scorer = scorer }
}

func New(samples SampleStore, persons PersonResolver, opts ...Option) *Service {
	s := &Service{
		samples: samples,
		persons: persons,
		logger:  slog.Default(),
		tracer:  otel.Tracer("palisade/biometric"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnrollEmbedding appends a live face embedding for the person. Multiple
// live samples per person are allowed and all participate in matching.
func (s *Service) EnrollEmbedding(ctx context.Context, personID id.PersonID, vector []float32, quality float64) (*models.Sample, error) {
	if err := models.ValidateEmbedding(vector); err != nil {
		return nil, err
	}
	sample := &models.Sample{
		ID:         id.SampleID(uuid.New()),
		PersonID:   personID,
		Kind:       models.KindEmbedding,
		Vector:     vector,
		Quality:    quality,
		EnrolledAt: requestcontext.Now(ctx),
	}
	return s.enroll(ctx, sample)
}

// EnrollTemplate appends a live fingerprint template for the person.
func (s *Service) EnrollTemplate(ctx context.Context, personID id.PersonID, template []byte, position string, quality float64) (*models.Sample, error) {
	if len(template) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "template blob is required")
	}
	sample := &models.Sample{
		ID:         id.SampleID(uuid.New()),
		PersonID:   personID,
		Kind:       models.KindTemplate,
		Template:   template,
		Position:   position,
		Quality:    quality,
		EnrolledAt: requestcontext.Now(ctx),
	}
	return s.enroll(ctx, sample)
}

func (s *Service) enroll(ctx context.Context, sample *models.Sample) (*models.Sample, error) {
	exists, err := s.persons.Exists(ctx, sample.PersonID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not resolve person")
	}
	if !exists {
		return nil, dErrors.New(dErrors.CodeForeignKey, "person does not resolve")
	}
	if err := s.samples.Append(ctx, sample); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not store sample")
	}
	s.metrics.RecordEnrollment(string(sample.Kind))
	s.logger.InfoContext(ctx, "biometric sample enrolled",
		"sample_id", sample.ID.String(),
		"person_id", sample.PersonID.String(),
		"kind", string(sample.Kind),
	)
	return sample, nil
}

// SoftDelete marks a sample deleted. Future matches never return it;
// already-delivered match results are unaffected.
func (s *Service) SoftDelete(ctx context.Context, sampleID id.SampleID) error {
	if err := s.samples.SoftDelete(ctx, sampleID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "sample not found")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "could not delete sample")
	}
	s.logger.InfoContext(ctx, "biometric sample soft-deleted", "sample_id", sampleID.String())
	return nil
}

// MatchFace ranks all live embeddings against the probe by ascending
// Euclidean distance. Unmatched (best distance above threshold) is returned
// as data, never as an error.
func (s *Service) MatchFace(ctx context.Context, probe []float32, topK int, threshold float64) (*models.MatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "biometric.MatchFace")
	defer span.End()

	if err := models.ValidateEmbedding(probe); err != nil {
		return nil, err
	}
	if err := validateMatchParams(topK, threshold); err != nil {
		return nil, err
	}

	start := time.Now()
	snapshot, err := s.samples.LiveByKind(ctx, models.KindEmbedding)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not load embeddings")
	}

	scored := make([]scoredSample, 0, len(snapshot))
	for _, sample := range snapshot {
		scored = append(scored, scoredSample{
			sample:   sample,
			distance: euclidean(probe, sample.Vector),
		})
	}

	result := rank(scored, topK, threshold)
	s.observeMatch(ctx, "embedding", result, time.Since(start))
	return result, nil
}

// MatchFingerprint has the same ranking contract as MatchFace; template
// comparison is delegated to the injected scorer. Candidates are scored
// concurrently with a shared cancellation context.
func (s *Service) MatchFingerprint(ctx context.Context, probe []byte, topK int, threshold float64) (*models.MatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "biometric.MatchFingerprint")
	defer span.End()

	if len(probe) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "probe template is required")
	}
	if err := validateMatchParams(topK, threshold); err != nil {
		return nil, err
	}
	if s.scorer == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "no template scorer configured")
	}

	start := time.Now()
	snapshot, err := s.samples.LiveByKind(ctx, models.KindTemplate)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not load templates")
	}

	scored := make([]scoredSample, len(snapshot))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, sample := range snapshot {
		g.Go(func() error {
			distance, err := s.scorer.Distance(gctx, probe, sample.Template)
			if err != nil {
				return err
			}
			scored[i] = scoredSample{sample: sample, distance: distance}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "template scoring failed")
	}

	result := rank(scored, topK, threshold)
	s.observeMatch(ctx, "template", result, time.Since(start))
	return result, nil
}

func (s *Service) observeMatch(ctx context.Context, kind string, result *models.MatchResult, elapsed time.Duration) {
	outcome := "matched"
	if result.Unmatched {
		outcome = "unmatched"
	}
	s.metrics.RecordMatch(kind, outcome, elapsed.Seconds())
	s.logger.DebugContext(ctx, "match completed",
		"kind", kind,
		"outcome", outcome,
		"candidates", len(result.Candidates),
	)
}

type scoredSample struct {
	sample   *models.Sample
	distance float64
}

// rank orders scored samples by ascending distance with ties broken by the
// most recently enrolled sample, keeps the best sample per person, filters
// by threshold, and truncates to topK.
func rank(scored []scoredSample, topK int, threshold float64) *models.MatchResult {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].distance != scored[j].distance {
			return scored[i].distance < scored[j].distance
		}
		return scored[i].sample.EnrolledAt.After(scored[j].sample.EnrolledAt)
	})

	seen := make(map[id.PersonID]struct{})
	candidates := make([]models.Candidate, 0, topK)
	for _, entry := range scored {
		if entry.distance > threshold {
			break
		}
		if _, dup := seen[entry.sample.PersonID]; dup {
			continue
		}
		seen[entry.sample.PersonID] = struct{}{}
		candidates = append(candidates, models.Candidate{
			PersonID: entry.sample.PersonID,
			SampleID: entry.sample.ID,
			Distance: entry.distance,
		})
		if len(candidates) == topK {
			break
		}
	}

	return &models.MatchResult{
		Candidates: candidates,
		Unmatched:  len(candidates) == 0,
	}
}

func validateMatchParams(topK int, threshold float64) error {
	if topK < 1 {
		return dErrors.New(dErrors.CodeValidation, "topK must be at least 1")
	}
	if threshold < 0 || math.IsNaN(threshold) {
		return dErrors.New(dErrors.CodeValidation, "threshold must be non-negative")
	}
	return nil
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

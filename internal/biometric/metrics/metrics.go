package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the biometric index.
type Metrics struct {
	SamplesEnrolled *prometheus.CounterVec
	Matches         *prometheus.CounterVec
	MatchDuration   *prometheus.HistogramVec
}

// New creates and registers all biometric metrics.
func New() *Metrics {
	return &Metrics{
		SamplesEnrolled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_biometric_samples_enrolled_total",
			Help: "Samples enrolled by kind",
		}, []string{"kind"}),
		Matches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_biometric_matches_total",
			Help: "Match operations by kind and outcome (matched/unmatched)",
		}, []string{"kind", "outcome"}),
		MatchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "palisade_biometric_match_duration_seconds",
			Help:    "Match operation latency by kind",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

func (m *Metrics) RecordEnrollment(kind string) {
	if m == nil {
		return
	}
	m.SamplesEnrolled.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordMatch(kind, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Matches.WithLabelValues(kind, outcome).Inc()
	m.MatchDuration.WithLabelValues(kind).Observe(seconds)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the person directory.
type Metrics struct {
	PersonsEnrolled  prometheus.Counter
	Mutations        *prometheus.CounterVec
	VersionConflicts prometheus.Counter
}

// New creates and registers all directory metrics.
func New() *Metrics {
	return &Metrics{
		PersonsEnrolled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "palisade_directory_persons_enrolled_total",
			Help: "Total number of persons enrolled in the directory",
		}),
		Mutations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_directory_mutations_total",
			Help: "Successful person mutations by operation",
		}, []string{"operation"}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "palisade_directory_version_conflicts_total",
			Help: "Mutations rejected due to a stale optimistic version",
		}),
	}
}

func (m *Metrics) RecordMutation(operation string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordVersionConflict() {
	if m == nil {
		return
	}
	m.VersionConflicts.Inc()
}

func (m *Metrics) RecordEnrollment() {
	if m == nil {
		return
	}
	m.PersonsEnrolled.Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the entry ledger.
type Metrics struct {
	EventsRecorded *prometheus.CounterVec
	Replays        prometheus.Counter
	RecordDuration prometheus.Histogram
}

// New creates and registers all ledger metrics.
func New() *Metrics {
	return &Metrics{
		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "palisade_ledger_events_recorded_total",
			Help: "Entry events recorded by method and direction",
		}, []string{"method", "direction"}),
		Replays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "palisade_ledger_replays_total",
			Help: "Record calls answered from an already-recorded request_id",
		}),
		RecordDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "palisade_ledger_record_duration_seconds",
			Help:    "Record operation latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) RecordEvent(method, direction string, seconds float64) {
	if m == nil {
		return
	}
	m.EventsRecorded.WithLabelValues(method, direction).Inc()
	m.RecordDuration.Observe(seconds)
}

func (m *Metrics) RecordReplay() {
	if m == nil {
		return
	}
	m.Replays.Inc()
}

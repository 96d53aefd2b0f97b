// Package metrics exposes Prometheus instruments for the extraction pipeline and its hosts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for extraction. A nil *Metrics is a no-op.
type Metrics struct {
	// Per-stage latency: recovery, entities, fields, assemble
	StageLatency *prometheus.HistogramVec

	// Invocation outcomes: ok, recovery_failed
	Outcomes *prometheus.CounterVec

	// Field results by field and result: found, not_found, inferred, discarded
	FieldResults *prometheus.CounterVec

	// Result cache lookups: hit, miss, error
	CacheLookups *prometheus.CounterVec

	// Jobs waiting in the async queue
	QueueDepth prometheus.Gauge
}

// New registers the instruments with reg, or the default registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contracts_extraction_stage_duration_seconds",
			Help:    "Duration of each extraction pipeline stage",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 15, 60},
		}, []string{"stage"}),

		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contracts_extractions_total",
			Help: "Extraction invocations by outcome",
		}, []string{"outcome"}),

		FieldResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contracts_extracted_fields_total",
			Help: "Extracted field results by field and result",
		}, []string{"field", "result"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contracts_result_cache_lookups_total",
			Help: "Result cache lookups by result",
		}, []string{"result"}),

		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "contracts_queue_depth",
			Help: "Extraction jobs waiting in the async queue",
		}),
	}
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// IncOutcome records an invocation outcome.
func (m *Metrics) IncOutcome(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

// IncField records the result for one field.
func (m *Metrics) IncField(field, result string) {
	if m != nil {
		m.FieldResults.WithLabelValues(field, result).Inc()
	}
}

// IncCache records a cache lookup result.
func (m *Metrics) IncCache(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

// SetQueueDepth records the number of queued jobs.
func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

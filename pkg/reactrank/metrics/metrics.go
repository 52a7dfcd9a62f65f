package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments a ranking session. All methods are safe on a nil
// receiver, which records nothing.
type Metrics struct {
	Assignments        *prometheus.CounterVec
	Reconciliations    prometheus.Counter
	TagWeightsComputed prometheus.Counter
	RebuildDuration    prometheus.Histogram
	ItemsIngested      prometheus.Counter
}

// New registers the session metrics with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Assignments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reactrank_assignments_total",
				Help: "Total number of ledger category changes, by target category",
			},
			[]string{"category"}, // tier name or "unassigned"
		),
		Reconciliations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reactrank_reconciliations_total",
				Help: "Total number of items corrected after a desync with the remote record",
			},
		),
		TagWeightsComputed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reactrank_tag_weights_computed_total",
				Help: "Total number of tag weight vectors computed",
			},
		),
		RebuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reactrank_rebuild_duration_seconds",
				Help:    "Duration of model rebuilds in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		ItemsIngested: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reactrank_items_ingested_total",
				Help: "Total number of catalog items ingested",
			},
		),
	}
}

// RecordAssignment counts one category change.
func (m *Metrics) RecordAssignment(category string) {
	if m == nil {
		return
	}
	m.Assignments.WithLabelValues(category).Inc()
}

// RecordReconciliation counts one desync correction.
func (m *Metrics) RecordReconciliation() {
	if m == nil {
		return
	}
	m.Reconciliations.Inc()
}

// RecordRebuild records a model rebuild that recomputed tags weight vectors.
func (m *Metrics) RecordRebuild(tags int, duration time.Duration) {
	if m == nil {
		return
	}
	m.TagWeightsComputed.Add(float64(tags))
	m.RebuildDuration.Observe(duration.Seconds())
}

// RecordIngest counts ingested items.
func (m *Metrics) RecordIngest(n int) {
	if m == nil {
		return
	}
	m.ItemsIngested.Add(float64(n))
}

package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecordAssignment tests per-category assignment counting
func TestRecordAssignment(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordAssignment("like")
	m.RecordAssignment("like")
	m.RecordAssignment("unassigned")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Assignments.WithLabelValues("like")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Assignments.WithLabelValues("unassigned")))
}

// TestRecordRebuild tests tag weight and duration recording
func TestRecordRebuild(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordRebuild(3, 2*time.Millisecond)
	m.RecordRebuild(7, time.Millisecond)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.TagWeightsComputed))

	expected := `
# HELP reactrank_tag_weights_computed_total Total number of tag weight vectors computed
# TYPE reactrank_tag_weights_computed_total counter
reactrank_tag_weights_computed_total 10
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "reactrank_tag_weights_computed_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RebuildDuration))
}

// TestRecordReconciliationAndIngest tests the plain counters
func TestRecordReconciliationAndIngest(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordReconciliation()
	m.RecordIngest(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconciliations))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ItemsIngested))
}

// TestNilMetrics tests that a nil collector is a no-op
func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAssignment("like")
		m.RecordReconciliation()
		m.RecordRebuild(1, time.Second)
		m.RecordIngest(1)
	})
}

// TestSeparateRegistries tests that two collectors can coexist
func TestSeparateRegistries(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())
	a.RecordReconciliation()

	assert.Equal(t, 0.0, testutil.ToFloat64(b.Reconciliations))
}

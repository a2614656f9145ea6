package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanMetricsRecordBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewScanMetrics(reg)

	m.RecordBatch("gff", ModeScan, 1024, 3*time.Millisecond)
	m.RecordBatch("gff", ModeScan, 10, time.Millisecond)
	m.RecordBatch("fasta", ModeQuery, 2, time.Millisecond)

	assert.Equal(t, 1034.0, testutil.ToFloat64(m.recordsEmitted.WithLabelValues("gff", ModeScan)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.batchesEmitted.WithLabelValues("gff", ModeScan)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchesEmitted.WithLabelValues("fasta", ModeQuery)))
}

func TestScanMetricsErrorsAndRegions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewScanMetrics(reg)

	m.RecordError("gtf", ModeQuery, "index_lookup")
	m.RecordRegion("gtf", 3)
	m.RecordRegion("gtf", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.scanErrors.WithLabelValues("gtf", ModeQuery, "index_lookup")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.regions.WithLabelValues("gtf")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.indexSeeks.WithLabelValues("gtf")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilScanMetricsIsNoop(t *testing.T) {
	var m *ScanMetrics
	assert.NotPanics(t, func() {
		m.RecordBatch("gff", ModeScan, 1, time.Millisecond)
		m.RecordError("gff", ModeScan, "parse")
		m.RecordRegion("gff", 1)
	})
}

func TestThroughputTracker(t *testing.T) {
	m := NewScanMetrics(prometheus.NewRegistry())
	tracker := NewThroughputTracker(m, "fastq", ModeScan)
	tracker.Increment(500)
	time.Sleep(5 * time.Millisecond)

	rps := tracker.GetAndReset()
	assert.Greater(t, rps, 0.0)
	assert.Equal(t, rps, testutil.ToFloat64(m.throughput.WithLabelValues("fastq", ModeScan)))
}

func TestTimer(t *testing.T) {
	timer := NewTimer("batch")
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)
	assert.Equal(t, "batch", timer.Name())
}

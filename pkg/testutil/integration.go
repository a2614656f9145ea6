package testutil

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// IntegrationTestSuite provides base functionality for integration tests
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	if testing.Short() {
		s.T().Skip("skipping integration suite in short mode")
	}
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "genobatch-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir

	s.T().Logf("Integration test suite started in %s", s.tempDir)
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	s.T().Logf("Integration test suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the suite's temporary directory
func (s *IntegrationTestSuite) TempDir() string {
	return s.tempDir
}

// CreateTempFile writes content to a file in the suite directory
func (s *IntegrationTestSuite) CreateTempFile(name string, content []byte) string {
	return WriteFile(s.T(), s.tempDir, name, content)
}

// GenerateGFF returns a coordinate-sorted GFF3 document with perContig
// genes on each of contigs contigs. Gene i on contig c spans
// [i*100+1, i*100+150] and has ID c_i; every tenth gene carries a
// multi-valued Dbxref.
func GenerateGFF(contigs, perContig int) string {
	var b strings.Builder
	b.WriteString("##gff-version 3\n")
	for c := 0; c < contigs; c++ {
		name := fmt.Sprintf("chr%d", c+1)
		for i := 0; i < perContig; i++ {
			fmt.Fprintf(&b, "%s\tgen\tgene\t%d\t%d\t.\t%c\t.\tID=%s_%d;Name=G%d",
				name, i*100+1, i*100+150, "+-"[i%2], name, i, i)
			if i%10 == 0 {
				fmt.Fprintf(&b, ";Dbxref=GeneID:%d,HGNC:%d", i, i+1)
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// GenerateFASTA returns n records named seq0..seq{n-1}, each length bases
// long and wrapped at width
func GenerateFASTA(n, length, width int) string {
	const bases = "ACGT"
	var b strings.Builder
	for r := 0; r < n; r++ {
		fmt.Fprintf(&b, ">seq%d generated record %d\n", r, r)
		for i := 0; i < length; i++ {
			b.WriteByte(bases[(i+r)%len(bases)])
			if (i+1)%width == 0 || i == length-1 {
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

// GenerateFASTQ returns n reads of the given length
func GenerateFASTQ(n, length int) string {
	var b strings.Builder
	for r := 0; r < n; r++ {
		fmt.Fprintf(&b, "@read%d\n%s\n+\n%s\n", r, strings.Repeat("ACGT"[r%4:r%4+1], length), strings.Repeat("I", length))
	}
	return b.String()
}

// PerformanceTest provides utilities for performance testing
type PerformanceTest struct {
	t         *testing.T
	name      string
	threshold struct {
		minThroughput float64 // records/sec
		maxMemory     int64   // bytes
	}
}

// NewPerformanceTest creates a new performance test
func NewPerformanceTest(t *testing.T, name string) *PerformanceTest {
	return &PerformanceTest{
		t:    t,
		name: name,
	}
}

// WithThroughputTarget sets minimum throughput requirement
func (p *PerformanceTest) WithThroughputTarget(recordsPerSec float64) *PerformanceTest {
	p.threshold.minThroughput = recordsPerSec
	return p
}

// WithMemoryTarget sets maximum heap growth
func (p *PerformanceTest) WithMemoryTarget(maxBytes int64) *PerformanceTest {
	p.threshold.maxMemory = maxBytes
	return p
}

// Run executes fn and checks its throughput and heap growth against the
// configured targets
func (p *PerformanceTest) Run(fn func() (recordsProcessed int64, duration time.Duration)) {
	p.t.Helper()

	initialMem := CaptureMemoryProfile()
	records, duration := fn()
	finalMem := CaptureMemoryProfile()

	if records == 0 || duration <= 0 {
		p.t.Errorf("performance test %s processed no records", p.name)
		return
	}
	throughput := float64(records) / duration.Seconds()
	memoryUsed := int64(finalMem.HeapAlloc) - int64(initialMem.HeapAlloc)

	p.t.Logf("Performance Test: %s", p.name)
	p.t.Logf("  Records: %d", records)
	p.t.Logf("  Duration: %v", duration)
	p.t.Logf("  Throughput: %.0f records/sec", throughput)
	p.t.Logf("  Heap Growth: %s", formatBytes(memoryUsed))

	if p.threshold.minThroughput > 0 && throughput < p.threshold.minThroughput {
		p.t.Errorf("Throughput %.0f records/sec below target %.0f records/sec",
			throughput, p.threshold.minThroughput)
	}
	if p.threshold.maxMemory > 0 && memoryUsed > p.threshold.maxMemory {
		p.t.Errorf("Heap growth %s exceeds target %s",
			formatBytes(memoryUsed), formatBytes(p.threshold.maxMemory))
	}
}

// MemoryProfile captures memory statistics
type MemoryProfile struct {
	HeapAlloc  uint64
	TotalAlloc uint64
	Mallocs    uint64
}

// CaptureMemoryProfile captures current memory profile after a GC
func CaptureMemoryProfile() *MemoryProfile {
	runtime.GC()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &MemoryProfile{
		HeapAlloc:  m.HeapAlloc,
		TotalAlloc: m.TotalAlloc,
		Mallocs:    m.Mallocs,
	}
}

// formatBytes formats bytes into human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	sign := ""
	if bytes < 0 {
		sign, bytes = "-", -bytes
	}
	if bytes < unit {
		return fmt.Sprintf("%s%d B", sign, bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%s%.1f %cB", sign, float64(bytes)/float64(div), "KMGTPE"[exp])
}

// Package observability provides tracing and process statistics for
// genobatch scan sessions
package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

const instrumentationName = "github.com/ajitpratap0/genobatch"

var (
	// Global tracer instance
	tracer trace.Tracer = otel.Tracer(instrumentationName)

	// Global meter instance
	meter metric.Meter = otel.Meter(instrumentationName)

	mu sync.RWMutex
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
	ExporterType   string // "stdout" or "none"
	PrettyPrint    bool
	BatchTimeout   time.Duration
	MaxExportBatch int
	MaxQueueSize   int
}

// GetTracer returns the global tracer
func GetTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return tracer
}

// GetMeter returns the global meter
func GetMeter() metric.Meter {
	mu.RLock()
	defer mu.RUnlock()
	return meter
}

// ScanTracer wraps scan sessions in spans and counts emitted batches
type ScanTracer struct {
	tracer  trace.Tracer
	batches metric.Int64Counter
	rows    metric.Int64Counter
}

// NewScanTracer creates a tracer from the global providers
func NewScanTracer() *ScanTracer {
	return NewScanTracerFrom(GetTracer(), GetMeter())
}

// NewScanTracerFrom creates a tracer from explicit providers
func NewScanTracerFrom(t trace.Tracer, m metric.Meter) *ScanTracer {
	st := &ScanTracer{tracer: t}
	// Instrument creation only fails on invalid names; fall back to no
	// counters rather than failing the scan.
	st.batches, _ = m.Int64Counter("genobatch.batches",
		metric.WithDescription("Record batches emitted by scan sessions"))
	st.rows, _ = m.Int64Counter("genobatch.rows",
		metric.WithDescription("Rows emitted by scan sessions"))
	return st
}

// ScanSpan is one traced scan session
type ScanSpan struct {
	ctx       context.Context
	span      trace.Span
	counters  *ScanTracer
	attrs     metric.MeasurementOption
	startTime time.Time
	batches   int
	rows      int64
	ended     bool
}

// Start opens a span for a scan session
func (st *ScanTracer) Start(ctx context.Context, format, mode string) (context.Context, *ScanSpan) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := st.tracer.Start(ctx, "genobatch."+mode,
		trace.WithAttributes(
			attribute.String("scan.format", format),
			attribute.String("scan.mode", mode),
		),
	)
	return ctx, &ScanSpan{
		ctx:       ctx,
		span:      span,
		counters:  st,
		attrs:     metric.WithAttributes(attribute.String("format", format), attribute.String("mode", mode)),
		startTime: time.Now(),
	}
}

// Batch records an emitted batch
func (s *ScanSpan) Batch(rows int64) {
	if s == nil {
		return
	}
	s.batches++
	s.rows += rows
	s.span.AddEvent("batch", trace.WithAttributes(
		attribute.Int("batch.index", s.batches-1),
		attribute.Int64("batch.rows", rows),
	))
	if s.counters.batches != nil {
		s.counters.batches.Add(s.ctx, 1, s.attrs)
	}
	if s.counters.rows != nil {
		s.counters.rows.Add(s.ctx, rows, s.attrs)
	}
}

// Region records a region resolved against an index
func (s *ScanSpan) Region(name string, seeks int) {
	if s == nil {
		return
	}
	s.span.AddEvent("region", trace.WithAttributes(
		attribute.String("region", name),
		attribute.Int("region.seeks", seeks),
	))
}

// End closes the span, marking it failed when err is non-nil. Later calls
// are ignored.
func (s *ScanSpan) End(err error) {
	if s == nil || s.ended {
		return
	}
	s.ended = true

	s.span.SetAttributes(
		attribute.Int("scan.batches", s.batches),
		attribute.Int64("scan.rows", s.rows),
		attribute.Int64("scan.duration_ms", time.Since(s.startTime).Milliseconds()),
	)
	if err != nil {
		var e *errors.Error
		if errors.As(err, &e) {
			s.span.SetAttributes(attribute.String("error.type", string(e.Type)))
		}
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

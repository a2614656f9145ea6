// Package scan turns a stream of parsed records into Arrow record batches.
//
// Two iterators are provided, both implementing array.RecordReader:
//
//   - BatchIterator reads a Source sequentially, emitting batches of at most
//     batchSize rows until the source is exhausted or an optional row limit
//     is reached.
//   - QueryBatchIterator resolves each requested region through a Querier,
//     in the order given, and batches only the records the querier yields.
//
// Iteration is pull-based and single-pass. Each call to Next fills at most
// one batch and may block on I/O. An iterator must be owned by one goroutine
// at a time. Errors are terminal: the in-flight batch is discarded, Next
// returns false and Err reports the cause.
package scan

import (
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/genobatch/pkg/metrics"
	"github.com/ajitpratap0/genobatch/pkg/observability"
	"github.com/ajitpratap0/genobatch/pkg/region"
)

// Source yields parsed records one at a time, returning io.EOF at the end
type Source[T any] interface {
	Read() (T, error)
}

// SourceFunc adapts a function to a Source
type SourceFunc[T any] func() (T, error)

// Read calls f
func (f SourceFunc[T]) Read() (T, error) { return f() }

// SliceSource returns a Source over recs
func SliceSource[T any](recs []T) Source[T] {
	i := 0
	return SourceFunc[T](func() (T, error) {
		var zero T
		if i >= len(recs) {
			return zero, io.EOF
		}
		i++
		return recs[i-1], nil
	})
}

// BatchBuilder accumulates records of type T into one batch at a time
type BatchBuilder[T any] interface {
	// Schema is available before any record is pushed
	Schema() *arrow.Schema
	// Push appends one record
	Push(rec T) error
	// Len returns the number of records pushed since the last Finish
	Len() int
	// Finish returns the accumulated batch and resets the builder
	Finish() (arrow.Record, error)
	// Release frees the builder's buffers
	Release()
}

// Querier resolves a region to a Source over exactly the records that
// overlap it.
type Querier[T any] interface {
	Query(r region.Region) (Source[T], error)
}

// QuerierFunc adapts a function to a Querier
type QuerierFunc[T any] func(r region.Region) (Source[T], error)

// Query calls f
func (f QuerierFunc[T]) Query(r region.Region) (Source[T], error) { return f(r) }

// Option configures an iterator
type Option func(*options)

type options struct {
	ctx     context.Context
	logger  *zap.Logger
	metrics *metrics.ScanMetrics
	tracer  *observability.ScanTracer
	format  string
}

func defaultOptions() options {
	return options{
		ctx:    context.Background(),
		logger: zap.NewNop(),
		format: "unknown",
	}
}

// WithLogger sets the logger used for per-batch debug output
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records batch and error metrics on m
func WithMetrics(m *metrics.ScanMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer wraps the iterator's lifetime in a span
func WithTracer(t *observability.ScanTracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithFormat sets the format name used in logs, metrics and spans
func WithFormat(name string) Option {
	return func(o *options) { o.format = name }
}

// WithContext sets the parent context for the iterator's span. It is not a
// cancellation signal; consumers stop a scan by releasing the iterator.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

func closeIfCloser(v any) error {
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

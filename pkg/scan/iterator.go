package scan

import (
	"io"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"go.uber.org/zap"

	"github.com/ajitpratap0/genobatch/pkg/errors"
	"github.com/ajitpratap0/genobatch/pkg/metrics"
	"github.com/ajitpratap0/genobatch/pkg/observability"
)

var (
	_ array.RecordReader = (*BatchIterator[int])(nil)
	_ array.RecordReader = (*QueryBatchIterator[int])(nil)
)

// batcher holds the state shared by both iterators: the builder, the
// current batch and the terminal error.
type batcher[T any] struct {
	refCount  int64
	builder   BatchBuilder[T]
	batchSize int
	opts      options
	mode      string
	logger    *zap.Logger
	span      *observability.ScanSpan

	cur     arrow.Record
	err     error
	done    bool
	batches int
	rows    int64
}

func newBatcher[T any](builder BatchBuilder[T], batchSize int, mode string, opts []Option) (batcher[T], error) {
	if batchSize <= 0 {
		return batcher[T]{}, errors.Newf(errors.ErrorTypeInvalidInput, "batch size must be positive, got %d", batchSize)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	b := batcher[T]{
		refCount:  1,
		builder:   builder,
		batchSize: batchSize,
		opts:      o,
		mode:      mode,
		logger: o.logger.With(
			zap.String("format", o.format),
			zap.String("mode", mode),
		),
	}
	if o.tracer != nil {
		_, b.span = o.tracer.Start(o.ctx, o.format, mode)
	}
	return b, nil
}

// Schema returns the schema of every batch. It does not depend on data.
func (b *batcher[T]) Schema() *arrow.Schema { return b.builder.Schema() }

// Record returns the current batch. It is valid until the next call to Next
// or Release; callers that keep it must Retain it.
func (b *batcher[T]) Record() arrow.Record { return b.cur }

// Err returns the error that terminated iteration, if any
func (b *batcher[T]) Err() error { return b.err }

// Retain increases the reference count by 1
func (b *batcher[T]) Retain() { atomic.AddInt64(&b.refCount, 1) }

// fill pulls records until the batch is full or pull reports the end
func (b *batcher[T]) fill(pull func() (T, bool, error)) bool {
	if b.cur != nil {
		b.cur.Release()
		b.cur = nil
	}
	if b.done {
		b.span.End(b.err)
		return false
	}

	timer := metrics.NewTimer(b.opts.format + "_batch")
	for b.builder.Len() < b.batchSize {
		rec, ok, err := pull()
		if err != nil {
			b.fail(err)
			return false
		}
		if !ok {
			b.done = true
			break
		}
		if err := b.builder.Push(rec); err != nil {
			b.fail(err)
			return false
		}
	}

	if b.builder.Len() == 0 {
		b.span.End(nil)
		return false
	}

	batch, err := b.builder.Finish()
	if err != nil {
		b.fail(err)
		return false
	}
	b.cur = batch

	rows := batch.NumRows()
	b.batches++
	b.rows += rows
	b.opts.metrics.RecordBatch(b.opts.format, b.mode, int(rows), timer.Stop())
	b.span.Batch(rows)
	b.logger.Debug("batch emitted",
		zap.Int("batch", b.batches-1),
		zap.Int64("rows", rows),
		zap.Int64("total_rows", b.rows))
	return true
}

// fail discards the in-flight batch and makes err terminal
func (b *batcher[T]) fail(err error) {
	if b.builder.Len() > 0 {
		if partial, ferr := b.builder.Finish(); ferr == nil {
			partial.Release()
		}
	}
	b.err = err
	b.done = true

	errType := string(errors.TypeOf(err))
	b.opts.metrics.RecordError(b.opts.format, b.mode, errType)
	b.logger.Error("scan terminated",
		zap.Error(err),
		zap.String("error_type", errType),
		zap.Int("batches", b.batches),
		zap.Int64("rows", b.rows))
	b.span.End(err)
}

// release drops one reference and reports whether it was the last one
func (b *batcher[T]) release() bool {
	if atomic.AddInt64(&b.refCount, -1) != 0 {
		return false
	}
	if b.cur != nil {
		b.cur.Release()
		b.cur = nil
	}
	b.builder.Release()
	b.done = true
	b.span.End(b.err)
	return true
}

func (b *batcher[T]) close(v any, what string) {
	if err := closeIfCloser(v); err != nil {
		b.logger.Warn("failed to close "+what, zap.Error(err))
	}
}

// BatchIterator emits batches from a sequential scan. It consumes its
// source and cannot be restarted.
type BatchIterator[T any] struct {
	batcher[T]
	src   Source[T]
	limit int
	count int
}

// NewBatchIterator creates a sequential iterator. A limit of 0 reads the
// whole source. The iterator takes ownership of src and builder: Release
// frees the builder and closes src if it is an io.Closer.
func NewBatchIterator[T any](src Source[T], builder BatchBuilder[T], batchSize, limit int, opts ...Option) (*BatchIterator[T], error) {
	if limit < 0 {
		return nil, errors.Newf(errors.ErrorTypeInvalidInput, "limit must not be negative, got %d", limit)
	}
	b, err := newBatcher(builder, batchSize, metrics.ModeScan, opts)
	if err != nil {
		return nil, err
	}
	return &BatchIterator[T]{batcher: b, src: src, limit: limit}, nil
}

// Next advances to the next batch. It returns false at the end of the
// stream, once the limit is reached, or after an error.
func (it *BatchIterator[T]) Next() bool {
	return it.fill(it.pull)
}

// Count returns the number of records read so far
func (it *BatchIterator[T]) Count() int { return it.count }

func (it *BatchIterator[T]) pull() (T, bool, error) {
	var zero T
	if it.limit > 0 && it.count >= it.limit {
		return zero, false, nil
	}
	rec, err := it.src.Read()
	if errors.Is(err, io.EOF) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	it.count++
	return rec, true, nil
}

// Release decreases the reference count by 1. When it reaches zero the
// current batch and builder are freed and the source is closed.
func (it *BatchIterator[T]) Release() {
	if !it.release() {
		return
	}
	it.close(it.src, "source")
	it.logger.Debug("scan released",
		zap.Int("batches", it.batches),
		zap.Int("records", it.count),
		zap.Bool("failed", it.err != nil))
}

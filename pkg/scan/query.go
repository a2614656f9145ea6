package scan

import (
	"io"

	"go.uber.org/zap"

	"github.com/ajitpratap0/genobatch/pkg/errors"
	"github.com/ajitpratap0/genobatch/pkg/metrics"
	"github.com/ajitpratap0/genobatch/pkg/region"
)

// SeekCounter is implemented by query sources that can report how many
// index seeks they performed.
type SeekCounter interface {
	Seeks() int
}

// QueryBatchIterator emits batches of the records overlapping each region.
// Regions are resolved in the order given and independently of each other:
// overlapping regions yield their shared records once per region. A batch
// may hold records from more than one region.
type QueryBatchIterator[T any] struct {
	batcher[T]
	querier Querier[T]
	regions []region.Region
	next    int

	src     Source[T]
	current region.Region
	matched int
}

// NewQueryBatchIterator creates an iterator over regions. The iterator takes
// ownership of builder; Release closes any open region source and the
// querier if they are io.Closers.
func NewQueryBatchIterator[T any](q Querier[T], regions []region.Region, builder BatchBuilder[T], batchSize int, opts ...Option) (*QueryBatchIterator[T], error) {
	b, err := newBatcher(builder, batchSize, metrics.ModeQuery, opts)
	if err != nil {
		return nil, err
	}
	return &QueryBatchIterator[T]{batcher: b, querier: q, regions: regions}, nil
}

// Next advances to the next batch. It returns false once every region has
// been read, or after an error.
func (it *QueryBatchIterator[T]) Next() bool {
	return it.fill(it.pull)
}

func (it *QueryBatchIterator[T]) pull() (T, bool, error) {
	var zero T
	for {
		if it.src == nil {
			if it.next >= len(it.regions) {
				return zero, false, nil
			}
			r := it.regions[it.next]
			it.next++

			src, err := it.querier.Query(r)
			if err != nil {
				return zero, false, lookupError(err, r)
			}
			it.src = src
			it.current = r
			it.matched = 0
		}

		rec, err := it.src.Read()
		if errors.Is(err, io.EOF) {
			it.endRegion()
			continue
		}
		if err != nil {
			return zero, false, err
		}
		it.matched++
		return rec, true, nil
	}
}

func (it *QueryBatchIterator[T]) endRegion() {
	seeks := 0
	if sc, ok := it.src.(SeekCounter); ok {
		seeks = sc.Seeks()
	}
	it.opts.metrics.RecordRegion(it.opts.format, seeks)
	it.span.Region(it.current.String(), seeks)
	it.logger.Debug("region resolved",
		zap.String("region", it.current.String()),
		zap.Int("records", it.matched),
		zap.Int("seeks", seeks))

	it.close(it.src, "region source")
	it.src = nil
}

// lookupError tags a querier failure with the region. Untyped errors are
// index lookup failures.
func lookupError(err error, r region.Region) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.WithDetail("region", r.String())
	}
	return errors.Wrap(err, errors.ErrorTypeIndexLookup, "failed to resolve region "+r.String()).
		WithDetail("region", r.String())
}

// Release decreases the reference count by 1. When it reaches zero the
// current batch and builder are freed and open sources are closed.
func (it *QueryBatchIterator[T]) Release() {
	if !it.release() {
		return
	}
	if it.src != nil {
		it.close(it.src, "region source")
		it.src = nil
	}
	it.close(it.querier, "querier")
	it.logger.Debug("query released",
		zap.Int("regions", it.next),
		zap.Int("batches", it.batches),
		zap.Bool("failed", it.err != nil))
}

package scan

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/genobatch/pkg/errors"
	"github.com/ajitpratap0/genobatch/pkg/metrics"
	"github.com/ajitpratap0/genobatch/pkg/observability"
	"github.com/ajitpratap0/genobatch/pkg/region"
)

type intBuilder struct {
	schema *arrow.Schema
	b      *array.Int64Builder
}

func newIntBuilder(mem memory.Allocator) *intBuilder {
	return &intBuilder{
		schema: arrow.NewSchema([]arrow.Field{{Name: "v", Type: arrow.PrimitiveTypes.Int64}}, nil),
		b:      array.NewInt64Builder(mem),
	}
}

func (ib *intBuilder) Schema() *arrow.Schema { return ib.schema }

func (ib *intBuilder) Push(v int) error {
	if v < 0 {
		return errors.Newf(errors.ErrorTypeTypeMismatch, "negative value %d", v)
	}
	ib.b.Append(int64(v))
	return nil
}

func (ib *intBuilder) Len() int { return ib.b.Len() }

func (ib *intBuilder) Finish() (arrow.Record, error) {
	arr := ib.b.NewArray()
	defer arr.Release()
	return array.NewRecord(ib.schema, []arrow.Array{arr}, int64(arr.Len())), nil
}

func (ib *intBuilder) Release() { ib.b.Release() }

// countingSource yields 0..n-1, counting reads and closes
type countingSource struct {
	n      int
	reads  int
	closed int
	failAt int
}

func (s *countingSource) Read() (int, error) {
	if s.failAt > 0 && s.reads == s.failAt {
		return 0, errors.New(errors.ErrorTypeParse, "malformed record")
	}
	if s.reads >= s.n {
		return 0, io.EOF
	}
	s.reads++
	return s.reads - 1, nil
}

func (s *countingSource) Close() error {
	s.closed++
	return nil
}

func values(t *testing.T, recs []arrow.Record) []int64 {
	t.Helper()
	var out []int64
	for _, r := range recs {
		out = append(out, r.Column(0).(*array.Int64).Int64Values()...)
	}
	return out
}

func batchSizes(recs []arrow.Record) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.NumRows()
	}
	return out
}

func TestBatchIteratorBatchesWholeStream(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	src := &countingSource{n: 10}
	it, err := NewBatchIterator[int](src, newIntBuilder(mem), 4, 0, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	recs, err := ReadAll(it)
	require.NoError(t, err)
	defer ReleaseAll(recs)

	assert.Equal(t, []int64{4, 4, 2}, batchSizes(recs))
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, values(t, recs))
	assert.False(t, it.Next())

	it.Release()
	assert.Equal(t, 1, src.closed)
}

func TestBatchIteratorLimit(t *testing.T) {
	tests := []struct {
		batchSize, limit int
		want             []int64
	}{
		{2, 5, []int64{2, 2, 1}},
		{5, 5, []int64{5}},
		{3, 6, []int64{3, 3}},
		{1024, 7, []int64{7}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("bs=%d/limit=%d", tt.batchSize, tt.limit), func(t *testing.T) {
			mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
			defer mem.AssertSize(t, 0)

			src := &countingSource{n: 100}
			it, err := NewBatchIterator[int](src, newIntBuilder(mem), tt.batchSize, tt.limit)
			require.NoError(t, err)
			defer it.Release()

			recs, err := ReadAll(it)
			require.NoError(t, err)
			defer ReleaseAll(recs)

			assert.Equal(t, tt.want, batchSizes(recs))
			assert.Equal(t, int64(tt.limit), NumRows(recs))
			// The source is never read past the limit.
			assert.Equal(t, tt.limit, src.reads)
			assert.Equal(t, tt.limit, it.Count())
		})
	}
}

func TestBatchIteratorEmptySource(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	it, err := NewBatchIterator[int](SliceSource[int](nil), newIntBuilder(mem), 8, 0)
	require.NoError(t, err)
	defer it.Release()

	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
	assert.Equal(t, "v", it.Schema().Field(0).Name)
}

func TestBatchIteratorErrorDiscardsInFlightBatch(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	reg := prometheus.NewRegistry()
	src := &countingSource{n: 10, failAt: 3}
	it, err := NewBatchIterator[int](src, newIntBuilder(mem), 2, 0,
		WithMetrics(metrics.NewScanMetrics(reg)), WithFormat("test"))
	require.NoError(t, err)

	require.True(t, it.Next())
	assert.Equal(t, int64(2), it.Record().NumRows())

	// The third record is buffered when the fourth read fails; it is dropped.
	assert.False(t, it.Next())
	require.Error(t, it.Err())
	assert.True(t, errors.IsType(it.Err(), errors.ErrorTypeParse))
	assert.Nil(t, it.Record())

	// Errors are terminal.
	assert.False(t, it.Next())

	it.Release()
	assert.Equal(t, 1, src.closed)
}

func TestBatchIteratorBuilderErrorIsTerminal(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	it, err := NewBatchIterator(SliceSource([]int{1, 2, -3, 4}), BatchBuilder[int](newIntBuilder(mem)), 10, 0)
	require.NoError(t, err)
	defer it.Release()

	assert.False(t, it.Next())
	assert.True(t, errors.IsType(it.Err(), errors.ErrorTypeTypeMismatch))
}

func TestBatchIteratorReleaseWhenAbandoned(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	src := &countingSource{n: 100}
	it, err := NewBatchIterator[int](src, newIntBuilder(mem), 10, 0)
	require.NoError(t, err)

	require.True(t, it.Next())
	it.Retain()
	it.Release()
	assert.Equal(t, 0, src.closed)

	it.Release()
	assert.Equal(t, 1, src.closed)
	assert.Equal(t, 10, src.reads)
}

func TestBatchIteratorRejectsBadArguments(t *testing.T) {
	mem := memory.NewGoAllocator()

	_, err := NewBatchIterator[int](&countingSource{}, newIntBuilder(mem), 0, 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))

	_, err = NewBatchIterator[int](&countingSource{}, newIntBuilder(mem), 1, -1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))
}

type feature struct {
	chrom string
	pos   int
}

// mapQuerier serves features by contig and counts the region sources it
// closes.
type mapQuerier struct {
	features map[string][]feature
	closed   int
}

type closingSource struct {
	Source[int]
	q *mapQuerier
}

func (c closingSource) Close() error {
	c.q.closed++
	return nil
}

func (c closingSource) Seeks() int { return 1 }

func (q *mapQuerier) Query(r region.Region) (Source[int], error) {
	fs, ok := q.features[r.Name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeIndexLookup, "contig %s not in index", r.Name)
	}
	var matched []int
	for _, f := range fs {
		if r.Overlaps(f.pos, f.pos) {
			matched = append(matched, f.pos)
		}
	}
	return closingSource{Source: SliceSource(matched), q: q}, nil
}

func newMapQuerier() *mapQuerier {
	return &mapQuerier{features: map[string][]feature{
		"chr1": {{"chr1", 10}, {"chr1", 20}, {"chr1", 30}},
		"chr2": {{"chr2", 5}, {"chr2", 15}},
	}}
}

func TestQueryBatchIteratorRegionsInOrder(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	q := newMapQuerier()
	regions, err := region.ParseAll([]string{"chr2:1-20", "chr1:15-35", "chr1:100-200"})
	require.NoError(t, err)

	it, err := NewQueryBatchIterator[int](q, regions, newIntBuilder(mem), 3, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	recs, err := ReadAll(it)
	require.NoError(t, err)
	defer ReleaseAll(recs)

	// Batches span region boundaries; the empty region adds nothing.
	assert.Equal(t, []int64{3, 1}, batchSizes(recs))
	assert.Equal(t, []int64{5, 15, 20, 30}, values(t, recs))

	it.Release()
	assert.Equal(t, 3, q.closed)
}

func TestQueryBatchIteratorOverlappingRegionsNotMerged(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	regions, err := region.ParseAll([]string{"chr1:1-25", "chr1:15-35"})
	require.NoError(t, err)

	it, err := NewQueryBatchIterator[int](newMapQuerier(), regions, newIntBuilder(mem), 1024)
	require.NoError(t, err)
	defer it.Release()

	recs, err := ReadAll(it)
	require.NoError(t, err)
	defer ReleaseAll(recs)

	assert.Equal(t, []int64{10, 20, 20, 30}, values(t, recs))
}

func TestQueryBatchIteratorLookupFailure(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	q := newMapQuerier()
	regions, err := region.ParseAll([]string{"chr1", "chrUn"})
	require.NoError(t, err)

	it, err := NewQueryBatchIterator[int](q, regions, newIntBuilder(mem), 1024)
	require.NoError(t, err)

	assert.False(t, it.Next())
	require.Error(t, it.Err())
	assert.True(t, errors.IsType(it.Err(), errors.ErrorTypeIndexLookup))

	var e *errors.Error
	require.True(t, errors.As(it.Err(), &e))
	assert.Equal(t, "chrUn", e.Details["region"])

	it.Release()
	assert.Equal(t, 1, q.closed)
}

func TestQueryBatchIteratorWrapsUntypedLookupErrors(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	q := QuerierFunc[int](func(r region.Region) (Source[int], error) {
		return nil, io.ErrUnexpectedEOF
	})
	it, err := NewQueryBatchIterator[int](q, []region.Region{region.MustParse("chr1:1-2")}, newIntBuilder(mem), 10)
	require.NoError(t, err)
	defer it.Release()

	assert.False(t, it.Next())
	assert.True(t, errors.IsType(it.Err(), errors.ErrorTypeIndexLookup))
	assert.ErrorIs(t, it.Err(), io.ErrUnexpectedEOF)
}

func TestQueryBatchIteratorNoRegions(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	it, err := NewQueryBatchIterator[int](newMapQuerier(), nil, newIntBuilder(mem), 10)
	require.NoError(t, err)
	defer it.Release()

	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
}

func TestIteratorTracing(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tracer := observability.NewScanTracerFrom(tp.Tracer("test"), noop.NewMeterProvider().Meter("test"))

	it, err := NewBatchIterator[int](&countingSource{n: 5}, newIntBuilder(mem), 2, 0,
		WithTracer(tracer), WithFormat("fastq"), WithContext(context.Background()))
	require.NoError(t, err)

	recs, err := ReadAll(it)
	require.NoError(t, err)
	ReleaseAll(recs)
	it.Release()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "genobatch.scan", spans[0].Name())
	assert.Len(t, spans[0].Events(), 3)
}

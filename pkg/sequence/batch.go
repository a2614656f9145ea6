package sequence

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// FastaFieldNames are the FASTA columns in default order
var FastaFieldNames = []string{"name", "description", "sequence"}

// FastqFieldNames are the FASTQ columns in default order
var FastqFieldNames = []string{"name", "description", "sequence", "quality"}

// column describes one output field and how to fill it from a record
type column[R any] struct {
	field arrow.Field
	push  func(array.Builder, R)
}

func appendDescription(b array.Builder, desc string) {
	if desc == "" {
		b.AppendNull()
		return
	}
	b.(*array.StringBuilder).Append(desc)
}

var fastaColumns = map[string]column[*FastaRecord]{
	"name": {
		field: arrow.Field{Name: "name", Type: arrow.BinaryTypes.String},
		push:  func(b array.Builder, r *FastaRecord) { b.(*array.StringBuilder).Append(r.Name) },
	},
	"description": {
		field: arrow.Field{Name: "description", Type: arrow.BinaryTypes.String, Nullable: true},
		push:  func(b array.Builder, r *FastaRecord) { appendDescription(b, r.Description) },
	},
	"sequence": {
		field: arrow.Field{Name: "sequence", Type: arrow.BinaryTypes.LargeString},
		push:  func(b array.Builder, r *FastaRecord) { b.(*array.LargeStringBuilder).BinaryBuilder.Append(r.Sequence) },
	},
}

var fastqColumns = map[string]column[*FastqRecord]{
	"name": {
		field: arrow.Field{Name: "name", Type: arrow.BinaryTypes.String},
		push:  func(b array.Builder, r *FastqRecord) { b.(*array.StringBuilder).Append(r.Name) },
	},
	"description": {
		field: arrow.Field{Name: "description", Type: arrow.BinaryTypes.String, Nullable: true},
		push:  func(b array.Builder, r *FastqRecord) { appendDescription(b, r.Description) },
	},
	"sequence": {
		field: arrow.Field{Name: "sequence", Type: arrow.BinaryTypes.String},
		push:  func(b array.Builder, r *FastqRecord) { b.(*array.StringBuilder).BinaryBuilder.Append(r.Sequence) },
	},
	"quality": {
		field: arrow.Field{Name: "quality", Type: arrow.BinaryTypes.String},
		push:  func(b array.Builder, r *FastqRecord) { b.(*array.StringBuilder).BinaryBuilder.Append(r.Quality) },
	},
}

func selectColumns[R any](names []string, all map[string]column[R], filter []string) ([]column[R], error) {
	if filter == nil {
		filter = names
	}
	cols := make([]column[R], 0, len(filter))
	seen := make(map[string]bool, len(filter))
	for _, name := range filter {
		c, ok := all[name]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeInvalidInput, "invalid field name: %s", name).
				WithDetail("valid", names)
		}
		if seen[name] {
			return nil, errors.Newf(errors.ErrorTypeInvalidInput, "duplicate field name: %s", name)
		}
		seen[name] = true
		cols = append(cols, c)
	}
	return cols, nil
}

func schemaOf[R any](cols []column[R]) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = c.field
	}
	return arrow.NewSchema(fields, nil)
}

// BatchBuilder builds record batches from FASTA or FASTQ records
type BatchBuilder[R any] struct {
	schema   *arrow.Schema
	cols     []column[R]
	builders []array.Builder
	n        int
}

func newBatchBuilder[R any](mem memory.Allocator, cols []column[R]) *BatchBuilder[R] {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := &BatchBuilder[R]{schema: schemaOf(cols), cols: cols, builders: make([]array.Builder, len(cols))}
	for i, c := range cols {
		b.builders[i] = array.NewBuilder(mem, c.field.Type)
	}
	return b
}

// NewFastaBatchBuilder returns a builder for the selected FASTA fields
func NewFastaBatchBuilder(mem memory.Allocator, fields []string) (*BatchBuilder[*FastaRecord], error) {
	cols, err := selectColumns(FastaFieldNames, fastaColumns, fields)
	if err != nil {
		return nil, err
	}
	return newBatchBuilder(mem, cols), nil
}

// NewFastqBatchBuilder returns a builder for the selected FASTQ fields
func NewFastqBatchBuilder(mem memory.Allocator, fields []string) (*BatchBuilder[*FastqRecord], error) {
	cols, err := selectColumns(FastqFieldNames, fastqColumns, fields)
	if err != nil {
		return nil, err
	}
	return newBatchBuilder(mem, cols), nil
}

// Schema returns the batch schema
func (b *BatchBuilder[R]) Schema() *arrow.Schema { return b.schema }

// Len returns the number of records pushed since the last Finish
func (b *BatchBuilder[R]) Len() int { return b.n }

// Push appends one record
func (b *BatchBuilder[R]) Push(rec R) error {
	for i, c := range b.cols {
		c.push(b.builders[i], rec)
	}
	b.n++
	return nil
}

// Finish returns the accumulated batch and resets the builder
func (b *BatchBuilder[R]) Finish() (arrow.Record, error) {
	cols := make([]arrow.Array, len(b.builders))
	for i, bb := range b.builders {
		cols[i] = bb.NewArray()
	}
	rec := array.NewRecord(b.schema, cols, int64(b.n))
	for _, c := range cols {
		c.Release()
	}
	b.n = 0
	return rec, nil
}

// Release frees the builder's buffers
func (b *BatchBuilder[R]) Release() {
	for _, bb := range b.builders {
		bb.Release()
	}
}

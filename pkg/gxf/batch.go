package gxf

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// AttributesField is the name of the struct column holding attributes
const AttributesField = "attributes"

// GTFFieldNames are the fixed GTF columns in default order
var GTFFieldNames = []string{"seqid", "source", "type", "start", "end", "score", "strand", "frame"}

// GFFFieldNames are the fixed GFF3 columns in default order
var GFFFieldNames = []string{"seqid", "source", "type", "start", "end", "score", "strand", "phase"}

// Record is implemented by GTFRecord and GFFRecord
type Record interface {
	feature() *Feature
	// attribute returns the value of the first attribute named key
	attribute(key string) (AttributeValue, bool, error)
}

func (r *GTFRecord) feature() *Feature { return &r.Feature }

func (r *GTFRecord) attribute(key string) (AttributeValue, bool, error) {
	for _, e := range r.Attributes {
		if e.Key == key {
			return ValueFromGTFEntry(e), true, nil
		}
	}
	return AttributeValue{}, false, nil
}

func (r *GFFRecord) feature() *Feature { return &r.Feature }

func (r *GFFRecord) attribute(key string) (AttributeValue, bool, error) {
	for _, a := range r.Attributes {
		if a.Key == key {
			v, err := ValueFromGFFValue(a.Value)
			return v, true, err
		}
	}
	return AttributeValue{}, false, nil
}

type fixedColumn struct {
	field arrow.Field
	push  func(array.Builder, *Feature)
}

var fixedColumns = map[string]fixedColumn{
	"seqid": {
		field: arrow.Field{Name: "seqid", Type: arrow.BinaryTypes.String},
		push:  func(b array.Builder, f *Feature) { b.(*array.StringBuilder).Append(f.Seqid) },
	},
	"source": {
		field: arrow.Field{Name: "source", Type: arrow.BinaryTypes.String},
		push:  func(b array.Builder, f *Feature) { b.(*array.StringBuilder).Append(f.Source) },
	},
	"type": {
		field: arrow.Field{Name: "type", Type: arrow.BinaryTypes.String},
		push:  func(b array.Builder, f *Feature) { b.(*array.StringBuilder).Append(f.Type) },
	},
	"start": {
		field: arrow.Field{Name: "start", Type: arrow.PrimitiveTypes.Int32},
		push:  func(b array.Builder, f *Feature) { b.(*array.Int32Builder).Append(int32(f.Start)) },
	},
	"end": {
		field: arrow.Field{Name: "end", Type: arrow.PrimitiveTypes.Int32},
		push:  func(b array.Builder, f *Feature) { b.(*array.Int32Builder).Append(int32(f.End)) },
	},
	"score": {
		field: arrow.Field{Name: "score", Type: arrow.PrimitiveTypes.Float32, Nullable: true},
		push: func(b array.Builder, f *Feature) {
			if f.Score == nil {
				b.AppendNull()
				return
			}
			b.(*array.Float32Builder).Append(*f.Score)
		},
	},
	"strand": {
		field: arrow.Field{Name: "strand", Type: arrow.BinaryTypes.String, Nullable: true},
		push:  func(b array.Builder, f *Feature) { appendOptional(b, f.Strand) },
	},
	"frame": {
		field: arrow.Field{Name: "frame", Type: arrow.BinaryTypes.String, Nullable: true},
		push:  func(b array.Builder, f *Feature) { appendOptional(b, f.Phase) },
	},
	"phase": {
		field: arrow.Field{Name: "phase", Type: arrow.BinaryTypes.String, Nullable: true},
		push:  func(b array.Builder, f *Feature) { appendOptional(b, f.Phase) },
	},
}

func appendOptional(b array.Builder, s string) {
	if s == "" {
		b.AppendNull()
		return
	}
	b.(*array.StringBuilder).Append(s)
}

// selectFields validates a field filter against the dialect's names. A nil
// filter selects every field in default order.
func selectFields(names, filter []string) ([]fixedColumn, error) {
	if filter == nil {
		filter = names
	}
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}

	cols := make([]fixedColumn, 0, len(filter))
	seen := make(map[string]bool, len(filter))
	for _, name := range filter {
		if !allowed[name] {
			return nil, errors.Newf(errors.ErrorTypeInvalidInput, "invalid field name: %s", name).
				WithDetail("valid", names)
		}
		if seen[name] {
			return nil, errors.Newf(errors.ErrorTypeInvalidInput, "duplicate field name: %s", name)
		}
		seen[name] = true
		cols = append(cols, fixedColumns[name])
	}
	return cols, nil
}

func newSchema(cols []fixedColumn, defs AttributeDefs) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(cols)+1)
	for _, c := range cols {
		fields = append(fields, c.field)
	}
	if defs != nil {
		fields = append(fields, arrow.Field{Name: AttributesField, Type: defs.StructType()})
	}
	return arrow.NewSchema(fields, nil)
}

// BatchBuilder builds GTF or GFF3 record batches: the selected fixed
// columns followed, when attribute definitions are given, by a struct
// column with one child per definition.
type BatchBuilder[R Record] struct {
	mem    memory.Allocator
	schema *arrow.Schema
	cols   []fixedColumn
	fixed  []array.Builder
	defs   AttributeDefs
	attrs  []*AttributeBuilder
	values []AttributeValue
	found  []bool
	n      int
}

func newBatchBuilder[R Record](mem memory.Allocator, names, fields []string, defs AttributeDefs) (*BatchBuilder[R], error) {
	cols, err := selectFields(names, fields)
	if err != nil {
		return nil, err
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := &BatchBuilder[R]{
		mem:    mem,
		schema: newSchema(cols, defs),
		cols:   cols,
		defs:   defs,
		values: make([]AttributeValue, len(defs)),
		found:  make([]bool, len(defs)),
	}
	b.fixed = make([]array.Builder, len(cols))
	for i, c := range cols {
		b.fixed[i] = array.NewBuilder(mem, c.field.Type)
	}
	b.resetAttrs()
	return b, nil
}

// NewGTFBatchBuilder returns a builder for GTF records
func NewGTFBatchBuilder(mem memory.Allocator, fields []string, defs AttributeDefs) (*BatchBuilder[*GTFRecord], error) {
	return newBatchBuilder[*GTFRecord](mem, GTFFieldNames, fields, defs)
}

// NewGFFBatchBuilder returns a builder for GFF3 records
func NewGFFBatchBuilder(mem memory.Allocator, fields []string, defs AttributeDefs) (*BatchBuilder[*GFFRecord], error) {
	return newBatchBuilder[*GFFRecord](mem, GFFFieldNames, fields, defs)
}

func (b *BatchBuilder[R]) resetAttrs() {
	b.attrs = make([]*AttributeBuilder, len(b.defs))
	for i, d := range b.defs {
		b.attrs[i] = NewAttributeBuilder(b.mem, d.Type)
	}
}

// Schema returns the batch schema
func (b *BatchBuilder[R]) Schema() *arrow.Schema { return b.schema }

// Len returns the number of records pushed since the last Finish
func (b *BatchBuilder[R]) Len() int { return b.n }

// Push appends one record. Attribute values are resolved and checked
// before anything is appended, so a failed push leaves the batch intact.
func (b *BatchBuilder[R]) Push(rec R) error {
	for i, d := range b.defs {
		v, ok, err := rec.attribute(d.Name)
		if err != nil {
			return withAttribute(err, d.Name)
		}
		if ok {
			if err := b.attrs[i].Check(v); err != nil {
				return withAttribute(err, d.Name)
			}
		}
		b.values[i], b.found[i] = v, ok
	}

	f := rec.feature()
	for i, c := range b.cols {
		c.push(b.fixed[i], f)
	}
	for i, ab := range b.attrs {
		var err error
		if b.found[i] {
			err = ab.AppendValue(b.values[i])
		} else {
			err = ab.AppendNull()
		}
		if err != nil {
			return err
		}
	}
	b.n++
	return nil
}

func withAttribute(err error, name string) error {
	var e *errors.Error
	if errors.As(err, &e) {
		e.WithDetail("attribute", name)
	}
	return err
}

// Finish returns the accumulated batch and resets the builder
func (b *BatchBuilder[R]) Finish() (arrow.Record, error) {
	cols := make([]arrow.Array, 0, len(b.schema.Fields()))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for _, fb := range b.fixed {
		cols = append(cols, fb.NewArray())
	}

	if b.defs != nil {
		children := make([]arrow.ArrayData, 0, len(b.attrs))
		for _, ab := range b.attrs {
			arr, err := ab.Finish()
			if err != nil {
				b.resetAttrs()
				return nil, err
			}
			children = append(children, arr.Data())
			defer arr.Release()
		}
		b.resetAttrs()

		data := array.NewData(b.defs.StructType(), b.n, []*memory.Buffer{nil}, children, 0, 0)
		cols = append(cols, array.NewStructData(data))
		data.Release()
	}

	rec := array.NewRecord(b.schema, cols, int64(b.n))
	b.n = 0
	return rec, nil
}

// Release frees the builder's buffers
func (b *BatchBuilder[R]) Release() {
	for _, fb := range b.fixed {
		fb.Release()
	}
	for _, ab := range b.attrs {
		ab.Release()
	}
}

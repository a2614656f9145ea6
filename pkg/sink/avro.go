package sink

import (
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// avroWriter appends each batch as one OCF block
type avroWriter struct {
	ocf     *goavro.OCFWriter
	columns []avroColumn
	buf     []any
	rows    int64
}

// avroColumn converts one arrow column to goavro native values
type avroColumn struct {
	name    string
	convert func(arr arrow.Array, i int) any
}

func newAvroWriter(schema *arrow.Schema, w io.Writer, opts Options) (*avroWriter, error) {
	avroSchema, columns, err := avroSchemaFor(schema)
	if err != nil {
		return nil, err
	}
	codec, err := goavro.NewCodec(avroSchema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Avro codec")
	}
	compressionName, err := avroCompression(opts.AvroCodec)
	if err != nil {
		return nil, err
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: compressionName,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Avro writer")
	}
	return &avroWriter{ocf: ocf, columns: columns}, nil
}

func avroCompression(name string) (string, error) {
	switch strings.ToLower(name) {
	case "", "null", "none":
		return goavro.CompressionNullLabel, nil
	case "deflate":
		return goavro.CompressionDeflateLabel, nil
	case "snappy":
		return goavro.CompressionSnappyLabel, nil
	default:
		return "", errors.Newf(errors.ErrorTypeInvalidInput, "unsupported avro codec: %s", name)
	}
}

func (w *avroWriter) Write(rec arrow.Record) error {
	w.buf = w.buf[:0]
	for i := 0; i < int(rec.NumRows()); i++ {
		native := make(map[string]any, len(w.columns))
		for c, col := range w.columns {
			native[col.name] = col.convert(rec.Column(c), i)
		}
		w.buf = append(w.buf, native)
	}
	if len(w.buf) == 0 {
		return nil
	}
	if err := w.ocf.Append(w.buf); err != nil {
		return writeError(err, Avro)
	}
	w.rows += rec.NumRows()
	return nil
}

// Close is a no-op: OCF blocks are complete once appended
func (w *avroWriter) Close() error { return nil }

func (w *avroWriter) Rows() int64 { return w.rows }

// avroSchemaFor maps an arrow schema onto an Avro record named Batch.
// Field names are sanitized to the Avro name grammar.
func avroSchemaFor(schema *arrow.Schema) (string, []avroColumn, error) {
	fields := make([]map[string]any, 0, schema.NumFields())
	columns := make([]avroColumn, 0, schema.NumFields())
	for _, f := range schema.Fields() {
		typ, convert, err := avroField(f, "")
		if err != nil {
			return "", nil, err
		}
		name := avroName(f.Name)
		fields = append(fields, map[string]any{"name": name, "type": typ})
		columns = append(columns, avroColumn{name: name, convert: convert})
	}
	data, err := json.Marshal(map[string]any{
		"type":   "record",
		"name":   "Batch",
		"fields": fields,
	})
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode Avro schema")
	}
	return string(data), columns, nil
}

// avroField returns the Avro type of f and its converter, wrapped in a
// ["null", T] union when f is nullable.
func avroField(f arrow.Field, namespace string) (any, func(arrow.Array, int) any, error) {
	typ, branch, convert, err := avroType(f.Type, namespace+avroTypeName(f.Name))
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeInvalidInput, "unsupported column type").WithDetail("field", f.Name)
	}
	if !f.Nullable {
		return typ, convert, nil
	}
	return []any{"null", typ}, func(arr arrow.Array, i int) any {
		if arr.IsNull(i) {
			return nil
		}
		return goavro.Union(branch, convert(arr, i))
	}, nil
}

// avroType returns the Avro type, its union branch name and a converter
func avroType(dt arrow.DataType, recordName string) (any, string, func(arrow.Array, int) any, error) {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return "string", "string", func(arr arrow.Array, i int) any { return value(arr, i) }, nil
	case arrow.INT32:
		return "int", "int", func(arr arrow.Array, i int) any { return value(arr, i) }, nil
	case arrow.INT64:
		return "long", "long", func(arr arrow.Array, i int) any { return value(arr, i) }, nil
	case arrow.FLOAT32:
		return "float", "float", func(arr arrow.Array, i int) any { return value(arr, i) }, nil
	case arrow.FLOAT64:
		return "double", "double", func(arr arrow.Array, i int) any { return value(arr, i) }, nil
	case arrow.BOOL:
		return "boolean", "boolean", func(arr arrow.Array, i int) any { return value(arr, i) }, nil
	case arrow.LIST:
		lt := dt.(*arrow.ListType)
		items, convert, err := avroField(lt.ElemField(), recordName)
		if err != nil {
			return nil, "", nil, err
		}
		return map[string]any{"type": "array", "items": items}, "array", func(arr arrow.Array, i int) any {
			l := arr.(*array.List)
			start, end := l.ValueOffsets(i)
			values := l.ListValues()
			out := make([]any, 0, end-start)
			for j := start; j < end; j++ {
				out = append(out, convert(values, int(j)))
			}
			return out
		}, nil
	case arrow.STRUCT:
		st := dt.(*arrow.StructType)
		fields := make([]map[string]any, 0, st.NumFields())
		names := make([]string, st.NumFields())
		converts := make([]func(arrow.Array, int) any, st.NumFields())
		for k, child := range st.Fields() {
			typ, convert, err := avroField(child, recordName)
			if err != nil {
				return nil, "", nil, err
			}
			names[k] = avroName(child.Name)
			converts[k] = convert
			fields = append(fields, map[string]any{"name": names[k], "type": typ})
		}
		return map[string]any{"type": "record", "name": recordName, "fields": fields}, recordName, func(arr arrow.Array, i int) any {
			s := arr.(*array.Struct)
			out := make(map[string]any, len(names))
			for k, name := range names {
				out[name] = converts[k](s.Field(k), i)
			}
			return out
		}, nil
	default:
		return nil, "", nil, errors.Newf(errors.ErrorTypeInvalidInput, "no Avro mapping for %s", dt)
	}
}

// avroName replaces characters outside [A-Za-z0-9_] and prefixes names
// that start with a digit
func avroName(name string) string {
	b := []byte(name)
	for i, c := range b {
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			b[i] = '_'
		}
	}
	if len(b) == 0 || b[0] >= '0' && b[0] <= '9' {
		return "_" + string(b)
	}
	return string(b)
}

// avroTypeName derives a record type name from a field name
func avroTypeName(field string) string {
	n := avroName(field)
	return strings.ToUpper(n[:1]) + n[1:]
}

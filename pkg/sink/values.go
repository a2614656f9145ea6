package sink

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// value converts one cell to a Go value: strings, numbers, []any for lists
// and map[string]any for structs. Nulls become nil.
func value(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Float32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	case *array.List:
		start, end := a.ValueOffsets(i)
		items := a.ListValues()
		out := make([]any, 0, end-start)
		for j := start; j < end; j++ {
			out = append(out, value(items, int(j)))
		}
		return out
	case *array.Struct:
		st := a.DataType().(*arrow.StructType)
		out := make(map[string]any, a.NumField())
		for f := 0; f < a.NumField(); f++ {
			out[st.Field(f).Name] = value(a.Field(f), i)
		}
		return out
	default:
		return arr.ValueStr(i)
	}
}

// row converts row i of rec to a map keyed by column name
func row(rec arrow.Record, i int) map[string]any {
	out := make(map[string]any, rec.NumCols())
	for c, col := range rec.Columns() {
		out[rec.ColumnName(c)] = value(col, i)
	}
	return out
}

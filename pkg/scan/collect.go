package scan

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// ReadAll drains rr and returns every batch retained. The caller releases
// the returned records; rr is not released.
func ReadAll(rr array.RecordReader) ([]arrow.Record, error) {
	var out []arrow.Record
	for rr.Next() {
		rec := rr.Record()
		rec.Retain()
		out = append(out, rec)
	}
	if err := rr.Err(); err != nil {
		ReleaseAll(out)
		return nil, err
	}
	return out, nil
}

// ReleaseAll releases every record in recs
func ReleaseAll(recs []arrow.Record) {
	for _, r := range recs {
		r.Release()
	}
}

// NumRows sums the row counts of recs
func NumRows(recs []arrow.Record) int64 {
	var n int64
	for _, r := range recs {
		n += r.NumRows()
	}
	return n
}

package sink

import (
	"bufio"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/goccy/go-json"
)

// ndjsonWriter writes one object per row. Lists become arrays, the
// attributes struct a nested object and nulls JSON null.
type ndjsonWriter struct {
	bw   *bufio.Writer
	enc  *json.Encoder
	rows int64
}

func newNDJSONWriter(_ *arrow.Schema, w io.Writer) (*ndjsonWriter, error) {
	bw := bufio.NewWriterSize(w, 64<<10)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &ndjsonWriter{bw: bw, enc: enc}, nil
}

func (w *ndjsonWriter) Write(rec arrow.Record) error {
	for i := 0; i < int(rec.NumRows()); i++ {
		if err := w.enc.Encode(row(rec, i)); err != nil {
			return writeError(err, NDJSON)
		}
	}
	w.rows += rec.NumRows()
	return nil
}

func (w *ndjsonWriter) Close() error {
	if err := w.bw.Flush(); err != nil {
		return writeError(err, NDJSON)
	}
	return nil
}

func (w *ndjsonWriter) Rows() int64 { return w.rows }

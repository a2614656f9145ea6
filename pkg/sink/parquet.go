package sink

import (
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// parquetWriter writes one row group per batch
type parquetWriter struct {
	fw   *pqarrow.FileWriter
	rows int64
}

func newParquetWriter(schema *arrow.Schema, w io.Writer, opts Options) (*parquetWriter, error) {
	codec, err := parquetCodec(opts.ParquetCodec)
	if err != nil {
		return nil, err
	}
	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(true),
		parquet.WithAllocator(opts.allocator()),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(opts.allocator()),
		pqarrow.WithStoreSchema(),
	)

	// the parquet writer closes its sink, which belongs to the caller
	fw, err := pqarrow.NewFileWriter(schema, nopCloser{w}, props, arrowProps)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Parquet writer")
	}
	return &parquetWriter{fw: fw}, nil
}

func parquetCodec(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	default:
		return compress.Codecs.Uncompressed, errors.Newf(errors.ErrorTypeInvalidInput, "unsupported parquet codec: %s", name)
	}
}

func (w *parquetWriter) Write(rec arrow.Record) error {
	if err := w.fw.Write(rec); err != nil {
		return writeError(err, Parquet)
	}
	w.rows += rec.NumRows()
	return nil
}

func (w *parquetWriter) Close() error {
	if err := w.fw.Close(); err != nil {
		return writeError(err, Parquet)
	}
	return nil
}

func (w *parquetWriter) Rows() int64 { return w.rows }

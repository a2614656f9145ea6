// Package sink writes Arrow record batches to files, object stores and
// databases.
//
// Byte-stream formats (arrow, arrows, avro, ndjson) write to any io.Writer
// and may be wrapped in a stream compressor. Parquet compresses its column
// chunks itself. The postgres sink copies each batch into a table.
package sink

import (
	"context"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/genobatch/pkg/compression"
	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// Format represents an output format
type Format string

const (
	// Arrow is the Arrow IPC file format
	Arrow Format = "arrow"
	// ArrowStream is the Arrow IPC streaming format
	ArrowStream Format = "arrows"
	// Parquet is Apache Parquet
	Parquet Format = "parquet"
	// Avro is an Avro object container file
	Avro Format = "avro"
	// NDJSON is one JSON object per row
	NDJSON Format = "ndjson"
	// Postgres copies rows into a PostgreSQL table
	Postgres Format = "postgres"
)

// Formats lists every output format
var Formats = []Format{Arrow, ArrowStream, Parquet, Avro, NDJSON, Postgres}

// ParseFormat parses a case-insensitive format name
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.Newf(errors.ErrorTypeInvalidInput, "unsupported output format: %s", s)
}

// Extension returns the conventional file extension
func (f Format) Extension() string {
	switch f {
	case ArrowStream:
		return ".arrows"
	case Postgres:
		return ""
	default:
		return "." + string(f)
	}
}

// Writer consumes record batches that all share one schema
type Writer interface {
	// Write appends every row of rec. The writer does not retain rec.
	Write(rec arrow.Record) error
	// Close flushes buffered output. It does not close the io.Writer the
	// sink was created with.
	Close() error
	// Rows returns the number of rows written so far
	Rows() int64
}

// Options configures a sink
type Options struct {
	Format Format
	// Compression wraps byte-stream formats
	Compression      compression.Algorithm
	CompressionLevel compression.Level
	// ParquetCodec names the parquet column codec
	ParquetCodec string
	// AvroCodec names the OCF block codec
	AvroCodec string
	// Postgres settings
	DSN         string
	Table       string
	CreateTable bool

	Allocator memory.Allocator
}

func (o Options) allocator() memory.Allocator {
	if o.Allocator == nil {
		return memory.DefaultAllocator
	}
	return o.Allocator
}

// New returns a byte-stream sink for schema writing to w
func New(schema *arrow.Schema, w io.Writer, opts Options) (Writer, error) {
	if schema == nil {
		return nil, errors.New(errors.ErrorTypeInvalidInput, "schema is required")
	}
	if opts.Format == Postgres {
		return nil, errors.New(errors.ErrorTypeInvalidInput, "postgres output is not a byte stream; use NewPostgres")
	}
	if opts.Format == Parquet {
		if opts.Compression != "" && opts.Compression != compression.None {
			return nil, errors.New(errors.ErrorTypeInvalidInput, "stream compression is not supported for parquet; set the parquet codec instead")
		}
		return newParquetWriter(schema, w, opts)
	}

	out := io.WriteCloser(nopCloser{w})
	if opts.Compression != "" && opts.Compression != compression.None {
		level := opts.CompressionLevel
		if level == 0 {
			level = compression.Default
		}
		cw, err := compression.NewWriter(w, opts.Compression, level)
		if err != nil {
			return nil, err
		}
		out = cw
	}

	var (
		sw  Writer
		err error
	)
	switch opts.Format {
	case Arrow:
		sw, err = newIPCFileWriter(schema, out, opts)
	case ArrowStream, "":
		sw, err = newIPCStreamWriter(schema, out, opts)
	case Avro:
		sw, err = newAvroWriter(schema, out, opts)
	case NDJSON:
		sw, err = newNDJSONWriter(schema, out)
	default:
		err = errors.Newf(errors.ErrorTypeInvalidInput, "unsupported output format: %s", opts.Format)
	}
	if err != nil {
		out.Close()
		return nil, err
	}
	return &compressed{Writer: sw, out: out}, nil
}

// compressed closes the compressor after the format writer has flushed
type compressed struct {
	Writer
	out io.Closer
}

func (c *compressed) Close() error {
	err := c.Writer.Close()
	if cerr := c.out.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to finish compressed stream")
	}
	return err
}

// Copy drains rr into w and returns the number of rows written. It stops
// early when ctx is cancelled. Neither rr nor w is released or closed.
func Copy(ctx context.Context, rr array.RecordReader, w Writer) (int64, error) {
	var rows int64
	for rr.Next() {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		rec := rr.Record()
		if err := w.Write(rec); err != nil {
			return rows, err
		}
		rows += rec.NumRows()
	}
	return rows, rr.Err()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeError(err error, format Format) error {
	return errors.Wrap(err, errors.ErrorTypeFile, "failed to write batch").WithDetail("format", string(format))
}

package sequence

import (
	"bytes"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/genobatch/pkg/errors"
	"github.com/ajitpratap0/genobatch/pkg/index/fai"
	"github.com/ajitpratap0/genobatch/pkg/region"
	"github.com/ajitpratap0/genobatch/pkg/scan"
)

const (
	// DefaultFastaBatchSize is one record per batch; reference sequences
	// are large.
	DefaultFastaBatchSize = 1
	// DefaultFastqBatchSize suits many short reads
	DefaultFastqBatchSize = 1024
	// DefaultQueryBatchSize is used by ScanQuery
	DefaultQueryBatchSize = 1024
)

func orDefault(batchSize, def int) int {
	if batchSize == 0 {
		return def
	}
	return batchSize
}

func withFormat(name string, opts []scan.Option) []scan.Option {
	return append([]scan.Option{scan.WithFormat(name)}, opts...)
}

// FastaScanner produces record batches from FASTA files
type FastaScanner struct {
	// Allocator backs every batch; nil means memory.DefaultAllocator
	Allocator memory.Allocator
}

// FieldNames returns the FASTA field names
func (s FastaScanner) FieldNames() []string {
	return append([]string(nil), FastaFieldNames...)
}

// Schema returns the batch schema for a field filter
func (s FastaScanner) Schema(fields []string) (*arrow.Schema, error) {
	cols, err := selectColumns(FastaFieldNames, fastaColumns, fields)
	if err != nil {
		return nil, err
	}
	return schemaOf(cols), nil
}

// Scan reads r sequentially from its current position
func (s FastaScanner) Scan(r io.Reader, fields []string, batchSize, limit int, opts ...scan.Option) (*scan.BatchIterator[*FastaRecord], error) {
	builder, err := NewFastaBatchBuilder(s.Allocator, fields)
	if err != nil {
		return nil, err
	}
	src := scan.Source[*FastaRecord](NewFastaReader(r))
	return scan.NewBatchIterator(src, builder, orDefault(batchSize, DefaultFastaBatchSize), limit, withFormat("fasta", opts)...)
}

// ScanQuery fetches the sequence slice of each region. r addresses the
// uncompressed FASTA bytes: a plain file, or a bgzf.IndexedReader for
// bgzipped input. Each record is named after its region.
func (s FastaScanner) ScanQuery(r io.ReadSeeker, idx *fai.Index, regions []region.Region, fields []string, batchSize int, opts ...scan.Option) (*scan.QueryBatchIterator[*FastaRecord], error) {
	builder, err := NewFastaBatchBuilder(s.Allocator, fields)
	if err != nil {
		return nil, err
	}
	q := &faiQuerier{r: r, idx: idx}
	return scan.NewQueryBatchIterator[*FastaRecord](q, regions, builder, orDefault(batchSize, DefaultQueryBatchSize), withFormat("fasta", opts)...)
}

// faiQuerier reads region slices through a FASTA index
type faiQuerier struct {
	r   io.ReadSeeker
	idx *fai.Index
	buf []byte
}

func (q *faiQuerier) Query(reg region.Region) (scan.Source[*FastaRecord], error) {
	rec, beg, end, err := q.idx.Resolve(reg)
	if err != nil {
		return nil, err
	}
	seq, err := q.read(rec, beg, end)
	if err != nil {
		return nil, err
	}
	return &sliceSource{rec: &FastaRecord{Name: reg.String(), Sequence: seq}}, nil
}

// read returns the bases [beg, end) of rec with line breaks removed
func (q *faiQuerier) read(rec fai.Record, beg, end int64) ([]byte, error) {
	if end <= beg {
		return []byte{}, nil
	}
	from := rec.Position(beg)
	to := rec.Position(end-1) + 1
	if _, err := q.r.Seek(from, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "fasta: seek failed").WithDetail("sequence", rec.Name)
	}

	n := int(to - from)
	if cap(q.buf) < n {
		q.buf = make([]byte, n)
	}
	raw := q.buf[:n]
	if _, err := io.ReadFull(q.r, raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "fasta: sequence shorter than its index entry").
			WithDetail("sequence", rec.Name)
	}

	seq := make([]byte, 0, end-beg)
	for len(raw) > 0 {
		i := bytes.IndexAny(raw, "\r\n")
		if i < 0 {
			seq = append(seq, raw...)
			break
		}
		seq = append(seq, raw[:i]...)
		raw = raw[i+1:]
	}
	if int64(len(seq)) != end-beg {
		return nil, errors.Newf(errors.ErrorTypeParse, "fasta: read %d bases, index expects %d", len(seq), end-beg).
			WithDetail("sequence", rec.Name)
	}
	return seq, nil
}

// Close closes the underlying reader if it is an io.Closer
func (q *faiQuerier) Close() error {
	if c, ok := q.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// sliceSource yields a single record
type sliceSource struct {
	rec *FastaRecord
}

func (s *sliceSource) Read() (*FastaRecord, error) {
	if s.rec == nil {
		return nil, io.EOF
	}
	rec := s.rec
	s.rec = nil
	return rec, nil
}

// Seeks returns the number of seeks made for the region
func (s *sliceSource) Seeks() int { return 1 }

// FastqScanner produces record batches from FASTQ files
type FastqScanner struct {
	// Allocator backs every batch; nil means memory.DefaultAllocator
	Allocator memory.Allocator
}

// FieldNames returns the FASTQ field names
func (s FastqScanner) FieldNames() []string {
	return append([]string(nil), FastqFieldNames...)
}

// Schema returns the batch schema for a field filter
func (s FastqScanner) Schema(fields []string) (*arrow.Schema, error) {
	cols, err := selectColumns(FastqFieldNames, fastqColumns, fields)
	if err != nil {
		return nil, err
	}
	return schemaOf(cols), nil
}

// Scan reads r sequentially from its current position
func (s FastqScanner) Scan(r io.Reader, fields []string, batchSize, limit int, opts ...scan.Option) (*scan.BatchIterator[*FastqRecord], error) {
	builder, err := NewFastqBatchBuilder(s.Allocator, fields)
	if err != nil {
		return nil, err
	}
	src := scan.Source[*FastqRecord](NewFastqReader(r))
	return scan.NewBatchIterator(src, builder, orDefault(batchSize, DefaultFastqBatchSize), limit, withFormat("fastq", opts)...)
}

package gxf

import (
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/genobatch/pkg/bgzf"
	"github.com/ajitpratap0/genobatch/pkg/index/tabix"
	"github.com/ajitpratap0/genobatch/pkg/region"
	"github.com/ajitpratap0/genobatch/pkg/scan"
)

// DefaultBatchSize is used by Scan and ScanQuery when batchSize is 0
const DefaultBatchSize = 1024

// GTFScanner produces record batches from GTF files
type GTFScanner struct {
	// Allocator backs every batch; nil means memory.DefaultAllocator
	Allocator memory.Allocator
}

// FieldNames returns the fixed GTF field names
func (s GTFScanner) FieldNames() []string {
	return append([]string(nil), GTFFieldNames...)
}

// Schema returns the batch schema for a field filter and attribute defs
func (s GTFScanner) Schema(fields []string, defs AttributeDefs) (*arrow.Schema, error) {
	cols, err := selectFields(GTFFieldNames, fields)
	if err != nil {
		return nil, err
	}
	return newSchema(cols, defs), nil
}

// AttributeDefs infers attribute definitions from up to scanRows records
// of r. A scanRows of 0 reads every record. r is consumed.
func (s GTFScanner) AttributeDefs(r io.Reader, scanRows int) (AttributeDefs, error) {
	gr := NewGTFReader(r)
	scanner := NewAttributeScanner()
	for n := 0; scanRows == 0 || n < scanRows; n++ {
		rec, err := gr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := scanner.PushGTF(rec); err != nil {
			return nil, err
		}
	}
	return scanner.Defs(), nil
}

// Scan reads r sequentially from its current position
func (s GTFScanner) Scan(r io.Reader, fields []string, defs AttributeDefs, batchSize, limit int, opts ...scan.Option) (*scan.BatchIterator[*GTFRecord], error) {
	builder, err := NewGTFBatchBuilder(s.Allocator, fields, defs)
	if err != nil {
		return nil, err
	}
	src := scan.Source[*GTFRecord](NewGTFReader(r))
	return scan.NewBatchIterator(src, builder, orDefault(batchSize), limit, withFormat("gtf", opts)...)
}

// ScanQuery reads the records of a bgzipped GTF file overlapping each
// region, using a tabix index.
func (s GTFScanner) ScanQuery(r *bgzf.Reader, idx *tabix.Index, regions []region.Region, fields []string, defs AttributeDefs, batchSize int, opts ...scan.Option) (*scan.QueryBatchIterator[*GTFRecord], error) {
	builder, err := NewGTFBatchBuilder(s.Allocator, fields, defs)
	if err != nil {
		return nil, err
	}
	q := &tabixQuerier[*GTFRecord]{r: r, idx: idx, parse: ParseGTFLine}
	return scan.NewQueryBatchIterator[*GTFRecord](q, regions, builder, orDefault(batchSize), withFormat("gtf", opts)...)
}

// GFFScanner produces record batches from GFF3 files
type GFFScanner struct {
	// Allocator backs every batch; nil means memory.DefaultAllocator
	Allocator memory.Allocator
}

// FieldNames returns the fixed GFF3 field names
func (s GFFScanner) FieldNames() []string {
	return append([]string(nil), GFFFieldNames...)
}

// Schema returns the batch schema for a field filter and attribute defs
func (s GFFScanner) Schema(fields []string, defs AttributeDefs) (*arrow.Schema, error) {
	cols, err := selectFields(GFFFieldNames, fields)
	if err != nil {
		return nil, err
	}
	return newSchema(cols, defs), nil
}

// AttributeDefs infers attribute definitions from up to scanRows records
// of r. A scanRows of 0 reads every record. r is consumed.
func (s GFFScanner) AttributeDefs(r io.Reader, scanRows int) (AttributeDefs, error) {
	gr := NewGFFReader(r)
	scanner := NewAttributeScanner()
	for n := 0; scanRows == 0 || n < scanRows; n++ {
		rec, err := gr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := scanner.PushGFF(rec); err != nil {
			return nil, err
		}
	}
	return scanner.Defs(), nil
}

// Scan reads r sequentially from its current position
func (s GFFScanner) Scan(r io.Reader, fields []string, defs AttributeDefs, batchSize, limit int, opts ...scan.Option) (*scan.BatchIterator[*GFFRecord], error) {
	builder, err := NewGFFBatchBuilder(s.Allocator, fields, defs)
	if err != nil {
		return nil, err
	}
	src := scan.Source[*GFFRecord](NewGFFReader(r))
	return scan.NewBatchIterator(src, builder, orDefault(batchSize), limit, withFormat("gff", opts)...)
}

// ScanQuery reads the records of a bgzipped GFF3 file overlapping each
// region, using a tabix index.
func (s GFFScanner) ScanQuery(r *bgzf.Reader, idx *tabix.Index, regions []region.Region, fields []string, defs AttributeDefs, batchSize int, opts ...scan.Option) (*scan.QueryBatchIterator[*GFFRecord], error) {
	builder, err := NewGFFBatchBuilder(s.Allocator, fields, defs)
	if err != nil {
		return nil, err
	}
	q := &tabixQuerier[*GFFRecord]{r: r, idx: idx, parse: ParseGFFLine}
	return scan.NewQueryBatchIterator[*GFFRecord](q, regions, builder, orDefault(batchSize), withFormat("gff", opts)...)
}

func orDefault(batchSize int) int {
	if batchSize == 0 {
		return DefaultBatchSize
	}
	return batchSize
}

// withFormat puts the format label first so callers can still override it
func withFormat(name string, opts []scan.Option) []scan.Option {
	return append([]scan.Option{scan.WithFormat(name)}, opts...)
}

// tabixQuerier resolves regions to chunk-bounded sources over a shared
// BGZF reader.
type tabixQuerier[R Record] struct {
	r     *bgzf.Reader
	idx   *tabix.Index
	parse func(string) (R, error)
}

func (q *tabixQuerier[R]) Query(reg region.Region) (scan.Source[R], error) {
	beg, end := reg.ZeroBased()
	chunks, err := q.idx.Query(reg.Name, beg, end)
	if err != nil {
		return nil, err
	}
	return &chunkSource[R]{q: q, reg: reg, chunks: chunks}, nil
}

// Close closes the underlying BGZF reader
func (q *tabixQuerier[R]) Close() error { return q.r.Close() }

// chunkSource reads the lines of each chunk in turn and yields the records
// overlapping its region.
type chunkSource[R Record] struct {
	q      *tabixQuerier[R]
	reg    region.Region
	chunks []tabix.Chunk
	cur    int
	open   bool
	seeks  int
}

func (s *chunkSource[R]) Read() (R, error) {
	var zero R
	for s.cur < len(s.chunks) {
		c := s.chunks[s.cur]
		if !s.open {
			if err := s.q.r.Seek(c.Begin); err != nil {
				return zero, err
			}
			s.seeks++
			s.open = true
		}
		if s.q.r.Offset() >= c.End {
			s.cur++
			s.open = false
			continue
		}

		line, err := s.q.r.ReadLine()
		if err == io.EOF {
			s.cur++
			s.open = false
			continue
		}
		if err != nil {
			return zero, err
		}
		text := string(line)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rec, err := s.q.parse(text)
		if err != nil {
			return zero, err
		}
		f := rec.feature()
		if f.Seqid == s.reg.Name && s.reg.Overlaps(f.Start, f.End) {
			return rec, nil
		}
	}
	return zero, io.EOF
}

// Seeks returns the number of index seeks performed for the region
func (s *chunkSource[R]) Seeks() int { return s.seeks }

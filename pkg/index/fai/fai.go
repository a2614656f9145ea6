// Package fai reads, writes and builds FASTA index (.fai) files.
//
// Each record locates one sequence: its length, the byte offset of its first
// base, and the line layout (bases per line and bytes per line including the
// terminator) needed to turn a base position into a byte offset.
package fai

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ajitpratap0/genobatch/pkg/errors"
	"github.com/ajitpratap0/genobatch/pkg/region"
)

// Record is one line of a .fai file
type Record struct {
	Name      string
	Length    int64
	Offset    int64
	LineBases int64
	LineWidth int64
}

// Position returns the byte offset of the 0-based base pos
func (r Record) Position(pos int64) int64 {
	if r.LineBases == 0 {
		return r.Offset
	}
	return r.Offset + pos/r.LineBases*r.LineWidth + pos%r.LineBases
}

// Index is an ordered list of FASTA index records
type Index struct {
	Records []Record
	byName  map[string]int
}

// New returns an index over records
func New(records []Record) *Index {
	idx := &Index{Records: records, byName: make(map[string]int, len(records))}
	for i, r := range records {
		if _, dup := idx.byName[r.Name]; !dup {
			idx.byName[r.Name] = i
		}
	}
	return idx
}

// Get returns the record for name
func (idx *Index) Get(name string) (Record, bool) {
	i, ok := idx.byName[name]
	if !ok {
		return Record{}, false
	}
	return idx.Records[i], true
}

// Resolve converts a region to a 0-based half-open interval on its
// sequence. Unknown names and coordinates outside [1, length] are index
// lookup errors.
func (idx *Index) Resolve(r region.Region) (Record, int64, int64, error) {
	rec, ok := idx.Get(r.Name)
	if !ok {
		return Record{}, 0, 0, errors.Newf(errors.ErrorTypeIndexLookup, "invalid reference sequence name: %s", r.Name).
			WithDetail("region", r.String())
	}

	if r.Start == 0 && r.End == 0 {
		return rec, 0, rec.Length, nil
	}

	start, end := int64(1), rec.Length
	if r.Start != 0 {
		start = int64(r.Start)
	}
	if r.End != 0 {
		end = int64(r.End)
	}
	if start > rec.Length || end > rec.Length || end < start {
		return Record{}, 0, 0, errors.Newf(errors.ErrorTypeIndexLookup,
			"region %s out of range for %s of length %d", r, rec.Name, rec.Length).
			WithDetail("region", r.String())
	}
	return rec, start - 1, end, nil
}

// Read parses a .fai file
func Read(r io.Reader) (*Index, error) {
	sc := bufio.NewScanner(r)
	var records []Record
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 5 {
			return nil, errors.Newf(errors.ErrorTypeParse, "fai: expected 5 fields, got %d", len(fields)).
				WithDetail("line", lineNo)
		}

		rec := Record{Name: fields[0]}
		nums := []*int64{&rec.Length, &rec.Offset, &rec.LineBases, &rec.LineWidth}
		for i, dst := range nums {
			v, err := strconv.ParseInt(fields[i+1], 10, 64)
			if err != nil || v < 0 {
				return nil, errors.Newf(errors.ErrorTypeParse, "fai: invalid number %q", fields[i+1]).
					WithDetail("line", lineNo)
			}
			*dst = v
		}
		if rec.LineBases > rec.LineWidth {
			return nil, errors.New(errors.ErrorTypeParse, "fai: line bases exceed line width").
				WithDetail("line", lineNo)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "fai: read failed")
	}
	return New(records), nil
}

// Write encodes idx in .fai format
func Write(w io.Writer, idx *Index) error {
	bw := bufio.NewWriter(w)
	for _, r := range idx.Records {
		if _, err := fmt.Fprintf(bw, "%s\t%d\t%d\t%d\t%d\n", r.Name, r.Length, r.Offset, r.LineBases, r.LineWidth); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "fai: write failed")
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "fai: write failed")
	}
	return nil
}

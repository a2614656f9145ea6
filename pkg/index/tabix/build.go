package tabix

import (
	"bytes"
	"io"
	"strconv"

	"github.com/ajitpratap0/genobatch/pkg/bgzf"
	"github.com/ajitpratap0/genobatch/pkg/errors"
)

const unsetOffset = ^bgzf.VirtualOffset(0)

var fastaDirective = []byte("##FASTA")

// Build indexes a coordinate-sorted BGZF file read through r. Records of
// one reference must be contiguous and sorted by start. Indexing stops at a
// GFF3 "##FASTA" directive.
func Build(r *bgzf.Reader, cfg Config) (*Index, error) {
	b := &indexBuilder{cfg: cfg, seen: make(map[string]bool)}

	lineNo := 0
	for {
		begOff := r.Offset()
		line, err := r.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		lineNo++
		endOff := r.Offset()

		if int32(lineNo) <= cfg.Skip || len(line) == 0 {
			continue
		}
		if line[0] == cfg.Meta {
			if bytes.HasPrefix(line, fastaDirective) {
				break
			}
			continue
		}

		if err := b.add(line, begOff, endOff); err != nil {
			return nil, err.WithDetail("line", lineNo)
		}
	}

	b.finishRef()
	return newIndex(cfg, b.refs), nil
}

type indexBuilder struct {
	cfg     Config
	refs    []Reference
	cur     *Reference
	seen    map[string]bool
	lastBeg int
	lastBin uint32
}

func (b *indexBuilder) add(line []byte, begOff, endOff bgzf.VirtualOffset) *errors.Error {
	name, beg, end, err := b.parse(line)
	if err != nil {
		return err
	}

	if b.cur == nil || b.cur.Name != name {
		if b.seen[name] {
			return errors.Newf(errors.ErrorTypeParse, "tabix: file is not sorted; %s appears in more than one block", name)
		}
		b.finishRef()
		b.seen[name] = true
		b.cur = &Reference{Name: name, Bins: make(map[uint32][]Chunk)}
		b.lastBeg = 0
		b.lastBin = ^uint32(0)
	}
	if beg < b.lastBeg {
		return errors.Newf(errors.ErrorTypeParse, "tabix: file is not sorted; %s:%d after %d", name, beg+1, b.lastBeg+1)
	}
	b.lastBeg = beg

	bin := reg2bin(beg, end)
	chunks := b.cur.Bins[bin]
	if bin == b.lastBin && len(chunks) > 0 && chunks[len(chunks)-1].End == begOff {
		chunks[len(chunks)-1].End = endOff
	} else {
		b.cur.Bins[bin] = append(chunks, Chunk{Begin: begOff, End: endOff})
	}
	b.lastBin = bin

	last := (end - 1) >> linearShift
	for len(b.cur.Linear) <= last {
		b.cur.Linear = append(b.cur.Linear, unsetOffset)
	}
	for w := beg >> linearShift; w <= last; w++ {
		if b.cur.Linear[w] == unsetOffset {
			b.cur.Linear[w] = begOff
		}
	}
	return nil
}

// parse extracts the reference and 0-based half-open interval of a line
func (b *indexBuilder) parse(line []byte) (string, int, int, *errors.Error) {
	fields := bytes.Split(line, []byte{'\t'})
	column := func(c int32) []byte {
		if c < 1 || int(c) > len(fields) {
			return nil
		}
		return fields[c-1]
	}

	name, begField, endField := column(b.cfg.ColSeq), column(b.cfg.ColBeg), column(b.cfg.ColEnd)
	if name == nil || begField == nil {
		return "", 0, 0, errors.New(errors.ErrorTypeParse, "tabix: line has too few columns")
	}
	beg, err := strconv.Atoi(string(begField))
	if err != nil {
		return "", 0, 0, errors.Wrap(err, errors.ErrorTypeParse, "tabix: invalid begin coordinate")
	}
	if b.cfg.Format&FormatZeroBased == 0 {
		beg--
	}
	end := beg + 1
	if endField != nil {
		if end, err = strconv.Atoi(string(endField)); err != nil {
			return "", 0, 0, errors.Wrap(err, errors.ErrorTypeParse, "tabix: invalid end coordinate")
		}
	}
	if beg < 0 || end > MaxCoordinate {
		return "", 0, 0, errors.Newf(errors.ErrorTypeParse, "tabix: coordinate out of range [%d, %d)", beg, end)
	}
	if end <= beg {
		end = beg + 1
	}
	return string(name), beg, end, nil
}

func (b *indexBuilder) finishRef() {
	if b.cur == nil {
		return
	}
	// Empty windows inherit the previous window's offset.
	prev := bgzf.VirtualOffset(0)
	for i, off := range b.cur.Linear {
		if off == unsetOffset {
			b.cur.Linear[i] = prev
		} else {
			prev = off
		}
	}
	b.refs = append(b.refs, *b.cur)
	b.cur = nil
}

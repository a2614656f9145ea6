package fai

import (
	"bufio"
	"bytes"
	"io"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// builder tracks the record being indexed
type builder struct {
	records []Record
	cur     *Record
	// short is set once a line shorter than LineBases has been seen; any
	// further sequence line in the same record is an error.
	short  bool
	lineNo int
}

// Build indexes uncompressed FASTA read from r. Every sequence line except
// the last of a record must have the same length.
func Build(r io.Reader) (*Index, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	b := &builder{}
	var offset int64

	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			b.lineNo++
			if perr := b.line(line, offset); perr != nil {
				return nil, perr
			}
			offset += int64(len(line))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "fai: read failed")
		}
	}
	b.flush()
	return New(b.records), nil
}

func (b *builder) line(line []byte, offset int64) error {
	width := int64(len(line))
	bases := bytes.TrimRight(line, "\r\n")

	if len(bases) > 0 && bases[0] == '>' {
		b.flush()
		name := bases[1:]
		if i := bytes.IndexAny(name, " \t"); i >= 0 {
			name = name[:i]
		}
		if len(name) == 0 {
			return errors.New(errors.ErrorTypeParse, "fai: empty sequence name").WithDetail("line", b.lineNo)
		}
		b.cur = &Record{Name: string(name), Offset: offset + width}
		b.short = false
		return nil
	}

	if b.cur == nil {
		if len(bytes.TrimSpace(bases)) == 0 {
			return nil
		}
		return errors.New(errors.ErrorTypeParse, "fai: sequence data before first header").WithDetail("line", b.lineNo)
	}
	if len(bases) == 0 {
		// Blank lines may only trail a record.
		b.short = true
		return nil
	}

	n := int64(len(bases))
	terminated := line[len(line)-1] == '\n'
	switch {
	case b.short:
		return errors.Newf(errors.ErrorTypeParse, "fai: different line length in sequence '%s'", b.cur.Name).
			WithDetail("line", b.lineNo)
	case b.cur.LineBases == 0:
		b.cur.LineBases = n
		b.cur.LineWidth = width
	case n > b.cur.LineBases || (n == b.cur.LineBases && terminated && width != b.cur.LineWidth):
		return errors.Newf(errors.ErrorTypeParse, "fai: different line length in sequence '%s'", b.cur.Name).
			WithDetail("line", b.lineNo)
	case n < b.cur.LineBases:
		b.short = true
	}
	b.cur.Length += n
	return nil
}

func (b *builder) flush() {
	if b.cur != nil {
		b.records = append(b.records, *b.cur)
		b.cur = nil
	}
}

package gxf

import (
	"bufio"
	"io"
	"strings"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

const fastaDirective = "##FASTA"

// lineReader yields feature lines, skipping blanks, comments and
// directives.
type lineReader struct {
	br     *bufio.Reader
	src    io.Reader
	lineNo int
	// stopAtFASTA ends the feature section at a ##FASTA directive
	stopAtFASTA bool
	done        bool
}

func newLineReader(r io.Reader, stopAtFASTA bool) lineReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 64*1024)
	}
	return lineReader{br: br, src: r, stopAtFASTA: stopAtFASTA}
}

func (l *lineReader) next() (string, error) {
	for !l.done {
		line, err := l.br.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", errors.Wrap(err, errors.ErrorTypeFile, "read failed").WithDetail("line", l.lineNo+1)
		}
		if len(line) == 0 && err == io.EOF {
			l.done = true
			break
		}
		if err == io.EOF {
			l.done = true
		}
		l.lineNo++

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		if line[0] == '#' {
			if l.stopAtFASTA && strings.HasPrefix(line, fastaDirective) {
				l.done = true
				break
			}
			continue
		}
		return line, nil
	}
	return "", io.EOF
}

func (l *lineReader) close() error {
	if c, ok := l.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// withLine attaches the line number to a parse error
func withLine(err error, lineNo int) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.WithDetail("line", lineNo)
	}
	return errors.Wrap(err, errors.ErrorTypeParse, "parse failed").WithDetail("line", lineNo)
}

// GTFReader reads GTF records
type GTFReader struct {
	lines lineReader
}

// NewGTFReader returns a reader over uncompressed GTF text
func NewGTFReader(r io.Reader) *GTFReader {
	return &GTFReader{lines: newLineReader(r, false)}
}

// Read returns the next record, or io.EOF
func (r *GTFReader) Read() (*GTFRecord, error) {
	line, err := r.lines.next()
	if err != nil {
		return nil, err
	}
	rec, err := ParseGTFLine(line)
	if err != nil {
		return nil, withLine(err, r.lines.lineNo)
	}
	return rec, nil
}

// Close closes the underlying reader if it is an io.Closer
func (r *GTFReader) Close() error { return r.lines.close() }

// GFFReader reads GFF3 records up to the end of the feature section
type GFFReader struct {
	lines lineReader
}

// NewGFFReader returns a reader over uncompressed GFF3 text
func NewGFFReader(r io.Reader) *GFFReader {
	return &GFFReader{lines: newLineReader(r, true)}
}

// Read returns the next record, or io.EOF
func (r *GFFReader) Read() (*GFFRecord, error) {
	line, err := r.lines.next()
	if err != nil {
		return nil, err
	}
	rec, err := ParseGFFLine(line)
	if err != nil {
		return nil, withLine(err, r.lines.lineNo)
	}
	return rec, nil
}

// Close closes the underlying reader if it is an io.Closer
func (r *GFFReader) Close() error { return r.lines.close() }

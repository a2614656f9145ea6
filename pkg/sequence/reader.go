// Package sequence reads FASTA and FASTQ files and encodes them as Arrow
// record batches.
package sequence

import (
	"bufio"
	"bytes"
	"io"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// FastaRecord is one FASTA entry. An empty Description is encoded as null.
type FastaRecord struct {
	Name        string
	Description string
	Sequence    []byte
}

// FastqRecord is one FASTQ entry
type FastqRecord struct {
	Name        string
	Description string
	Sequence    []byte
	Quality     []byte
}

// splitHeader splits a header line, without its marker, into name and
// description.
func splitHeader(line []byte) (string, string) {
	if i := bytes.IndexAny(line, " \t"); i >= 0 {
		return string(line[:i]), string(bytes.TrimLeft(line[i+1:], " \t"))
	}
	return string(line), ""
}

type lines struct {
	br      *bufio.Reader
	src     io.Reader
	lineNo  int
	peeked  []byte
	hasPeek bool
}

func newLines(r io.Reader) lines {
	return lines{br: bufio.NewReaderSize(r, 64*1024), src: r}
}

// next returns the next line without its terminator. The slice is only
// valid until the following call.
func (l *lines) next() ([]byte, error) {
	if l.hasPeek {
		l.hasPeek = false
		return l.peeked, nil
	}
	line, err := l.br.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		buf := append([]byte(nil), line...)
		for err == bufio.ErrBufferFull {
			line, err = l.br.ReadSlice('\n')
			buf = append(buf, line...)
		}
		line = buf
	}
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "read failed").WithDetail("line", l.lineNo+1)
	}
	if len(line) == 0 && err == io.EOF {
		return nil, io.EOF
	}
	l.lineNo++
	return bytes.TrimRight(line, "\r\n"), nil
}

// unread pushes line back; it must be the slice most recently returned
func (l *lines) unread(line []byte) {
	l.peeked = append(l.peeked[:0], line...)
	l.hasPeek = true
}

func (l *lines) close() error {
	if c, ok := l.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (l *lines) parseError(msg string) error {
	return errors.New(errors.ErrorTypeParse, msg).WithDetail("line", l.lineNo)
}

// FastaReader reads FASTA entries
type FastaReader struct {
	lines lines
}

// NewFastaReader returns a reader over uncompressed FASTA text
func NewFastaReader(r io.Reader) *FastaReader {
	return &FastaReader{lines: newLines(r)}
}

// Read returns the next entry, or io.EOF
func (r *FastaReader) Read() (*FastaRecord, error) {
	var header []byte
	for {
		line, err := r.lines.next()
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			continue
		}
		if line[0] != '>' {
			return nil, r.lines.parseError("fasta: expected '>' header")
		}
		header = line[1:]
		break
	}

	rec := &FastaRecord{}
	rec.Name, rec.Description = splitHeader(header)
	if rec.Name == "" {
		return nil, r.lines.parseError("fasta: empty sequence name")
	}

	for {
		line, err := r.lines.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(line) > 0 && line[0] == '>' {
			r.lines.unread(line)
			break
		}
		rec.Sequence = append(rec.Sequence, line...)
	}
	return rec, nil
}

// Close closes the underlying reader if it is an io.Closer
func (r *FastaReader) Close() error { return r.lines.close() }

// FastqReader reads four-line FASTQ entries
type FastqReader struct {
	lines lines
}

// NewFastqReader returns a reader over uncompressed FASTQ text
func NewFastqReader(r io.Reader) *FastqReader {
	return &FastqReader{lines: newLines(r)}
}

// Read returns the next entry, or io.EOF
func (r *FastqReader) Read() (*FastqRecord, error) {
	var line []byte
	var err error
	for {
		if line, err = r.lines.next(); err != nil {
			return nil, err
		}
		if len(line) > 0 {
			break
		}
	}
	if line[0] != '@' {
		return nil, r.lines.parseError("fastq: expected '@' header")
	}
	rec := &FastqRecord{}
	rec.Name, rec.Description = splitHeader(line[1:])
	if rec.Name == "" {
		return nil, r.lines.parseError("fastq: empty read name")
	}

	if rec.Sequence, err = r.required(); err != nil {
		return nil, err
	}
	plus, err := r.lines.next()
	if err == io.EOF || (err == nil && (len(plus) == 0 || plus[0] != '+')) {
		return nil, r.lines.parseError("fastq: expected '+' separator")
	}
	if err != nil {
		return nil, err
	}
	if rec.Quality, err = r.required(); err != nil {
		return nil, err
	}
	if len(rec.Quality) != len(rec.Sequence) {
		return nil, errors.Newf(errors.ErrorTypeParse, "fastq: quality length %d does not match sequence length %d",
			len(rec.Quality), len(rec.Sequence)).WithDetail("line", r.lines.lineNo).WithDetail("read", rec.Name)
	}
	return rec, nil
}

// required reads a line that must be present and copies it
func (r *FastqReader) required() ([]byte, error) {
	line, err := r.lines.next()
	if err == io.EOF {
		return nil, r.lines.parseError("fastq: truncated record")
	}
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), line...), nil
}

// Close closes the underlying reader if it is an io.Closer
func (r *FastqReader) Close() error { return r.lines.close() }

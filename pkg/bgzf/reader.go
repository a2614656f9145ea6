package bgzf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// Reader decompresses a BGZF stream block by block while tracking virtual
// offsets. Seeking requires the underlying reader to be an io.ReadSeeker.
type Reader struct {
	src io.Reader
	br  *bufio.Reader

	// block is the offset of the current block, next the offset of the
	// block after it.
	block int64
	next  int64

	data  []byte
	pos   int
	cdata []byte
	inf   io.ReadCloser
	line  []byte
	eof   bool
}

// NewReader returns a reader positioned at the first block of r
func NewReader(r io.Reader) *Reader {
	return &Reader{
		src:   r,
		br:    bufio.NewReaderSize(r, MaxBlockSize),
		data:  make([]byte, 0, MaxBlockSize),
		cdata: make([]byte, MaxBlockSize),
	}
}

// Offset returns the virtual offset of the next byte to be read. At the end
// of a block it addresses the start of the following block.
func (r *Reader) Offset() VirtualOffset {
	if r.pos >= len(r.data) {
		return NewVirtualOffset(r.next, 0)
	}
	return NewVirtualOffset(r.block, r.pos)
}

// Seek positions the reader at v
func (r *Reader) Seek(v VirtualOffset) error {
	rs, ok := r.src.(io.Seeker)
	if !ok {
		return errors.New(errors.ErrorTypeInternal, "bgzf: underlying reader is not seekable")
	}
	if _, err := rs.Seek(v.Compressed(), io.SeekStart); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "bgzf: seek failed").WithDetail("offset", v.String())
	}
	r.br.Reset(r.src)
	r.next = v.Compressed()
	r.data = r.data[:0]
	r.pos = 0
	r.eof = false

	if err := r.readBlock(); err != nil {
		if err == io.EOF {
			if v.Uncompressed() == 0 {
				return nil
			}
			return errors.Newf(errors.ErrorTypeIndexLookup, "bgzf: offset %s past end of file", v)
		}
		return err
	}
	if v.Uncompressed() > len(r.data) {
		return errors.Newf(errors.ErrorTypeIndexLookup, "bgzf: offset %s beyond block of %d bytes", v, len(r.data))
	}
	r.pos = v.Uncompressed()
	return nil
}

// Read implements io.Reader over the decompressed stream
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for r.pos >= len(r.data) {
		if err := r.readBlock(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// ReadByte implements io.ByteReader
func (r *Reader) ReadByte() (byte, error) {
	for r.pos >= len(r.data) {
		if err := r.readBlock(); err != nil {
			return 0, err
		}
	}
	c := r.data[r.pos]
	r.pos++
	return c, nil
}

// ReadLine returns the next line without its terminator. The returned
// slice is only valid until the next call. A final line without a newline
// is returned with a nil error; io.EOF follows.
func (r *Reader) ReadLine() ([]byte, error) {
	r.line = r.line[:0]
	for {
		for r.pos >= len(r.data) {
			if err := r.readBlock(); err != nil {
				if err == io.EOF && len(r.line) > 0 {
					return trimCR(r.line), nil
				}
				return nil, err
			}
		}
		chunk := r.data[r.pos:]
		if i := bytes.IndexByte(chunk, '\n'); i >= 0 {
			r.line = append(r.line, chunk[:i]...)
			r.pos += i + 1
			return trimCR(r.line), nil
		}
		r.line = append(r.line, chunk...)
		r.pos = len(r.data)
	}
}

func trimCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}

// Close closes the underlying reader if it is an io.Closer
func (r *Reader) Close() error {
	if r.inf != nil {
		r.inf.Close()
	}
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// readBlock loads the block at r.next. Empty blocks are loaded like any
// other; callers loop until data is available.
func (r *Reader) readBlock() error {
	if r.eof {
		return io.EOF
	}

	header := r.cdata[:12]
	n, err := io.ReadFull(r.br, header)
	if err == io.EOF || (err == io.ErrUnexpectedEOF && n == 0) {
		r.eof = true
		return io.EOF
	}
	if err != nil {
		return r.corrupt(err, "truncated block header")
	}
	if header[0] != 0x1f || header[1] != 0x8b || header[2] != 8 || header[3]&4 == 0 {
		return r.corrupt(nil, "invalid block header")
	}

	xlen := int(binary.LittleEndian.Uint16(header[10:12]))
	if 12+xlen+trailerSize > MaxBlockSize {
		return r.corrupt(nil, "extra field too large")
	}
	extra := r.cdata[12 : 12+xlen]
	if _, err := io.ReadFull(r.br, extra); err != nil {
		return r.corrupt(err, "truncated extra field")
	}
	bsize, ok := findBSIZE(extra)
	if !ok {
		return r.corrupt(nil, "missing BC subfield")
	}

	size := bsize + 1
	if size < 12+xlen+trailerSize {
		return r.corrupt(nil, "block too small")
	}
	body := r.cdata[12+xlen : size]
	if _, err := io.ReadFull(r.br, body); err != nil {
		return r.corrupt(err, "truncated block")
	}

	compressed := body[:len(body)-trailerSize]
	trailer := body[len(body)-trailerSize:]
	wantCRC := binary.LittleEndian.Uint32(trailer[0:4])
	isize := int(binary.LittleEndian.Uint32(trailer[4:8]))
	if isize > MaxBlockSize {
		return r.corrupt(nil, "block data exceeds 64 KiB")
	}

	if err := r.inflate(compressed, isize); err != nil {
		return err
	}
	if crc32.ChecksumIEEE(r.data) != wantCRC {
		return r.corrupt(nil, "CRC mismatch")
	}

	r.block = r.next
	r.next += int64(size)
	r.pos = 0
	return nil
}

func (r *Reader) inflate(compressed []byte, isize int) error {
	src := bytes.NewReader(compressed)
	if r.inf == nil {
		r.inf = flate.NewReader(src)
	} else if err := r.inf.(flate.Resetter).Reset(src, nil); err != nil {
		return r.corrupt(err, "inflate reset failed")
	}

	r.data = r.data[:isize]
	if _, err := io.ReadFull(r.inf, r.data); err != nil {
		return r.corrupt(err, "inflate failed")
	}
	// The member must end exactly at ISIZE.
	var probe [1]byte
	if n, _ := r.inf.Read(probe[:]); n != 0 {
		return r.corrupt(nil, "block data longer than ISIZE")
	}
	return nil
}

func (r *Reader) corrupt(cause error, msg string) error {
	var e *errors.Error
	if cause != nil {
		e = errors.Wrap(cause, errors.ErrorTypeParse, "bgzf: "+msg)
	} else {
		e = errors.New(errors.ErrorTypeParse, "bgzf: "+msg)
	}
	return e.WithDetail("block_offset", r.next)
}

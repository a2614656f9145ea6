package bgzf

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// Writer compresses data into BGZF blocks. Close writes the EOF block.
type Writer struct {
	w      io.Writer
	level  int
	data   []byte
	out    bytes.Buffer
	fw     *flate.Writer
	offset int64
	// index records (compressed, uncompressed) starts of every block after
	// the first
	index   GZI
	written uint64
	closed  bool
}

// NewWriter returns a Writer using the default compression level
func NewWriter(w io.Writer) *Writer {
	wr, _ := NewWriterLevel(w, flate.DefaultCompression)
	return wr
}

// NewWriterLevel returns a Writer using a flate compression level
func NewWriterLevel(w io.Writer, level int) (*Writer, error) {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, errors.Newf(errors.ErrorTypeInvalidInput, "bgzf: invalid compression level %d", level)
	}
	return &Writer{
		w:     w,
		level: level,
		data:  make([]byte, 0, MaxDataSize),
	}, nil
}

// Offset returns the virtual offset the next written byte will have
func (w *Writer) Offset() VirtualOffset {
	return NewVirtualOffset(w.offset, len(w.data))
}

// Write buffers p, emitting a block whenever MaxDataSize bytes accumulate
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New(errors.ErrorTypeInternal, "bgzf: write to closed writer")
	}
	n := 0
	for len(p) > 0 {
		room := MaxDataSize - len(w.data)
		k := min(room, len(p))
		w.data = append(w.data, p[:k]...)
		p = p[k:]
		n += k
		if len(w.data) == MaxDataSize {
			if err := w.Flush(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Flush writes any buffered data as a complete block
func (w *Writer) Flush() error {
	if len(w.data) == 0 {
		return nil
	}
	if err := w.writeBlock(w.data); err != nil {
		return err
	}
	w.data = w.data[:0]
	return nil
}

// Close flushes buffered data and writes the EOF block. It does not close
// the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if err := w.Flush(); err != nil {
		return err
	}
	w.closed = true
	if _, err := w.w.Write(eofBlock); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "bgzf: failed to write EOF block")
	}
	w.offset += int64(len(eofBlock))
	return nil
}

// GZI returns the block index accumulated so far
func (w *Writer) GZI() GZI {
	out := make(GZI, len(w.index))
	copy(out, w.index)
	return out
}

func (w *Writer) writeBlock(data []byte) error {
	cdata, err := w.deflate(data, w.level)
	if err != nil {
		return err
	}
	if headerSize+len(cdata)+trailerSize > MaxBlockSize {
		// Incompressible data; stored deflate blocks always fit.
		if cdata, err = w.deflate(data, flate.NoCompression); err != nil {
			return err
		}
	}

	size := headerSize + len(cdata) + trailerSize
	block := make([]byte, 0, size)
	block = append(block,
		0x1f, 0x8b, 8, 4, // magic, deflate, FEXTRA
		0, 0, 0, 0, // mtime
		0, 0xff, // xfl, os unknown
		6, 0, // xlen
		'B', 'C', 2, 0)
	block = binary.LittleEndian.AppendUint16(block, uint16(size-1))
	block = append(block, cdata...)
	block = binary.LittleEndian.AppendUint32(block, crc32.ChecksumIEEE(data))
	block = binary.LittleEndian.AppendUint32(block, uint32(len(data)))

	if _, err := w.w.Write(block); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "bgzf: failed to write block")
	}

	w.offset += int64(size)
	w.written += uint64(len(data))
	w.index = append(w.index, GZIEntry{Compressed: uint64(w.offset), Uncompressed: w.written})
	return nil
}

func (w *Writer) deflate(data []byte, level int) ([]byte, error) {
	w.out.Reset()
	if w.fw == nil || level != w.level {
		fw, err := flate.NewWriter(&w.out, level)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "bgzf: deflate init failed")
		}
		if level != w.level {
			return w.finishDeflate(fw, data)
		}
		w.fw = fw
	} else {
		w.fw.Reset(&w.out)
	}
	return w.finishDeflate(w.fw, data)
}

func (w *Writer) finishDeflate(fw *flate.Writer, data []byte) ([]byte, error) {
	if _, err := fw.Write(data); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "bgzf: deflate failed")
	}
	if err := fw.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "bgzf: deflate failed")
	}
	return w.out.Bytes(), nil
}

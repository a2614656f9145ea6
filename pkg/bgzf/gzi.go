package bgzf

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

// GZIEntry maps the start of a block to its position in the uncompressed
// stream
type GZIEntry struct {
	Compressed   uint64
	Uncompressed uint64
}

// GZI is a block index for random access into a BGZF file by uncompressed
// offset. The implicit first block at (0, 0) is not stored.
type GZI []GZIEntry

// ReadGZI decodes a .gzi index: a little-endian entry count followed by
// (compressed, uncompressed) uint64 pairs.
func ReadGZI(r io.Reader) (GZI, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "gzi: failed to read entry count")
	}
	// Cap the preallocation; a corrupt count is caught by the short read.
	idx := make(GZI, 0, min(n, 1<<20))
	for i := uint64(0); i < n; i++ {
		var e GZIEntry
		if err := binary.Read(r, binary.LittleEndian, &e); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeParse, "gzi: truncated index").WithDetail("entry", i)
		}
		idx = append(idx, e)
	}
	return idx, nil
}

// WriteGZI encodes idx in .gzi format
func WriteGZI(w io.Writer, idx GZI) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(idx))); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "gzi: write failed")
	}
	if err := binary.Write(w, binary.LittleEndian, []GZIEntry(idx)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "gzi: write failed")
	}
	return nil
}

// BuildGZI scans a BGZF stream and records the start of every block
func BuildGZI(r io.Reader) (GZI, error) {
	br := NewReader(r)
	var idx GZI
	var total uint64
	for {
		if err := br.readBlock(); err != nil {
			if err == io.EOF {
				return idx, nil
			}
			return nil, err
		}
		if len(br.data) == 0 {
			continue
		}
		total += uint64(len(br.data))
		idx = append(idx, GZIEntry{Compressed: uint64(br.next), Uncompressed: total})
	}
}

// locate returns the block containing uncompressed offset off
func (idx GZI) locate(off uint64) GZIEntry {
	i := sort.Search(len(idx), func(i int) bool { return idx[i].Uncompressed > off })
	if i == 0 {
		return GZIEntry{}
	}
	return idx[i-1]
}

// IndexedReader reads a BGZF file by uncompressed offset using a GZI index
type IndexedReader struct {
	r   *Reader
	idx GZI
	pos int64
}

// NewIndexedReader returns an io.ReadSeeker over the uncompressed data of rs
func NewIndexedReader(rs io.ReadSeeker, idx GZI) *IndexedReader {
	return &IndexedReader{r: NewReader(rs), idx: idx}
}

// Read implements io.Reader
func (ir *IndexedReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	ir.pos += int64(n)
	return n, err
}

// Seek implements io.Seeker for io.SeekStart and io.SeekCurrent
func (ir *IndexedReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += ir.pos
	default:
		return ir.pos, errors.New(errors.ErrorTypeInvalidInput, "bgzf: SeekEnd is not supported")
	}
	if offset < 0 {
		return ir.pos, errors.Newf(errors.ErrorTypeInvalidInput, "bgzf: negative offset %d", offset)
	}

	e := ir.idx.locate(uint64(offset))
	if err := ir.r.Seek(NewVirtualOffset(int64(e.Compressed), 0)); err != nil {
		return ir.pos, err
	}
	skip := uint64(offset) - e.Uncompressed
	if _, err := io.CopyN(io.Discard, ir.r, int64(skip)); err != nil {
		if err == io.EOF {
			return ir.pos, errors.Newf(errors.ErrorTypeIndexLookup, "bgzf: offset %d past end of data", offset)
		}
		return ir.pos, err
	}
	ir.pos = offset
	return offset, nil
}

// Close closes the underlying reader
func (ir *IndexedReader) Close() error {
	return ir.r.Close()
}

package tabix

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/ajitpratap0/genobatch/pkg/bgzf"
	"github.com/ajitpratap0/genobatch/pkg/errors"
)

var magic = [4]byte{'T', 'B', 'I', 1}

// Read decodes a BGZF-compressed .tbi index
func Read(r io.Reader) (*Index, error) {
	d := &decoder{r: bufio.NewReader(bgzf.NewReader(r))}

	var m [4]byte
	d.read(&m)
	if d.err == nil && m != magic {
		return nil, errors.New(errors.ErrorTypeParse, "tabix: invalid magic")
	}

	var nRef int32
	var cfg Config
	var meta, nameLen int32
	d.read(&nRef)
	d.read(&cfg.Format)
	d.read(&cfg.ColSeq)
	d.read(&cfg.ColBeg)
	d.read(&cfg.ColEnd)
	d.read(&meta)
	d.read(&cfg.Skip)
	d.read(&nameLen)
	if d.err != nil {
		return nil, d.fail("header")
	}
	cfg.Meta = byte(meta)
	if nRef < 0 || nameLen < 0 {
		return nil, errors.New(errors.ErrorTypeParse, "tabix: negative header count")
	}

	names := make([]byte, nameLen)
	d.read(names)
	if d.err != nil {
		return nil, d.fail("names")
	}
	nameList := bytes.Split(bytes.TrimRight(names, "\x00"), []byte{0})
	if nRef == 0 {
		nameList = nil
	}
	if len(nameList) != int(nRef) {
		return nil, errors.Newf(errors.ErrorTypeParse, "tabix: %d names for %d references", len(nameList), nRef)
	}

	refs := make([]Reference, nRef)
	for i := range refs {
		refs[i].Name = string(nameList[i])
		refs[i].Bins = make(map[uint32][]Chunk)

		var nBin int32
		d.read(&nBin)
		for b := int32(0); b < nBin && d.err == nil; b++ {
			var bin uint32
			var nChunk int32
			d.read(&bin)
			d.read(&nChunk)
			if nChunk < 0 {
				return nil, errors.New(errors.ErrorTypeParse, "tabix: negative chunk count")
			}
			chunks := make([]Chunk, nChunk)
			d.read(chunks)
			refs[i].Bins[bin] = chunks
		}

		var nIntv int32
		d.read(&nIntv)
		if nIntv < 0 {
			return nil, errors.New(errors.ErrorTypeParse, "tabix: negative interval count")
		}
		refs[i].Linear = make([]bgzf.VirtualOffset, nIntv)
		d.read(refs[i].Linear)
		if d.err != nil {
			return nil, d.fail("reference " + refs[i].Name)
		}
	}

	idx := newIndex(cfg, refs)
	var noCoor uint64
	if err := binary.Read(d.r, binary.LittleEndian, &noCoor); err == nil {
		idx.NoCoor = &noCoor
	}
	return idx, nil
}

type decoder struct {
	r   io.Reader
	err error
}

func (d *decoder) read(v any) {
	if d.err != nil {
		return
	}
	d.err = binary.Read(d.r, binary.LittleEndian, v)
}

func (d *decoder) fail(what string) error {
	return errors.Wrap(d.err, errors.ErrorTypeParse, "tabix: truncated "+what)
}

// Write encodes idx as a BGZF-compressed .tbi index
func Write(w io.Writer, idx *Index) error {
	bw := bgzf.NewWriter(w)
	e := &encoder{w: bufio.NewWriter(bw)}

	var names bytes.Buffer
	for _, r := range idx.Refs {
		names.WriteString(r.Name)
		names.WriteByte(0)
	}

	e.write(magic)
	e.write(int32(len(idx.Refs)))
	e.write(idx.Format)
	e.write(idx.ColSeq)
	e.write(idx.ColBeg)
	e.write(idx.ColEnd)
	e.write(int32(idx.Meta))
	e.write(idx.Skip)
	e.write(int32(names.Len()))
	e.write(names.Bytes())

	for _, r := range idx.Refs {
		bins := make([]uint32, 0, len(r.Bins))
		for b := range r.Bins {
			bins = append(bins, b)
		}
		sort.Slice(bins, func(i, j int) bool { return bins[i] < bins[j] })

		e.write(int32(len(bins)))
		for _, b := range bins {
			e.write(b)
			e.write(int32(len(r.Bins[b])))
			e.write(r.Bins[b])
		}
		e.write(int32(len(r.Linear)))
		e.write(r.Linear)
	}
	if idx.NoCoor != nil {
		e.write(*idx.NoCoor)
	}

	if e.err == nil {
		e.err = e.w.Flush()
	}
	if e.err == nil {
		e.err = bw.Close()
	}
	if e.err != nil {
		return errors.Wrap(e.err, errors.ErrorTypeFile, "tabix: write failed")
	}
	return nil
}

type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) write(v any) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, binary.LittleEndian, v)
}

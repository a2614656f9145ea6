// Package tabix reads, writes, builds and queries tabix (.tbi) indexes over
// BGZF-compressed, coordinate-sorted text files.
//
// An index holds, per reference sequence, a binning index (UCSC bins mapping
// to chunks of virtual offsets) and a linear index of the smallest offset of
// any record overlapping each 16 KiB window. A query combines both to return
// the minimal set of chunks a reader must scan.
package tabix

import (
	"sort"

	"github.com/ajitpratap0/genobatch/pkg/bgzf"
	"github.com/ajitpratap0/genobatch/pkg/errors"
)

const (
	// MaxCoordinate is the largest position the binning scheme addresses
	MaxCoordinate = 1 << 29

	linearShift = 14
	metaBin     = 37450

	// FormatGeneric is the tabix preset for arbitrary tab-delimited files
	FormatGeneric int32 = 0
	// FormatZeroBased marks the begin column as 0-based
	FormatZeroBased int32 = 0x10000
)

// Config describes the columns of the indexed file. Column numbers are
// 1-based.
type Config struct {
	Format int32
	ColSeq int32
	ColBeg int32
	ColEnd int32
	Meta   byte
	Skip   int32
}

// GFF is the preset for GFF3 and GTF files
var GFF = Config{Format: FormatGeneric, ColSeq: 1, ColBeg: 4, ColEnd: 5, Meta: '#'}

// Chunk is a [Begin, End) range of virtual offsets
type Chunk struct {
	Begin bgzf.VirtualOffset
	End   bgzf.VirtualOffset
}

// Reference is the index of one sequence
type Reference struct {
	Name   string
	Bins   map[uint32][]Chunk
	Linear []bgzf.VirtualOffset
}

// Index is a tabix index
type Index struct {
	Config
	Refs   []Reference
	NoCoor *uint64
	byName map[string]int
}

func newIndex(cfg Config, refs []Reference) *Index {
	idx := &Index{Config: cfg, Refs: refs, byName: make(map[string]int, len(refs))}
	for i, r := range refs {
		idx.byName[r.Name] = i
	}
	return idx
}

// Names returns the reference names in index order
func (idx *Index) Names() []string {
	names := make([]string, len(idx.Refs))
	for i, r := range idx.Refs {
		names[i] = r.Name
	}
	return names
}

// Query returns the merged chunks that may hold records overlapping the
// 0-based half-open interval [beg, end) on name. A negative end means the
// end of the sequence.
func (idx *Index) Query(name string, beg, end int) ([]Chunk, error) {
	i, ok := idx.byName[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeIndexLookup, "invalid reference sequence name: %s", name)
	}
	if end < 0 || end > MaxCoordinate {
		end = MaxCoordinate
	}
	if beg < 0 || beg >= MaxCoordinate || end <= beg {
		return nil, errors.Newf(errors.ErrorTypeIndexLookup, "invalid interval [%d, %d) on %s", beg, end, name)
	}
	ref := idx.Refs[i]

	var minOff bgzf.VirtualOffset
	if n := len(ref.Linear); n > 0 {
		w := beg >> linearShift
		if w >= n {
			w = n - 1
		}
		minOff = ref.Linear[w]
	}

	var chunks []Chunk
	for _, bin := range reg2bins(beg, end) {
		for _, c := range ref.Bins[bin] {
			if c.End > minOff {
				chunks = append(chunks, c)
			}
		}
	}
	return mergeChunks(chunks), nil
}

// mergeChunks sorts chunks and joins overlapping or adjacent ones
func mergeChunks(chunks []Chunk) []Chunk {
	if len(chunks) == 0 {
		return nil
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Begin < chunks[j].Begin })
	out := chunks[:1]
	for _, c := range chunks[1:] {
		last := &out[len(out)-1]
		if c.Begin <= last.End {
			if c.End > last.End {
				last.End = c.End
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// reg2bin returns the smallest bin containing [beg, end)
func reg2bin(beg, end int) uint32 {
	end--
	switch {
	case beg>>14 == end>>14:
		return uint32(((1<<15)-1)/7 + (beg >> 14))
	case beg>>17 == end>>17:
		return uint32(((1<<12)-1)/7 + (beg >> 17))
	case beg>>20 == end>>20:
		return uint32(((1<<9)-1)/7 + (beg >> 20))
	case beg>>23 == end>>23:
		return uint32(((1<<6)-1)/7 + (beg >> 23))
	case beg>>26 == end>>26:
		return uint32(((1<<3)-1)/7 + (beg >> 26))
	}
	return 0
}

// reg2bins returns every bin that may overlap [beg, end)
func reg2bins(beg, end int) []uint32 {
	end--
	bins := []uint32{0}
	for _, level := range []struct{ offset, shift int }{
		{1, 26}, {9, 23}, {73, 20}, {585, 17}, {4681, 14},
	} {
		for k := level.offset + beg>>level.shift; k <= level.offset+end>>level.shift; k++ {
			bins = append(bins, uint32(k))
		}
	}
	return bins
}

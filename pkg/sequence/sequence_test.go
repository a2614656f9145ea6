package sequence

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/genobatch/pkg/bgzf"
	"github.com/ajitpratap0/genobatch/pkg/errors"
	"github.com/ajitpratap0/genobatch/pkg/index/fai"
	"github.com/ajitpratap0/genobatch/pkg/region"
	"github.com/ajitpratap0/genobatch/pkg/scan"
)

const fasta = ">sq0 first sequence\nACGTACGTAC\nGTACGTACGT\nACG\n>sq1\nNNNN\nNN\n>sq2\r\nTTTT\r\nTT\r\n"

const fastq = "@r1 lane=1\nACGT\n+\nIIII\n@r2\nGG\n+r2\n#!\n"

func TestFastaReader(t *testing.T) {
	r := NewFastaReader(strings.NewReader(fasta))

	var got []*FastaRecord
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, rec)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "sq0", got[0].Name)
	assert.Equal(t, "first sequence", got[0].Description)
	assert.Equal(t, "ACGTACGTACGTACGTACGTACG", string(got[0].Sequence))
	assert.Equal(t, "", got[1].Description)
	assert.Equal(t, "TTTTTT", string(got[2].Sequence))

	_, err := NewFastaReader(strings.NewReader("ACGT\n")).Read()
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}

func TestFastqReader(t *testing.T) {
	r := NewFastqReader(strings.NewReader(fastq))

	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, &FastqRecord{Name: "r1", Description: "lane=1", Sequence: []byte("ACGT"), Quality: []byte("IIII")}, rec)

	rec, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, "#!", string(rec.Quality))

	_, err = r.Read()
	assert.Equal(t, io.EOF, err)

	for _, bad := range []string{
		"r1\nACGT\n+\nIIII\n",
		"@r1\nACGT\nIIII\n",
		"@r1\nACGT\n+\nIII\n",
		"@r1\nACGT\n",
	} {
		_, err := NewFastqReader(strings.NewReader(bad)).Read()
		require.Error(t, err, bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeParse), bad)
	}
}

func TestFastaScanDefaultsToOneRecordPerBatch(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	it, err := FastaScanner{Allocator: mem}.Scan(strings.NewReader(fasta), nil, 0, 0)
	require.NoError(t, err)
	defer it.Release()

	recs, err := scan.ReadAll(it)
	require.NoError(t, err)
	defer scan.ReleaseAll(recs)

	require.Len(t, recs, 3)
	for _, rec := range recs {
		assert.Equal(t, int64(1), rec.NumRows())
	}
	assert.True(t, recs[1].Column(1).IsNull(0))
	assert.Equal(t, "NNNNNN", recs[1].Column(2).(*array.LargeString).Value(0))
}

func TestFastaScanFieldsAndLimit(t *testing.T) {
	it, err := FastaScanner{}.Scan(strings.NewReader(fasta), []string{"sequence", "name"}, 2, 2)
	require.NoError(t, err)
	defer it.Release()

	require.True(t, it.Next())
	rec := it.Record()
	assert.Equal(t, "sequence", rec.ColumnName(0))
	assert.Equal(t, int64(2), rec.NumRows())
	assert.Equal(t, "sq1", rec.Column(1).(*array.String).Value(1))
	assert.False(t, it.Next())
	require.NoError(t, it.Err())

	_, err = FastaScanner{}.Scan(strings.NewReader(fasta), []string{"quality"}, 0, 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))
}

func TestFastqScan(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	s := FastqScanner{Allocator: mem}
	assert.Equal(t, []string{"name", "description", "sequence", "quality"}, s.FieldNames())

	it, err := s.Scan(strings.NewReader(fastq), nil, 0, 0)
	require.NoError(t, err)
	defer it.Release()

	require.True(t, it.Next())
	rec := it.Record()
	assert.Equal(t, int64(2), rec.NumRows())
	assert.Equal(t, "IIII", rec.Column(3).(*array.String).Value(0))
	assert.True(t, rec.Column(1).IsNull(1))
	assert.False(t, it.Next())
}

func queryNames(t *testing.T, r io.ReadSeeker, idx *fai.Index, regions ...string) ([]string, []string, error) {
	t.Helper()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	regs, err := region.ParseAll(regions)
	require.NoError(t, err)
	it, err := FastaScanner{Allocator: mem}.ScanQuery(r, idx, regs, nil, 0)
	require.NoError(t, err)
	defer it.Release()

	var names, seqs []string
	for it.Next() {
		rec := it.Record()
		assert.Equal(t, rec.NumRows(), int64(rec.Column(1).NullN()))
		for i := 0; i < int(rec.NumRows()); i++ {
			names = append(names, rec.Column(0).(*array.String).Value(i))
			seqs = append(seqs, rec.Column(2).(*array.LargeString).Value(i))
		}
	}
	return names, seqs, it.Err()
}

func TestFastaScanQuery(t *testing.T) {
	idx, err := fai.Build(strings.NewReader(fasta))
	require.NoError(t, err)

	names, seqs, err := queryNames(t, strings.NewReader(fasta), idx, "sq0:9-13", "sq2", "sq0:1-1", "sq1:3-6")
	require.NoError(t, err)
	assert.Equal(t, []string{"sq0:9-13", "sq2", "sq0:1-1", "sq1:3-6"}, names)
	assert.Equal(t, []string{"ACGTA", "TTTTTT", "A", "NNNN"}, seqs)
}

func TestFastaScanQueryOpenEnded(t *testing.T) {
	idx, err := fai.Build(strings.NewReader(fasta))
	require.NoError(t, err)

	names, seqs, err := queryNames(t, strings.NewReader(fasta), idx, "sq0:20", "sq1:-3", "sq2:6-")
	require.NoError(t, err)
	assert.Equal(t, []string{"sq0:20-", "sq1:1-3", "sq2:6-"}, names)
	assert.Equal(t, []string{"TACG", "NNN", "T"}, seqs)
}

func TestFastaScanQueryOutOfRange(t *testing.T) {
	idx, err := fai.Build(strings.NewReader(fasta))
	require.NoError(t, err)

	for _, bad := range []string{"sq0:20-30", "chrZ:1-2"} {
		_, _, err := queryNames(t, strings.NewReader(fasta), idx, "sq1:1-2", bad)
		require.Error(t, err, bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeIndexLookup), bad)
	}
}

func TestFastaScanQueryBGZF(t *testing.T) {
	var enc bytes.Buffer
	w := bgzf.NewWriter(&enc)
	_, err := w.Write([]byte(fasta))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	idx, err := fai.Build(strings.NewReader(fasta))
	require.NoError(t, err)

	r := bgzf.NewIndexedReader(bytes.NewReader(enc.Bytes()), w.GZI())
	_, seqs, err := queryNames(t, r, idx, "sq0:10-12")
	require.NoError(t, err)
	assert.Equal(t, []string{"CGT"}, seqs)
}

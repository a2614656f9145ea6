package fai

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/genobatch/pkg/errors"
	"github.com/ajitpratap0/genobatch/pkg/region"
)

const fasta = ">sq0 first sequence\nACGTACGTAC\nGTACGTACGT\nACG\n>sq1\nNNNN\nNN\n>sq2\r\nTTTT\r\nTT\r\n"

func TestBuild(t *testing.T) {
	idx, err := Build(strings.NewReader(fasta))
	require.NoError(t, err)

	assert.Equal(t, []Record{
		{Name: "sq0", Length: 23, Offset: 20, LineBases: 10, LineWidth: 11},
		{Name: "sq1", Length: 6, Offset: 51, LineBases: 4, LineWidth: 5},
		{Name: "sq2", Length: 6, Offset: 65, LineBases: 4, LineWidth: 6},
	}, idx.Records)
}

func TestPositionAcrossLineWraps(t *testing.T) {
	idx, err := Build(strings.NewReader(fasta))
	require.NoError(t, err)

	seq := map[string]string{
		"sq0": "ACGTACGTACGTACGTACGTACG",
		"sq1": "NNNNNN",
		"sq2": "TTTTTT",
	}
	for _, rec := range idx.Records {
		for pos := int64(0); pos < rec.Length; pos++ {
			off := rec.Position(pos)
			assert.Equal(t, seq[rec.Name][pos], fasta[off], "%s:%d", rec.Name, pos)
		}
	}
}

func TestBuildRejectsRaggedLines(t *testing.T) {
	_, err := Build(strings.NewReader(">a\nACGT\nAC\nACGT\n"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))

	_, err = Build(strings.NewReader(">a\nACGT\nACGTA\n"))
	require.Error(t, err)

	_, err = Build(strings.NewReader("ACGT\n>a\nAC\n"))
	require.Error(t, err)
}

func TestBuildAcceptsMissingFinalNewline(t *testing.T) {
	idx, err := Build(strings.NewReader(">a\nACGT\nACGT"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), idx.Records[0].Length)
}

func TestReadWriteRoundTrip(t *testing.T) {
	idx, err := Build(strings.NewReader(fasta))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, idx))
	assert.Equal(t, "sq0\t23\t20\t10\t11\nsq1\t6\t51\t4\t5\nsq2\t6\t65\t4\t6\n", buf.String())

	again, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, idx.Records, again.Records)

	rec, ok := again.Get("sq1")
	require.True(t, ok)
	assert.Equal(t, int64(51), rec.Offset)
}

func TestReadRejectsMalformed(t *testing.T) {
	_, err := Read(strings.NewReader("sq0\t23\t20\t10\n"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))

	_, err = Read(strings.NewReader("sq0\t23\tx\t10\t11\n"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}

func TestResolve(t *testing.T) {
	idx := New([]Record{{Name: "sq0", Length: 23, Offset: 20, LineBases: 10, LineWidth: 11}})

	_, beg, end, err := idx.Resolve(region.MustParse("sq0:11-20"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), beg)
	assert.Equal(t, int64(20), end)

	_, beg, end, err = idx.Resolve(region.MustParse("sq0"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), beg)
	assert.Equal(t, int64(23), end)

	_, beg, end, err = idx.Resolve(region.MustParse("sq0:20-"))
	require.NoError(t, err)
	assert.Equal(t, int64(19), beg)
	assert.Equal(t, int64(23), end)

	for _, bad := range []string{"sq9:1-2", "sq0:1-24", "sq0:24-30"} {
		_, _, _, err := idx.Resolve(region.MustParse(bad))
		require.Error(t, err, bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeIndexLookup), bad)
	}
}

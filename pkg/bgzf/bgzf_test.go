package bgzf

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

func compress(t *testing.T, data []byte) ([]byte, GZI) {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes(), w.GZI()
}

func lines(n int) []byte {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, "chr1\tsrc\tgene\t%d\t%d\t.\t+\t.\tID=g%d\n", i*10+1, i*10+5, i)
	}
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	data := lines(5000) // several blocks
	enc, _ := compress(t, data)

	assert.True(t, IsBGZF(enc))
	assert.True(t, IsEOFBlock(enc[len(enc)-28:]))

	got, err := io.ReadAll(NewReader(bytes.NewReader(enc)))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestOutputIsValidGzip(t *testing.T) {
	data := lines(3000)
	enc, _ := compress(t, data)

	zr, err := gzip.NewReader(bytes.NewReader(enc))
	require.NoError(t, err)
	got, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestIncompressibleData(t *testing.T) {
	data := make([]byte, 3*MaxDataSize)
	rand.New(rand.NewSource(1)).Read(data)
	enc, _ := compress(t, data)

	got, err := io.ReadAll(NewReader(bytes.NewReader(enc)))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReadLineAndSeek(t *testing.T) {
	data := lines(4000)
	var buf bytes.Buffer
	w := NewWriter(&buf)

	// Remember the virtual offset of every line as it is written.
	var offsets []VirtualOffset
	for _, line := range bytes.SplitAfter(data, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		offsets = append(offsets, w.Offset())
		_, err := w.Write(line)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	r := NewReader(bytes.NewReader(buf.Bytes()))
	for _, i := range []int{3999, 0, 2500, 1234} {
		require.NoError(t, r.Seek(offsets[i]))
		line, err := r.ReadLine()
		require.NoError(t, err)
		want := fmt.Sprintf("chr1\tsrc\tgene\t%d\t%d\t.\t+\t.\tID=g%d", i*10+1, i*10+5, i)
		assert.Equal(t, want, string(line))
		if i+1 < len(offsets) {
			assert.Equal(t, offsets[i+1], r.Offset(), "offset after line %d", i)
		}
	}
}

func TestReadLineWithoutTrailingNewline(t *testing.T) {
	enc, _ := compress(t, []byte("a\r\nb"))
	r := NewReader(bytes.NewReader(enc))

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "a", string(line))
	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "b", string(line))
	_, err = r.ReadLine()
	assert.Equal(t, io.EOF, err)
}

func TestCorruptBlock(t *testing.T) {
	enc, _ := compress(t, lines(10))
	enc[len(enc)-28-8] ^= 0xff // CRC of the data block

	_, err := io.ReadAll(NewReader(bytes.NewReader(enc)))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
	assert.Contains(t, err.Error(), "CRC mismatch")
}

func TestSeekNeedsSeeker(t *testing.T) {
	enc, _ := compress(t, lines(10))
	r := NewReader(io.MultiReader(bytes.NewReader(enc)))
	assert.Error(t, r.Seek(0))
}

func TestVirtualOffset(t *testing.T) {
	v := NewVirtualOffset(123456, 789)
	assert.Equal(t, int64(123456), v.Compressed())
	assert.Equal(t, 789, v.Uncompressed())
	assert.Equal(t, "123456:789", v.String())
}

func TestIsBGZFRejectsPlainGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte("plain"))
	require.NoError(t, zw.Close())
	assert.False(t, IsBGZF(buf.Bytes()))
	assert.False(t, IsBGZF([]byte{0x1f, 0x8b}))
}

func TestBuildGZISkipsEmptyBlocks(t *testing.T) {
	enc, idx := compress(t, nil)
	assert.Empty(t, idx)
	built, err := BuildGZI(bytes.NewReader(enc))
	require.NoError(t, err)
	assert.Empty(t, built)

	enc, idx = compress(t, lines(8000))
	// Repeated EOF markers add no entries.
	doubled := append(append([]byte{}, enc...), eofBlock...)
	built, err = BuildGZI(bytes.NewReader(doubled))
	require.NoError(t, err)
	assert.Equal(t, idx, built)
	assert.Equal(t, uint64(len(lines(8000))), built[len(built)-1].Uncompressed)
}

func TestGZIRoundTripAndIndexedReader(t *testing.T) {
	data := lines(8000)
	enc, idx := compress(t, data)
	require.Greater(t, len(idx), 2)

	built, err := BuildGZI(bytes.NewReader(enc))
	require.NoError(t, err)
	assert.Equal(t, idx, built)

	var buf bytes.Buffer
	require.NoError(t, WriteGZI(&buf, idx))
	decoded, err := ReadGZI(&buf)
	require.NoError(t, err)
	assert.Equal(t, idx, decoded)

	ir := NewIndexedReader(bytes.NewReader(enc), decoded)
	for _, off := range []int64{0, 65279, 65280, 200000, int64(len(data)) - 10} {
		pos, err := ir.Seek(off, io.SeekStart)
		require.NoError(t, err)
		assert.Equal(t, off, pos)

		got := make([]byte, 10)
		_, err = io.ReadFull(ir, got)
		require.NoError(t, err)
		assert.Equal(t, data[off:off+10], got, "offset %d", off)
	}

	pos, err := ir.Seek(-5, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data))-5, pos)

	_, err = ir.Seek(0, io.SeekEnd)
	assert.Error(t, err)
}

func TestReadGZITruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGZI(&buf, GZI{{Compressed: 1, Uncompressed: 2}, {Compressed: 3, Uncompressed: 4}}))
	_, err := ReadGZI(bytes.NewReader(buf.Bytes()[:20]))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}

package fileio

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/genobatch/pkg/bgzf"
	"github.com/ajitpratap0/genobatch/pkg/compression"
	"github.com/ajitpratap0/genobatch/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		uri  string
		want Location
	}{
		{"-", Location{Scheme: SchemeStdio}},
		{"data/a.gff", Location{Scheme: SchemeLocal, Path: "data/a.gff"}},
		{"file:///tmp/a.fa", Location{Scheme: SchemeLocal, Path: "/tmp/a.fa"}},
		{"s3://bucket/dir/a.gtf.gz", Location{Scheme: SchemeS3, Bucket: "bucket", Key: "dir/a.gtf.gz"}},
		{"gs://bucket/a.fq", Location{Scheme: SchemeGCS, Bucket: "bucket", Key: "a.fq"}},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := Parse(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "s3://bucket", "gs:///key", "http://host/a.fa"} {
		_, err := Parse(bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput), bad)
	}
}

func TestOpenLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.fa")
	require.NoError(t, os.WriteFile(path, []byte(">a\nACGT\n"), 0o600))

	f, err := Open(context.Background(), path, Options{})
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, int64(8), f.Size())
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, ">a\nACGT\n", string(data))

	_, err = Open(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestCreateLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	w, err := Create(context.Background(), path, Options{})
	require.NoError(t, err)
	_, err = w.Write([]byte("{}\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

type memFetcher struct {
	data   []byte
	ranges [][2]int64
	closed bool
}

func (m *memFetcher) size(context.Context) (int64, error) { return int64(len(m.data)), nil }

func (m *memFetcher) readRange(_ context.Context, off, n int64) (io.ReadCloser, error) {
	m.ranges = append(m.ranges, [2]int64{off, n})
	return io.NopCloser(bytes.NewReader(m.data[off : off+n])), nil
}

func (m *memFetcher) close() error {
	m.closed = true
	return nil
}

func TestRemoteFileBlockCache(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 10)
	fetcher := &memFetcher{data: data}
	f, err := newRemoteFile(context.Background(), "s3://b/k", fetcher, 16)
	require.NoError(t, err)

	assert.Equal(t, int64(100), f.Size())
	assert.Equal(t, "s3://b/k", f.Name())

	all, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, data, all)
	assert.Len(t, fetcher.ranges, 7)
	assert.Equal(t, [2]int64{96, 4}, fetcher.ranges[6])

	// reads inside the current block are served from cache
	buf := make([]byte, 3)
	_, err = f.ReadAt(buf, 97)
	require.NoError(t, err)
	assert.Equal(t, "789", string(buf))
	assert.Len(t, fetcher.ranges, 7)

	// a read spanning two blocks fetches both
	buf = make([]byte, 6)
	_, err = f.ReadAt(buf, 13)
	require.NoError(t, err)
	assert.Equal(t, "345678", string(buf))
	assert.Len(t, fetcher.ranges, 9)

	n, err := f.ReadAt(buf, 98)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 2, n)

	pos, err := f.Seek(-5, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(95), pos)
	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "56789", string(rest))

	require.NoError(t, f.Close())
	assert.True(t, fetcher.closed)
}

func TestDecompress(t *testing.T) {
	text := []byte("chr1\t.\tgene\t1\t10\t.\t+\t.\tID=g1\n")

	var gz bytes.Buffer
	w, err := compression.NewWriter(&gz, compression.Gzip, compression.Default)
	require.NoError(t, err)
	_, err = w.Write(text)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var bgz bytes.Buffer
	bw := bgzf.NewWriter(&bgz)
	_, err = bw.Write(text)
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	tests := []struct {
		name     string
		input    []byte
		encoding Encoding
	}{
		{"plain", text, Encoding(compression.None)},
		{"gzip", gz.Bytes(), Encoding(compression.Gzip)},
		{"bgzf", bgz.Bytes(), EncodingBGZF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decompress(io.NopCloser(bytes.NewReader(tt.input)))
			require.NoError(t, err)
			defer d.Close()
			assert.Equal(t, tt.encoding, d.Encoding)
			got, err := io.ReadAll(d)
			require.NoError(t, err)
			assert.Equal(t, text, got)
		})
	}
}

func TestIsBGZF(t *testing.T) {
	dir := t.TempDir()
	var bgz bytes.Buffer
	bw := bgzf.NewWriter(&bgz)
	_, err := bw.Write([]byte(">a\nACGT\n"))
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	path := filepath.Join(dir, "a.fa.gz")
	require.NoError(t, os.WriteFile(path, bgz.Bytes(), 0o600))
	f, err := Open(context.Background(), path, Options{})
	require.NoError(t, err)
	defer f.Close()
	ok, err := IsBGZF(f)
	require.NoError(t, err)
	assert.True(t, ok)

	plain := filepath.Join(dir, "a.fa")
	require.NoError(t, os.WriteFile(plain, []byte(">a\nACGT\n"), 0o600))
	p, err := Open(context.Background(), plain, Options{})
	require.NoError(t, err)
	defer p.Close()
	ok, err = IsBGZF(p)
	require.NoError(t, err)
	assert.False(t, ok)
}

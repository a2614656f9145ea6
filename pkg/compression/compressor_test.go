package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

func TestStreamRoundTrip(t *testing.T) {
	original := []byte(strings.Repeat("chr1\tsrc\tgene\t100\t200\t.\t+\t.\tID=g1\n", 500))

	for _, algo := range Algorithms {
		for _, level := range []Level{Fastest, Default, Best} {
			t.Run(string(algo), func(t *testing.T) {
				var buf bytes.Buffer
				w, err := NewWriter(&buf, algo, level)
				require.NoError(t, err)
				_, err = w.Write(original)
				require.NoError(t, err)
				require.NoError(t, w.Close())

				if algo != None {
					assert.Less(t, buf.Len(), len(original))
				}
				if algo != Deflate {
					assert.Equal(t, algo, Detect(buf.Bytes()))
				}

				r, err := NewReader(&buf, algo)
				require.NoError(t, err)
				got, err := io.ReadAll(r)
				require.NoError(t, err)
				require.NoError(t, r.Close())
				assert.Equal(t, original, got)
			})
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)
	assert.Equal(t, ".zst", a.Extension())

	a, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, a)
	assert.Equal(t, "", a.Extension())

	_, err = ParseAlgorithm("brotli")
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))

	_, err = NewWriter(io.Discard, Algorithm("xz"), Default)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))
}

func TestDetectPlainText(t *testing.T) {
	assert.Equal(t, None, Detect([]byte(">chr1\nACGT\n")))
	assert.Equal(t, None, Detect(nil))
}

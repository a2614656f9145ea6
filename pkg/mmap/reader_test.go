//go:build linux || darwin

package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.fa")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileReadSeek(t *testing.T) {
	f, err := Open(writeTemp(t, ">chr1\nACGTACGT\n"))
	require.NoError(t, err)
	defer f.Close()
	f.Advise(Random)

	assert.Equal(t, int64(15), f.Size())

	buf := make([]byte, 5)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, ">chr1", string(buf[:n]))

	_, err = f.Seek(6, io.SeekStart)
	require.NoError(t, err)
	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGT\n", string(rest))

	n, err = f.ReadAt(buf, 12)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "GT\n", string(buf[:n]))

	pos, err := f.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(13), pos)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}

func TestOpenEmptyFile(t *testing.T) {
	_, err := Open(writeTemp(t, ""))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	_, err = Open(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

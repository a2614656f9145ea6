// Package testutil provides testing utilities for genobatch
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/genobatch/pkg/bgzf"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// CheckedAllocator returns an Arrow allocator that fails the test if any
// buffer is still allocated when the test ends
func CheckedAllocator(t testing.TB) *memory.CheckedAllocator {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	t.Cleanup(func() { mem.AssertSize(t, 0) })
	return mem
}

// WriteFile writes data to dir/name and returns the path
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// BGZip compresses data as BGZF and returns the encoded bytes and the
// block index a .gzi file would hold
func BGZip(t testing.TB, data []byte) ([]byte, bgzf.GZI) {
	t.Helper()
	var enc bytes.Buffer
	w := bgzf.NewWriter(&enc)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return enc.Bytes(), w.GZI()
}

package profiling

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	genoerrors "github.com/ajitpratap0/genobatch/pkg/errors"
)

func TestParseTypes(t *testing.T) {
	types, err := ParseTypes([]string{"CPU", " heap", "cpu"})
	require.NoError(t, err)
	assert.Equal(t, []ProfileType{CPUProfile, HeapProfile}, types)

	types, err = ParseTypes([]string{"heap", "all"})
	require.NoError(t, err)
	assert.Len(t, types, 6)

	_, err = ParseTypes([]string{"flame"})
	assert.True(t, genoerrors.IsType(err, genoerrors.ErrorTypeConfig))
}

func TestRunWritesProfiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles")
	cfg := &ProfileConfig{
		Types:     []ProfileType{CPUProfile, HeapProfile, GoroutineProfile},
		OutputDir: dir,
	}

	ran := false
	files, err := Run(cfg, zaptest.NewLogger(t), func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	require.Len(t, files, 3)
	for _, f := range files {
		assert.Equal(t, dir, filepath.Dir(f))
		_, err := os.Stat(f)
		assert.NoError(t, err)
	}
}

func TestRunReturnsWorkError(t *testing.T) {
	boom := errors.New("boom")
	files, err := Run(&ProfileConfig{Types: []ProfileType{HeapProfile}, OutputDir: t.TempDir()}, nil, func() error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, files, 1)
}

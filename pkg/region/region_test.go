package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Region
	}{
		{"chr1", Region{Name: "chr1"}},
		{"chr1:100", Region{Name: "chr1", Start: 100}},
		{"chr1:100-200", Region{Name: "chr1", Start: 100, End: 200}},
		{"chr1:1,000-2,000", Region{Name: "chr1", Start: 1000, End: 2000}},
		{"chr1:100-", Region{Name: "chr1", Start: 100}},
		{"chr1:-200", Region{Name: "chr1", Start: 1, End: 200}},
		{"chr1:-", Region{Name: "chr1:-"}},
		{"HLA:A", Region{Name: "HLA:A"}},
		{"HLA-A*01:01:5-10", Region{Name: "HLA-A*01:01", Start: 5, End: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", ":1-2", "chr1:0-10", "chr1:20-10"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, in := range []string{"chr1", "chr1:5-10", "chrX:100-", "chr1:100", "chr1:-20", "HLA:A"} {
		r := MustParse(in)
		again, err := Parse(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, again)
	}
	assert.Equal(t, "chr1:1-10", Region{Name: "chr1", End: 10}.String())
}

func TestParseAllKeepsOrder(t *testing.T) {
	rs, err := ParseAll([]string{"chr2:1-5", "chr1:1-5", "chr2:1-5"})
	require.NoError(t, err)
	require.Len(t, rs, 3)
	assert.Equal(t, "chr2", rs[0].Name)
	assert.Equal(t, "chr1", rs[1].Name)
	assert.Equal(t, rs[0], rs[2])

	_, err = ParseAll([]string{"chr1", "chr1:9-1"})
	assert.Error(t, err)
}

func TestOverlaps(t *testing.T) {
	r := MustParse("chr1:100-200")
	assert.True(t, r.Overlaps(50, 100))
	assert.True(t, r.Overlaps(200, 300))
	assert.True(t, r.Overlaps(120, 130))
	assert.False(t, r.Overlaps(1, 99))
	assert.False(t, r.Overlaps(201, 250))

	open := MustParse("chr1:100-")
	assert.True(t, open.Overlaps(1_000_000, 1_000_001))
	assert.False(t, open.Overlaps(1, 99))

	assert.True(t, MustParse("chr1").Overlaps(1, 1))
}

func TestZeroBased(t *testing.T) {
	beg, end := MustParse("chr1:11-20").ZeroBased()
	assert.Equal(t, 10, beg)
	assert.Equal(t, 20, end)

	beg, end = MustParse("chr1").ZeroBased()
	assert.Equal(t, 0, beg)
	assert.Equal(t, -1, end)
}

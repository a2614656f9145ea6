package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/genobatch/pkg/errors"
	"github.com/ajitpratap0/genobatch/pkg/scan"
	"github.com/ajitpratap0/genobatch/pkg/testutil"
)

func TestBuildIndexThenQuery(t *testing.T) {
	dir := t.TempDir()
	plainFasta := testutil.WriteFile(t, dir, "ref.fa", []byte(fastaData))
	enc, _ := testutil.BGZip(t, []byte(fastaData))
	bgzFasta := testutil.WriteFile(t, dir, "ref.fa.gz", enc)
	gffEnc, _ := testutil.BGZip(t, []byte(gffData))
	bgzGFF := testutil.WriteFile(t, dir, "genes.gff3.gz", gffEnc)

	tests := []struct {
		name    string
		input   string
		written []string
		regions []string
		rows    int
	}{
		{"plain fasta", plainFasta, []string{plainFasta + ".fai"}, []string{"sq1:2-3"}, 1},
		{"bgzf fasta", bgzFasta, []string{bgzFasta + ".fai", bgzFasta + ".gzi"}, []string{"sq0", "sq2:1-2"}, 2},
		{"bgzf gff", bgzGFF, []string{bgzGFF + ".tbi"}, []string{"chr1:1-120"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ndjsonConfig(tt.input)
			written, err := BuildIndex(context.Background(), cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.written, written)

			cfg.Regions = tt.regions
			summary, rows, err := runNDJSON(t, cfg)
			require.NoError(t, err)
			assert.Len(t, rows, tt.rows)
			assert.Equal(t, int64(tt.rows), summary.Rows)
		})
	}
}

func TestBuildIndexRejects(t *testing.T) {
	dir := t.TempDir()
	fastq := testutil.WriteFile(t, dir, "reads.fastq", []byte("@r1\nACGT\n+\nIIII\n"))
	plainGFF := testutil.WriteFile(t, dir, "genes.gff3", []byte(gffData))
	unsorted, _ := testutil.BGZip(t, []byte("chr1\ts\tgene\t500\t600\t.\t+\t.\tID=a\nchr1\ts\tgene\t100\t200\t.\t+\t.\tID=b\n"))
	unsortedGFF := testutil.WriteFile(t, dir, "unsorted.gff3.gz", unsorted)

	for _, tc := range []struct {
		input   string
		errType errors.ErrorType
	}{
		{"-", errors.ErrorTypeConfig},
		{fastq, errors.ErrorTypeInvalidInput},
		{plainGFF, errors.ErrorTypeInvalidInput},
		{unsortedGFF, errors.ErrorTypeParse},
	} {
		_, err := BuildIndex(context.Background(), ndjsonConfig(tc.input))
		require.Error(t, err, tc.input)
		assert.True(t, errors.IsType(err, tc.errType), "%s: %v", tc.input, err)
	}
}

func TestHead(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "genes.gff3", []byte(gffData))

	cfg := ndjsonConfig(path)
	cfg.BatchSize = 1
	schema, recs, err := Head(context.Background(), cfg, 3)
	require.NoError(t, err)
	defer scan.ReleaseAll(recs)

	assert.Equal(t, "seqid", schema.Field(0).Name)
	assert.Len(t, recs, 3)
	assert.Equal(t, int64(3), scan.NumRows(recs))
	assert.Equal(t, 0, cfg.Limit)
}

package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/genobatch/pkg/errors"
)

func TestBuiltinFormats(t *testing.T) {
	assert.Equal(t, []string{"fasta", "fastq", "gff", "gtf"}, Formats())
}

func TestFieldNames(t *testing.T) {
	names, err := FieldNames(FormatFASTQ)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "description", "sequence", "quality"}, names)

	_, err = FieldNames("bam")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("gtf", newGTFSource))

	err := r.Register("gtf", newGFFSource)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	src, err := r.Create("gtf", &Input{URI: "a.gtf"})
	require.NoError(t, err)
	assert.Equal(t, FormatGTF, src.Format())
	assert.Contains(t, src.FieldNames(), "frame")
	_, ok := src.(AttributeSource)
	assert.True(t, ok)

	_, err = r.Create("vcf", &Input{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Equal(t, []string{"gtf"}, r.Formats())
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"ref.fa", FormatFASTA},
		{"ref.FASTA.gz", FormatFASTA},
		{"s3://bucket/genome.fna.bgz", FormatFASTA},
		{"reads.fq.zst", FormatFASTQ},
		{"reads.fastq", FormatFASTQ},
		{"genes.gtf.gz", FormatGTF},
		{"genes.gff3.gz", FormatGFF},
		{"/data/genes.gff", FormatGFF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"-", "notes.txt", "genes.gz"} {
		_, err := DetectFormat(bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), bad)
	}
}

func TestStdinReadOnce(t *testing.T) {
	in := &Input{URI: "-"}
	in.consumed = true
	_, err := in.open(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = in.openBGZF(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidInput))
}

package pipeline

import (
	"context"
	"io"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/genobatch/pkg/config"
	"github.com/ajitpratap0/genobatch/pkg/errors"
	"github.com/ajitpratap0/genobatch/pkg/fileio"
	"github.com/ajitpratap0/genobatch/pkg/gxf"
	"github.com/ajitpratap0/genobatch/pkg/region"
	"github.com/ajitpratap0/genobatch/pkg/scan"
)

// Built-in format names
const (
	FormatFASTA = "fasta"
	FormatFASTQ = "fastq"
	FormatGTF   = "gtf"
	FormatGFF   = "gff"
)

// Source produces record batches for one input file. Every RecordReader
// it returns owns its own handle on the input and closes it on Release.
type Source interface {
	Format() string
	FieldNames() []string
	Schema(ctx context.Context) (*arrow.Schema, error)
	Scan(ctx context.Context) (array.RecordReader, error)
	Query(ctx context.Context, regions []region.Region) (array.RecordReader, error)
	Close() error
}

// AttributeSource is a Source with inferable attribute columns
type AttributeSource interface {
	Source
	AttributeDefs(ctx context.Context) (gxf.AttributeDefs, error)
}

// Input is everything a Source needs to open and batch its file
type Input struct {
	URI   string
	Index string
	GZI   string

	Fields []string
	// Attributes are declared attribute columns. When nil and
	// InferAttributes is set they are inferred from the first ScanRows
	// records; otherwise no attributes column is produced.
	Attributes      gxf.AttributeDefs
	InferAttributes bool
	ScanRows        int
	BatchSize       int
	Limit           int

	Storage     fileio.Options
	Allocator   memory.Allocator
	ScanOptions []scan.Option

	mu       sync.Mutex
	consumed bool
}

// NewInput builds an Input from a validated ScanConfig
func NewInput(cfg *config.ScanConfig) (*Input, error) {
	in := &Input{
		URI:             cfg.Input,
		Index:           cfg.Index,
		GZI:             cfg.GZI,
		Fields:          cfg.Fields,
		InferAttributes: cfg.InferAttributes,
		ScanRows:        cfg.ScanRows,
		BatchSize:       cfg.BatchSize,
		Limit:           cfg.Limit,
		Storage: fileio.Options{
			S3Region:           cfg.Storage.S3Region,
			S3Endpoint:         cfg.Storage.S3Endpoint,
			GCSCredentialsFile: cfg.Storage.GCSCredentialsFile,
			BlockSize:          cfg.Storage.BlockSize,
		},
	}
	if len(cfg.Attributes) > 0 {
		defs, err := gxf.AttributeDefsFromMap(cfg.Attributes)
		if err != nil {
			return nil, err
		}
		in.Attributes = defs
	}
	return in, nil
}

func (in *Input) allocator() memory.Allocator {
	if in.Allocator == nil {
		return memory.DefaultAllocator
	}
	return in.Allocator
}

// open returns a fresh handle on the input. Standard input can be opened
// only once.
func (in *Input) open(ctx context.Context) (fileio.File, error) {
	if in.URI == "-" {
		in.mu.Lock()
		defer in.mu.Unlock()
		if in.consumed {
			return nil, errors.New(errors.ErrorTypeConfig, "standard input can only be read once; declare attributes instead of inferring them")
		}
		in.consumed = true
	}
	return fileio.Open(ctx, in.URI, in.Storage)
}

// openStream opens the input and decodes any compression
func (in *Input) openStream(ctx context.Context) (*fileio.Decompressed, error) {
	f, err := in.open(ctx)
	if err != nil {
		return nil, err
	}
	return fileio.Decompress(f)
}

// openBGZF opens the input and requires BGZF compression
func (in *Input) openBGZF(ctx context.Context) (fileio.File, error) {
	if in.URI == "-" {
		return nil, errors.New(errors.ErrorTypeInvalidInput, "indexed queries need a file, not standard input")
	}
	f, err := in.open(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := fileio.IsBGZF(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if !ok {
		f.Close()
		return nil, errors.New(errors.ErrorTypeInvalidInput, "indexed queries need a BGZF-compressed input; compress it with bgzip").
			WithDetail("input", in.URI)
	}
	return f, nil
}

// sidecar returns override, or the input URI plus ext
func (in *Input) sidecar(override, ext string) string {
	if override != "" {
		return override
	}
	return in.URI + ext
}

// readIndex opens uri and decodes it with read
func readIndex[T any](ctx context.Context, in *Input, uri string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := fileio.Open(ctx, uri, in.Storage)
	if err != nil {
		return zero, errors.Wrap(err, errors.ErrorTypeIndexLookup, "index not found").WithDetail("index", uri)
	}
	defer f.Close()
	return read(f)
}

// recordReader drops the concrete iterator type without leaking a typed nil
func recordReader[R array.RecordReader](rr R, err error) (array.RecordReader, error) {
	if err != nil {
		return nil, err
	}
	return rr, nil
}

func closeOnError(c io.Closer, err error) {
	if err != nil && c != nil {
		c.Close()
	}
}

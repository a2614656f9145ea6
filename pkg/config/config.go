package config

import (
	"strings"

	"github.com/ajitpratap0/genobatch/pkg/compression"
	"github.com/ajitpratap0/genobatch/pkg/errors"
	"github.com/ajitpratap0/genobatch/pkg/gxf"
	"github.com/ajitpratap0/genobatch/pkg/region"
)

// Input formats understood by the pipeline
var InputFormats = []string{"fasta", "fastq", "gtf", "gff"}

// OutputFormats lists the sink formats
var OutputFormats = []string{"arrow", "arrows", "parquet", "avro", "ndjson", "postgres"}

// ScanConfig is the complete description of one scan session: what to read,
// how to batch it and where the batches go.
type ScanConfig struct {
	// Input is a local path, "-", s3://bucket/key or gs://bucket/object
	Input string `yaml:"input" json:"input" mapstructure:"input"`
	// Format is one of InputFormats. Empty means infer from the file name.
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	// Index overrides the default sidecar index path (.fai, .tbi)
	Index string `yaml:"index" json:"index" mapstructure:"index"`
	// GZI overrides the default .gzi path for bgzipped FASTA
	GZI string `yaml:"gzi" json:"gzi" mapstructure:"gzi"`

	// Fields selects and orders the fixed columns. Empty selects all.
	Fields []string `yaml:"fields,omitempty" json:"fields,omitempty" mapstructure:"fields"`
	// Attributes declares attribute columns as name -> String|Array.
	// When empty and InferAttributes is set, they are inferred.
	Attributes      map[string]string `yaml:"attributes,omitempty" json:"attributes,omitempty" mapstructure:"attributes"`
	InferAttributes bool              `yaml:"infer_attributes" json:"infer_attributes" mapstructure:"infer_attributes"`
	// ScanRows bounds the inference pass, 0 reads the whole input
	ScanRows int `yaml:"scan_rows" json:"scan_rows" mapstructure:"scan_rows"`

	// BatchSize of 0 selects the format default
	BatchSize int `yaml:"batch_size" json:"batch_size" mapstructure:"batch_size"`
	// Limit of 0 means unlimited. Ignored by queries.
	Limit int `yaml:"limit" json:"limit" mapstructure:"limit"`
	// Regions switches the session to indexed query mode
	Regions []string `yaml:"regions,omitempty" json:"regions,omitempty" mapstructure:"regions"`

	Output        OutputConfig        `yaml:"output" json:"output" mapstructure:"output"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging" mapstructure:"logging"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
	Storage       StorageConfig       `yaml:"storage" json:"storage" mapstructure:"storage"`
}

// OutputConfig selects the sink
type OutputConfig struct {
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	// Path is a local path, "-", s3:// or gs:// URI
	Path string `yaml:"path" json:"path" mapstructure:"path"`
	// Compression wraps byte-stream sinks (arrow, arrows, avro, ndjson)
	Compression      string `yaml:"compression" json:"compression" mapstructure:"compression"`
	CompressionLevel int    `yaml:"compression_level" json:"compression_level" mapstructure:"compression_level"`
	// ParquetCodec is the parquet column codec (snappy, zstd, gzip, lz4, brotli, none)
	ParquetCodec string `yaml:"parquet_codec" json:"parquet_codec" mapstructure:"parquet_codec"`
	// AvroCodec is the OCF block codec (null, deflate, snappy)
	AvroCodec string `yaml:"avro_codec" json:"avro_codec" mapstructure:"avro_codec"`

	// Postgres settings
	DSN         string `yaml:"dsn" json:"dsn" mapstructure:"dsn"`
	Table       string `yaml:"table" json:"table" mapstructure:"table"`
	CreateTable bool   `yaml:"create_table" json:"create_table" mapstructure:"create_table"`
}

// LoggingConfig mirrors logger.Config
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level" mapstructure:"level"`
	Encoding    string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	Development bool   `yaml:"development" json:"development" mapstructure:"development"`
}

// ObservabilityConfig contains monitoring settings
type ObservabilityConfig struct {
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	// MetricsAddr serves /metrics while the session runs, empty disables it
	MetricsAddr   string  `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
	EnableTracing bool    `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	SamplingRate  float64 `yaml:"sampling_rate" json:"sampling_rate" mapstructure:"sampling_rate"`
}

// StorageConfig configures remote object stores
type StorageConfig struct {
	S3Region           string `yaml:"s3_region" json:"s3_region" mapstructure:"s3_region"`
	S3Endpoint         string `yaml:"s3_endpoint" json:"s3_endpoint" mapstructure:"s3_endpoint"`
	GCSCredentialsFile string `yaml:"gcs_credentials_file" json:"gcs_credentials_file" mapstructure:"gcs_credentials_file"`
	BlockSize          int    `yaml:"block_size" json:"block_size" mapstructure:"block_size"`
}

// Default returns a configuration that writes an Arrow IPC stream to stdout
func Default() *ScanConfig {
	return &ScanConfig{
		InferAttributes: true,
		ScanRows:        0,
		Output: OutputConfig{
			Format:           "arrows",
			Path:             "-",
			Compression:      string(compression.None),
			CompressionLevel: int(compression.Default),
			ParquetCodec:     "snappy",
			AvroCodec:        "null",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Observability: ObservabilityConfig{
			SamplingRate: 1.0,
		},
		Storage: StorageConfig{
			BlockSize: 4 << 20,
		},
	}
}

// Validate checks the configuration before any input is opened. Problems
// with the session description are config errors; malformed attribute tags
// and regions keep their own invalid_input type.
func (c *ScanConfig) Validate() error {
	if c.Input == "" {
		return errors.New(errors.ErrorTypeConfig, "input is required")
	}
	if c.Format != "" && !contains(InputFormats, strings.ToLower(c.Format)) {
		return errors.Newf(errors.ErrorTypeConfig, "unknown input format: %s", c.Format).
			WithDetail("valid", strings.Join(InputFormats, ", "))
	}
	if c.BatchSize < 0 {
		return errors.New(errors.ErrorTypeConfig, "batch_size cannot be negative")
	}
	if c.Limit < 0 {
		return errors.New(errors.ErrorTypeConfig, "limit cannot be negative")
	}
	if c.ScanRows < 0 {
		return errors.New(errors.ErrorTypeConfig, "scan_rows cannot be negative")
	}
	if len(c.Attributes) > 0 {
		if _, err := gxf.AttributeDefsFromMap(c.Attributes); err != nil {
			return err
		}
	}
	if _, err := region.ParseAll(c.Regions); err != nil {
		return err
	}
	if len(c.Regions) > 0 && c.Limit > 0 {
		return errors.New(errors.ErrorTypeConfig, "limit is not supported with regions")
	}
	return c.Output.Validate()
}

// Validate checks the sink settings
func (o *OutputConfig) Validate() error {
	if !contains(OutputFormats, o.Format) {
		return errors.Newf(errors.ErrorTypeConfig, "unknown output format: %s", o.Format).
			WithDetail("valid", strings.Join(OutputFormats, ", "))
	}
	if _, err := compression.ParseAlgorithm(o.Compression); err != nil {
		return err
	}
	if o.Format == "postgres" {
		if o.DSN == "" {
			return errors.New(errors.ErrorTypeConfig, "dsn is required for postgres output")
		}
		if o.Table == "" {
			return errors.New(errors.ErrorTypeConfig, "table is required for postgres output")
		}
		return nil
	}
	if o.Path == "" {
		return errors.New(errors.ErrorTypeConfig, "output path is required")
	}
	return nil
}

// Query reports whether the session runs in indexed query mode
func (c *ScanConfig) Query() bool { return len(c.Regions) > 0 }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

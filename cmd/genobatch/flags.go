package main

import (
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/genobatch/pkg/config"
	"github.com/ajitpratap0/genobatch/pkg/logger"
)

// Flag defaults below are for help text only. Values come from
// config.LoadWithViper, where a flag wins only when it was set explicitly.

func addGlobalFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	f.StringP("config", "c", "", "YAML configuration file")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-encoding", "console", "Log encoding (console, json)")
	f.String("s3-region", "", "AWS region for s3:// URIs")
	f.String("s3-endpoint", "", "Custom S3 endpoint, e.g. a MinIO server")
	f.String("gcs-credentials", "", "Service account file for gs:// URIs")
	f.Int("remote-block-size", 4<<20, "Ranged-read size for remote inputs in bytes")
	f.StringSlice("profile", nil, "Profiles to capture (cpu, heap, block, mutex, goroutine, trace, all)")
	f.String("profile-dir", "./profiles", "Directory for captured profiles")
}

func addInputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("input", "i", "", "Input path, - for stdin, s3:// or gs:// URI")
	f.StringP("format", "f", "", "Input format (fasta, fastq, gtf, gff); inferred from the file name when empty")
	f.String("index", "", "Index path (default: input + .fai or .tbi)")
	f.String("gzi", "", "BGZF block index for bgzipped FASTA (default: input + .gzi)")
	f.StringSlice("fields", nil, "Fixed columns to emit, in order (default: all)")
	f.StringToString("attribute", nil, "Attribute column as name=String|Array (repeatable)")
	f.Bool("infer-attributes", true, "Infer attribute columns when none are declared")
	f.Int("scan-rows", 0, "Records read by attribute inference (0 reads everything)")
	f.Int("batch-size", 0, "Rows per batch (0 uses the format default)")
}

func addOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("output", "o", "-", "Output path, - for stdout, s3:// or gs:// URI")
	f.StringP("output-format", "F", "arrows", "Output format (arrow, arrows, parquet, avro, ndjson, postgres)")
	f.String("compression", "none", "Stream compression for arrow, arrows, avro and ndjson output")
	f.Int("compression-level", 5, "Compression level 1-9")
	f.String("parquet-codec", "snappy", "Parquet column codec")
	f.String("avro-codec", "null", "Avro block codec (null, deflate, snappy)")
	f.String("dsn", "", "PostgreSQL connection string for postgres output")
	f.String("table", "", "PostgreSQL table for postgres output")
	f.Bool("create-table", false, "Create the PostgreSQL table if it does not exist")
	f.Bool("metrics", false, "Collect Prometheus metrics")
	f.String("metrics-addr", "", "Serve /metrics on this address while running, e.g. :9090")
	f.Bool("tracing", false, "Write OpenTelemetry spans to stderr")
}

// loadConfig resolves the session config from defaults, --config, the
// environment and flags, then installs the configured logger. A positional
// argument is the input.
func loadConfig(cmd *cobra.Command, args []string) (*config.ScanConfig, error) {
	if len(args) > 0 {
		if err := cmd.Flags().Set("input", args[0]); err != nil {
			return nil, err
		}
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithViper(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Encoding:    cfg.Logging.Encoding,
		Development: cfg.Logging.Development,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

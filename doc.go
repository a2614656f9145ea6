// Package genobatch converts genomic text formats into Apache Arrow record
// batches.
//
// genobatch reads FASTA, FASTQ, GTF and GFF3 files, plain or compressed,
// and streams them as fixed-size Arrow batches. Bgzipped inputs with a .fai
// or .tbi index can be read by region instead of end to end. Batches are
// written to Arrow IPC, Parquet, Avro, NDJSON or a PostgreSQL table.
//
// # Architecture
//
// A conversion is a chain of small pieces:
//
// 1. Input: fileio opens local paths, stdin, s3:// and gs:// URIs, sniffs the
// encoding and decompresses gzip, zstd, lz4 and BGZF streams.
//
// 2. Parsing: sequence (FASTA, FASTQ) and gxf (GTF, GFF3) turn text records
// into Arrow columns. GTF and GFF attributes become one struct column whose
// fields are declared up front or inferred from the first records.
//
// 3. Scanning: scan drives a batch reader and exposes it as an
// array.RecordReader. Region queries resolve against index/fai or
// index/tabix and read only the BGZF blocks they need.
//
// 4. Output: sink writes each batch as it arrives.
//
// # Quick Start
//
// Convert a bgzipped GTF to Parquet:
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/genobatch/internal/pipeline"
//	    "github.com/ajitpratap0/genobatch/pkg/config"
//	)
//
//	cfg := config.Default()
//	cfg.Input = "genes.gtf.gz"
//	cfg.Output.Format = "parquet"
//	cfg.Output.Path = "genes.parquet"
//
//	summary, err := pipeline.Run(context.Background(), cfg)
//
// Query two regions from the command line:
//
//	genobatch index genes.gff3.gz
//	genobatch query genes.gff3.gz -r chr1:11000-15000 -r chrX -F ndjson
//
// # Key Packages
//
//	internal/pipeline - Sources, the format registry and conversion runs
//	pkg/scan          - Batch readers and the record reader they drive
//	pkg/gxf           - GTF and GFF3 parsing and attribute harmonization
//	pkg/sequence      - FASTA and FASTQ parsing
//	pkg/bgzf          - BGZF block reading, writing and .gzi indexes
//	pkg/index         - FASTA .fai and tabix .tbi indexes
//	pkg/region        - Region parsing and overlap tests
//	pkg/fileio        - Local, stdin and object storage access
//	pkg/sink          - Arrow, Parquet, Avro, NDJSON and PostgreSQL writers
//	pkg/config        - Layered configuration (defaults, file, env, flags)
//	pkg/errors        - Structured error handling
//	pkg/logger        - Structured logging
//	pkg/metrics       - Prometheus metrics
//	pkg/observability - OpenTelemetry tracing
//
// # Configuration
//
// Settings are layered: built-in defaults, a YAML file, GENOBATCH_*
// environment variables and finally explicit command-line flags.
// Environment variables are supported in YAML files with ${VAR_NAME} syntax.
//
// # Errors
//
// Every failure carries a type (parse, config, file, invalid_input,
// index_lookup, type_mismatch, ...). A failed batch ends the stream; no
// further batches are produced after an error.
package genobatch

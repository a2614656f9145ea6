// Package pipeline runs genobatch scan sessions: it resolves an input
// format to a Source, turns the input into Arrow record batches and streams
// them into a sink.
//
// # Overview
//
// A session is described by a config.ScanConfig. Run validates it, picks
// the format (explicitly configured or inferred from the file name), opens
// a scan or an indexed query, and copies every batch into the configured
// output. Reading and writing run in separate goroutines connected by a
// bounded channel of batches, so decoding the next batch overlaps with
// encoding the previous one.
//
// # Basic Usage
//
//	cfg := config.Default()
//	cfg.Input = "annotations.gff3.gz"
//	cfg.Output.Format = "parquet"
//	cfg.Output.Path = "annotations.parquet"
//
//	summary, err := pipeline.Run(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(summary.Rows, "rows in", summary.Batches, "batches")
//
// # Formats
//
// fasta, fastq, gtf and gff are registered by default. Additional formats
// can be added with RegisterFormat or a private Registry passed through
// WithRegistry.
package pipeline

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/genobatch/pkg/compression"
	"github.com/ajitpratap0/genobatch/pkg/config"
	"github.com/ajitpratap0/genobatch/pkg/errors"
	"github.com/ajitpratap0/genobatch/pkg/fileio"
	"github.com/ajitpratap0/genobatch/pkg/logger"
	"github.com/ajitpratap0/genobatch/pkg/metrics"
	"github.com/ajitpratap0/genobatch/pkg/observability"
	"github.com/ajitpratap0/genobatch/pkg/region"
	"github.com/ajitpratap0/genobatch/pkg/scan"
	"github.com/ajitpratap0/genobatch/pkg/sink"
)

// DefaultBuffer is the number of batches queued between reader and writer
const DefaultBuffer = 4

// Summary describes a finished session
type Summary struct {
	SessionID string
	Format    string
	Mode      string
	Batches   int
	Rows      int64
	Duration  time.Duration
	Output    string
}

// RunOption configures Run
type RunOption func(*runOptions)

type runOptions struct {
	registry  *Registry
	metrics   *metrics.ScanMetrics
	tracer    *observability.ScanTracer
	logger    *zap.Logger
	allocator memory.Allocator
	writer    io.Writer
	buffer    int
}

// WithRegistry resolves formats through r instead of the global registry
func WithRegistry(r *Registry) RunOption {
	return func(o *runOptions) { o.registry = r }
}

// WithMetrics records batch and error metrics on m
func WithMetrics(m *metrics.ScanMetrics) RunOption {
	return func(o *runOptions) { o.metrics = m }
}

// WithTracer wraps the session in a span. Without it a tracer is created
// from the global provider when tracing is enabled in the config.
func WithTracer(t *observability.ScanTracer) RunOption {
	return func(o *runOptions) { o.tracer = t }
}

// WithLogger sets the session logger
func WithLogger(l *zap.Logger) RunOption {
	return func(o *runOptions) { o.logger = l }
}

// WithAllocator sets the Arrow allocator for batches and sinks
func WithAllocator(mem memory.Allocator) RunOption {
	return func(o *runOptions) { o.allocator = mem }
}

// WithWriter sends byte-stream output to w instead of the configured path
func WithWriter(w io.Writer) RunOption {
	return func(o *runOptions) { o.writer = w }
}

// WithBuffer sets how many batches may be queued for the writer. Zero or
// less copies batches synchronously.
func WithBuffer(n int) RunOption {
	return func(o *runOptions) { o.buffer = n }
}

// Run executes one scan session described by cfg
func Run(ctx context.Context, cfg *config.ScanConfig, opts ...RunOption) (*Summary, error) {
	o := runOptions{registry: globalRegistry, buffer: DefaultBuffer}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	format, err := resolveFormat(cfg)
	if err != nil {
		return nil, err
	}
	mode := metrics.ModeScan
	if cfg.Query() {
		mode = metrics.ModeQuery
	}

	sessionID := uuid.NewString()
	ctx = context.WithValue(ctx, logger.SessionIDKey, sessionID)
	ctx = context.WithValue(ctx, logger.FormatKey, format)
	ctx = context.WithValue(ctx, logger.InputKey, cfg.Input)
	log := o.logger
	if log == nil {
		log = logger.WithContext(ctx)
	} else {
		log = log.With(zap.String("session_id", sessionID), zap.String("format", format), zap.String("input", cfg.Input))
	}
	if o.tracer == nil && cfg.Observability.EnableTracing {
		o.tracer = observability.NewScanTracer()
	}

	in, err := NewInput(cfg)
	if err != nil {
		return nil, err
	}
	in.Allocator = o.allocator
	in.ScanOptions = []scan.Option{
		scan.WithLogger(log),
		scan.WithContext(ctx),
		scan.WithFormat(format),
		scan.WithMetrics(o.metrics),
	}
	if o.tracer != nil {
		in.ScanOptions = append(in.ScanOptions, scan.WithTracer(o.tracer))
	}

	src, err := o.registry.Create(format, in)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	start := time.Now()
	log.Info("session started", zap.String("mode", mode), zap.String("output", outputName(cfg)))

	rr, err := open(ctx, src, cfg)
	if err != nil {
		o.metrics.RecordError(format, mode, string(errors.TypeOf(err)))
		return nil, err
	}
	defer rr.Release()

	w, closeOutput, err := openSink(ctx, rr.Schema(), cfg, o)
	if err != nil {
		return nil, err
	}

	batches, rows, copyErr := pipe(ctx, rr, w, o.buffer)
	if err := w.Close(); copyErr == nil {
		copyErr = err
	}
	if err := closeOutput(); copyErr == nil {
		copyErr = err
	}

	summary := &Summary{
		SessionID: sessionID,
		Format:    format,
		Mode:      mode,
		Batches:   batches,
		Rows:      rows,
		Duration:  time.Since(start),
		Output:    outputName(cfg),
	}
	fields := []zap.Field{
		zap.String("mode", mode),
		zap.Int("batches", batches),
		zap.Int64("rows", rows),
		zap.Duration("duration", summary.Duration),
	}
	if stats, err := observability.CollectProcessStats(); err == nil {
		fields = append(fields, stats.Fields()...)
	}
	if copyErr != nil {
		log.Error("session failed", append(fields, zap.Error(copyErr))...)
		return summary, copyErr
	}
	log.Info("session finished", fields...)
	return summary, nil
}

// OpenSource validates cfg and creates the Source for its input format
func OpenSource(cfg *config.ScanConfig) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	format, err := resolveFormat(cfg)
	if err != nil {
		return nil, err
	}
	in, err := NewInput(cfg)
	if err != nil {
		return nil, err
	}
	in.ScanOptions = []scan.Option{scan.WithLogger(logger.Get()), scan.WithFormat(format)}
	return globalRegistry.Create(format, in)
}

func resolveFormat(cfg *config.ScanConfig) (string, error) {
	if cfg.Format != "" {
		return strings.ToLower(cfg.Format), nil
	}
	return DetectFormat(cfg.Input)
}

// open starts a scan, or a query when regions are configured
func open(ctx context.Context, src Source, cfg *config.ScanConfig) (array.RecordReader, error) {
	if !cfg.Query() {
		return src.Scan(ctx)
	}
	regions, err := region.ParseAll(cfg.Regions)
	if err != nil {
		return nil, err
	}
	return src.Query(ctx, regions)
}

// openSink creates the sink for schema. The returned func closes the
// underlying output after the sink has flushed.
func openSink(ctx context.Context, schema *arrow.Schema, cfg *config.ScanConfig, o runOptions) (sink.Writer, func() error, error) {
	format, err := sink.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, nil, err
	}
	algo, err := compression.ParseAlgorithm(cfg.Output.Compression)
	if err != nil {
		return nil, nil, err
	}
	opts := sink.Options{
		Format:           format,
		Compression:      algo,
		CompressionLevel: compression.Level(cfg.Output.CompressionLevel),
		ParquetCodec:     cfg.Output.ParquetCodec,
		AvroCodec:        cfg.Output.AvroCodec,
		DSN:              cfg.Output.DSN,
		Table:            cfg.Output.Table,
		CreateTable:      cfg.Output.CreateTable,
		Allocator:        o.allocator,
	}
	noop := func() error { return nil }

	if format == sink.Postgres {
		w, err := sink.NewPostgres(ctx, schema, opts)
		return w, noop, err
	}

	if o.writer != nil {
		w, err := sink.New(schema, o.writer, opts)
		return w, noop, err
	}

	out, err := fileio.Create(ctx, cfg.Output.Path, fileio.Options{
		S3Region:           cfg.Storage.S3Region,
		S3Endpoint:         cfg.Storage.S3Endpoint,
		GCSCredentialsFile: cfg.Storage.GCSCredentialsFile,
	})
	if err != nil {
		return nil, nil, err
	}
	w, err := sink.New(schema, out, opts)
	if err != nil {
		out.Close()
		return nil, nil, err
	}
	return w, out.Close, nil
}

// pipe copies rr into w. With a positive buffer the writer runs in its own
// goroutine and up to buffer batches are held between the two.
func pipe(ctx context.Context, rr array.RecordReader, w sink.Writer, buffer int) (int, int64, error) {
	if buffer <= 0 {
		batches := 0
		var rows int64
		for rr.Next() {
			if err := ctx.Err(); err != nil {
				return batches, rows, err
			}
			rec := rr.Record()
			if err := w.Write(rec); err != nil {
				return batches, rows, err
			}
			batches++
			rows += rec.NumRows()
		}
		return batches, rows, rr.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	ch := make(chan arrow.Record, buffer)

	g.Go(func() error {
		defer close(ch)
		for rr.Next() {
			rec := rr.Record()
			rec.Retain()
			select {
			case ch <- rec:
			case <-gctx.Done():
				rec.Release()
				return gctx.Err()
			}
		}
		return rr.Err()
	})

	var (
		batches int
		rows    int64
	)
	g.Go(func() error {
		for rec := range ch {
			err := w.Write(rec)
			n := rec.NumRows()
			rec.Release()
			if err != nil {
				return err
			}
			batches++
			rows += n
		}
		return nil
	})

	err := g.Wait()
	for rec := range ch {
		rec.Release()
	}
	return batches, rows, err
}

func outputName(cfg *config.ScanConfig) string {
	if cfg.Output.Format == string(sink.Postgres) {
		return "postgres:" + cfg.Output.Table
	}
	return cfg.Output.Path
}

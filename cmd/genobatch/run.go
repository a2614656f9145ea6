package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/genobatch/internal/pipeline"
	"github.com/ajitpratap0/genobatch/pkg/config"
	"github.com/ajitpratap0/genobatch/pkg/logger"
	"github.com/ajitpratap0/genobatch/pkg/metrics"
	"github.com/ajitpratap0/genobatch/pkg/observability"
	"github.com/ajitpratap0/genobatch/pkg/profiling"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [input]",
		Short: "Convert a whole input into record batches",
		Long: `Read the input from start to end and write its record batches to the
configured output.

Example:
  genobatch scan genes.gff3.gz --output genes.parquet --output-format parquet
  zcat reads.fq.gz | genobatch scan - --format fastq --output-format ndjson`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			return profiled(cmd, func() error { return runSession(cmd.Context(), cfg) })
		},
	}
	addInputFlags(cmd)
	addOutputFlags(cmd)
	cmd.Flags().Int("limit", 0, "Stop after this many records (0 reads everything)")
	return cmd
}

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [input] --region chr1:100-200 ...",
		Short: "Read the records overlapping regions through an index",
		Long: `Resolve each region against the input's index and write the matching
records in region order. GTF and GFF inputs need bgzip compression and a .tbi
index; FASTA inputs need a .fai index (and a .gzi when bgzipped).

Example:
  genobatch query genes.gtf.gz --region chr1:11000-15000 --region chrX`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			if !cfg.Query() {
				return errors.New("query needs at least one --region")
			}
			return profiled(cmd, func() error { return runSession(cmd.Context(), cfg) })
		},
	}
	addInputFlags(cmd)
	addOutputFlags(cmd)
	cmd.Flags().StringSliceP("region", "r", nil, "Region to read, e.g. chr1:100-200 (repeatable)")
	return cmd
}

// runSession wires metrics and tracing around one pipeline run
func runSession(ctx context.Context, cfg *config.ScanConfig) error {
	log := logger.Get().With(zap.String("component", "genobatch-cli"))
	var opts []pipeline.RunOption

	if cfg.Observability.EnableMetrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, pipeline.WithMetrics(metrics.NewScanMetrics(reg)))

		if addr := cfg.Observability.MetricsAddr; addr != "" {
			srv := serveMetrics(addr, reg, log)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
	}

	if cfg.Observability.EnableTracing {
		tc := observability.DefaultTracingConfig()
		tc.ServiceVersion = version
		tc.SamplingRate = cfg.Observability.SamplingRate
		if err := observability.Init(tc, nil); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := observability.Shutdown(shutdownCtx); err != nil {
				log.Warn("failed to flush traces", zap.Error(err))
			}
		}()
	}

	_, err := pipeline.Run(ctx, cfg, opts...)
	return err
}

// profiled runs fn under the profiles named by --profile
func profiled(cmd *cobra.Command, fn func() error) error {
	names, err := cmd.Flags().GetStringSlice("profile")
	if err != nil || len(names) == 0 {
		return fn()
	}
	types, err := profiling.ParseTypes(names)
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("profile-dir")

	pc := profiling.DefaultProfileConfig()
	pc.Types = types
	pc.OutputDir = dir
	files, err := profiling.Run(pc, logger.Get(), fn)
	for _, f := range files {
		fmt.Fprintln(cmd.ErrOrStderr(), "profile:", f)
	}
	return err
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/genobatch/internal/pipeline"
	"github.com/ajitpratap0/genobatch/pkg/errors"
	"github.com/ajitpratap0/genobatch/pkg/logger"
	"github.com/ajitpratap0/genobatch/pkg/sink"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "genobatch",
		Short: "Convert genomic files into Arrow record batches",
		Long: `genobatch reads FASTA, FASTQ, GTF and GFF3 files (plain, compressed or
BGZF with an index) and writes them as Arrow record batches to Arrow IPC,
Parquet, Avro, NDJSON or a PostgreSQL table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addGlobalFlags(root)

	root.AddCommand(
		newVersionCmd(),
		newFormatsCmd(),
		newFieldsCmd(),
		newSchemaCmd(),
		newAttrsCmd(),
		newHeadCmd(),
		newScanCmd(),
		newQueryCmd(),
		newIndexCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "genobatch v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List input and output formats",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Input formats:")
			for _, f := range pipeline.Formats() {
				fmt.Fprintf(out, "  - %s\n", f)
			}
			fmt.Fprintln(out, "\nOutput formats:")
			for _, f := range sink.Formats {
				fmt.Fprintf(out, "  - %s\n", f)
			}
		},
	}
}

func newFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields <format>",
		Short: "List the fixed columns of an input format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := pipeline.FieldNames(strings.ToLower(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
			return nil
		},
	}
}

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [input]",
		Short: "Print the Arrow schema of an input",
		Long: `Print the Arrow schema batches of the input would have. For GTF and GFF
inputs without declared attributes this runs the attribute inference pass.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			src, err := pipeline.OpenSource(cfg)
			if err != nil {
				return err
			}
			defer src.Close()
			schema, err := src.Schema(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), schema.String())
			return nil
		},
	}
	addInputFlags(cmd)
	return cmd
}

func newAttrsCmd() *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "attrs [input]",
		Short: "Infer attribute columns and print them as JSON",
		Long: `Scan the attributes of a GTF or GFF input and print the inferred
definitions as JSON. With --yaml the output is a config file fragment that
declares the same columns, so later runs can skip inference.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			cfg.Attributes = nil
			cfg.InferAttributes = true

			src, err := pipeline.OpenSource(cfg)
			if err != nil {
				return err
			}
			defer src.Close()
			as, ok := src.(pipeline.AttributeSource)
			if !ok {
				return errors.Newf(errors.ErrorTypeInvalidInput, "%s inputs have no attributes", src.Format())
			}
			defs, err := as.AttributeDefs(cmd.Context())
			if err != nil {
				return err
			}
			if asYAML {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(map[string]any{"attributes": defs.ToMap()}); err != nil {
					return err
				}
				return enc.Close()
			}
			data, err := json.MarshalIndent(defs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print a config file fragment instead of JSON")
	addInputFlags(cmd)
	return cmd
}

func newHeadCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "head [input]",
		Short: "Print the first records of an input as NDJSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			schema, recs, err := pipeline.Head(cmd.Context(), cfg, n)
			if err != nil {
				return err
			}
			w, err := sink.New(schema, cmd.OutOrStdout(), sink.Options{Format: sink.NDJSON})
			if err != nil {
				return err
			}
			for _, rec := range recs {
				if err == nil {
					err = w.Write(rec)
				}
				rec.Release()
			}
			if cerr := w.Close(); err == nil {
				err = cerr
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&n, "lines", "n", 10, "Number of records to print")
	addInputFlags(cmd)
	return cmd
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [input]",
		Short: "Build the indexes needed for region queries",
		Long: `Build the sidecar indexes for an input: a .fai for FASTA (plus a .gzi when
the file is bgzipped) or a .tbi for a sorted, bgzipped GTF or GFF3 file.
--index and --gzi override where they are written.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			var written []string
			err = profiled(cmd, func() error {
				written, err = pipeline.BuildIndex(cmd.Context(), cfg)
				return err
			})
			if err != nil {
				return err
			}
			for _, path := range written {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	addInputFlags(cmd)
	return cmd
}

package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Init installs a global tracer provider. Spans are written to w by the
// stdout exporter; a nil w writes to stderr so stdout stays free for batch
// output.
func Init(config TracingConfig, w io.Writer) error {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	if w == nil {
		w = os.Stderr
	}

	var opts []sdktrace.TracerProviderOption
	switch config.ExporterType {
	case "none":
	default:
		exporterOpts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
		if config.PrettyPrint {
			exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
		}
		exporter, err := stdouttrace.New(exporterOpts...)
		if err != nil {
			return fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		var batchOpts []sdktrace.BatchSpanProcessorOption
		if config.BatchTimeout > 0 {
			batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(config.BatchTimeout))
		}
		if config.MaxExportBatch > 0 {
			batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(config.MaxExportBatch))
		}
		if config.MaxQueueSize > 0 {
			batchOpts = append(batchOpts, sdktrace.WithMaxQueueSize(config.MaxQueueSize))
		}
		opts = append(opts, sdktrace.WithBatcher(exporter, batchOpts...))
	}

	// Configure sampling
	var sampler sdktrace.Sampler
	if config.SamplingRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else if config.SamplingRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(config.SamplingRate)
	}

	opts = append(opts, sdktrace.WithResource(res), sdktrace.WithSampler(sampler))
	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	mu.Lock()
	tracer = tp.Tracer(instrumentationName)
	meter = otel.Meter(instrumentationName)
	mu.Unlock()

	return nil
}

// DefaultTracingConfig returns a tracing configuration for the CLI
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:    "genobatch",
		ServiceVersion: "dev",
		Environment:    getEnv("GENOBATCH_ENVIRONMENT", "development"),
		SamplingRate:   1.0,
		ExporterType:   getEnv("GENOBATCH_TRACING_EXPORTER", "stdout"),
		BatchTimeout:   5 * time.Second,
		MaxExportBatch: 512,
		MaxQueueSize:   2048,
	}
}

// getEnv gets environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Shutdown flushes and stops the global tracer provider if Init installed one
func Shutdown(ctx context.Context) error {
	if tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); ok {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown tracer: %w", err)
		}
	}
	return nil
}

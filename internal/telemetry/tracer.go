package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DiscoveryTracerName is the name of the tracer used around repository discovery
const DiscoveryTracerName = "github.com/fontcatalog/font-sources/discovery"

// newTracerProvider pushes one span per discovered repository to the OTLP
// endpoint. Spans are batched; Shutdown at the end of the run flushes them.
// Without tracing or an endpoint the provider is a no-op.
func newTracerProvider(ctx context.Context, cfg *Config, res *resource.Resource) (trace.TracerProvider, error) {
	tc := cfg.Tracing
	if tc == nil || !tc.Enabled || cfg.Endpoint == "" {
		slog.Debug("Tracing disabled, using no-op tracer provider")
		return noop.NewTracerProvider(), nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(tc.GetSampling())),
	)
	otel.SetTracerProvider(tp)

	slog.Info("Tracing initialized",
		"endpoint", cfg.Endpoint,
		"sampling_ratio", tc.GetSampling(),
		"insecure", cfg.Insecure,
	)
	return tp, nil
}

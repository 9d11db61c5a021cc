package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Options configure trace export.
type Options struct {
	// Endpoint is an OTLP/HTTP collector as host:port or a full URL. Empty
	// disables tracing.
	Endpoint string

	ServiceName string
	Environment string

	// SampleRatio is the fraction of root traces kept, in [0, 1].
	SampleRatio float64
}

// Setup installs a global tracer provider exporting to opts.Endpoint and
// returns its shutdown func. With no endpoint it installs only the
// propagators and returns a no-op shutdown.
func Setup(ctx context.Context, opts Options) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	if opts.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	var endpoint otlptracehttp.Option
	if strings.Contains(opts.Endpoint, "://") {
		endpoint = otlptracehttp.WithEndpointURL(opts.Endpoint)
	} else {
		endpoint = otlptracehttp.WithEndpoint(opts.Endpoint)
	}
	exporterOpts := []otlptracehttp.Option{endpoint}
	if !strings.HasPrefix(opts.Endpoint, "https://") {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(opts.ServiceName),
		attribute.String("deployment.environment", opts.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	ratio := opts.SampleRatio
	if ratio < 0 || ratio > 1 {
		ratio = 1
	}
	tp := trace.NewTracerProvider(
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(ratio))),
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

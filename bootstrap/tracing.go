package bootstrap

import (
	"context"
	"fmt"

	"iochunt/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// ShutdownFunc flushes and stops a background component
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// InitTracing installs the global tracer provider exporting over OTLP gRPC.
// With tracing disabled the global no-op provider stays in place.
func InitTracing(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	if !cfg.Tracing.Enabled {
		sugar.Info("Tracing disabled by configuration")
		return noopShutdown, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Tracing.OTLPEndpoint)}
	if cfg.Tracing.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tp := newTracerProvider(exporter, cfg.Tracing.ServiceName, cfg.Tracing.SampleRatio)
	otel.SetTracerProvider(tp)

	sugar.Infow("Tracing initialized",
		"endpoint", cfg.Tracing.OTLPEndpoint,
		"service", cfg.Tracing.ServiceName,
		"sample_ratio", cfg.Tracing.SampleRatio)
	return tp.Shutdown, nil
}

func newTracerProvider(exporter sdktrace.SpanExporter, service string, ratio float64) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", service))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
}

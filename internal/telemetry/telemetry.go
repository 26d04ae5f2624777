// Package telemetry installs an OTLP/HTTP trace exporter when enabled
// and provides helpers that open one OpenTelemetry span per conversion
// and one child span per pipeline stage (chunk, parse, transform,
// serialize). No package in this module calls those span helpers; only
// Setup is called, by the serve command.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config mirrors gwconfig.TelemetryConfig without importing it, so
// telemetry stays usable from a bare CLI invocation that never loads a
// gateway config file.
type Config struct {
	Enabled        bool
	OTLPEndpoint   string
	ServiceName    string
	SampleFraction float64
}

// Shutdown flushes and stops the tracer provider installed by Setup.
type Shutdown func(ctx context.Context) error

// noopShutdown is returned when telemetry is disabled, so callers can
// always defer the returned Shutdown unconditionally.
func noopShutdown(context.Context) error { return nil }

// Setup installs a global tracer provider exporting spans over
// OTLP/HTTP to cfg.OTLPEndpoint. When cfg.Enabled is false it installs
// nothing and returns a no-op Shutdown.
func Setup(ctx context.Context, cfg Config) (Shutdown, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	opts := []otlptracehttp.Option{}
	if cfg.OTLPEndpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint), otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	fraction := cfg.SampleFraction
	if fraction <= 0 {
		fraction = 1.0
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(fraction))),
	)
	otel.SetTracerProvider(tp)

	slog.Default().Info("telemetry: tracer provider installed",
		"service_name", cfg.ServiceName, "otlp_endpoint", cfg.OTLPEndpoint, "sample_fraction", fraction)

	return tp.Shutdown, nil
}

// Tracer returns the named tracer from the globally installed provider.
// When telemetry was never set up, this is a no-op tracer whose spans
// carry zero overhead.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartConversion opens the top-level span for one conversion, tagged
// with the requested fmt/rev pair.
func StartConversion(ctx context.Context, fromFmt, fromRev, toFmt, toRev string) (context.Context, trace.Span) {
	ctx, span := Tracer("epcisconv").Start(ctx, "epcisconv.convert")
	span.SetAttributes(
		attribute.String("epcisconv.from_fmt", fromFmt),
		attribute.String("epcisconv.from_rev", fromRev),
		attribute.String("epcisconv.to_fmt", toFmt),
		attribute.String("epcisconv.to_rev", toRev),
	)
	return ctx, span
}

// StartStage opens a child span for one pipeline stage (e.g. "chunk",
// "parse", "transform", "serialize") under the span already in ctx.
func StartStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return Tracer("epcisconv").Start(ctx, "epcisconv."+stage)
}

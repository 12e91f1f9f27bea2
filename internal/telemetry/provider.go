// Package telemetry wires OpenTelemetry tracing for feedcache binaries.
package telemetry

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Options controls trace export. The zero value exports nothing.
type Options struct {
	Enabled     bool    `env:"FEEDCACHE_OTEL_ENABLED" envDefault:"true"`
	Endpoint    string  `env:"FEEDCACHE_OTEL_ENDPOINT"`
	SampleRatio float64 `env:"FEEDCACHE_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// OptionsFromEnv reads Options from FEEDCACHE_OTEL_* variables.
func OptionsFromEnv() (Options, error) {
	var o Options
	if err := env.Parse(&o); err != nil {
		return Options{}, fmt.Errorf("telemetry: parse env: %w", err)
	}
	return o, nil
}

// Active reports whether Setup would register a provider.
func (o Options) Active() bool {
	return o.Enabled && o.Endpoint != ""
}

// Setup initialises OpenTelemetry tracing for the given service from the
// environment.
//
// Tracing is opt-in: when FEEDCACHE_OTEL_ENDPOINT is empty or
// FEEDCACHE_OTEL_ENABLED is false, Setup returns a no-op shutdown function
// and no global provider is registered.
//
// The returned shutdown function flushes pending spans and should be deferred
// by the caller.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	opts, err := OptionsFromEnv()
	if err != nil {
		return noop, err
	}
	return SetupWith(ctx, serviceName, opts)
}

// SetupWith is Setup with explicit options.
func SetupWith(ctx context.Context, serviceName string, opts Options) (func(context.Context) error, error) {
	if !opts.Active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(opts.Endpoint),
	)
	if err != nil {
		return noop, fmt.Errorf("telemetry: exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("telemetry: resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(opts.SampleRatio)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func noop(context.Context) error { return nil }

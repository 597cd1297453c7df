// Package telemetry configures OpenTelemetry tracing for the daemon.
//
// Traces are exported over OTLP/gRPC to a collector. When tracing is
// disabled (the default) Init installs nothing and returns a no-op
// shutdown so the daemon runs without a collector.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config controls trace export.
type Config struct {
	// Enabled turns on span export. When false Init is a no-op.
	Enabled bool `koanf:"enabled"`

	// Endpoint is the OTLP/gRPC collector address (host:port).
	Endpoint string `koanf:"endpoint"`

	// Insecure disables TLS on the exporter connection.
	Insecure bool `koanf:"insecure"`

	// ServiceName identifies this process in exported spans.
	ServiceName string `koanf:"service_name"`

	// ServiceVersion is attached as a resource attribute.
	ServiceVersion string `koanf:"service_version"`
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
	if c.ServiceName == "" {
		c.ServiceName = "indexd"
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Enabled && c.Endpoint == "" {
		return errors.New("endpoint is required when enabled")
	}
	return nil
}

// Init installs the global tracer provider and returns a shutdown
// function that flushes pending spans. The returned function is always
// safe to call, including when tracing is disabled.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res := newResource(cfg)

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Shutdown, nil
}

// newResource builds a standalone resource so the schema URL never
// conflicts with resource.Default()'s semconv version.
func newResource(cfg Config) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)
}

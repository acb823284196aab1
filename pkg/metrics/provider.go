// Package metrics exports squad counters through OpenTelemetry.
package metrics

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Config holds metrics configuration
type Config struct {
	Enabled     bool
	ServiceName string
	Interval    time.Duration
	Writer      io.Writer // Destination of the periodic export (required when enabled)
}

// Provider owns the meter provider. A disabled provider hands out no-op meters.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
}

// New creates a provider that exports to cfg.Writer every cfg.Interval.
func New(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}
	if cfg.Writer == nil {
		return nil, fmt.Errorf("metrics enabled but no writer configured")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}

	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(cfg.Writer),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	return NewWithReader(cfg.ServiceName, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))), nil
}

// NewWithReader creates an enabled provider around an existing reader.
func NewWithReader(serviceName string, reader sdkmetric.Reader) *Provider {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	return &Provider{
		meterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		),
	}
}

// Meter returns a meter with the given name for creating metrics.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meterProvider == nil {
		return noop.Meter{}
	}
	return p.meterProvider.Meter(name)
}

// Shutdown flushes and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}

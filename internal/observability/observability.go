// Package observability provides OpenTelemetry-based metrics and tracing
// for the leaderboard service. It sets up TracerProvider and MeterProvider with
// configurable exporters (stdout, OTLP for tracing; Prometheus for metrics)
// and decorators that instrument storage backends and rate limiters.
package observability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leaderboard/internal/models"
	"leaderboard/internal/version"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Options groups everything Setup needs.
type Options struct {
	Metrics       models.MetricsConfig
	Observability models.ObservabilityConfig
	Version       version.Info
	Environment   string // deployment.environment; "development" when empty
}

// Provider owns the tracer and meter providers and the Prometheus registry
// the meter provider exports to.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	registry       *promclient.Registry
}

// Registry returns the Prometheus registry, or nil when metrics are disabled.
func (p *Provider) Registry() *promclient.Registry {
	return p.registry
}

// MetricsEnabled reports whether a meter provider and registry were installed.
// It is false for a nil Provider.
func (p *Provider) MetricsEnabled() bool {
	return p != nil && p.meterProvider != nil && p.registry != nil
}

// TracingEnabled reports whether a tracer provider was installed.
func (p *Provider) TracingEnabled() bool {
	return p != nil && p.tracerProvider != nil
}

// Shutdown flushes and stops both providers. It is safe on a zero Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error

	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Setup installs global OpenTelemetry providers according to opts. The
// returned Provider must be shut down on exit.
func Setup(opts Options) (*Provider, error) {
	res, err := newResource(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &Provider{}

	if opts.Observability.Tracing.Enabled {
		tp, err := newTracerProvider(res, opts.Observability.Tracing)
		if err != nil {
			return nil, fmt.Errorf("failed to setup tracing: %w", err)
		}
		p.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	if opts.Metrics.Enabled {
		mp, registry, err := newMeterProvider(res)
		if err != nil {
			// Tracing may already be running.
			_ = p.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to setup metrics: %w", err)
		}
		p.meterProvider = mp
		p.registry = registry
		otel.SetMeterProvider(mp)
	}

	return p, nil
}

func newResource(opts Options) (*resource.Resource, error) {
	env := opts.Environment
	if env == "" {
		env = "development"
	}

	serviceName := opts.Observability.ServiceName
	if serviceName == "" {
		serviceName = "leaderboard"
	}

	ver := opts.Version
	return resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ver.DisplayVersion()),
			attribute.String("service.instance.id", ver.InstanceID),
			attribute.String("host.name", ver.Hostname),
			attribute.String("git.commit", ver.GitCommit),
			attribute.String("build.date", ver.BuildDate),
			attribute.String("deployment.environment", env),
		),
	)
}

// newMeterProvider exports OpenTelemetry metrics into a private Prometheus
// registry together with the Go runtime and process collectors.
func newMeterProvider(res *resource.Resource) (*sdkmetric.MeterProvider, *promclient.Registry, error) {
	registry := promclient.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	return mp, registry, nil
}

func newTracerProvider(res *resource.Resource, cfg models.TracingConfig) (*sdktrace.TracerProvider, error) {
	exporter, err := newSpanExporter(cfg)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(newSampler(cfg.SampleRate)),
	), nil
}

func newSpanExporter(cfg models.TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, nil
	case "otlp":
		// A scheme selects TLS from the URL; a bare host:port is plaintext.
		var opt otlptracegrpc.Option
		if strings.Contains(cfg.OTLPEndpoint, "://") {
			opt = otlptracegrpc.WithEndpointURL(cfg.OTLPEndpoint)
		} else {
			opt = otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)
		}
		options := []otlptracegrpc.Option{opt}
		if !strings.HasPrefix(cfg.OTLPEndpoint, "https://") {
			options = append(options, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(context.Background(), options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
}

// newSampler maps a rate in [0, 1] onto a parent-based sampler so an
// upstream sampling decision carried in traceparent is honored.
func newSampler(rate float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case rate >= 1.0:
		root = sdktrace.AlwaysSample()
	case rate <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(root)
}

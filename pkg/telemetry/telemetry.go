// Package telemetry provides OpenTelemetry tracing and metrics for the
// engine: OTLP export, spans around account entry points, and counters for
// the intent lifecycle. Disabled providers are no-ops, so library code can
// record unconditionally.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // e.g. "localhost:4317"
	SampleRate     float64
	BatchTimeout   time.Duration
	Enabled        bool
	Insecure       bool
}

// DefaultConfig returns local-development defaults with export disabled.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "covenant",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        false,
	}
}

// Provider manages the trace and metric providers plus the engine's
// lifecycle counters.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	intentsCreated   metric.Int64Counter
	intentsExecuted  metric.Int64Counter
	actionsProcessed metric.Int64Counter
	intentsRemoved   metric.Int64Counter
}

// New creates a provider. With Enabled false every method is a no-op.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "telemetry"),
	}
	if !config.Enabled {
		p.logger.InfoContext(ctx, "telemetry disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	if err := p.initTraceProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init trace provider: %w", err)
	}
	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to init metric provider: %w", err)
	}

	p.tracer = otel.Tracer("covenant", trace.WithInstrumentationVersion(config.ServiceVersion))
	p.meter = otel.Meter("covenant")
	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}
	return p, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return err
	}
	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(p.config.SampleRate)),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.config.BatchTimeout)),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return err
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initInstruments() error {
	var err error
	if p.intentsCreated, err = p.meter.Int64Counter("covenant.intents.created",
		metric.WithDescription("Intents created")); err != nil {
		return err
	}
	if p.intentsExecuted, err = p.meter.Int64Counter("covenant.intents.executed",
		metric.WithDescription("Intent executions started")); err != nil {
		return err
	}
	if p.actionsProcessed, err = p.meter.Int64Counter("covenant.actions.processed",
		metric.WithDescription("Actions processed")); err != nil {
		return err
	}
	if p.intentsRemoved, err = p.meter.Int64Counter("covenant.intents.removed",
		metric.WithDescription("Intents destroyed or expired")); err != nil {
		return err
	}
	return nil
}

// StartSpan starts a span when telemetry is enabled.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if p.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// IntentCreated implements account.Recorder.
func (p *Provider) IntentCreated(role string) {
	if p.intentsCreated == nil {
		return
	}
	p.intentsCreated.Add(context.Background(), 1, metric.WithAttributes(attribute.String("role", role)))
}

// IntentExecuted implements account.Recorder.
func (p *Provider) IntentExecuted(key string) {
	if p.intentsExecuted == nil {
		return
	}
	p.intentsExecuted.Add(context.Background(), 1)
}

// ActionProcessed implements account.Recorder.
func (p *Provider) ActionProcessed(key string) {
	if p.actionsProcessed == nil {
		return
	}
	p.actionsProcessed.Add(context.Background(), 1)
}

// IntentRemoved implements account.Recorder.
func (p *Provider) IntentRemoved(key string, expired bool) {
	if p.intentsRemoved == nil {
		return
	}
	p.intentsRemoved.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("expired", expired)))
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown: %v", errs)
	}
	return nil
}

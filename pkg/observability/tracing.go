// Package observability wires OpenTelemetry tracing for the sheets
// connector.
//
// Spans are started through a ConnectorTracer so every connector operation
// is named "<connector>.<operation>" and carries the same attributes. Until
// Init is called the global no-op provider is in effect and spans cost
// nothing.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/nebula-sheets"

var (
	providerMu sync.Mutex
	provider   *sdktrace.TracerProvider
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
	ExporterType   string // "stdout" or "none"
	Output         io.Writer
	BatchTimeout   time.Duration
}

// DefaultTracingConfig samples everything and exports to stderr.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:    "sheetscan",
		ServiceVersion: "dev",
		Environment:    getEnv("SHEETSCAN_ENV", "development"),
		SamplingRate:   1.0,
		ExporterType:   "stdout",
		Output:         os.Stderr,
		BatchTimeout:   time.Second,
	}
}

// Init installs a global tracer provider. Calling it again replaces the
// previous provider after shutting it down.
func Init(ctx context.Context, config TracingConfig) error {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(config.SamplingRate)),
	}

	switch config.ExporterType {
	case "none":
	case "stdout", "":
		out := config.Output
		if out == nil {
			out = os.Stderr
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
		if err != nil {
			return fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(config.BatchTimeout)))
	default:
		return fmt.Errorf("unknown trace exporter %q", config.ExporterType)
	}

	tp := sdktrace.NewTracerProvider(opts...)

	providerMu.Lock()
	previous := provider
	provider = tp
	providerMu.Unlock()

	if previous != nil {
		_ = previous.Shutdown(ctx)
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

// Shutdown flushes and stops the provider installed by Init.
func Shutdown(ctx context.Context) error {
	providerMu.Lock()
	tp := provider
	provider = nil
	providerMu.Unlock()

	if tp == nil {
		return nil
	}
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer: %w", err)
	}
	return nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Span wraps a trace.Span and batches attributes until End.
type Span struct {
	span       trace.Span
	attributes []attribute.KeyValue
}

// SetAttribute records an attribute to be flushed on End.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// End records err, if any, and ends the span.
func (s *Span) End(err error) {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// ConnectorTracer provides connector-specific tracing utilities
type ConnectorTracer struct {
	connectorName string
}

// NewConnectorTracer creates a new connector tracer
func NewConnectorTracer(connectorName string) *ConnectorTracer {
	return &ConnectorTracer{connectorName: connectorName}
}

// StartSpan starts a span named "<connector>.<operation>". The tracer is
// looked up on every call so a provider installed later is honored.
func (ct *ConnectorTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, ct.connectorName+"."+operation)
	s := &Span{span: span}
	s.SetAttribute("connector.name", ct.connectorName)
	s.SetAttribute("connector.operation", operation)
	return ctx, s
}

// Trace runs fn inside a span and ends it with fn's error.
func (ct *ConnectorTracer) Trace(ctx context.Context, operation string, fn func(ctx context.Context, span *Span) error) error {
	ctx, span := ct.StartSpan(ctx, operation)
	err := fn(ctx, span)
	span.End(err)
	return err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestConnectorTracerNamesSpans(t *testing.T) {
	recorder := withRecorder(t)
	tracer := NewConnectorTracer("sheets")

	err := tracer.Trace(context.Background(), "fetch", func(ctx context.Context, span *Span) error {
		span.SetAttribute("http.attempts", 2)
		return nil
	})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "sheets.fetch", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	attrs := map[string]interface{}{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "sheets", attrs["connector.name"])
	assert.Equal(t, "fetch", attrs["connector.operation"])
	assert.EqualValues(t, 2, attrs["http.attempts"])
}

func TestTraceRecordsError(t *testing.T) {
	recorder := withRecorder(t)
	boom := errors.New("boom")

	err := NewConnectorTracer("sheets").Trace(context.Background(), "parse",
		func(context.Context, *Span) error { return boom })

	assert.ErrorIs(t, err, boom)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestNestedSpansShareTrace(t *testing.T) {
	recorder := withRecorder(t)
	tracer := NewConnectorTracer("sheets")

	ctx, parent := tracer.StartSpan(context.Background(), "begin_scan")
	_, child := tracer.StartSpan(ctx, "fetch")
	child.End(nil)
	parent.End(nil)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestInitStdoutExporter(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	var buf bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Output = &buf

	require.NoError(t, Init(context.Background(), cfg))
	_, span := NewConnectorTracer("sheets").StartSpan(context.Background(), "acquire_token")
	span.End(nil)
	require.NoError(t, Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "sheets.acquire_token")
	assert.NoError(t, Shutdown(context.Background()))
}

func TestInitRejectsUnknownExporter(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.ExporterType = "jaeger"
	assert.Error(t, Init(context.Background(), cfg))
}

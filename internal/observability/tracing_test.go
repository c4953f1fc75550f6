package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans installs an in-memory span recorder as the global provider for
// the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func attr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.ServiceName != "qre" {
		t.Fatalf("expected service name 'qre', got %s", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Fatalf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
}

func TestInitTracing_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracing(ctx, &TracingConfig{ServiceName: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp.Tracer() == nil {
		t.Fatal("expected non-nil tracer")
	}
	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInitTracing_NilConfig(t *testing.T) {
	tp, err := InitTracing(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil {
		t.Fatal("expected non-nil tracer provider")
	}
}

func TestEstimateSpanAttributes(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartEstimateSpan(context.Background(), "qubit_maj_ns_e6", "surface_code")
	_, stage := StartStageSpan(ctx, "layout")
	stage.End()
	RecordEstimateResult(span, 3420, 900000, 3, 8)
	span.End()

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "stage.layout" {
		t.Errorf("first ended span = %q, want stage.layout", spans[0].Name())
	}
	if spans[0].Parent().SpanID() != spans[1].SpanContext().SpanID() {
		t.Error("stage span is not a child of the estimate span")
	}
	if v, ok := attr(spans[1].Attributes(), "qre.physical_qubits"); !ok || v.AsInt64() != 3420 {
		t.Errorf("qre.physical_qubits = %v, %v", v, ok)
	}
	if v, ok := attr(spans[1].Attributes(), "qre.qubit"); !ok || v.AsString() != "qubit_maj_ns_e6" {
		t.Errorf("qre.qubit = %v, %v", v, ok)
	}
}

func TestRecordBatchResult(t *testing.T) {
	rec := recordSpans(t)

	_, ok := StartBatchSpan(context.Background(), 3)
	RecordBatchResult(ok, 3, 0, 20*time.Millisecond)
	ok.End()

	_, failed := StartBatchSpan(context.Background(), 3)
	RecordBatchResult(failed, 2, 1, 20*time.Millisecond)
	failed.End()

	spans := rec.Ended()
	if spans[0].Status().Code == codes.Error {
		t.Error("successful batch marked as error")
	}
	if spans[1].Status().Code != codes.Error {
		t.Error("batch with failures not marked as error")
	}
}

func TestStartCompileSpan(t *testing.T) {
	rec := recordSpans(t)
	_, span := StartCompileSpan(context.Background(), "trace", "algo.trace")
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Name() != "compile.trace" {
		t.Fatalf("unexpected spans: %v", spans)
	}
	if v, ok := attr(spans[0].Attributes(), "qre.span.kind"); !ok || v.AsString() != SpanKindCompile {
		t.Errorf("qre.span.kind = %v, %v", v, ok)
	}
	if v, ok := attr(spans[0].Attributes(), "qre.source"); !ok || v.AsString() != "algo.trace" {
		t.Errorf("qre.source = %v, %v", v, ok)
	}
}

func TestRatioSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		if got := ratioSampler(tt.rate).Description(); got != tt.want {
			t.Errorf("ratioSampler(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}

func TestServiceResource(t *testing.T) {
	res, err := serviceResource(&TracingConfig{ServiceName: "qre-worker"})
	if err != nil {
		t.Fatalf("serviceResource: %v", err)
	}
	if v, ok := res.Set().Value("service.name"); !ok || v.AsString() != "qre-worker" {
		t.Errorf("service.name = %v, %v", v, ok)
	}
	if _, ok := res.Set().Value("service.version"); ok {
		t.Error("empty version should be left out")
	}
}

func TestRecordError(t *testing.T) {
	rec := recordSpans(t)
	_, span := StartStageSpan(context.Background(), "tfactory")

	RecordError(span, nil)
	RecordError(span, errors.New("no factory"))
	span.End()

	s := rec.Ended()[0]
	if s.Status().Code != codes.Error || s.Status().Description != "no factory" {
		t.Errorf("status = %+v", s.Status())
	}
	if len(s.Events()) != 1 {
		t.Errorf("expected one error event, got %d", len(s.Events()))
	}
}

func TestTracerName(t *testing.T) {
	if TracerName != "github.com/efebarandurmaz/qre" {
		t.Fatalf("unexpected tracer name: %s", TracerName)
	}
}

func TestTracerProvider_Shutdown_NilProvider(t *testing.T) {
	tp := &TracerProvider{}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected nil error for nil provider, got: %v", err)
	}
}

// Package observability provides logging, tracing, metrics and audit logging
// for the estimator and its adapters.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name of the estimator tracer.
const TracerName = "github.com/efebarandurmaz/qre"

// TracingConfig says where a process exports its spans. An empty
// OTLPEndpoint turns export off; spans are then created against the global
// provider, which is a no-op unless someone installed one.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// OTLPEndpoint is a host:port of an OTLP gRPC collector.
	OTLPEndpoint string
	// Insecure disables TLS towards the collector.
	Insecure bool

	// SampleRate is the fraction of root spans kept. Values at or above 1
	// keep all of them, values at or below 0 keep none.
	SampleRate float64
}

// DefaultTracingConfig returns the configuration used when none is given.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "qre",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider owns the SDK provider installed by InitTracing, if any.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing installs a global tracer provider exporting to
// cfg.OTLPEndpoint. Without an endpoint nothing is installed and the
// returned provider only hands out the global tracer.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}
	res, err := serviceResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(ratioSampler(cfg.SampleRate))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{provider: provider, tracer: provider.Tracer(TracerName)}, nil
}

func newExporter(ctx context.Context, cfg *TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func serviceResource(cfg *TracingConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

func ratioSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes pending spans. It is a no-op when export was off.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Values of the qre.span.kind attribute.
const (
	SpanKindEstimate = "estimate"
	SpanKindStage    = "stage"
	SpanKindBatch    = "batch"
	SpanKindCompile  = "compile"
)

// startSpan starts an internal span tagged with its qre.span.kind.
func startSpan(ctx context.Context, name, kind string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{attribute.String("qre.span.kind", kind)}, attrs...)
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...))
}

// StartEstimateSpan starts the root span of one estimation.
func StartEstimateSpan(ctx context.Context, qubit, scheme string) (context.Context, trace.Span) {
	return startSpan(ctx, "estimate", SpanKindEstimate,
		attribute.String("qre.qubit", qubit),
		attribute.String("qre.qec_scheme", scheme))
}

// RecordEstimateResult records the headline numbers of an estimate.
func RecordEstimateResult(span trace.Span, physicalQubits, runtimeNs uint64, codeDistance int, numTFactories uint64) {
	span.SetAttributes(
		attribute.Int64("qre.physical_qubits", int64(physicalQubits)),
		attribute.Int64("qre.runtime_ns", int64(runtimeNs)),
		attribute.Int("qre.code_distance", codeDistance),
		attribute.Int64("qre.num_tfactories", int64(numTFactories)),
	)
}

// StartStageSpan starts a span named stage.<stage>.
func StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return startSpan(ctx, "stage."+stage, SpanKindStage, attribute.String("qre.stage", stage))
}

func StartBatchSpan(ctx context.Context, jobCount int) (context.Context, trace.Span) {
	return startSpan(ctx, "batch", SpanKindBatch, attribute.Int("qre.batch.job_count", jobCount))
}

// RecordBatchResult records job tallies and marks the span failed when any
// job failed.
func RecordBatchResult(span trace.Span, succeeded, failed int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("qre.batch.succeeded", succeeded),
		attribute.Int("qre.batch.failed", failed),
		attribute.Int64("qre.batch.duration_ms", duration.Milliseconds()),
	)
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d jobs failed", failed, succeeded+failed))
	}
}

// StartCompileSpan starts a span named compile.<compiler> for turning
// source into logical counts.
func StartCompileSpan(ctx context.Context, compiler, source string) (context.Context, trace.Span) {
	return startSpan(ctx, "compile."+compiler, SpanKindCompile,
		attribute.String("qre.compiler", compiler),
		attribute.String("qre.source", source))
}

// RecordError marks span failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

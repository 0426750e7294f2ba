// Package tracing provides distributed tracing support using OpenTelemetry.
package tracing

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
}

// Global tracer
var globalTracer trace.Tracer

// InitOTel initializes OpenTelemetry with the given configuration.
// Returns a shutdown function that should be called on application exit.
func InitOTel(cfg OTelConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		// Return no-op shutdown
		return func(context.Context) error { return nil }, nil
	}

	// Create stdout exporter for now (can be replaced with OTLP exporter)
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}

	// Create resource with service information
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	// Create tracer provider
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	// Set global tracer provider
	otel.SetTracerProvider(tp)

	// Create global tracer
	globalTracer = tp.Tracer(cfg.ServiceName)

	// Return shutdown function
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

// GetTracer returns the global tracer
func GetTracer() trace.Tracer {
	if globalTracer == nil {
		// Return no-op tracer if not initialized
		return otel.Tracer("noop")
	}
	return globalTracer
}

// SpanKind represents the role of a span
type SpanKind string

// Span kinds for categorizing trace spans
const (
	SpanKindTool      SpanKind = "tool"
	SpanKindAPI       SpanKind = "api"
	SpanKindBootstrap SpanKind = "bootstrap"
)

// ToolSpan starts a new span for a tool execution
func ToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "mcp.tool."+toolName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("mcp.tool.name", toolName),
			attribute.String("mcp.span.kind", string(SpanKindTool)),
		),
	)
}

// APISpan starts a new span for an API call
func APISpan(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "mcp.api."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", path),
			attribute.String("mcp.span.kind", string(SpanKindAPI)),
		),
	)
}

// BootstrapSpan starts a span for one startup step (probe, client creation)
func BootstrapSpan(ctx context.Context, step string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "mcp.bootstrap."+step,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("mcp.span.kind", string(SpanKindBootstrap)),
		),
	)
}

// SetShaping records how the tool response was shaped
func SetShaping(span trace.Span, level string, original, optimized, limit int) {
	span.SetAttributes(
		attribute.String("mcp.shaping.level", level),
		attribute.Int("mcp.shaping.tokens_original", original),
		attribute.Int("mcp.shaping.tokens_optimized", optimized),
		attribute.Int("mcp.shaping.token_limit", limit),
	)
}

// AddToolAttributes adds common tool attributes to a span
func AddToolAttributes(span trace.Span, attrs map[string]interface{}) {
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String("mcp.tool.arg."+k, val))
		case int:
			span.SetAttributes(attribute.Int("mcp.tool.arg."+k, val))
		case int64:
			span.SetAttributes(attribute.Int64("mcp.tool.arg."+k, val))
		case float64:
			span.SetAttributes(attribute.Float64("mcp.tool.arg."+k, val))
		case bool:
			span.SetAttributes(attribute.Bool("mcp.tool.arg."+k, val))
		}
	}
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("error", true))
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetAttributes(attribute.Bool("mcp.success", true))
}

// TraceInfo carries the IDs of the active span for audit entries and
// request correlation
type TraceInfo struct {
	TraceID string
	SpanID  string
}

// OpaqueIDHeader is the header Elasticsearch copies into its task list and
// slow logs, letting a cluster-side entry be matched to a tool call.
const OpaqueIDHeader = "X-Opaque-Id"

// FromContext extracts trace information from the active span. Both IDs are
// empty when tracing is disabled.
func FromContext(ctx context.Context) *TraceInfo {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return &TraceInfo{}
	}
	return &TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

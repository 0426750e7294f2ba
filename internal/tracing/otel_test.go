package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitOTel_Disabled(t *testing.T) {
	shutdown, err := InitOTel(OTelConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestFromContext_NoSpan(t *testing.T) {
	info := FromContext(context.Background())
	assert.Empty(t, info.TraceID)
	assert.Empty(t, info.SpanID)
}

func TestToolSpan_Attributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	globalTracer = tp.Tracer("test")
	t.Cleanup(func() { globalTracer = nil })

	ctx, span := ToolSpan(context.Background(), "list_indices")
	info := FromContext(ctx)
	assert.Len(t, info.TraceID, 32)
	assert.Len(t, info.SpanID, 16)

	SetShaping(span, "compact", 9000, 1200, 4000)
	RecordError(span, errors.New("boom"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "mcp.tool.list_indices", ended[0].Name())

	attrs := map[string]interface{}{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "compact", attrs["mcp.shaping.level"])
	assert.Equal(t, int64(1200), attrs["mcp.shaping.tokens_optimized"])
	assert.Equal(t, true, attrs["error"])
}

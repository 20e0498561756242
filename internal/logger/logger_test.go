package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestTraceContextHandlerAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.With("component", "test").InfoContext(ctx, "hello")

	rec := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", rec["span_id"])
	assert.Equal(t, "test", rec["component"])
}

func TestTraceContextHandlerWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info").InfoContext(context.Background(), "hello")

	rec := decode(t, &buf)
	assert.NotContains(t, rec, "trace_id")
	assert.Equal(t, "hello", rec["msg"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))

	var buf bytes.Buffer
	New(&buf, "warn").Info("dropped")
	assert.Zero(t, buf.Len())
}

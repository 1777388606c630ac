package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"school-directory/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestJSONScrubsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOptions(logger.Options{JSON: true, Level: slog.LevelInfo, Output: &buf})

	log.Info("otp sent", "email", "jane.doe@school.edu", "code", "123456", "token", "eyJhbGciOi")

	entry := decode(t, &buf)
	assert.Equal(t, "j***@school.edu", entry["email"])
	assert.Equal(t, "[REDACTED]", entry["code"])
	assert.Equal(t, "[REDACTED]", entry["token"])
	assert.Equal(t, "otp sent", entry["msg"])
}

func TestTraceContext(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOptions(logger.Options{JSON: true, Output: &buf})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	log.InfoContext(ctx, "school added")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOptions(logger.Options{Output: &buf})

	log.Error("failed to upload image", "password", "hunter2")

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "failed to upload image")
	assert.NotContains(t, out, "hunter2")
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a***@b.io", logger.MaskEmail("alice@b.io"))
	assert.Equal(t, "[REDACTED]", logger.MaskEmail("not-an-email"))
	assert.Equal(t, "[REDACTED]", logger.MaskEmail("@nolocal.io"))
}

package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEnsureHTTPRequestMeta_KeepsCallerIDs(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	req.Header.Set(RequestIDHeader, " req-from-client ")
	req.Header.Set(UserIDHeader, "alice")

	req, meta := EnsureHTTPRequestMeta(req)
	assert.Equal(t, "req-from-client", meta.RequestID)
	assert.Equal(t, "alice", meta.UserID)

	stored, ok := RequestMetaFromContext(req.Context())
	require.True(t, ok)
	assert.Equal(t, meta, stored)
}

func TestEnsureHTTPRequestMeta_GeneratesID(t *testing.T) {
	_, meta := EnsureHTTPRequestMeta(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, meta.RequestID)
	assert.Empty(t, meta.UserID)
}

func TestEnsureHTTPRequestMeta_CopiesSpan(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("0123456789abcdef")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	_, meta := EnsureHTTPRequestMeta(req)
	assert.Equal(t, traceID.String(), meta.TraceID)
	assert.Equal(t, spanID.String(), meta.SpanID)
}

func TestRequestMetaFields(t *testing.T) {
	fields := RequestMeta{RequestID: "req-1", UserID: "u1", SpanID: "span-1"}.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, FieldRequestID, fields[0].Key)
	assert.Equal(t, FieldUserID, fields[1].Key)
	assert.Equal(t, FieldSpanID, fields[2].Key)
}

func TestLoggerWithRequest(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	LoggerWithRequest(context.Background(), base).Info("bare")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-9")
	req, _ = EnsureHTTPRequestMeta(req)
	LoggerWithRequest(req.Context(), base).Info("scoped")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].Context)
	assert.Equal(t, "req-9", entries[1].ContextMap()[FieldRequestID])
}

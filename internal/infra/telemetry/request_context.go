package telemetry

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Headers read from and echoed to API callers.
const (
	RequestIDHeader = "X-Request-Id"
	UserIDHeader    = "X-User-Id"
)

// FieldUserID tags log lines with the acting user.
const FieldUserID = "user_id"

type requestMetaKey struct{}

// RequestMeta identifies one API request in logs.
type RequestMeta struct {
	RequestID string
	UserID    string
	TraceID   string
	SpanID    string
}

// NewRequestID returns a fresh random identifier.
func NewRequestID() string {
	return uuid.NewString()
}

// RequestMetaFromContext returns the metadata attached by EnsureHTTPRequestMeta.
func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	if ctx == nil {
		return RequestMeta{}, false
	}
	meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta, ok
}

// EnsureHTTPRequestMeta attaches request metadata to r. A caller-supplied
// request id is kept, otherwise one is generated.
func EnsureHTTPRequestMeta(r *http.Request) (*http.Request, RequestMeta) {
	ctx := r.Context()
	meta := RequestMeta{
		RequestID: strings.TrimSpace(r.Header.Get(RequestIDHeader)),
		UserID:    strings.TrimSpace(r.Header.Get(UserIDHeader)),
	}
	if meta.RequestID == "" {
		meta.RequestID = NewRequestID()
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		meta.TraceID = spanCtx.TraceID().String()
		meta.SpanID = spanCtx.SpanID().String()
	}
	return r.WithContext(context.WithValue(ctx, requestMetaKey{}, meta)), meta
}

// Fields renders the non-empty parts of meta as log fields.
func (m RequestMeta) Fields() []zap.Field {
	fields := make([]zap.Field, 0, 4)
	if m.RequestID != "" {
		fields = append(fields, RequestIDField(m.RequestID))
	}
	if m.UserID != "" {
		fields = append(fields, zap.String(FieldUserID, m.UserID))
	}
	if m.TraceID != "" {
		fields = append(fields, TraceIDField(m.TraceID))
	}
	if m.SpanID != "" {
		fields = append(fields, SpanIDField(m.SpanID))
	}
	return fields
}

// LoggerWithRequest scopes base to the request carried by ctx.
func LoggerWithRequest(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	meta, ok := RequestMetaFromContext(ctx)
	if !ok {
		return base
	}
	return base.With(meta.Fields()...)
}

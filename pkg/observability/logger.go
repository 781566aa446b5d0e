// Package observability provides the structured, per-request-context
// logger and the bespoke counter/gauge/histogram metrics and health
// checker used across the HTTP surface.
package observability

import (
	"context"
	"log/slog"
	"os"
)

type logContextKey struct{}

// RequestContext carries the per-request fields attached to every log
// line emitted while handling a request, mirroring the
// request-id-in-context pattern extended with route/client/role.
type RequestContext struct {
	RequestID string
	Method    string
	Path      string
	Client    string
	Role      string
}

// attrs projects the context into slog attributes.
func (c RequestContext) attrs() []any {
	return []any{
		"request_id", c.RequestID,
		"method", c.Method,
		"path", c.Path,
		"client", c.Client,
		"role", c.Role,
	}
}

// WithRequestContext attaches rc to ctx.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, logContextKey{}, rc)
}

// RequestContextFrom retrieves the RequestContext attached to ctx, if any.
func RequestContextFrom(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(logContextKey{}).(RequestContext)
	return rc, ok
}

// NewLogger builds the process logger. jsonLogs selects a JSON handler
// (default) over a human-readable text handler; level is the minimum
// severity emitted.
func NewLogger(jsonLogs bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if jsonLogs {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// FromContext returns a logger enriched with the request context
// attached to ctx, falling back to base when no request context is
// present (e.g. background work outside an HTTP request).
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	rc, ok := RequestContextFrom(ctx)
	if !ok {
		return base
	}
	return base.With(rc.attrs()...)
}

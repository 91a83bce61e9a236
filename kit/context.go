package kit

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	TransportKey  contextKey = "kit_transport" // "http", "mcp", "connectivity"
	TraceIDKey    contextKey = "kit_trace_id"
	RemoteAddrKey contextKey = "kit_remote_addr"
	CallerKey     contextKey = "kit_caller" // chat user that issued the command, when the bot forwards it
)

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, RemoteAddrKey, addr)
}
func GetRemoteAddr(ctx context.Context) string {
	v, _ := ctx.Value(RemoteAddrKey).(string)
	return v
}

func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}
func GetCaller(ctx context.Context) string {
	v, _ := ctx.Value(CallerKey).(string)
	return v
}

// LogAttrs returns the request-scoped attributes carried by ctx, suitable
// for logger.With. Empty values are skipped.
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	if v := GetTraceID(ctx); v != "" {
		attrs = append(attrs, "trace_id", v)
	}
	if v := GetCaller(ctx); v != "" {
		attrs = append(attrs, "caller", v)
	}
	if v := GetRemoteAddr(ctx); v != "" {
		attrs = append(attrs, "remote_addr", v)
	}
	attrs = append(attrs, "transport", GetTransport(ctx))
	return attrs
}

// Logger returns base enriched with LogAttrs(ctx).
func Logger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With(LogAttrs(ctx)...)
}

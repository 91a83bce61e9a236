// Package shield provides the HTTP middleware stack of the tvremote control
// API: security headers, body limits, request tracing, API-key auth and
// per-IP rate limiting.
//
//	r := chi.NewRouter()
//	stack, rl := shield.DefaultAPIStack(key, shield.RateLimitConfig{Rate: 5, Burst: 10})
//	rl.StartGC(done)
//	for _, mw := range stack {
//	    r.Use(mw)
//	}
package shield

import "net/http"

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultAPIStack returns the standard stack, ordered:
// SecurityHeaders → MaxBody → TraceID → APIKey → RateLimiter.
// /health stays reachable without a key. The returned RateLimiter lets
// callers start its GC.
func DefaultAPIStack(apiKey string, rl RateLimitConfig) ([]func(http.Handler) http.Handler, *RateLimiter) {
	limiter := NewRateLimiter(rl, "/health", "/metrics")
	return []func(http.Handler) http.Handler{
		SecurityHeaders(DefaultHeaders()),
		MaxBody(64 * 1024),
		TraceID,
		APIKey(apiKey, "/health"),
		limiter.Middleware,
	}, limiter
}

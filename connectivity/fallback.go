package connectivity

import (
	"context"
	"log/slog"
)

// WithFallback falls back to a local handler when the remote one fails.
// Context cancellation is never retried locally: the caller gave up.
// A nil local handler disables the fallback.
func WithFallback(local Handler, service string, logger *slog.Logger) HandlerMiddleware {
	return func(next Handler) Handler {
		if local == nil {
			return next
		}
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			resp, err := next(ctx, payload)
			if err == nil {
				return resp, nil
			}
			if ctx.Err() != nil {
				return nil, err
			}

			if logger != nil {
				logger.WarnContext(ctx, "remote failed, falling back to local",
					"service", service,
					"remote_error", err)
			}

			fresp, ferr := local(ctx, payload)
			if ferr != nil {
				return nil, err
			}
			return fresp, nil
		}
	}
}

// Package wait provides context-aware sleeps and condition polling.
package wait

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Poll when the condition never held in time.
var ErrTimeout = errors.New("wait: timed out")

// Sleep pauses for d or until ctx ends, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poll calls cond every interval until it reports true, returns an error,
// timeout elapses (ErrTimeout) or ctx ends. cond runs once immediately.
// Each call gets a context bounded by the remaining time.
func Poll(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) (bool, error)) error {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		ok, err := cond(pctx)
		if err != nil && pctx.Err() == nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-pctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrTimeout
		case <-ticker.C:
		}
	}
}

package browser

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Session operations after Shutdown.
var ErrClosed = errors.New("browser: session is shut down")

// SessionInitError reports that attach, persistent launch and temporary
// launch all failed.
type SessionInitError struct {
	Attach    error
	Launch    error
	TempRetry error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("browser: session init failed: attach: %v; launch: %v; temp profile: %v",
		e.Attach, e.Launch, e.TempRetry)
}

func (e *SessionInitError) Unwrap() []error {
	var errs []error
	for _, err := range []error{e.Attach, e.Launch, e.TempRetry} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// PageLostError describes why the active page was dropped. It is logged
// and handled inside Session.Page, never returned to callers.
type PageLostError struct {
	Reason string // nil | closed | detached
}

func (e *PageLostError) Error() string {
	return "browser: page lost: " + e.Reason
}

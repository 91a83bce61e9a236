package screenctl

import (
	"errors"
	"fmt"

	"github.com/hazyhaar/tvremote/screenctl/internal/health"
	"github.com/hazyhaar/tvremote/screenctl/internal/recovery"
)

var (
	// ErrBusy is returned when the caller gave up waiting for another
	// mutating operation to finish.
	ErrBusy = errors.New("screenctl: another control operation is in progress")

	// ErrNotOnVideoSite rejects video-site operations while the page shows
	// something else.
	ErrNotOnVideoSite = errors.New("screenctl: not currently on the video site")

	// ErrInvalidInput marks requests rejected before touching the browser.
	ErrInvalidInput = errors.New("screenctl: invalid input")

	// ErrTaskNotFound is returned for unknown or evicted task IDs.
	ErrTaskNotFound = errors.New("screenctl: task not found")

	// ErrClosed is returned once the controller is shut down.
	ErrClosed = errors.New("screenctl: controller closed")
)

// NavigationError is returned when the pipeline and its single
// reinitialise-and-retry both failed.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("screenctl: navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// BrowserFrozenError is returned when the page stayed unresponsive after
// the full recovery sequence.
type BrowserFrozenError struct {
	Probe    health.Sample
	Recovery recovery.Report
}

func (e *BrowserFrozenError) Error() string {
	return "screenctl: browser is frozen and recovery failed"
}

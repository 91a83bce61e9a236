// Package browser owns the Chrome process and the single page tvremote
// drives: attach or launch, page acquisition, staleness detection and
// re-acquisition. The automation backend sits behind Driver so the session
// logic can be exercised without a real browser.
package browser

import (
	"context"
	"strings"
)

// Key is a keyboard key understood by Page.Press.
type Key string

const (
	KeyEscape Key = "Escape"
	KeyTab    Key = "Tab"
	KeyF11    Key = "F11"
	KeyC      Key = "c"
	KeyF      Key = "f"
	KeySpace  Key = "Space"
)

// Observers are the page event callbacks installed on every acquired page.
// Nil fields are skipped.
type Observers struct {
	OnDialog         func(kind, message string)
	OnPageError      func(message string)
	OnFailedResponse func(url string, status int)
	OnNavigate       func(url string)
}

// Page is one browser tab.
type Page interface {
	ID() string
	URL(ctx context.Context) (string, error)

	// Eval runs a JS function expression with args and decodes the JSON
	// result into out (nil discards it). Promises are awaited.
	Eval(ctx context.Context, js string, out any, args ...any) error

	// Navigate loads url and waits for DOMContentLoaded only.
	Navigate(ctx context.Context, url string) error

	Press(ctx context.Context, key Key) error
	MoveMouse(ctx context.Context, x, y float64) error
	Click(ctx context.Context, x, y float64, clicks int) error

	// SetViewport overrides the layout viewport size; ResetViewport
	// restores the window's own size.
	SetViewport(ctx context.Context, width, height int) error
	ResetViewport(ctx context.Context) error

	BringToFront(ctx context.Context) error

	// Closed reports whether the target no longer exists.
	Closed(ctx context.Context) bool
	// Detached reports whether the main frame lost its execution context.
	Detached(ctx context.Context) bool

	// Observe installs obs and returns a function that removes them.
	Observe(obs Observers) (stop func())

	Close() error
}

// Browser is a connected browser process.
type Browser interface {
	Pages(ctx context.Context) ([]Page, error)
	NewPage(ctx context.Context) (Page, error)
	// Alive reports whether the connection still answers.
	Alive(ctx context.Context) bool
	Close() error
}

// LaunchOptions describes a local browser launch.
type LaunchOptions struct {
	ProfileDir  string
	DebugPort   int // 0 picks a free port
	AppURL      string
	Bin         string
	ExtraFlags  []string
	XvfbDisplay string
}

// Driver creates Browser connections.
type Driver interface {
	Attach(ctx context.Context, debugURL string) (Browser, error)
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

var detachedMarkers = []string{
	"detached frame",
	"execution context was destroyed",
	"target closed",
	"cannot find context with specified id",
}

// IsDetachedError reports whether err says the page lost its frame or
// execution context.
func IsDetachedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range detachedMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Package media drives the page's <video> element and the page chrome
// around it: readiness polling, start policy, popup suppression, dialogs,
// video info and login detection.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/pagejs"
	"github.com/hazyhaar/tvremote/screenctl/internal/wait"
)

// HaveFutureData is HTMLMediaElement.HAVE_FUTURE_DATA.
const HaveFutureData = 3

// State is a snapshot of the first <video> element.
type State struct {
	Present     bool    `json:"present"`
	ReadyState  int     `json:"ready_state"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Paused      bool    `json:"paused"`
	Ended       bool    `json:"ended"`
	Src         string  `json:"src,omitempty"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Controls    bool    `json:"controls"`
	Focused     bool    `json:"focused"`
	Error       string  `json:"error,omitempty"`
}

// Playing reports a started, unpaused video.
func (s State) Playing() bool { return s.Present && s.CurrentTime > 0 && !s.Paused }

// ReadState reads the video element state.
func ReadState(ctx context.Context, p browser.Page) (State, error) {
	var s State
	if err := p.Eval(ctx, pagejs.MediaState, &s); err != nil {
		return State{}, fmt.Errorf("media: read state: %w", err)
	}
	return s, nil
}

// Config tunes readiness polling. Zero values take the defaults.
type Config struct {
	ElementTimeout time.Duration // default 15s
	ReadyTimeout   time.Duration // default 15s
	PollInterval   time.Duration // default 250ms
	Logger         *slog.Logger
}

func (c *Config) defaults() {
	if c.ElementTimeout <= 0 {
		c.ElementTimeout = 15 * time.Second
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 15 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ErrNoVideo is returned when no <video> appeared in time.
var ErrNoVideo = errors.New("media: no video element")

// ErrNotReady is returned when the video never buffered enough in time.
var ErrNotReady = errors.New("media: video not ready")

// WaitReady waits for a <video> element, then for readyState >=
// HAVE_FUTURE_DATA. With requirePlaying the video must also have started
// and be unpaused. The last observed state is returned with the error.
func WaitReady(ctx context.Context, p browser.Page, requirePlaying bool, cfg Config) (State, error) {
	cfg.defaults()
	var last State
	read := func(ctx context.Context) error {
		s, err := ReadState(ctx, p)
		if err != nil {
			return err
		}
		last = s
		return nil
	}

	err := wait.Poll(ctx, cfg.PollInterval, cfg.ElementTimeout, func(ctx context.Context) (bool, error) {
		if err := read(ctx); err != nil {
			cfg.Logger.Debug("media: state read failed", "error", err)
			return false, nil
		}
		return last.Present, nil
	})
	if err != nil {
		if errors.Is(err, wait.ErrTimeout) {
			return last, ErrNoVideo
		}
		return last, err
	}

	err = wait.Poll(ctx, cfg.PollInterval, cfg.ReadyTimeout, func(ctx context.Context) (bool, error) {
		if err := read(ctx); err != nil {
			return false, nil
		}
		if last.ReadyState < HaveFutureData {
			return false, nil
		}
		return !requirePlaying || last.Playing(), nil
	})
	if err != nil {
		if errors.Is(err, wait.ErrTimeout) {
			return last, ErrNotReady
		}
		return last, err
	}
	cfg.Logger.Debug("media: ready", "ready_state", last.ReadyState, "current_time", last.CurrentTime)
	return last, nil
}

// ApplyStartPolicy rewinds the video to 0 when it resumed past threshold.
// It reports whether a seek happened.
func ApplyStartPolicy(ctx context.Context, p browser.Page, threshold time.Duration) (bool, error) {
	s, err := ReadState(ctx, p)
	if err != nil {
		return false, err
	}
	if !s.Present || s.CurrentTime <= threshold.Seconds() {
		return false, nil
	}
	var ok bool
	if err := p.Eval(ctx, pagejs.SetCurrentTime, &ok, 0); err != nil {
		return false, fmt.Errorf("media: seek to start: %w", err)
	}
	return ok, nil
}

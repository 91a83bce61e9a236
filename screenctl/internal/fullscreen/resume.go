package fullscreen

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/locator"
	"github.com/hazyhaar/tvremote/screenctl/internal/pagejs"
	"github.com/hazyhaar/tvremote/screenctl/internal/wait"
)

// ResumeReport tells which resume steps fired. Steps only act on a paused
// video.
type ResumeReport struct {
	Played  bool   `json:"played"`
	Clicked string `json:"clicked,omitempty"`
	Spaced  bool   `json:"spaced"`
}

// Resume restarts playback that fullscreen transitions tend to pause:
// play(), then after delay a visible play control, then after another
// delay a synthetic space key.
func Resume(ctx context.Context, p browser.Page, delay time.Duration, log *slog.Logger) ResumeReport {
	if log == nil {
		log = slog.Default()
	}
	var r ResumeReport
	if err := p.Eval(ctx, pagejs.PlayIfPaused, &r.Played); err != nil {
		log.Debug("fullscreen: resume play failed", "error", err)
	}
	if wait.Sleep(ctx, delay) != nil {
		return r
	}
	if err := p.Eval(ctx, pagejs.ClickPlayControl, &r.Clicked, locator.PlayControls); err != nil {
		log.Debug("fullscreen: resume click failed", "error", err)
	}
	if wait.Sleep(ctx, delay) != nil {
		return r
	}
	if err := p.Eval(ctx, pagejs.DispatchSpace, &r.Spaced); err != nil {
		log.Debug("fullscreen: resume space failed", "error", err)
	}
	if r.Played || r.Clicked != "" || r.Spaced {
		log.Info("fullscreen: playback resumed", "play", r.Played, "control", r.Clicked, "space", r.Spaced)
	}
	return r
}

// Variants of the control-hiding stylesheet.
const (
	VariantVideoSite = "video-site"
	VariantGuide     = "guide"
)

// HideControls parks the mouse in a corner, strips the native controls
// and injects the stylesheet for variant. It reports whether the
// stylesheet was newly added.
func HideControls(ctx context.Context, p browser.Page, variant string) (bool, error) {
	if err := p.MoveMouse(ctx, 0, 0); err != nil {
		return false, err
	}
	var added bool
	if err := p.Eval(ctx, pagejs.HideControls, &added, variant); err != nil {
		return false, err
	}
	return added, nil
}

// Package locator finds page elements through ranked strategies. The first
// strategy that reports a visible element wins; failing strategies are
// skipped.
package locator

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/pagejs"
)

// Strategy is one way of finding an element.
type Strategy struct {
	Name  string
	Find  string // script returning Box
	Click string // script returning bool
	Args  []any
}

// CSS locates the first visible element matching selector in the document.
func CSS(selector string) Strategy {
	return Strategy{Name: selector, Find: pagejs.Query, Click: pagejs.Click, Args: []any{selector}}
}

// Shadow locates selector inside any open shadow root.
func Shadow(selector string) Strategy {
	return Strategy{Name: "shadow:" + selector, Find: pagejs.QueryShadow, Click: pagejs.ClickShadow, Args: []any{selector}}
}

// Box is the element's viewport rectangle.
type Box struct {
	Found  bool    `json:"found"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the middle of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Result tells which strategy matched.
type Result struct {
	Found    bool   `json:"found"`
	Strategy string `json:"strategy,omitempty"`
	Index    int    `json:"index"`
	Box      Box    `json:"-"`

	match Strategy
}

// Locator is an ordered list of strategies.
type Locator struct {
	Name       string
	Strategies []Strategy
	Logger     *slog.Logger
}

// New builds a locator.
func New(name string, strategies ...Strategy) *Locator {
	return &Locator{Name: name, Strategies: strategies}
}

// Locate evaluates strategies in rank order and stops at the first match.
func (l *Locator) Locate(ctx context.Context, p browser.Page) Result {
	for i, s := range l.Strategies {
		if ctx.Err() != nil {
			break
		}
		var box Box
		if err := p.Eval(ctx, s.Find, &box, s.Args...); err != nil {
			l.logger().Debug("locator: strategy failed", "locator", l.Name, "strategy", s.Name, "error", err)
			continue
		}
		if box.Found {
			return Result{Found: true, Strategy: s.Name, Index: i, Box: box, match: s}
		}
	}
	return Result{Index: -1}
}

// Click activates the element found by r through its strategy's click
// script. It reports false when r is empty or the element vanished.
func (l *Locator) Click(ctx context.Context, p browser.Page, r Result) (bool, error) {
	if !r.Found {
		return false, nil
	}
	var ok bool
	if err := p.Eval(ctx, r.match.Click, &ok, r.match.Args...); err != nil {
		return false, err
	}
	return ok, nil
}

// LocateAndClick locates then clicks.
func (l *Locator) LocateAndClick(ctx context.Context, p browser.Page) (Result, error) {
	r := l.Locate(ctx, p)
	if !r.Found {
		return r, nil
	}
	ok, err := l.Click(ctx, p, r)
	if err != nil || !ok {
		r.Found = false
	}
	return r, err
}

func (l *Locator) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Locators shared by the fullscreen and caption engines.
var (
	Video = New("video", CSS("video"))

	CaptionButton = New("caption-button",
		CSS("button.ytp-subtitles-button"),
		CSS(".ytp-subtitles-button"),
		CSS(`button[aria-label*="subtitle" i]`),
		CSS(`button[aria-label*="caption" i]`),
		CSS(`button[title*="subtitle" i]`),
		CSS(`button[title*="caption" i]`),
		Shadow(`button[aria-label*="subtitle" i], button[aria-label*="caption" i]`),
	)

	FullscreenControl = New("fullscreen-control",
		CSS("button.ytp-fullscreen-button"),
		CSS(".ytp-fullscreen-button"),
		CSS(".vjs-fullscreen-control"),
		CSS(`button[aria-label="Fullscreen"]`),
		CSS(`button[aria-label="Fullscreen (f)"]`),
		CSS(`button[title="Fullscreen"]`),
		CSS(`button[aria-label*="fullscreen" i]`),
		CSS(`button[aria-label*="full screen" i]`),
		CSS(`button[title*="fullscreen" i]`),
		CSS(`button[data-testid*="fullscreen"]`),
		CSS(`button[class*="fullscreen"]`),
	)

	TheaterControl = New("theater-control", CSS("button.ytp-size-button"))
)

// PlayControls are the play buttons tried while resuming, in order.
var PlayControls = []string{
	".ytp-play-button",
	".ytp-large-play-button",
	".vjs-play-control",
	".vjs-big-play-button",
	`button[aria-label*="play" i]`,
	`button[title*="play" i]`,
}

// Package fullscreen puts the video into fullscreen through a ranked list of
// tactics, verifying after each one and stopping at the first success.
package fullscreen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/tvremote/observability"
	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/pagejs"
)

// Outcome is the result of one tactic.
type Outcome struct {
	Tactic   string `json:"tactic"`
	Applied  bool   `json:"applied"`
	Verified bool   `json:"verified"`
	Fallback bool   `json:"fallback,omitempty"`
	Err      string `json:"error,omitempty"`
}

// Tactic is one way of entering fullscreen. Attempt acts, settles and
// verifies.
type Tactic interface {
	Name() string
	Attempt(ctx context.Context, p browser.Page) Outcome
}

// Result summarises a run.
type Result struct {
	Success  bool      `json:"success"`
	Fallback bool      `json:"fallback"`
	Tactic   string    `json:"tactic,omitempty"`
	Attempts []Outcome `json:"attempts"`
}

// State is the raw fullscreen observation from the page.
type State struct {
	Element      string `json:"element"`
	Enabled      bool   `json:"enabled"`
	InnerWidth   int    `json:"inner_width"`
	InnerHeight  int    `json:"inner_height"`
	OuterWidth   int    `json:"outer_width"`
	OuterHeight  int    `json:"outer_height"`
	ScreenWidth  int    `json:"screen_width"`
	ScreenHeight int    `json:"screen_height"`
	Theater      bool   `json:"theater"`
}

// Active reports an element in fullscreen.
func (s State) Active() bool { return s.Element != "" }

// FillsScreen reports whether the window covers the screen within tol px.
func (s State) FillsScreen(tol int) bool {
	if s.ScreenWidth == 0 || s.ScreenHeight == 0 {
		return false
	}
	return abs(s.InnerWidth-s.ScreenWidth) <= tol && abs(s.InnerHeight-s.ScreenHeight) <= tol
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ReadState reads the fullscreen state.
func ReadState(ctx context.Context, p browser.Page) (State, error) {
	var s State
	if err := p.Eval(ctx, pagejs.FullscreenState, &s); err != nil {
		return State{}, fmt.Errorf("fullscreen: read state: %w", err)
	}
	return s, nil
}

// Config tunes the engine. Zero values take the defaults.
type Config struct {
	// VideoSite enables the accelerator fallback and theater mode.
	VideoSite     bool
	Settle        time.Duration // after each tactic, default 1s
	Tolerance     int           // window vs screen px for F11, default 50
	TacticTimeout time.Duration // default 8s
	Logger        *slog.Logger
}

func (c *Config) defaults() {
	if c.Settle <= 0 {
		c.Settle = time.Second
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 50
	}
	if c.TacticTimeout <= 0 {
		c.TacticTimeout = 8 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// DefaultTactics returns the tactic order for cfg.
func DefaultTactics(cfg Config) []Tactic {
	cfg.defaults()
	ts := []Tactic{
		NativeControl{Settle: cfg.Settle, Accelerator: cfg.VideoSite},
		DoubleClick{Settle: cfg.Settle},
		HardenedDoubleClick{Settle: cfg.Settle},
		Request{Settle: cfg.Settle},
		OSKey{Settle: cfg.Settle, Tolerance: cfg.Tolerance},
	}
	if cfg.VideoSite {
		ts = append(ts, Theater{Settle: cfg.Settle})
	}
	return ts
}

// Engine runs tactics until one verifies.
type Engine struct {
	cfg     Config
	tactics []Tactic
}

// New builds an engine; without tactics it uses DefaultTactics(cfg).
func New(cfg Config, tactics ...Tactic) *Engine {
	cfg.defaults()
	if len(tactics) == 0 {
		tactics = DefaultTactics(cfg)
	}
	return &Engine{cfg: cfg, tactics: tactics}
}

// Run tries tactics in order. It never fails; a run where nothing verified
// has Success false.
func (e *Engine) Run(ctx context.Context, p browser.Page) Result {
	ctx, span := observability.StartSpan(ctx, "fullscreen.run")
	defer span.End()

	if s, err := ReadState(ctx, p); err == nil && s.Active() {
		e.cfg.Logger.Debug("fullscreen: already active", "element", s.Element)
		return Result{Success: true, Tactic: "already-active"}
	}

	var res Result
	for _, t := range e.tactics {
		if ctx.Err() != nil {
			break
		}
		o := e.run(ctx, t, p)
		res.Attempts = append(res.Attempts, o)
		observability.ObserveTactic("fullscreen", o.Tactic, o.Verified)
		observability.AddEvent(ctx, "tactic",
			observability.AttrTactic.String(o.Tactic),
			observability.AttrEngine.String("fullscreen"))
		e.cfg.Logger.Debug("fullscreen: tactic", "tactic", o.Tactic,
			"applied", o.Applied, "verified", o.Verified, "error", o.Err)
		if o.Verified {
			res.Success = true
			res.Fallback = o.Fallback
			res.Tactic = o.Tactic
			break
		}
	}
	e.cfg.Logger.Info("fullscreen: finished", "success", res.Success,
		"tactic", res.Tactic, "fallback", res.Fallback, "attempts", len(res.Attempts))
	return res
}

func (e *Engine) run(ctx context.Context, t Tactic, p browser.Page) (o Outcome) {
	tctx, cancel := context.WithTimeout(ctx, e.cfg.TacticTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			o = Outcome{Tactic: t.Name(), Err: fmt.Sprintf("panic: %v", r)}
		}
	}()
	o = t.Attempt(tctx, p)
	if o.Tactic == "" {
		o.Tactic = t.Name()
	}
	return o
}

// Package recovery tries to bring a frozen page back without restarting the
// browser. Tactics run in order, each isolated from the others, and a final
// probe decides whether the page recovered.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/tvremote/observability"
	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/health"
	"github.com/hazyhaar/tvremote/screenctl/internal/pagejs"
	"github.com/hazyhaar/tvremote/screenctl/internal/wait"
)

// Outcome is the result of one tactic.
type Outcome struct {
	Tactic   string        `json:"tactic"`
	Applied  bool          `json:"applied"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Tactic is one recovery step.
type Tactic interface {
	Name() string
	Attempt(ctx context.Context, p browser.Page) Outcome
}

// Config tunes the engine. Zero values take the defaults.
type Config struct {
	Settle        time.Duration // after resize and focus, default 1s
	KeyGap        time.Duration // between key presses, default 200ms
	ResizeDelta   int           // viewport growth in px, default 1
	TacticTimeout time.Duration // per tactic, default 5s
	ProbeTimeout  time.Duration // re-probe after the tactics, default 3s
	Logger        *slog.Logger
}

func (c *Config) defaults() {
	if c.Settle <= 0 {
		c.Settle = time.Second
	}
	if c.KeyGap <= 0 {
		c.KeyGap = 200 * time.Millisecond
	}
	if c.ResizeDelta <= 0 {
		c.ResizeDelta = 1
	}
	if c.TacticTimeout <= 0 {
		c.TacticTimeout = 5 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 3 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Report summarises a recovery run.
type Report struct {
	Outcomes  []Outcome     `json:"outcomes"`
	Recovered bool          `json:"recovered"`
	Probe     health.Sample `json:"probe"`
}

// Engine runs tactics in order.
type Engine struct {
	cfg     Config
	tactics []Tactic
}

// New builds an engine. Without tactics it uses Resize, Focus then Keys.
func New(cfg Config, tactics ...Tactic) *Engine {
	cfg.defaults()
	if len(tactics) == 0 {
		tactics = DefaultTactics(cfg)
	}
	return &Engine{cfg: cfg, tactics: tactics}
}

// DefaultTactics returns the standard tactic sequence for cfg.
func DefaultTactics(cfg Config) []Tactic {
	cfg.defaults()
	return []Tactic{
		Resize{Delta: cfg.ResizeDelta, Settle: cfg.Settle},
		Focus{Settle: cfg.Settle},
		Keys{Gap: cfg.KeyGap},
	}
}

// Tactics lists the tactic names in run order.
func (e *Engine) Tactics() []string {
	names := make([]string, len(e.tactics))
	for i, t := range e.tactics {
		names[i] = t.Name()
	}
	return names
}

// Recover runs every tactic, then probes once. It never fails: tactic
// errors and panics are recorded in the report.
func (e *Engine) Recover(ctx context.Context, p browser.Page) Report {
	ctx, span := observability.StartSpan(ctx, "recovery.recover")
	defer span.End()

	var rep Report
	for _, t := range e.tactics {
		if ctx.Err() != nil {
			break
		}
		o := e.run(ctx, t, p)
		rep.Outcomes = append(rep.Outcomes, o)
		observability.ObserveTactic("recovery", o.Tactic, o.Applied)
		observability.AddEvent(ctx, "tactic",
			observability.AttrTactic.String(o.Tactic),
			observability.AttrEngine.String("recovery"))
		if o.Err != "" {
			e.cfg.Logger.Warn("recovery: tactic failed", "tactic", o.Tactic, "error", o.Err)
		} else {
			e.cfg.Logger.Debug("recovery: tactic applied", "tactic", o.Tactic, "duration", o.Duration)
		}
	}

	rep.Probe = health.Probe(ctx, p, e.cfg.ProbeTimeout)
	rep.Recovered = rep.Probe.Healthy()
	span.SetAttributes(observability.AttrFrozen.Bool(rep.Probe.Frozen))
	observability.ObserveRecovery(rep.Recovered)
	e.cfg.Logger.Info("recovery: finished", "recovered", rep.Recovered, "tactics", len(rep.Outcomes))
	return rep
}

func (e *Engine) run(ctx context.Context, t Tactic, p browser.Page) (o Outcome) {
	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, e.cfg.TacticTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			o = Outcome{Tactic: t.Name(), Err: fmt.Sprintf("panic: %v", r)}
		}
		o.Duration = time.Since(start)
	}()
	o = t.Attempt(tctx, p)
	if o.Tactic == "" {
		o.Tactic = t.Name()
	}
	return o
}

func failed(name string, err error) Outcome {
	return Outcome{Tactic: name, Err: err.Error()}
}

// Resize nudges the viewport and restores it, forcing a relayout.
type Resize struct {
	Delta  int
	Settle time.Duration
}

func (Resize) Name() string { return "resize" }

func (r Resize) Attempt(ctx context.Context, p browser.Page) Outcome {
	var vp struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := p.Eval(ctx, pagejs.Viewport, &vp); err != nil {
		return failed(r.Name(), fmt.Errorf("read viewport: %w", err))
	}
	if err := p.SetViewport(ctx, vp.Width+r.Delta, vp.Height+r.Delta); err != nil {
		return failed(r.Name(), fmt.Errorf("grow viewport: %w", err))
	}
	slept := wait.Sleep(ctx, r.Settle)
	// Restore with a fresh context so a cancellation above still undoes the override.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.ResetViewport(rctx); err != nil {
		return failed(r.Name(), fmt.Errorf("restore viewport: %w", err))
	}
	if slept != nil {
		return failed(r.Name(), slept)
	}
	if err := wait.Sleep(ctx, r.Settle); err != nil {
		return failed(r.Name(), err)
	}
	return Outcome{Tactic: r.Name(), Applied: true}
}

// Focus focuses and clicks the video element.
type Focus struct {
	Settle time.Duration
}

func (Focus) Name() string { return "focus" }

func (f Focus) Attempt(ctx context.Context, p browser.Page) Outcome {
	var found bool
	if err := p.Eval(ctx, pagejs.FocusVideo, &found); err != nil {
		return failed(f.Name(), err)
	}
	if !found {
		return Outcome{Tactic: f.Name(), Err: "no video element"}
	}
	if err := wait.Sleep(ctx, f.Settle); err != nil {
		return failed(f.Name(), err)
	}
	return Outcome{Tactic: f.Name(), Applied: true}
}

// Keys presses Escape then Tab.
type Keys struct {
	Gap time.Duration
}

func (Keys) Name() string { return "keys" }

func (k Keys) Attempt(ctx context.Context, p browser.Page) Outcome {
	for _, key := range []browser.Key{browser.KeyEscape, browser.KeyTab} {
		if err := p.Press(ctx, key); err != nil {
			return failed(k.Name(), fmt.Errorf("press %s: %w", key, err))
		}
		if err := wait.Sleep(ctx, k.Gap); err != nil {
			return failed(k.Name(), err)
		}
	}
	return Outcome{Tactic: k.Name(), Applied: true}
}

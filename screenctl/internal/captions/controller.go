package captions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/tvremote/observability"
	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/locator"
	"github.com/hazyhaar/tvremote/screenctl/internal/pagejs"
	"github.com/hazyhaar/tvremote/screenctl/internal/wait"
)

// Preference is the session-scoped caption choice.
type Preference int

const (
	Unset Preference = iota
	On
	Off
)

func (p Preference) String() string {
	switch p {
	case On:
		return "on"
	case Off:
		return "off"
	default:
		return "unset"
	}
}

// MarshalJSON encodes the preference as its name.
func (p Preference) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Effective resolves the preference against the configured default.
func (p Preference) Effective(def bool) bool {
	switch p {
	case On:
		return true
	case Off:
		return false
	default:
		return def
	}
}

// Config tunes the controller. Zero values take the defaults.
type Config struct {
	Settle      time.Duration // after the accelerator or button, default 1.5s
	FocusSettle time.Duration // after focusing the video, default 300ms
	Button      *locator.Locator
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.Settle <= 0 {
		c.Settle = 1500 * time.Millisecond
	}
	if c.FocusSettle <= 0 {
		c.FocusSettle = 300 * time.Millisecond
	}
	if c.Button == nil {
		c.Button = locator.CaptionButton
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ToggleResult reports a single accelerator toggle.
type ToggleResult struct {
	Before  bool `json:"before"`
	After   bool `json:"after"`
	Changed bool `json:"changed"`
}

// StateResult reports SetState.
type StateResult struct {
	Before     bool       `json:"before"`
	Enabled    bool       `json:"enabled"`
	Changed    bool       `json:"changed"`
	Method     string     `json:"method"`
	Preference Preference `json:"preference"`
}

// StatusResult reports the observed state and the stored preference.
type StatusResult struct {
	Enabled    bool       `json:"enabled"`
	Preference Preference `json:"preference"`
}

// Controller drives captions and remembers the session preference.
type Controller struct {
	cfg Config

	mu   sync.Mutex
	pref Preference
}

// NewController creates a controller with an unset preference.
func NewController(cfg Config) *Controller {
	cfg.defaults()
	return &Controller{cfg: cfg}
}

// Preference returns the stored preference.
func (c *Controller) Preference() Preference {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pref
}

// Reset clears the preference.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.pref = Unset
	c.mu.Unlock()
}

func (c *Controller) setPreference(on bool) Preference {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.pref = On
	} else {
		c.pref = Off
	}
	return c.pref
}

// Status observes the page.
func (c *Controller) Status(ctx context.Context, p browser.Page) (StatusResult, error) {
	on, err := IsVisible(ctx, p)
	if err != nil {
		return StatusResult{}, err
	}
	return StatusResult{Enabled: on, Preference: c.Preference()}, nil
}

// Toggle presses the caption accelerator once and reports the change.
func (c *Controller) Toggle(ctx context.Context, p browser.Page) (ToggleResult, error) {
	var r ToggleResult
	if err := c.focus(ctx, p); err != nil {
		observability.ObserveCaption("toggle", false)
		return r, err
	}
	before, err := IsVisible(ctx, p)
	if err != nil {
		observability.ObserveCaption("toggle", false)
		return r, err
	}
	after, err := c.press(ctx, p)
	if err != nil {
		observability.ObserveCaption("toggle", false)
		return r, err
	}
	r = ToggleResult{Before: before, After: after, Changed: before != after}
	observability.ObserveCaption("toggle", r.Changed)
	c.cfg.Logger.Info("captions: toggled", "before", before, "after", after)
	return r, nil
}

// SetState records the preference and makes the page match it: nothing
// when it already does, else the accelerator, else (when enabling) the
// caption button.
func (c *Controller) SetState(ctx context.Context, p browser.Page, on bool) (StateResult, error) {
	action := "off"
	if on {
		action = "on"
	}
	res, err := c.setState(ctx, p, on, c.setPreference(on))
	observability.ObserveCaption(action, err == nil && res.Enabled == on)
	if err != nil {
		return res, err
	}
	c.cfg.Logger.Info("captions: state set", "want", on, "enabled", res.Enabled, "method", res.Method)
	return res, nil
}

// Apply makes the page match on like SetState but leaves the stored
// preference alone. Navigations use it to enforce the effective policy.
func (c *Controller) Apply(ctx context.Context, p browser.Page, on bool) (StateResult, error) {
	res, err := c.setState(ctx, p, on, c.Preference())
	observability.ObserveCaption("apply", err == nil && res.Enabled == on)
	if err != nil {
		return res, err
	}
	c.cfg.Logger.Debug("captions: policy applied", "want", on, "enabled", res.Enabled, "method", res.Method)
	return res, nil
}

func (c *Controller) setState(ctx context.Context, p browser.Page, on bool, pref Preference) (StateResult, error) {
	res := StateResult{Preference: pref, Method: "none"}

	current, err := IsVisible(ctx, p)
	if err != nil {
		return res, err
	}
	res.Before, res.Enabled = current, current
	if current == on {
		return res, nil
	}

	if err := c.focus(ctx, p); err != nil {
		return res, err
	}
	after, err := c.press(ctx, p)
	if err != nil {
		return res, err
	}
	res.Enabled, res.Changed, res.Method = after, after != current, "accelerator"
	if after == on || !on {
		return res, nil
	}

	r, err := c.cfg.Button.LocateAndClick(ctx, p)
	if err != nil {
		return res, fmt.Errorf("captions: button: %w", err)
	}
	if !r.Found {
		c.cfg.Logger.Warn("captions: no caption button found")
		return res, nil
	}
	if err := wait.Sleep(ctx, c.cfg.Settle); err != nil {
		return res, err
	}
	after, err = IsVisible(ctx, p)
	if err != nil {
		return res, err
	}
	res.Enabled, res.Changed, res.Method = after, after != current, "button:"+r.Strategy
	return res, nil
}

func (c *Controller) focus(ctx context.Context, p browser.Page) error {
	if err := p.Eval(ctx, pagejs.FocusVideo, nil); err != nil {
		return fmt.Errorf("captions: focus video: %w", err)
	}
	return wait.Sleep(ctx, c.cfg.FocusSettle)
}

func (c *Controller) press(ctx context.Context, p browser.Page) (bool, error) {
	if err := p.Press(ctx, browser.KeyC); err != nil {
		return false, fmt.Errorf("captions: press c: %w", err)
	}
	if err := wait.Sleep(ctx, c.cfg.Settle); err != nil {
		return false, err
	}
	return IsVisible(ctx, p)
}

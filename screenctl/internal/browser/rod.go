package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// RodConfig configures the Chrome DevTools driver.
type RodConfig struct {
	// Stealth injects the anti-detection script into every page.
	Stealth bool
	// BlockURLPatterns are request URL globs failed before they leave
	// the browser (ad and tracker hosts).
	BlockURLPatterns []string
	UserAgent        string
	Logger           *slog.Logger
}

// RodDriver drives Chrome through go-rod.
type RodDriver struct {
	cfg RodConfig
}

// NewRodDriver creates a RodDriver.
func NewRodDriver(cfg RodConfig) *RodDriver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RodDriver{cfg: cfg}
}

// Attach connects to a browser already listening on debugURL
// (http://host:9222, host:9222 or a ws:// URL).
func (d *RodDriver) Attach(ctx context.Context, debugURL string) (Browser, error) {
	type resolved struct {
		ws  string
		err error
	}
	ch := make(chan resolved, 1)
	go func() {
		ws, err := launcher.ResolveURL(debugURL)
		ch <- resolved{ws, err}
	}()

	var ws string
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("browser: resolve %s: %w", debugURL, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("browser: resolve %s: %w", debugURL, r.err)
		}
		ws = r.ws
	}

	b := rod.New().ControlURL(ws)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect %s: %w", ws, err)
	}
	return d.wrap(b, nil, nil), nil
}

// Launch starts a visible Chrome on opts.ProfileDir and connects to it.
func (d *RodDriver) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	log := d.cfg.Logger

	l := launcher.New().
		Headless(false).
		Leakless(false).
		UserDataDir(opts.ProfileDir).
		Set("start-maximized").
		Set("disable-dev-shm-usage").
		Set("no-first-run").
		Set("autoplay-policy", "no-user-gesture-required").
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-background-timer-throttling").
		Set("disable-renderer-backgrounding").
		Set("disable-backgrounding-occluded-windows").
		Delete("enable-automation").
		Delete("no-startup-window")
	if opts.DebugPort > 0 {
		l = l.RemoteDebuggingPort(opts.DebugPort)
	}
	if opts.AppURL != "" {
		l = l.Set("app", opts.AppURL)
	}
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	if d.cfg.UserAgent != "" {
		l = l.Set("user-agent", d.cfg.UserAgent)
	}
	for _, f := range opts.ExtraFlags {
		name, val, _ := strings.Cut(strings.TrimLeft(f, "-"), "=")
		if val == "" {
			l = l.Set(flags.Flag(name))
		} else {
			l = l.Set(flags.Flag(name), val)
		}
	}

	var xvfb *exec.Cmd
	if opts.XvfbDisplay != "" {
		cmd, err := startXvfb(opts.XvfbDisplay, log)
		if err != nil {
			return nil, fmt.Errorf("browser: xvfb: %w", err)
		}
		xvfb = cmd
		l = l.Env(append(os.Environ(), "DISPLAY="+opts.XvfbDisplay)...)
	}

	type launched struct {
		u   string
		err error
	}
	ch := make(chan launched, 1)
	go func() {
		u, err := l.Launch()
		ch <- launched{u, err}
	}()

	var u string
	select {
	case <-ctx.Done():
		l.Kill()
		stopXvfb(xvfb, log)
		return nil, fmt.Errorf("browser: launch: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			stopXvfb(xvfb, log)
			return nil, fmt.Errorf("browser: launch: %w", r.err)
		}
		u = r.u
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		stopXvfb(xvfb, log)
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	log.Info("browser: launched local chrome", "url", u, "profile", opts.ProfileDir)
	return d.wrap(b, l, xvfb), nil
}

func (d *RodDriver) wrap(b *rod.Browser, l *launcher.Launcher, xvfb *exec.Cmd) *rodBrowser {
	return &rodBrowser{
		d:     d,
		b:     b,
		lnch:  l,
		xvfb:  xvfb,
		pages: make(map[proto.TargetTargetID]*rodPage),
	}
}

type rodBrowser struct {
	d    *RodDriver
	b    *rod.Browser
	lnch *launcher.Launcher
	xvfb *exec.Cmd

	mu    sync.Mutex
	pages map[proto.TargetTargetID]*rodPage
}

func (rb *rodBrowser) Pages(ctx context.Context) ([]Page, error) {
	ps, err := rb.b.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("browser: list pages: %w", err)
	}
	out := make([]Page, 0, len(ps))
	for _, p := range ps {
		out = append(out, rb.prepare(p, false))
	}
	return out, nil
}

func (rb *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	var (
		p   *rod.Page
		err error
	)
	if rb.d.cfg.Stealth {
		p, err = stealth.Page(rb.b.Context(ctx))
	} else {
		p, err = rb.b.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}
	return rb.prepare(p, rb.d.cfg.Stealth), nil
}

// prepare wraps p once per target. Stealth and URL blocking are applied
// the first time a target is seen.
func (rb *rodBrowser) prepare(p *rod.Page, stealthed bool) *rodPage {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rp, ok := rb.pages[p.TargetID]; ok {
		return rp
	}
	log := rb.d.cfg.Logger
	p = p.Context(context.Background())
	if rb.d.cfg.Stealth && !stealthed {
		if _, err := p.EvalOnNewDocument(stealth.JS); err != nil {
			log.Warn("browser: stealth injection failed", "page", p.TargetID, "error", err)
		}
	}
	rp := &rodPage{
		p:      p,
		b:      rb.b,
		router: applyURLBlocking(p, rb.d.cfg.BlockURLPatterns, log),
		log:    log,
	}
	rb.pages[p.TargetID] = rp
	return rp
}

func (rb *rodBrowser) Alive(ctx context.Context) bool {
	_, err := rb.b.Context(ctx).Version()
	return err == nil
}

// Close closes the connection and, for launched browsers, kills the
// process. The user-data dir is left in place.
func (rb *rodBrowser) Close() error {
	rb.mu.Lock()
	for id, rp := range rb.pages {
		rp.stopRouter()
		delete(rb.pages, id)
	}
	rb.mu.Unlock()

	err := rb.b.Close()
	if rb.lnch != nil {
		rb.lnch.Kill()
	}
	stopXvfb(rb.xvfb, rb.d.cfg.Logger)
	return err
}

type rodPage struct {
	p      *rod.Page
	b      *rod.Browser
	router *rod.HijackRouter
	log    *slog.Logger
	once   sync.Once
}

func (rp *rodPage) ID() string { return string(rp.p.TargetID) }

func (rp *rodPage) URL(ctx context.Context) (string, error) {
	info, err := rp.p.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (rp *rodPage) Eval(ctx context.Context, js string, out any, args ...any) error {
	res, err := rp.p.Context(ctx).Eval(js, args...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return res.Value.Unmarshal(out)
}

func (rp *rodPage) Navigate(ctx context.Context, url string) error {
	p := rp.p.Context(ctx)
	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(url); err != nil {
		return err
	}
	wait()
	return ctx.Err()
}

var rodKeys = map[Key]input.Key{
	KeyEscape: input.Escape,
	KeyTab:    input.Tab,
	KeyF11:    input.F11,
	KeyC:      input.KeyC,
	KeyF:      input.KeyF,
	KeySpace:  input.Space,
}

func (rp *rodPage) Press(ctx context.Context, key Key) error {
	k, ok := rodKeys[key]
	if !ok {
		return fmt.Errorf("browser: unknown key %q", key)
	}
	return rp.p.Context(ctx).Keyboard.Type(k)
}

func (rp *rodPage) MoveMouse(ctx context.Context, x, y float64) error {
	return rp.p.Context(ctx).Mouse.MoveTo(proto.Point{X: x, Y: y})
}

// Click presses the left button clicks times with increasing click
// counts, which the page sees as a single, double or triple click.
func (rp *rodPage) Click(ctx context.Context, x, y float64, clicks int) error {
	p := rp.p.Context(ctx)
	if err := p.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return err
	}
	for i := 1; i <= clicks; i++ {
		if err := p.Mouse.Click(proto.InputMouseButtonLeft, i); err != nil {
			return err
		}
	}
	return nil
}

func (rp *rodPage) SetViewport(ctx context.Context, width, height int) error {
	return rp.p.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  width,
		Height: height,
	})
}

func (rp *rodPage) ResetViewport(ctx context.Context) error {
	return rp.p.Context(ctx).SetViewport(nil)
}

func (rp *rodPage) BringToFront(ctx context.Context) error {
	_, err := rp.p.Context(ctx).Activate()
	return err
}

func (rp *rodPage) Closed(ctx context.Context) bool {
	_, err := proto.TargetGetTargetInfo{TargetID: rp.p.TargetID}.Call(rp.b.Context(ctx))
	return err != nil
}

func (rp *rodPage) Detached(ctx context.Context) bool {
	dctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err := rp.p.Context(dctx).Eval(`() => document.readyState`)
	return IsDetachedError(err)
}

// Observe subscribes to dialogs, uncaught exceptions, failed responses
// and main-frame navigations. Dialogs are accepted immediately.
func (rp *rodPage) Observe(obs Observers) func() {
	ctx, cancel := context.WithCancel(context.Background())
	p := rp.p.Context(ctx)

	go p.EachEvent(
		func(e *proto.PageJavascriptDialogOpening) {
			go func() {
				if err := (proto.PageHandleJavaScriptDialog{Accept: true}).Call(p); err != nil {
					rp.log.Debug("browser: dialog accept failed", "error", err)
				}
			}()
			if obs.OnDialog != nil {
				obs.OnDialog(string(e.Type), e.Message)
			}
		},
		func(e *proto.RuntimeExceptionThrown) {
			if obs.OnPageError == nil {
				return
			}
			msg := e.ExceptionDetails.Text
			if ex := e.ExceptionDetails.Exception; ex != nil && ex.Description != "" {
				msg = ex.Description
			}
			obs.OnPageError(msg)
		},
		func(e *proto.NetworkResponseReceived) {
			if obs.OnFailedResponse != nil && e.Response.Status >= 400 {
				obs.OnFailedResponse(e.Response.URL, e.Response.Status)
			}
		},
		func(e *proto.PageFrameNavigated) {
			if obs.OnNavigate != nil && e.Frame.ParentID == "" {
				obs.OnNavigate(e.Frame.URL)
			}
		},
	)()
	return cancel
}

func (rp *rodPage) stopRouter() {
	rp.once.Do(func() {
		if rp.router != nil {
			rp.router.Stop()
		}
	})
}

func (rp *rodPage) Close() error {
	rp.stopRouter()
	return rp.p.Close()
}

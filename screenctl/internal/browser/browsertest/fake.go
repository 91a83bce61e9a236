// Package browsertest provides an in-memory browser.Driver for tests.
// Pages answer Eval through handlers registered per script, record every
// input they receive, and can be closed, detached or slowed down on demand.
package browsertest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
)

// EvalFunc answers one script evaluation. The returned value is
// JSON-encoded and decoded into the caller's out argument.
type EvalFunc func(args []any) (any, error)

// Click is a recorded mouse click.
type Click struct {
	X, Y   float64
	Clicks int
}

// Page is a fake browser.Page.
type Page struct {
	id string

	mu        sync.Mutex
	url       string
	closed    bool
	detached  bool
	evalDelay time.Duration
	handlers  map[string]EvalFunc
	fallback  func(js string, args []any) (any, error)
	navErr    func(url string) error
	redirect  func(url string) string
	observers map[int]browser.Observers
	nextObs   int

	evals     []string
	keys      []browser.Key
	clicks    []Click
	moves     int
	navs      []string
	viewports []string
	fronts    int
}

// NewPage returns an open page at url.
func NewPage(id, url string) *Page {
	return &Page{
		id:        id,
		url:       url,
		handlers:  make(map[string]EvalFunc),
		observers: make(map[int]browser.Observers),
	}
}

// Handle registers fn for the exact script js.
func (p *Page) Handle(js string, fn EvalFunc) {
	p.mu.Lock()
	p.handlers[js] = fn
	p.mu.Unlock()
}

// HandleValue registers a constant answer for js.
func (p *Page) HandleValue(js string, v any) {
	p.Handle(js, func([]any) (any, error) { return v, nil })
}

// Fallback answers scripts without a registered handler. Without it such
// scripts evaluate to nothing.
func (p *Page) Fallback(fn func(js string, args []any) (any, error)) {
	p.mu.Lock()
	p.fallback = fn
	p.mu.Unlock()
}

// FailNavigation makes Navigate return fn(url) when it is non-nil.
func (p *Page) FailNavigation(fn func(url string) error) {
	p.mu.Lock()
	p.navErr = fn
	p.mu.Unlock()
}

// RedirectNavigation makes Navigate land on fn(url) instead of url.
func (p *Page) RedirectNavigation(fn func(url string) string) {
	p.mu.Lock()
	p.redirect = fn
	p.mu.Unlock()
}

// SetEvalDelay makes every Eval take d, or until its context ends.
func (p *Page) SetEvalDelay(d time.Duration) {
	p.mu.Lock()
	p.evalDelay = d
	p.mu.Unlock()
}

// SetClosed marks the page closed.
func (p *Page) SetClosed(v bool) {
	p.mu.Lock()
	p.closed = v
	p.mu.Unlock()
}

// SetDetached marks the main frame detached.
func (p *Page) SetDetached(v bool) {
	p.mu.Lock()
	p.detached = v
	p.mu.Unlock()
}

// SetURL changes the current URL without recording a navigation.
func (p *Page) SetURL(u string) {
	p.mu.Lock()
	p.url = u
	p.mu.Unlock()
}

func (p *Page) ID() string { return p.id }

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", errors.New("target closed")
	}
	return p.url, nil
}

func (p *Page) Eval(ctx context.Context, js string, out any, args ...any) error {
	p.mu.Lock()
	p.evals = append(p.evals, js)
	delay, closed, detached := p.evalDelay, p.closed, p.detached
	fn := p.handlers[js]
	fallback := p.fallback
	p.mu.Unlock()

	if closed {
		return errors.New("target closed")
	}
	if detached {
		return errors.New("Execution context was destroyed")
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	var (
		v   any
		err error
	)
	switch {
	case fn != nil:
		v, err = fn(args)
	case fallback != nil:
		v, err = fallback(js, args)
	default:
		return nil
	}
	if err != nil || out == nil || v == nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.navs = append(p.navs, url)
	fail, redirect := p.navErr, p.redirect
	p.mu.Unlock()
	if fail != nil {
		if err := fail(url); err != nil {
			return err
		}
	}
	if redirect != nil {
		url = redirect(url)
	}
	p.mu.Lock()
	p.url = url
	obs := p.activeObservers()
	p.mu.Unlock()
	for _, o := range obs {
		if o.OnNavigate != nil {
			o.OnNavigate(url)
		}
	}
	return ctx.Err()
}

func (p *Page) Press(ctx context.Context, key browser.Key) error {
	p.mu.Lock()
	p.keys = append(p.keys, key)
	p.mu.Unlock()
	return nil
}

func (p *Page) MoveMouse(ctx context.Context, x, y float64) error {
	p.mu.Lock()
	p.moves++
	p.mu.Unlock()
	return nil
}

func (p *Page) Click(ctx context.Context, x, y float64, clicks int) error {
	p.mu.Lock()
	p.clicks = append(p.clicks, Click{X: x, Y: y, Clicks: clicks})
	p.mu.Unlock()
	return nil
}

func (p *Page) SetViewport(ctx context.Context, width, height int) error {
	p.mu.Lock()
	p.viewports = append(p.viewports, fmt.Sprintf("%dx%d", width, height))
	p.mu.Unlock()
	return nil
}

func (p *Page) ResetViewport(ctx context.Context) error {
	p.mu.Lock()
	p.viewports = append(p.viewports, "reset")
	p.mu.Unlock()
	return nil
}

func (p *Page) BringToFront(ctx context.Context) error {
	p.mu.Lock()
	p.fronts++
	p.mu.Unlock()
	return nil
}

func (p *Page) Closed(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) Detached(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detached
}

func (p *Page) Observe(obs browser.Observers) func() {
	p.mu.Lock()
	id := p.nextObs
	p.nextObs++
	p.observers[id] = obs
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.observers, id)
		p.mu.Unlock()
	}
}

func (p *Page) Close() error {
	p.SetClosed(true)
	return nil
}

func (p *Page) activeObservers() []browser.Observers {
	out := make([]browser.Observers, 0, len(p.observers))
	for _, o := range p.observers {
		out = append(out, o)
	}
	return out
}

// EmitDialog delivers a dialog event to the installed observers.
func (p *Page) EmitDialog(kind, message string) {
	p.mu.Lock()
	obs := p.activeObservers()
	p.mu.Unlock()
	for _, o := range obs {
		if o.OnDialog != nil {
			o.OnDialog(kind, message)
		}
	}
}

// Observers returns the number of installed observer sets.
func (p *Page) Observers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.observers)
}

// Evals returns the scripts evaluated so far.
func (p *Page) Evals() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.evals...)
}

// EvalCount returns how often js was evaluated.
func (p *Page) EvalCount(js string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.evals {
		if e == js {
			n++
		}
	}
	return n
}

// Keys returns the pressed keys.
func (p *Page) Keys() []browser.Key {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Key(nil), p.keys...)
}

// Clicks returns the recorded clicks.
func (p *Page) Clicks() []Click {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Click(nil), p.clicks...)
}

// Moves returns the number of mouse moves.
func (p *Page) Moves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.moves
}

// Navigations returns the URLs passed to Navigate.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navs...)
}

// Viewports returns the viewport changes as "WxH" or "reset".
func (p *Page) Viewports() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.viewports...)
}

// Fronts returns how often the page was brought to front.
func (p *Page) Fronts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fronts
}

// Browser is a fake browser.Browser.
type Browser struct {
	// OnNewPage prepares pages created by NewPage.
	OnNewPage func(*Page)

	mu     sync.Mutex
	pages  []*Page
	alive  bool
	closes int
	newErr error
	seq    int
}

// NewBrowser returns a live browser holding pages.
func NewBrowser(pages ...*Page) *Browser {
	return &Browser{pages: pages, alive: true}
}

// SetAlive changes the liveness answer.
func (b *Browser) SetAlive(v bool) {
	b.mu.Lock()
	b.alive = v
	b.mu.Unlock()
}

// FailNewPage makes NewPage return err.
func (b *Browser) FailNewPage(err error) {
	b.mu.Lock()
	b.newErr = err
	b.mu.Unlock()
}

// Closes returns how often Close was called.
func (b *Browser) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

// FakePages returns the pages including closed ones.
func (b *Browser) FakePages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Page(nil), b.pages...)
}

func (b *Browser) Pages(ctx context.Context) ([]browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.alive {
		return nil, errors.New("connection closed")
	}
	var out []browser.Page
	for _, p := range b.pages {
		if !p.Closed(ctx) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	b.mu.Lock()
	if !b.alive {
		b.mu.Unlock()
		return nil, errors.New("connection closed")
	}
	if b.newErr != nil {
		err := b.newErr
		b.mu.Unlock()
		return nil, err
	}
	b.seq++
	p := NewPage(fmt.Sprintf("new-%d", b.seq), "about:blank")
	b.pages = append(b.pages, p)
	hook := b.OnNewPage
	b.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return p, nil
}

func (b *Browser) Alive(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.alive
}

func (b *Browser) Close() error {
	b.mu.Lock()
	b.alive = false
	b.closes++
	b.mu.Unlock()
	return nil
}

// Driver is a fake browser.Driver.
type Driver struct {
	mu sync.Mutex

	// AttachTo is returned by Attach; nil makes Attach fail.
	AttachTo *Browser
	// LaunchErr, when set, decides whether a launch fails.
	LaunchErr func(opts browser.LaunchOptions) error
	// LaunchDelay is slept inside every Launch.
	LaunchDelay time.Duration
	// Setup prepares every page of a freshly launched browser.
	Setup func(*Page)

	attaches int
	launches []browser.LaunchOptions
	launched []*Browser
}

func (d *Driver) Attach(ctx context.Context, debugURL string) (browser.Browser, error) {
	d.mu.Lock()
	d.attaches++
	b := d.AttachTo
	d.mu.Unlock()
	if b == nil || !b.Alive(ctx) {
		return nil, fmt.Errorf("attach %s: connection refused", debugURL)
	}
	return b, nil
}

func (d *Driver) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	d.mu.Lock()
	d.launches = append(d.launches, opts)
	fail, delay, setup := d.LaunchErr, d.LaunchDelay, d.Setup
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if fail != nil {
		if err := fail(opts); err != nil {
			return nil, err
		}
	}

	d.mu.Lock()
	p := NewPage(fmt.Sprintf("launch-%d", len(d.launched)+1), "about:blank")
	if setup != nil {
		setup(p)
	}
	b := NewBrowser(p)
	b.OnNewPage = setup
	d.launched = append(d.launched, b)
	d.mu.Unlock()
	return b, nil
}

// Attaches returns the number of Attach calls.
func (d *Driver) Attaches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attaches
}

// Launches returns the options of every Launch call.
func (d *Driver) Launches() []browser.LaunchOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]browser.LaunchOptions(nil), d.launches...)
}

// Launched returns the browsers created by successful launches.
func (d *Driver) Launched() []*Browser {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Browser(nil), d.launched...)
}

// Ensure interface compliance.
var (
	_ browser.Driver  = (*Driver)(nil)
	_ browser.Browser = (*Browser)(nil)
	_ browser.Page    = (*Page)(nil)
)

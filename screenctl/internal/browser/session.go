package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateConnected
	StateDegraded // page lost, re-acquisition in progress
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	default:
		return "uninitialized"
	}
}

// Config configures a Session.
type Config struct {
	// DebugURL of an already running browser (http://127.0.0.1:9222).
	// Empty skips the attach step.
	DebugURL      string
	AttachTimeout time.Duration

	// ProfileDir is the persistent user-data directory. Login state lives
	// here and must survive restarts.
	ProfileDir        string
	TempProfilePrefix string
	DebugPort         int

	// AppURL is opened in app mode on launch (guide home page).
	AppURL string
	// PreferredPrefix ranks attached pages: a page whose URL starts with it
	// wins over any other http(s) page.
	PreferredPrefix string

	Bin         string
	ExtraFlags  []string
	XvfbDisplay string

	// Observers are chained after the session's own page observers.
	Observers Observers

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.AttachTimeout <= 0 {
		c.AttachTimeout = 1500 * time.Millisecond
	}
	if c.ProfileDir == "" {
		c.ProfileDir = "chrome-profile-data"
	}
	if c.TempProfilePrefix == "" {
		c.TempProfilePrefix = "tvremote-profile-"
	}
	if c.DebugPort == 0 {
		c.DebugPort = 9222
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Status is a point-in-time view of the session.
type Status struct {
	State      string `json:"state"`
	Connected  bool   `json:"connected"`
	Attached   bool   `json:"attached"`
	CurrentURL string `json:"current_url,omitempty"`
	LastTarget string `json:"last_target,omitempty"`
	ProfileDir string `json:"profile_dir,omitempty"`
}

// Session owns one browser process and its single active page.
type Session struct {
	cfg    Config
	driver Driver
	log    *slog.Logger
	sf     singleflight.Group

	mu         sync.Mutex
	state      State
	browser    Browser
	page       Page
	stopObs    func()
	attached   bool
	profileDir string
	tempDir    string
	currentURL string
	lastTarget string
	closed     bool
}

// NewSession creates a Session. Nothing is started until EnsureSession.
func NewSession(cfg Config, driver Driver) *Session {
	cfg.defaults()
	return &Session{cfg: cfg, driver: driver, log: cfg.Logger}
}

// EnsureSession guarantees a connected browser with an active page.
// Concurrent callers share one initialisation, so a second process is
// never launched while the first is starting.
func (s *Session) EnsureSession(ctx context.Context) error {
	if s.ready(ctx) {
		return nil
	}
	_, err, _ := s.sf.Do("ensure", func() (any, error) {
		return nil, s.ensure(ctx)
	})
	return err
}

func (s *Session) ready(ctx context.Context) bool {
	s.mu.Lock()
	b, p, st := s.browser, s.page, s.state
	s.mu.Unlock()
	if b == nil || p == nil || (st != StateConnected && st != StateDegraded) {
		return false
	}
	return b.Alive(ctx)
}

func (s *Session) ensure(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	b := s.browser
	s.mu.Unlock()

	if b != nil {
		if b.Alive(ctx) {
			p, err := s.pickPage(ctx, b)
			if err == nil {
				s.adoptPage(ctx, p)
				return nil
			}
			s.log.Warn("browser: live browser without usable page", "error", err)
		}
		s.CloseSafely()
	}

	s.setState(StateConnecting)
	initErr := &SessionInitError{}

	if s.cfg.DebugURL != "" {
		err := s.tryAttach(ctx)
		if err == nil {
			return nil
		}
		initErr.Attach = err
		s.log.Info("browser: attach failed, launching", "debug_url", s.cfg.DebugURL, "error", err)
	} else {
		initErr.Attach = errors.New("no debug url configured")
	}

	err := s.tryLaunch(ctx, s.cfg.ProfileDir, s.cfg.DebugPort, "")
	if err == nil {
		return nil
	}
	initErr.Launch = err
	s.log.Warn("browser: launch with persistent profile failed", "profile", s.cfg.ProfileDir, "error", err)

	tmp, err := os.MkdirTemp("", s.cfg.TempProfilePrefix)
	if err != nil {
		initErr.TempRetry = fmt.Errorf("temp profile: %w", err)
	} else if err = s.tryLaunch(ctx, tmp, 0, tmp); err != nil {
		os.RemoveAll(tmp)
		initErr.TempRetry = err
	} else {
		s.log.Warn("browser: running on temporary profile, login state unavailable", "profile", tmp)
		return nil
	}

	s.setState(StateUninitialized)
	s.log.Error("browser: session init failed", "error", initErr)
	return initErr
}

func (s *Session) tryAttach(ctx context.Context) error {
	actx, cancel := context.WithTimeout(ctx, s.cfg.AttachTimeout)
	defer cancel()
	b, err := s.driver.Attach(actx, s.cfg.DebugURL)
	if err != nil {
		return err
	}
	p, err := s.pickPage(ctx, b)
	if err != nil {
		// Never close a browser we did not start.
		return fmt.Errorf("attach: pick page: %w", err)
	}
	s.mu.Lock()
	s.browser, s.attached, s.profileDir, s.tempDir = b, true, "", ""
	s.mu.Unlock()
	s.adoptPage(ctx, p)
	s.log.Info("browser: attached to running instance", "debug_url", s.cfg.DebugURL)
	return nil
}

func (s *Session) tryLaunch(ctx context.Context, profile string, port int, tempDir string) error {
	b, err := s.driver.Launch(ctx, LaunchOptions{
		ProfileDir:  profile,
		DebugPort:   port,
		AppURL:      s.cfg.AppURL,
		Bin:         s.cfg.Bin,
		ExtraFlags:  s.cfg.ExtraFlags,
		XvfbDisplay: s.cfg.XvfbDisplay,
	})
	if err != nil {
		return err
	}
	p, err := s.pickPage(ctx, b)
	if err != nil {
		b.Close()
		return fmt.Errorf("launch: pick page: %w", err)
	}
	s.mu.Lock()
	s.browser, s.attached, s.profileDir, s.tempDir = b, false, profile, tempDir
	s.mu.Unlock()
	s.adoptPage(ctx, p)
	s.log.Info("browser: launched", "profile", profile, "debug_port", port)
	return nil
}

func (s *Session) pickPage(ctx context.Context, b Browser) (Page, error) {
	pages, err := b.Pages(ctx)
	if err != nil {
		return nil, err
	}
	if p := PickBestPage(ctx, pages, s.cfg.PreferredPrefix); p != nil {
		return p, nil
	}
	return b.NewPage(ctx)
}

// PickBestPage returns the page whose URL starts with prefix, else the
// first http(s) page, else the first page. Nil when pages is empty.
func PickBestPage(ctx context.Context, pages []Page, prefix string) Page {
	if len(pages) == 0 {
		return nil
	}
	var firstHTTP Page
	for _, p := range pages {
		u, err := p.URL(ctx)
		if err != nil {
			continue
		}
		if prefix != "" && strings.HasPrefix(u, prefix) {
			return p
		}
		if firstHTTP == nil && (strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")) {
			firstHTTP = p
		}
	}
	if firstHTTP != nil {
		return firstHTTP
	}
	return pages[0]
}

// adoptPage makes p the active page: previous observers are removed before
// the new ones are installed.
func (s *Session) adoptPage(ctx context.Context, p Page) {
	s.mu.Lock()
	if s.stopObs != nil {
		s.stopObs()
		s.stopObs = nil
	}
	s.page = p
	s.stopObs = p.Observe(s.observers())
	s.state = StateConnected
	s.mu.Unlock()

	if err := p.BringToFront(ctx); err != nil {
		s.log.Debug("browser: bring to front failed", "error", err)
	}
	if u, err := p.URL(ctx); err == nil {
		s.setCurrentURL(u)
	}
}

func (s *Session) observers() Observers {
	ext := s.cfg.Observers
	return Observers{
		OnDialog: func(kind, message string) {
			s.log.Info("browser: dialog auto-accepted", "type", kind, "message", message)
			if ext.OnDialog != nil {
				ext.OnDialog(kind, message)
			}
		},
		OnPageError: func(message string) {
			s.log.Warn("browser: page error", "message", message)
			if ext.OnPageError != nil {
				ext.OnPageError(message)
			}
		},
		OnFailedResponse: func(url string, status int) {
			s.log.Debug("browser: failed response", "url", url, "status", status)
			if ext.OnFailedResponse != nil {
				ext.OnFailedResponse(url, status)
			}
		},
		OnNavigate: func(url string) {
			s.setCurrentURL(url)
			if ext.OnNavigate != nil {
				ext.OnNavigate(url)
			}
		},
	}
}

// Page returns a live page, re-acquiring it when the current one is nil,
// closed or detached: another live page of the same process, else a new
// page, else a full reinitialisation. The returned page is never stale.
func (s *Session) Page(ctx context.Context) (Page, error) {
	if err := s.EnsureSession(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	p := s.page
	s.mu.Unlock()
	if lossReason(ctx, p) == nil {
		return p, nil
	}

	v, err, _ := s.sf.Do("page", func() (any, error) {
		return s.reacquire(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(Page), nil
}

func (s *Session) reacquire(ctx context.Context) (Page, error) {
	s.mu.Lock()
	old, b := s.page, s.browser
	s.mu.Unlock()

	lost := lossReason(ctx, old)
	if lost == nil {
		return old, nil
	}
	s.log.Warn("browser: active page lost, re-acquiring", "error", lost)
	s.setState(StateDegraded)

	if b != nil && b.Alive(ctx) {
		if pages, err := b.Pages(ctx); err == nil {
			for _, cand := range pages {
				if old != nil && cand.ID() == old.ID() {
					continue
				}
				if lossReason(ctx, cand) == nil {
					s.adoptPage(ctx, cand)
					s.log.Info("browser: reusing existing page", "page", cand.ID())
					return cand, nil
				}
			}
		}
		if np, err := b.NewPage(ctx); err == nil && lossReason(ctx, np) == nil {
			s.adoptPage(ctx, np)
			s.log.Info("browser: opened new page", "page", np.ID())
			return np, nil
		}
	}

	s.log.Warn("browser: no page in current process, reinitialising session")
	s.CloseSafely()
	if err := s.EnsureSession(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	p := s.page
	s.mu.Unlock()
	if err := lossReason(ctx, p); err != nil {
		return nil, fmt.Errorf("browser: no usable page after reinit: %w", err)
	}
	return p, nil
}

func lossReason(ctx context.Context, p Page) error {
	switch {
	case p == nil:
		return &PageLostError{Reason: "nil"}
	case p.Closed(ctx):
		return &PageLostError{Reason: "closed"}
	case p.Detached(ctx):
		return &PageLostError{Reason: "detached"}
	}
	return nil
}

// CloseSafely closes the browser, ignoring errors. Handles are cleared
// before the close call so the session ends up uninitialised no matter
// what the close does.
func (s *Session) CloseSafely() {
	s.mu.Lock()
	b, stop, tmp, attached := s.browser, s.stopObs, s.tempDir, s.attached
	s.browser, s.page, s.stopObs, s.tempDir, s.attached = nil, nil, nil, "", false
	s.state = StateUninitialized
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("browser: panic during close", "panic", r)
		}
	}()
	if stop != nil {
		stop()
	}
	if b != nil {
		if err := b.Close(); err != nil {
			s.log.Warn("browser: close failed", "attached", attached, "error", err)
		} else {
			s.log.Info("browser: closed", "attached", attached)
		}
	}
	if tmp != "" {
		os.RemoveAll(tmp)
	}
}

// Restart tears the session down and brings it back up.
func (s *Session) Restart(ctx context.Context) error {
	s.CloseSafely()
	return s.EnsureSession(ctx)
}

// Shutdown closes the session for good.
func (s *Session) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.CloseSafely()
}

// Monitor polls browser liveness every interval until ctx ends. A dead
// connection drops the session to uninitialised so the next operation
// reconnects.
func (s *Session) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAlive(ctx)
		}
	}
}

func (s *Session) checkAlive(ctx context.Context) {
	s.mu.Lock()
	b := s.browser
	s.mu.Unlock()
	if b == nil {
		return
	}
	actx, cancel := context.WithTimeout(ctx, s.cfg.AttachTimeout)
	defer cancel()
	if !b.Alive(actx) {
		s.log.Warn("browser: connection lost")
		s.CloseSafely()
	}
}

// SetLastTarget records the last navigation target.
func (s *Session) SetLastTarget(u string) {
	s.mu.Lock()
	s.lastTarget = u
	s.mu.Unlock()
}

func (s *Session) setCurrentURL(u string) {
	s.mu.Lock()
	s.currentURL = u
	s.mu.Unlock()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// CurrentURL returns the last main-frame URL seen.
func (s *Session) CurrentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentURL
}

// Status returns the session status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:      s.state.String(),
		Connected:  s.browser != nil && s.state == StateConnected,
		Attached:   s.attached,
		CurrentURL: s.currentURL,
		LastTarget: s.lastTarget,
		ProfileDir: s.profileDir,
	}
}

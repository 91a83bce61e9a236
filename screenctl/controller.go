// Package screenctl is the control surface of tvremote: it owns the
// browser session that renders the shared TV screen and exposes channel
// changes, video navigation, caption control and health checks over
// HTTP, MCP and the in-process connectivity router.
//
// Usage:
//
//	cfg, _ := screenctl.LoadConfigFile("tvremote.yaml")
//	c, err := screenctl.New(cfg, screenctl.NewChromeDriver(cfg, logger), screenctl.WithLogger(logger))
//	defer c.Close()
//	c.Start(ctx)
//	c.RegisterMCP(mcpServer)
//	c.RegisterConnectivity(router)
//	h, _ := c.Handler(screenctl.HTTPOptions{APIKey: cfg.APIKey})
//	http.ListenAndServe(cfg.Listen, h)
package screenctl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/tvremote/connectivity"
	"github.com/hazyhaar/tvremote/idgen"
	"github.com/hazyhaar/tvremote/kit"
	"github.com/hazyhaar/tvremote/observability"
	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/captions"
	"github.com/hazyhaar/tvremote/screenctl/internal/config"
	"github.com/hazyhaar/tvremote/screenctl/internal/guide"
	"github.com/hazyhaar/tvremote/screenctl/internal/health"
	"github.com/hazyhaar/tvremote/screenctl/internal/media"
	"github.com/hazyhaar/tvremote/screenctl/internal/recovery"
	"github.com/hazyhaar/tvremote/screenctl/internal/target"
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithRouter dispatches guide API calls through r instead of a private
// router. The controller installs the guide route on it.
func WithRouter(r *connectivity.Router) Option {
	return func(c *Controller) { c.router = r }
}

// WithEventLogger sets the control event log.
func WithEventLogger(ev *observability.EventLogger) Option {
	return func(c *Controller) { c.events = ev }
}

// WithTaskIDs sets the background task ID generator.
func WithTaskIDs(gen idgen.Generator) Option {
	return func(c *Controller) { c.taskIDs = gen }
}

// Controller serialises control operations on the single browser session.
type Controller struct {
	cfg       *Config
	log       *slog.Logger
	session   *browser.Session
	recovery  *recovery.Engine
	captions  *captions.Controller
	info      *media.InfoExtractor
	guide     *guide.Client
	router    *connectivity.Router
	ownRouter bool
	events    *observability.EventLogger
	tasks     *taskRegistry
	taskIDs   idgen.Generator

	// gate admits one mutating operation at a time.
	gate chan struct{}

	life context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	current target.Target
}

// New wires a controller around driver. Nothing touches the browser until
// the first operation.
func New(cfg *Config, driver Driver, opts ...Option) (*Controller, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Controller{cfg: cfg, gate: make(chan struct{}, 1)}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.events == nil {
		c.events = observability.NewEventLogger(c.log, 200)
	}
	c.tasks = newTaskRegistry(cfg.TaskLimit, c.taskIDs)
	c.life, c.stop = context.WithCancel(context.Background())

	b, tm := cfg.Browser, cfg.Timings
	appURL := b.AppURL
	if appURL == "" {
		appURL = strings.TrimRight(cfg.Guide.BaseURL, "/") + "/web/guide"
	}
	c.session = browser.NewSession(browser.Config{
		DebugURL:          b.DebugURL,
		AttachTimeout:     b.AttachTimeout,
		ProfileDir:        b.ProfileDir,
		TempProfilePrefix: b.TempProfilePrefix,
		DebugPort:         b.DebugPort,
		AppURL:            appURL,
		PreferredPrefix:   cfg.Guide.BaseURL,
		Bin:               b.Bin,
		ExtraFlags:        b.ExtraFlags,
		XvfbDisplay:       b.XvfbDisplay,
		Observers: browser.Observers{
			OnDialog: func(kind, message string) {
				c.events.LogEvent(context.Background(), observability.Event{
					Type: "page", Action: "dialog_accepted", Details: kind + ": " + message, Success: true,
				})
			},
		},
		Logger: c.log,
	}, driver)

	c.recovery = recovery.New(recovery.Config{
		Settle:       tm.TacticSettle,
		ResizeDelta:  tm.ResizeDelta,
		ProbeTimeout: tm.RecoveryProbe,
		Logger:       c.log,
	})
	c.captions = captions.NewController(captions.Config{Settle: tm.CaptionSettle, Logger: c.log})
	c.info = media.NewInfoExtractor(tm.InfoCache, cfg.Video.DescriptionLimit)

	if c.router == nil {
		c.router = connectivity.New(connectivity.WithLogger(c.log))
		c.ownRouter = true
	}
	c.router.RegisterTransport("http", connectivity.HTTPFactory())
	c.guide = guide.New(c.router, guide.Config{
		RatePerSec:  cfg.Guide.RatePerSec,
		Burst:       cfg.Guide.Burst,
		Retries:     cfg.Guide.Retries,
		CallTimeout: cfg.Guide.Timeout,
		Logger:      c.log,
	})
	c.router.Wrap(guide.Service, c.guide.Middleware())
	if err := c.ReloadRoutes(cfg.Routes); err != nil {
		c.stop()
		return nil, fmt.Errorf("screenctl: routes: %w", err)
	}
	return c, nil
}

// ReloadRoutes replaces the connectivity route table. A guide route
// pointing at the configured base URL is added unless routes has one.
func (c *Controller) ReloadRoutes(routes []connectivity.Route) error {
	for _, rt := range routes {
		if rt.Service == guide.Service {
			return c.router.Reload(routes)
		}
	}
	all := append([]connectivity.Route{{
		Service:  guide.Service,
		Strategy: "http",
		Endpoint: c.cfg.Guide.BaseURL,
		Config:   map[string]any{"method": "GET", "timeout_ms": 5000},
	}}, routes...)
	return c.router.Reload(all)
}

// Start launches the browser liveness monitor and the guide auto-reload
// loop. Both stop with ctx or Close.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(2)
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	context.AfterFunc(c.life, cancel)
	go func() {
		defer c.wg.Done()
		c.session.Monitor(ctx, c.cfg.Browser.MonitorInterval)
	}()
	go func() {
		defer c.wg.Done()
		c.autoReload(ctx)
	}()
	c.log.Info("screenctl: started",
		"monitor_interval", c.cfg.Browser.MonitorInterval,
		"auto_reload", c.cfg.AutoReload.On(),
		"auto_reload_interval", c.cfg.AutoReload.Interval)
}

// Close stops background work, waits for running tasks and shuts the
// browser session down.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
	c.session.Shutdown()
	if c.ownRouter {
		c.router.Close()
	}
	observability.SetConnected(false)
	c.log.Info("screenctl: closed")
	return nil
}

// Router returns the connectivity router the guide client dispatches on.
func (c *Controller) Router() *connectivity.Router { return c.router }

// Events returns up to n recent control events, newest first.
func (c *Controller) Events(n int) []observability.Event { return c.events.Recent(n) }

// acquire takes the mutation gate, waiting until ctx ends.
func (c *Controller) acquire(ctx context.Context) (func(), error) {
	select {
	case c.gate <- struct{}{}:
		return c.release, nil
	default:
	}
	select {
	case c.gate <- struct{}{}:
		return c.release, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
	case <-c.life.Done():
		return nil, ErrClosed
	}
}

func (c *Controller) tryAcquire() (func(), bool) {
	select {
	case c.gate <- struct{}{}:
		return c.release, true
	default:
		return nil, false
	}
}

func (c *Controller) release() { <-c.gate }

func (c *Controller) busy() bool { return len(c.gate) > 0 }

// detach keeps ctx values but not its cancellation, so an operation the
// caller abandons still leaves the session consistent. The result ends
// with the controller.
func (c *Controller) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(c.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *Controller) setCurrent(t target.Target) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

func (c *Controller) currentTarget() target.Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// OnVideoSite reports whether the page currently shows an allowlisted
// video-site URL.
func (c *Controller) OnVideoSite() bool {
	return target.OnVideoSite(c.session.CurrentURL(), c.cfg.Video.Allowlist)
}

// --- change target ---

// ChangeResult is the synchronous answer of ChangeTarget.
type ChangeResult struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	ChannelID  string            `json:"channel_id,omitempty"`
	URL        string            `json:"url"`
	Navigation *NavigationReport `json:"navigation,omitempty"`
}

// ChangeTarget switches the screen to a guide channel and returns once the
// pipeline finished. An empty rawURL is built from channelID.
func (c *Controller) ChangeTarget(ctx context.Context, channelID, rawURL string) (*ChangeResult, error) {
	channelID, rawURL = strings.TrimSpace(channelID), strings.TrimSpace(rawURL)
	if rawURL == "" {
		if channelID == "" {
			return nil, fmt.Errorf("%w: url or channel id is required", ErrInvalidInput)
		}
		rawURL = target.ChannelURL(c.cfg.Guide.BaseURL, c.cfg.Guide.WebPath, channelID)
	}
	t, err := target.Guide(rawURL, channelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	ctx, cancel := c.detach(ctx)
	defer cancel()

	c.info.Invalidate()
	rep, err := c.navigate(ctx, t)
	if err != nil {
		return nil, err
	}
	label := t.ChannelID
	if label == "" {
		label = t.URL
	}
	return &ChangeResult{
		Success:    true,
		Message:    "Changed to channel " + label,
		ChannelID:  t.ChannelID,
		URL:        t.URL,
		Navigation: rep,
	}, nil
}

// --- video navigation ---

// NavigateVideo validates rawURL against the allowlist and runs the
// video-site pipeline in the background. The returned task can be polled.
func (c *Controller) NavigateVideo(ctx context.Context, rawURL string) (Task, error) {
	t, err := target.Video(strings.TrimSpace(rawURL), c.cfg.Video.Allowlist, c.cfg.Video.FromStart())
	if err != nil {
		return Task{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	kit.Logger(ctx, c.log).Info("screenctl: video navigation queued", "url", t.URL)
	return c.spawn("navigate_video", func(ctx context.Context) (any, error) {
		release, err := c.acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
		c.info.Invalidate()
		rep, err := c.navigate(ctx, t)
		if err != nil {
			return nil, err
		}
		return rep, nil
	})
}

// --- captions ---

// Caption actions.
const (
	CaptionsOn     = "on"
	CaptionsOff    = "off"
	CaptionsToggle = "toggle"
	CaptionsStatus = "status"
	CaptionsReset  = "reset"
)

// CaptionsResult is the answer of Captions.
type CaptionsResult struct {
	Success           bool                `json:"success"`
	Action            string              `json:"action"`
	Enabled           bool                `json:"enabled"`
	Before            *bool               `json:"before,omitempty"`
	Changed           bool                `json:"changed"`
	Method            string              `json:"method,omitempty"`
	Preference        captions.Preference `json:"preference"`
	Frozen            bool                `json:"frozen"`
	RecoveryAttempted bool                `json:"recovery_attempted"`
	Busy              bool                `json:"busy,omitempty"`
	Message           string              `json:"message,omitempty"`
}

// Captions runs a caption action on the video site. Every action except
// reset first checks page responsiveness and recovers a frozen page; a
// page that stays frozen fails with BrowserFrozenError.
func (c *Controller) Captions(ctx context.Context, action string) (*CaptionsResult, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	switch action {
	case CaptionsOn, CaptionsOff, CaptionsToggle, CaptionsStatus, CaptionsReset:
	default:
		return nil, fmt.Errorf("%w: unknown caption action %q", ErrInvalidInput, action)
	}
	if action == CaptionsReset {
		c.captions.Reset()
		c.events.LogEvent(ctx, observability.Event{Type: "captions", Action: action, Success: true})
		return &CaptionsResult{
			Success:    true,
			Action:     action,
			Preference: c.captions.Preference(),
			Message:    "caption preference cleared, configuration default applies",
		}, nil
	}
	if !c.OnVideoSite() {
		return nil, ErrNotOnVideoSite
	}

	if action != CaptionsStatus {
		release, err := c.acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
		var cancel context.CancelFunc
		ctx, cancel = c.detach(ctx)
		defer cancel()
	}

	p, err := c.session.Page(ctx)
	if err != nil {
		return nil, fmt.Errorf("screenctl: captions: %w", err)
	}
	res := &CaptionsResult{Action: action}
	rs, err := c.ensureResponsive(ctx, p, c.cfg.Timings.CaptionProbe, action != CaptionsStatus)
	res.Frozen, res.RecoveryAttempted, res.Busy = rs.frozen, rs.attempted, rs.busy
	if err != nil {
		return res, err
	}

	switch action {
	case CaptionsStatus:
		st, err := c.captions.Status(ctx, p)
		if err != nil {
			return res, fmt.Errorf("screenctl: captions: %w", err)
		}
		res.Enabled, res.Preference = st.Enabled, st.Preference
	case CaptionsToggle:
		tr, err := c.captions.Toggle(ctx, p)
		if err != nil {
			return res, fmt.Errorf("screenctl: captions: %w", err)
		}
		before := tr.Before
		res.Before, res.Enabled, res.Changed, res.Method = &before, tr.After, tr.Changed, "accelerator"
		res.Preference = c.captions.Preference()
	default:
		sr, err := c.captions.SetState(ctx, p, action == CaptionsOn)
		if err != nil {
			return res, fmt.Errorf("screenctl: captions: %w", err)
		}
		before := sr.Before
		res.Before, res.Enabled, res.Changed, res.Method, res.Preference = &before, sr.Enabled, sr.Changed, sr.Method, sr.Preference
	}
	res.Success = true
	if action != CaptionsStatus {
		c.events.LogEvent(ctx, observability.Event{
			Type: "captions", Action: action, Target: c.session.CurrentURL(),
			Details: fmt.Sprintf("enabled=%t method=%s", res.Enabled, res.Method), Success: true,
		})
	}
	return res, nil
}

func probe(ctx context.Context, p browser.Page, timeout time.Duration) health.Sample {
	s := health.Probe(ctx, p, timeout)
	observability.ObserveProbe(s.Frozen, s.Responded, s.RoundTrip)
	return s
}

type responsiveness struct {
	frozen    bool
	attempted bool
	busy      bool
}

// ensureResponsive probes p and runs recovery when it does not answer in
// time. Recovery moves the viewport and presses keys, so a caller that does
// not hold the mutation gate only recovers when the gate is free; otherwise
// it fails with ErrBusy and nothing touches the page.
func (c *Controller) ensureResponsive(ctx context.Context, p browser.Page, timeout time.Duration, held bool) (responsiveness, error) {
	var r responsiveness
	s := probe(ctx, p, timeout)
	if s.Healthy() {
		return r, nil
	}
	r.frozen = s.Frozen
	if !held {
		release, ok := c.tryAcquire()
		if !ok {
			r.busy = true
			c.log.Warn("screenctl: page not responsive, recovery skipped while busy", "frozen", s.Frozen)
			return r, fmt.Errorf("%w: page not responsive", ErrBusy)
		}
		defer release()
	}
	c.log.Warn("screenctl: page not responsive, recovering", "frozen", s.Frozen, "error", s.Err)
	rep := c.recovery.Recover(ctx, p)
	c.logRecovery(ctx, rep)
	r.attempted = true
	if !rep.Recovered {
		return r, &BrowserFrozenError{Probe: s, Recovery: rep}
	}
	return r, nil
}

func (c *Controller) logRecovery(ctx context.Context, rep recovery.Report) {
	names := make([]string, 0, len(rep.Outcomes))
	for _, o := range rep.Outcomes {
		names = append(names, o.Tactic)
	}
	c.events.LogEvent(ctx, observability.Event{
		Type: "recovery", Action: "recover", Target: c.session.CurrentURL(),
		Details: "tactics=" + strings.Join(names, ","), Success: rep.Recovered,
	})
}

// --- health ---

// HealthStatus is the cheap liveness view; it never evaluates in the page.
type HealthStatus struct {
	Status      string         `json:"status"`
	Browser     browser.Status `json:"browser"`
	OnVideoSite bool           `json:"on_video_site"`
	ChannelID   string         `json:"channel_id,omitempty"`
	VideoInfo   *media.Info    `json:"video_info,omitempty"`
	Busy        bool           `json:"busy"`
	LogFile     string         `json:"log_file,omitempty"`
}

// Health reports session connectivity and the last target.
func (c *Controller) Health() HealthStatus {
	st := c.session.Status()
	observability.SetConnected(st.Connected)
	h := HealthStatus{
		Status:      "running",
		Browser:     st,
		OnVideoSite: c.OnVideoSite(),
		ChannelID:   c.currentTarget().ChannelID,
		Busy:        c.busy(),
		LogFile:     c.cfg.LogFile,
	}
	if info, ok := c.info.Cached(); ok {
		h.VideoInfo = &info
	}
	return h
}

// PageHealth is the answer of an active responsiveness probe.
type PageHealth struct {
	Healthy           bool   `json:"healthy"`
	Frozen            bool   `json:"frozen"`
	ResponseTimeMS    int64  `json:"response_time_ms"`
	ReadyState        string `json:"ready_state,omitempty"`
	URL               string `json:"url,omitempty"`
	OnVideoSite       bool   `json:"on_video_site"`
	ChannelID         string `json:"channel_id,omitempty"`
	RecoveryAttempted bool   `json:"recovery_attempted"`
	Recovered         bool   `json:"recovered"`
	Busy              bool   `json:"busy,omitempty"`
	CanRestart        bool   `json:"can_restart"`
	Error             string `json:"error,omitempty"`
}

// PageHealth probes the page and, on a freeze, runs recovery and reports
// whether it worked. It never fails; problems are in the result. Recovery
// needs the mutation gate: while another operation holds it the freeze is
// only reported, with Busy set.
func (c *Controller) PageHealth(ctx context.Context) PageHealth {
	if !c.session.Status().Connected {
		return PageHealth{Error: "no browser session", CanRestart: true}
	}
	p, err := c.session.Page(ctx)
	if err != nil {
		return PageHealth{Error: err.Error(), CanRestart: true}
	}

	s := probe(ctx, p, c.cfg.Timings.HealthProbe)
	ph := PageHealth{
		Healthy:        s.Healthy(),
		Frozen:         s.Frozen,
		ResponseTimeMS: s.RoundTrip.Milliseconds(),
		ReadyState:     s.ReadyState,
		URL:            c.session.CurrentURL(),
		OnVideoSite:    c.OnVideoSite(),
		ChannelID:      c.currentTarget().ChannelID,
		CanRestart:     true,
		Error:          s.Err,
	}
	if !s.Frozen {
		return ph
	}
	release, ok := c.tryAcquire()
	if !ok {
		ph.Busy = true
		c.log.Warn("screenctl: page frozen, recovery skipped while busy", "response_time", s.RoundTrip)
		return ph
	}
	defer release()
	c.log.Warn("screenctl: page frozen, recovering", "response_time", s.RoundTrip)
	rep := c.recovery.Recover(ctx, p)
	c.logRecovery(ctx, rep)
	ph.RecoveryAttempted, ph.Recovered = true, rep.Recovered
	return ph
}

// --- session ---

// RestartResult is the answer of RestartSession.
type RestartResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Browser browser.Status `json:"browser"`
}

// RestartSession tears the browser down and brings it back up. The caption
// preference is reset with it.
func (c *Controller) RestartSession(ctx context.Context) (*RestartResult, error) {
	release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	ctx, cancel := c.detach(ctx)
	defer cancel()

	c.captions.Reset()
	c.info.Invalidate()
	c.setCurrent(target.Target{})
	err = c.session.Restart(ctx)
	observability.ObserveRestart()
	observability.SetConnected(err == nil)
	ev := observability.Event{Type: "session", Action: "restart", Success: err == nil}
	if err != nil {
		ev.Details = err.Error()
		c.events.LogEvent(ctx, ev)
		return nil, fmt.Errorf("screenctl: restart: %w", err)
	}
	c.events.LogEvent(ctx, ev)
	return &RestartResult{Success: true, Message: "Browser restarted successfully", Browser: c.session.Status()}, nil
}

// --- read-only views ---

// DebugReport is a raw snapshot of the page for troubleshooting.
type DebugReport struct {
	Page        media.DebugInfo `json:"page"`
	Browser     browser.Status  `json:"browser"`
	OnVideoSite bool            `json:"on_video_site"`
	VideoSite   *VideoSiteDebug `json:"video_site,omitempty"`
	Tasks       []Task          `json:"tasks,omitempty"`
}

// VideoSiteDebug is the video-site part of DebugReport.
type VideoSiteDebug struct {
	Captions   bool                `json:"captions_visible"`
	Preference captions.Preference `json:"caption_preference"`
	Info       *media.Info         `json:"info,omitempty"`
}

// Debug reads the media element and fullscreen state of the page.
func (c *Controller) Debug(ctx context.Context) (*DebugReport, error) {
	p, err := c.session.Page(ctx)
	if err != nil {
		return nil, fmt.Errorf("screenctl: debug: %w", err)
	}
	info, err := media.ReadDebug(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("screenctl: debug: %w", err)
	}
	rep := &DebugReport{Page: info, Browser: c.session.Status(), OnVideoSite: c.OnVideoSite(), Tasks: c.Tasks()}
	if rep.OnVideoSite {
		vs := &VideoSiteDebug{Preference: c.captions.Preference()}
		if on, err := captions.IsVisible(ctx, p); err == nil {
			vs.Captions = on
		}
		if cached, ok := c.info.Cached(); ok {
			vs.Info = &cached
		}
		rep.VideoSite = vs
	}
	return rep, nil
}

// CurrentStatus is the last known target.
type CurrentStatus struct {
	URL         string      `json:"current_url,omitempty"`
	LastTarget  string      `json:"last_target,omitempty"`
	Kind        target.Kind `json:"kind,omitempty"`
	ChannelID   string      `json:"channel_id,omitempty"`
	OnVideoSite bool        `json:"on_video_site"`
	Browser     string      `json:"browser"`
	VideoInfo   *media.Info `json:"video_info,omitempty"`
}

// Current returns the current URL and the last navigation target.
func (c *Controller) Current() CurrentStatus {
	st := c.session.Status()
	t := c.currentTarget()
	cs := CurrentStatus{
		URL:         st.CurrentURL,
		LastTarget:  st.LastTarget,
		Kind:        t.Kind,
		ChannelID:   t.ChannelID,
		OnVideoSite: c.OnVideoSite(),
		Browser:     st.State,
	}
	if info, ok := c.info.Cached(); ok {
		cs.VideoInfo = &info
	}
	return cs
}

// VideoInfoResult is the answer of VideoInfo.
type VideoInfoResult struct {
	OnVideoSite bool        `json:"on_video_site"`
	Info        *media.Info `json:"info,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// VideoInfo returns the video metadata, extracted at most once per cache
// period.
func (c *Controller) VideoInfo(ctx context.Context) (*VideoInfoResult, error) {
	if !c.OnVideoSite() {
		return &VideoInfoResult{Message: "not currently on the video site"}, nil
	}
	p, err := c.session.Page(ctx)
	if err != nil {
		return nil, fmt.Errorf("screenctl: video info: %w", err)
	}
	info, err := c.info.Extract(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("screenctl: video info: %w", err)
	}
	return &VideoInfoResult{OnVideoSite: true, Info: &info}, nil
}

// LoginStatusResult is the answer of LoginStatus.
type LoginStatusResult struct {
	OnVideoSite bool             `json:"on_video_site"`
	LoggedIn    bool             `json:"logged_in"`
	Login       media.LoginState `json:"login"`
	VideoInfo   *media.Info      `json:"video_info,omitempty"`
}

// LoginStatus checks whether the browser profile is signed in to the video
// site. Off the video site the page is first sent to the site home, which
// takes the gate.
func (c *Controller) LoginStatus(ctx context.Context) (*LoginStatusResult, error) {
	if !c.OnVideoSite() {
		release, err := c.acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
		var cancel context.CancelFunc
		ctx, cancel = c.detach(ctx)
		defer cancel()
		if _, err := c.load(ctx, c.cfg.Video.HomeURL); err != nil {
			return nil, fmt.Errorf("screenctl: login status: %w", err)
		}
		c.session.SetLastTarget(c.cfg.Video.HomeURL)
		c.setCurrent(target.Target{})
	}
	p, err := c.session.Page(ctx)
	if err != nil {
		return nil, fmt.Errorf("screenctl: login status: %w", err)
	}
	st, err := media.ReadLogin(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("screenctl: login status: %w", err)
	}
	res := &LoginStatusResult{OnVideoSite: c.OnVideoSite(), LoggedIn: st.LoggedIn(), Login: st}
	if info, ok := c.info.Cached(); ok {
		res.VideoInfo = &info
	}
	if !res.LoggedIn {
		c.log.Warn("screenctl: video site login not detected")
	}
	return res, nil
}

// OpenLogin sends the page to the video-site sign-in page in the
// background so an operator can log the profile in.
func (c *Controller) OpenLogin(ctx context.Context) (Task, error) {
	loginURL := c.cfg.Video.LoginURL
	kit.Logger(ctx, c.log).Info("screenctl: login page requested")
	return c.spawn("open_login", func(ctx context.Context) (any, error) {
		release, err := c.acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
		c.info.Invalidate()
		if _, err := c.load(ctx, loginURL); err != nil {
			c.events.LogEvent(ctx, observability.Event{Type: "navigation", Action: "login", Target: loginURL, Details: err.Error()})
			return nil, &NavigationError{URL: loginURL, Err: err}
		}
		c.session.SetLastTarget(loginURL)
		c.setCurrent(target.Target{})
		c.events.LogEvent(ctx, observability.Event{Type: "navigation", Action: "login", Target: loginURL, Success: true})
		return map[string]string{"url": loginURL}, nil
	})
}

// --- guide passthrough ---

// Channels returns the upstream guide channel list.
func (c *Controller) Channels(ctx context.Context) (json.RawMessage, error) {
	return c.guide.Channels(ctx)
}

// NowPlaying returns the upstream now-playing document of a channel.
func (c *Controller) NowPlaying(ctx context.Context, channelID string) (json.RawMessage, error) {
	if strings.TrimSpace(channelID) == "" {
		return nil, fmt.Errorf("%w: channel id is required", ErrInvalidInput)
	}
	return c.guide.NowPlaying(ctx, channelID)
}

package screenctl

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/browser/browsertest"
	"github.com/hazyhaar/tvremote/screenctl/internal/captions"
	"github.com/hazyhaar/tvremote/screenctl/internal/fullscreen"
	"github.com/hazyhaar/tvremote/screenctl/internal/media"
	"github.com/hazyhaar/tvremote/screenctl/internal/pagejs"
	"github.com/hazyhaar/tvremote/screenctl/internal/target"
)

const guideBase = "http://tv.test"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	off := false
	cfg.AutoReload.Enabled = &off
	cfg.Browser.DebugURL = ""
	cfg.Browser.ProfileDir = t.TempDir()
	cfg.Guide.BaseURL = guideBase

	tm := &cfg.Timings
	for _, d := range []*time.Duration{
		&tm.VideoBuffer, &tm.GuideBuffer, &tm.TacticSettle, &tm.CaptionSettle,
		&tm.CaptionOffDelay, &tm.FullscreenDelay, &tm.ResumeDelay,
		&tm.Stabilization, &tm.HideControls,
	} {
		*d = time.Millisecond
	}
	tm.HealthProbe = 200 * time.Millisecond
	tm.CaptionProbe = 200 * time.Millisecond
	tm.RecoveryProbe = 100 * time.Millisecond
	tm.MediaElement = 100 * time.Millisecond
	tm.MediaReady = 100 * time.Millisecond
	tm.Navigation = time.Second
	return cfg
}

// player fakes a video that resumed at 120s, is fullscreen already and
// shows captions while the c key was pressed an odd number of times.
type player struct {
	mu    sync.Mutex
	time  float64
	seeks int
}

func (pl *player) setup(p *browsertest.Page) {
	pl.mu.Lock()
	if pl.time == 0 {
		pl.time = 120
	}
	pl.mu.Unlock()

	p.Handle(pagejs.MediaState, func([]any) (any, error) {
		pl.mu.Lock()
		defer pl.mu.Unlock()
		return media.State{Present: true, ReadyState: media.HaveFutureData + 1, CurrentTime: pl.time}, nil
	})
	p.Handle(pagejs.SetCurrentTime, func([]any) (any, error) {
		pl.mu.Lock()
		defer pl.mu.Unlock()
		pl.time = 0.1
		pl.seeks++
		return true, nil
	})
	p.HandleValue(pagejs.FullscreenState, fullscreen.State{Element: "video"})
	p.Handle(pagejs.CaptionSnapshot, func([]any) (any, error) {
		presses := 0
		for _, k := range p.Keys() {
			if k == browser.KeyC {
				presses++
			}
		}
		n := captions.Node{Selector: ".ytp-caption-segment", Display: "inline-block", Visibility: "visible", Opacity: "1", Width: 200, Height: 30, Text: "hello"}
		if presses%2 == 0 {
			n.Display = "none"
		}
		return captions.Snapshot{Text: []captions.Node{n}}, nil
	})
}

func (pl *player) Seeks() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.seeks
}

func newTestController(t *testing.T, cfg *Config, d *browsertest.Driver) *Controller {
	t.Helper()
	if cfg == nil {
		cfg = testConfig(t)
	}
	c, err := New(cfg, d, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func firstPage(t *testing.T, d *browsertest.Driver, n int) *browsertest.Page {
	t.Helper()
	launched := d.Launched()
	if len(launched) < n {
		t.Fatalf("launched browsers: got %d, want >= %d", len(launched), n)
	}
	return launched[n-1].FakePages()[0]
}

func waitTask(t *testing.T, c *Controller, id string) Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := c.Task(id)
		if err != nil {
			t.Fatalf("Task: %v", err)
		}
		if task.Status.Done() {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s did not finish", id)
	return Task{}
}

func channelURL(id string) string {
	return guideBase + "/web/channels/" + id + "/watch?noAutoPlay=false"
}

func TestChangeTarget_GuideChannel(t *testing.T) {
	pl := &player{}
	d := &browsertest.Driver{Setup: pl.setup}
	c := newTestController(t, nil, d)

	res, err := c.ChangeTarget(context.Background(), "abc123", "")
	if err != nil {
		t.Fatalf("ChangeTarget: %v", err)
	}
	if !res.Success || res.Message != "Changed to channel abc123" {
		t.Fatalf("result: %+v", res)
	}
	if res.URL != channelURL("abc123") {
		t.Fatalf("url: got %q, want %q", res.URL, channelURL("abc123"))
	}
	nav := res.Navigation
	if nav.Renavigate || nav.Retried {
		t.Fatalf("unexpected recovery: %+v", nav)
	}
	if !nav.Fullscreen.Success || nav.Fullscreen.Tactic != "already-active" {
		t.Fatalf("fullscreen: %+v", nav.Fullscreen)
	}
	if !nav.Hidden {
		t.Fatal("controls not hidden")
	}

	p := firstPage(t, d, 1)
	if navs := p.Navigations(); len(navs) != 1 || navs[0] != channelURL("abc123") {
		t.Fatalf("navigations: %v", navs)
	}
	if got := c.Current(); got.ChannelID != "abc123" || got.Kind != target.KindGuide {
		t.Fatalf("current: %+v", got)
	}
	if pl.Seeks() != 0 {
		t.Fatalf("guide channel was seeked %d times", pl.Seeks())
	}
}

func TestChangeTarget_RenavigatesOnce(t *testing.T) {
	pl := &player{}
	d := &browsertest.Driver{Setup: func(p *browsertest.Page) {
		pl.setup(p)
		var calls atomic.Int32
		p.RedirectNavigation(func(u string) string {
			if calls.Add(1) == 1 {
				return guideBase + "/web/guide"
			}
			return u
		})
	}}
	c := newTestController(t, nil, d)

	res, err := c.ChangeTarget(context.Background(), "abc123", "")
	if err != nil {
		t.Fatalf("ChangeTarget: %v", err)
	}
	if !res.Navigation.Renavigate {
		t.Fatal("expected a second navigation")
	}
	if got := len(firstPage(t, d, 1).Navigations()); got != 2 {
		t.Fatalf("navigations: got %d, want 2", got)
	}
	if !strings.Contains(res.Navigation.LandedURL, "abc123") {
		t.Fatalf("landed: %q", res.Navigation.LandedURL)
	}
}

func TestChangeTarget_MismatchIsTerminal(t *testing.T) {
	d := &browsertest.Driver{Setup: func(p *browsertest.Page) {
		new(player).setup(p)
		p.RedirectNavigation(func(string) string { return guideBase + "/web/guide" })
	}}
	c := newTestController(t, nil, d)

	_, err := c.ChangeTarget(context.Background(), "abc123", "")
	var navErr *NavigationError
	if !errors.As(err, &navErr) {
		t.Fatalf("error: got %v, want NavigationError", err)
	}
	if !errors.Is(err, errChannelMismatch) {
		t.Fatalf("error: got %v, want channel mismatch", err)
	}
	if n := len(d.Launches()); n != 1 {
		t.Fatalf("launches: got %d, want 1 (no reinitialise)", n)
	}
	if got := len(firstPage(t, d, 1).Navigations()); got != 2 {
		t.Fatalf("navigations: got %d, want 2", got)
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("status: got %d", StatusCode(err))
	}
}

func TestChangeTarget_ReinitialisesOnFailure(t *testing.T) {
	d := &browsertest.Driver{Setup: func(p *browsertest.Page) {
		new(player).setup(p)
		if p.ID() == "launch-1" {
			p.FailNavigation(func(string) error { return errors.New("net::ERR_ABORTED") })
		}
	}}
	c := newTestController(t, nil, d)

	res, err := c.ChangeTarget(context.Background(), "", channelURL("news"))
	if err != nil {
		t.Fatalf("ChangeTarget: %v", err)
	}
	if !res.Navigation.Retried {
		t.Fatalf("navigation: %+v", res.Navigation)
	}
	if res.ChannelID != "news" {
		t.Fatalf("channel id: got %q, want news", res.ChannelID)
	}
	if n := len(d.Launches()); n != 2 {
		t.Fatalf("launches: got %d, want 2", n)
	}
	if navs := firstPage(t, d, 2).Navigations(); len(navs) != 1 || navs[0] != channelURL("news") {
		t.Fatalf("retry navigations: %v", navs)
	}
}

func TestChangeTarget_BothAttemptsFail(t *testing.T) {
	d := &browsertest.Driver{Setup: func(p *browsertest.Page) {
		p.FailNavigation(func(string) error { return errors.New("net::ERR_NAME_NOT_RESOLVED") })
	}}
	c := newTestController(t, nil, d)

	_, err := c.ChangeTarget(context.Background(), "abc123", "")
	var navErr *NavigationError
	if !errors.As(err, &navErr) || navErr.URL != channelURL("abc123") {
		t.Fatalf("error: got %v", err)
	}
	if c.Current().ChannelID != "" {
		t.Fatal("failed navigation must not become the current target")
	}
	events := c.Events(10)
	if len(events) == 0 || events[0].Type != "navigation" || events[0].Success {
		t.Fatalf("events: %+v", events)
	}
}

func TestChangeTarget_InvalidInput(t *testing.T) {
	c := newTestController(t, nil, &browsertest.Driver{})
	for _, tc := range []struct{ id, url string }{
		{"", ""},
		{"", "ftp://tv.test/web/channels/x"},
		{"", "javascript:alert(1)"},
	} {
		if _, err := c.ChangeTarget(context.Background(), tc.id, tc.url); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%q/%q: got %v, want ErrInvalidInput", tc.id, tc.url, err)
		}
	}
}

func TestChangeTarget_Busy(t *testing.T) {
	c := newTestController(t, nil, &browsertest.Driver{Setup: new(player).setup})
	release, ok := c.tryAcquire()
	if !ok {
		t.Fatal("gate should be free")
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ChangeTarget(ctx, "abc123", "")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("error: got %v, want ErrBusy", err)
	}
	if StatusCode(err) != http.StatusConflict {
		t.Fatalf("status: got %d", StatusCode(err))
	}
	if !c.Health().Busy {
		t.Fatal("health should report busy")
	}
}

func TestNavigateVideo_SeeksToStart(t *testing.T) {
	pl := &player{}
	d := &browsertest.Driver{Setup: pl.setup}
	c := newTestController(t, nil, d)

	task, err := c.NavigateVideo(context.Background(), "https://www.youtube.com/watch?v=abc&t=120")
	if err != nil {
		t.Fatalf("NavigateVideo: %v", err)
	}
	if !strings.HasPrefix(task.ID, "task_") || task.Kind != "navigate_video" {
		t.Fatalf("task: %+v", task)
	}
	done := waitTask(t, c, task.ID)
	if done.Status != TaskSucceeded {
		t.Fatalf("task: %+v", done)
	}
	rep, ok := done.Result.(*NavigationReport)
	if !ok {
		t.Fatalf("result: %T", done.Result)
	}
	if !rep.Seeked || pl.Seeks() != 1 {
		t.Fatalf("seeked: %v, seeks %d", rep.Seeked, pl.Seeks())
	}
	if rep.Captions == nil || rep.Captions.Enabled {
		t.Fatalf("captions: %+v", rep.Captions)
	}

	navs := firstPage(t, d, 1).Navigations()
	if len(navs) != 1 || !strings.Contains(navs[0], "t=0s") || strings.Contains(navs[0], "t=120") {
		t.Fatalf("navigations: %v", navs)
	}
	if !c.OnVideoSite() {
		t.Fatal("should be on the video site")
	}
	if got := c.Current(); got.Kind != target.KindVideo {
		t.Fatalf("current: %+v", got)
	}
}

func TestNavigateVideo_RejectsOffAllowlist(t *testing.T) {
	c := newTestController(t, nil, &browsertest.Driver{})
	for _, u := range []string{
		"https://evil.example/watch?v=abc",
		"https://youtube.com.evil.example/",
		"file:///etc/passwd",
	} {
		_, err := c.NavigateVideo(context.Background(), u)
		if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, target.ErrNotAllowed) {
			t.Errorf("%s: got %v", u, err)
		}
	}
	if n := len(c.Tasks()); n != 0 {
		t.Fatalf("tasks: got %d, want 0", n)
	}
}

func TestCaptions_RequiresVideoSite(t *testing.T) {
	c := newTestController(t, nil, &browsertest.Driver{Setup: new(player).setup})
	if _, err := c.ChangeTarget(context.Background(), "abc123", ""); err != nil {
		t.Fatal(err)
	}
	_, err := c.Captions(context.Background(), CaptionsOn)
	if !errors.Is(err, ErrNotOnVideoSite) {
		t.Fatalf("error: got %v, want ErrNotOnVideoSite", err)
	}
	if StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("status: got %d", StatusCode(err))
	}
	if _, err := c.Captions(context.Background(), "sideways"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("error: got %v, want ErrInvalidInput", err)
	}
}

func playVideo(t *testing.T, c *Controller) {
	t.Helper()
	task, err := c.NavigateVideo(context.Background(), "https://www.youtube.com/watch?v=abc")
	if err != nil {
		t.Fatal(err)
	}
	if done := waitTask(t, c, task.ID); done.Status != TaskSucceeded {
		t.Fatalf("task: %+v", done)
	}
}

func TestCaptions_OnStatusAndRestartReset(t *testing.T) {
	d := &browsertest.Driver{Setup: new(player).setup}
	c := newTestController(t, nil, d)
	playVideo(t, c)
	ctx := context.Background()

	res, err := c.Captions(ctx, CaptionsOn)
	if err != nil {
		t.Fatalf("on: %v", err)
	}
	if !res.Success || !res.Enabled || !res.Changed || res.Preference != captions.On {
		t.Fatalf("on: %+v", res)
	}
	again, err := c.Captions(ctx, "ON")
	if err != nil {
		t.Fatal(err)
	}
	if again.Changed {
		t.Fatalf("second on changed state: %+v", again)
	}
	if res.Before == nil || *res.Before || again.Before == nil || !*again.Before {
		t.Fatalf("before: got %v then %v, want false then true", res.Before, again.Before)
	}

	st, err := c.Captions(ctx, CaptionsStatus)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Enabled || st.Frozen || st.RecoveryAttempted {
		t.Fatalf("status: %+v", st)
	}

	tg, err := c.Captions(ctx, CaptionsToggle)
	if err != nil {
		t.Fatal(err)
	}
	if tg.Before == nil || !*tg.Before || tg.Enabled {
		t.Fatalf("toggle: %+v", tg)
	}

	if _, err := c.RestartSession(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if got := c.captions.Preference(); got != captions.Unset {
		t.Fatalf("preference after restart: got %v, want unset", got)
	}
	if n := len(d.Launches()); n != 2 {
		t.Fatalf("launches: got %d, want 2", n)
	}
	if c.Current().Kind != "" {
		t.Fatalf("current after restart: %+v", c.Current())
	}
}

func TestCaptions_ResetNeedsNoBrowser(t *testing.T) {
	d := &browsertest.Driver{}
	c := newTestController(t, nil, d)
	res, err := c.Captions(context.Background(), CaptionsReset)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Preference != captions.Unset {
		t.Fatalf("reset: %+v", res)
	}
	if n := len(d.Launches()); n != 0 {
		t.Fatalf("launches: got %d, want 0", n)
	}
}

func TestCaptions_FrozenPage(t *testing.T) {
	d := &browsertest.Driver{Setup: new(player).setup}
	cfg := testConfig(t)
	cfg.Timings.CaptionProbe = 50 * time.Millisecond
	cfg.Timings.RecoveryProbe = 50 * time.Millisecond
	c := newTestController(t, cfg, d)
	playVideo(t, c)

	firstPage(t, d, 1).SetEvalDelay(300 * time.Millisecond)
	res, err := c.Captions(context.Background(), CaptionsOn)
	var frozen *BrowserFrozenError
	if !errors.As(err, &frozen) {
		t.Fatalf("error: got %v, want BrowserFrozenError", err)
	}
	if !res.Frozen || !res.RecoveryAttempted || res.Success {
		t.Fatalf("result: %+v", res)
	}
	if StatusCode(err) != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d", StatusCode(err))
	}
	if c.captions.Preference() != captions.Unset {
		t.Fatal("preference must not change when the page is frozen")
	}
}

func TestPageHealth(t *testing.T) {
	d := &browsertest.Driver{Setup: new(player).setup}
	c := newTestController(t, nil, d)

	ph := c.PageHealth(context.Background())
	if ph.Healthy || !ph.CanRestart || ph.Error == "" {
		t.Fatalf("before session: %+v", ph)
	}
	if n := len(d.Launches()); n != 0 {
		t.Fatalf("health probe launched a browser")
	}

	if _, err := c.ChangeTarget(context.Background(), "abc123", ""); err != nil {
		t.Fatal(err)
	}
	ph = c.PageHealth(context.Background())
	if !ph.Healthy || ph.Frozen || ph.RecoveryAttempted {
		t.Fatalf("healthy page: %+v", ph)
	}
	if ph.ChannelID != "abc123" || ph.OnVideoSite {
		t.Fatalf("healthy page: %+v", ph)
	}
}

func TestPageHealth_FrozenRunsRecovery(t *testing.T) {
	d := &browsertest.Driver{Setup: new(player).setup}
	cfg := testConfig(t)
	cfg.Timings.HealthProbe = 50 * time.Millisecond
	c := newTestController(t, cfg, d)
	if _, err := c.ChangeTarget(context.Background(), "abc123", ""); err != nil {
		t.Fatal(err)
	}

	p := firstPage(t, d, 1)
	p.SetEvalDelay(200 * time.Millisecond)
	ph := c.PageHealth(context.Background())
	if !ph.Frozen || !ph.RecoveryAttempted || ph.Recovered {
		t.Fatalf("frozen page: %+v", ph)
	}
	if len(p.Viewports()) == 0 {
		t.Fatal("recovery did not nudge the viewport")
	}
}

func TestFrozenPage_NoRecoveryWhileBusy(t *testing.T) {
	d := &browsertest.Driver{Setup: new(player).setup}
	cfg := testConfig(t)
	cfg.Timings.HealthProbe = 50 * time.Millisecond
	cfg.Timings.CaptionProbe = 50 * time.Millisecond
	c := newTestController(t, cfg, d)
	playVideo(t, c)

	release, err := c.acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	p := firstPage(t, d, 1)
	keys, viewports := len(p.Keys()), len(p.Viewports())
	p.SetEvalDelay(200 * time.Millisecond)

	ph := c.PageHealth(context.Background())
	if !ph.Frozen || !ph.Busy || ph.RecoveryAttempted {
		t.Fatalf("page health: %+v", ph)
	}
	res, err := c.Captions(context.Background(), CaptionsStatus)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("caption status: got %v, want ErrBusy", err)
	}
	if !res.Busy || res.RecoveryAttempted {
		t.Fatalf("caption status: %+v", res)
	}
	if got := len(p.Keys()); got != keys {
		t.Fatalf("keys pressed while busy: %v", p.Keys()[keys:])
	}
	if got := len(p.Viewports()); got != viewports {
		t.Fatalf("viewport changed while busy: got %d, want %d", got, viewports)
	}
}

func TestReloadGuide_OnlyDuringPrograms(t *testing.T) {
	var playing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/channels/abc123/now_playing" {
			http.NotFound(w, r)
			return
		}
		if playing.Load() {
			w.Write([]byte(`{"title":"Evening news"}`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Guide.BaseURL = srv.URL
	cfg.AutoReload.OnlyDuringPrograms = true
	d := &browsertest.Driver{Setup: new(player).setup}
	c := newTestController(t, cfg, d)

	ctx := context.Background()
	if c.reloadGuide(ctx) {
		t.Fatal("reload without a guide channel")
	}
	if _, err := c.ChangeTarget(ctx, "abc123", ""); err != nil {
		t.Fatal(err)
	}
	p := firstPage(t, d, 1)

	if c.reloadGuide(ctx) {
		t.Fatal("reload while nothing is playing")
	}
	playing.Store(true)
	if !c.reloadGuide(ctx) {
		t.Fatal("reload skipped while a program is playing")
	}
	if got := len(p.Navigations()); got != 2 {
		t.Fatalf("navigations: got %d, want 2", got)
	}

	release, _ := c.tryAcquire()
	defer release()
	if c.reloadGuide(ctx) {
		t.Fatal("reload ran while the gate was held")
	}
}

func TestProgramPlaying(t *testing.T) {
	tests := []struct {
		doc  string
		want bool
	}{
		{`{"title":"x"}`, true},
		{`{}`, false},
		{` null `, false},
		{``, false},
	}
	for _, tt := range tests {
		if got := programPlaying([]byte(tt.doc)); got != tt.want {
			t.Errorf("%q: got %v, want %v", tt.doc, got, tt.want)
		}
	}
}

func TestClose_StopsBackgroundWork(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testConfig(t)
	on := true
	cfg.AutoReload.Enabled = &on
	cfg.AutoReload.Interval = 5 * time.Millisecond
	cfg.Browser.MonitorInterval = 5 * time.Millisecond
	c, err := New(cfg, &browsertest.Driver{Setup: new(player).setup}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	c.Start(context.Background())
	task, err := c.NavigateVideo(context.Background(), "https://youtu.be/abc")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := c.Task(task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Status.Done() {
		t.Fatalf("task still %s after Close", got.Status)
	}
	if _, err := c.NavigateVideo(context.Background(), "https://youtu.be/abc"); !errors.Is(err, ErrClosed) {
		t.Fatalf("after close: got %v, want ErrClosed", err)
	}
	if c.Close() != nil {
		t.Fatal("second Close should be a no-op")
	}
}

func TestTaskRegistry_EvictsFinishedFirst(t *testing.T) {
	n := 0
	r := newTaskRegistry(2, func() string {
		n++
		return "t" + string(rune('0'+n))
	})
	a := r.create("a")
	b := r.create("b")
	r.update(b.ID, func(t *Task) { t.Status = TaskSucceeded })
	c := r.create("c")

	if _, ok := r.get(b.ID); ok {
		t.Fatal("finished task b should be evicted")
	}
	if _, ok := r.get(a.ID); !ok {
		t.Fatal("pending task a must be kept")
	}
	list := r.list()
	if len(list) != 2 || list[0].ID != c.ID || list[1].ID != a.ID {
		t.Fatalf("list: %+v", list)
	}
}

func TestSpawn_RecoversPanic(t *testing.T) {
	c := newTestController(t, nil, &browsertest.Driver{})
	task, err := c.spawn("boom", func(context.Context) (any, error) {
		panic("kaboom")
	})
	if err != nil {
		t.Fatal(err)
	}
	done := waitTask(t, c, task.ID)
	if done.Status != TaskFailed || done.Error != "panic: kaboom" {
		t.Fatalf("task: %+v", done)
	}
	if _, err := c.Task("task_missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("missing: got %v", err)
	}
}

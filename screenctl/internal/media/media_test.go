package media

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/tvremote/screenctl/internal/browser/browsertest"
	"github.com/hazyhaar/tvremote/screenctl/internal/pagejs"
)

func fast() Config {
	return Config{
		ElementTimeout: 200 * time.Millisecond,
		ReadyTimeout:   200 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	}
}

func TestWaitReady_BecomesReady(t *testing.T) {
	p := browsertest.NewPage("p", "https://www.youtube.com/watch?v=a")
	var calls atomic.Int32
	p.Handle(pagejs.MediaState, func([]any) (any, error) {
		n := calls.Add(1)
		switch {
		case n < 3:
			return State{Present: false}, nil
		case n < 5:
			return State{Present: true, ReadyState: 1}, nil
		default:
			return State{Present: true, ReadyState: 4, CurrentTime: 0.5}, nil
		}
	})
	s, err := WaitReady(context.Background(), p, false, fast())
	if err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	if s.ReadyState != 4 {
		t.Fatalf("ready_state: got %d, want 4", s.ReadyState)
	}
}

func TestWaitReady_GuideRequiresPlaying(t *testing.T) {
	p := browsertest.NewPage("p", "http://guide/web/channels/a")
	p.HandleValue(pagejs.MediaState, State{Present: true, ReadyState: 4, CurrentTime: 0, Paused: true})

	_, err := WaitReady(context.Background(), p, true, fast())
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("got %v, want ErrNotReady", err)
	}

	p.HandleValue(pagejs.MediaState, State{Present: true, ReadyState: 4, CurrentTime: 2})
	if _, err := WaitReady(context.Background(), p, true, fast()); err != nil {
		t.Fatalf("playing guide video: %v", err)
	}
}

func TestWaitReady_NoVideo(t *testing.T) {
	p := browsertest.NewPage("p", "about:blank")
	p.HandleValue(pagejs.MediaState, State{Present: false})
	_, err := WaitReady(context.Background(), p, false, fast())
	if !errors.Is(err, ErrNoVideo) {
		t.Fatalf("got %v, want ErrNoVideo", err)
	}
}

func TestApplyStartPolicy_SeeksToZero(t *testing.T) {
	p := browsertest.NewPage("p", "https://www.youtube.com/watch?v=a")
	current := 120.0
	p.Handle(pagejs.MediaState, func([]any) (any, error) {
		return State{Present: true, ReadyState: 4, CurrentTime: current}, nil
	})
	p.Handle(pagejs.SetCurrentTime, func(args []any) (any, error) {
		current = float64(args[0].(int))
		return true, nil
	})

	seeked, err := ApplyStartPolicy(context.Background(), p, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !seeked {
		t.Fatal("seeked: got false, want true")
	}
	if current != 0 {
		t.Fatalf("current time: got %v, want 0", current)
	}
}

func TestApplyStartPolicy_UnderThreshold(t *testing.T) {
	p := browsertest.NewPage("p", "https://www.youtube.com/watch?v=a")
	p.HandleValue(pagejs.MediaState, State{Present: true, CurrentTime: 3})
	seeked, err := ApplyStartPolicy(context.Background(), p, 5*time.Second)
	if err != nil || seeked {
		t.Fatalf("got %v, %v; want false, nil", seeked, err)
	}
	if p.EvalCount(pagejs.SetCurrentTime) != 0 {
		t.Fatal("should not seek under the threshold")
	}
}

func TestSuppressPopups_PassesSelectors(t *testing.T) {
	p := browsertest.NewPage("p", "https://www.youtube.com/watch?v=a")
	var gotInterval any
	p.Handle(pagejs.SuppressPopups, func(args []any) (any, error) {
		if len(args) != 4 {
			t.Fatalf("args: got %d, want 4", len(args))
		}
		gotInterval = args[3]
		return true, nil
	})
	ok, err := SuppressPopups(context.Background(), p, DefaultPopupSelectors, 0)
	if err != nil || !ok {
		t.Fatalf("got %v, %v", ok, err)
	}
	if gotInterval != int64(2000) {
		t.Fatalf("interval: got %v, want 2000", gotInterval)
	}
}

func TestLoginState(t *testing.T) {
	tests := []struct {
		s    LoginState
		want bool
	}{
		{LoginState{HasAvatar: true}, true},
		{LoginState{HasAvatar: true, HasSignIn: true}, false},
		{LoginState{HasSignIn: true}, false},
		{LoginState{}, false},
	}
	for _, tt := range tests {
		if got := tt.s.LoggedIn(); got != tt.want {
			t.Errorf("%+v: got %v, want %v", tt.s, got, tt.want)
		}
	}
}

const headHTML = `<head>
<title>Fallback title - YouTube</title>
<meta property="og:title" content="Gophers &amp; Friends">
<meta property="og:description" content="A talk about Go.">
<meta property="og:image" content="https://i.ytimg.com/vi/a/hq.jpg">
<meta itemprop="duration" content="PT1H2M3S">
</head>`

func TestInfoExtractor_ExtractAndCache(t *testing.T) {
	p := browsertest.NewPage("p", "https://www.youtube.com/watch?v=a")
	p.HandleValue(pagejs.VideoInfo, map[string]any{
		"url":              "https://www.youtube.com/watch?v=a",
		"head":             headHTML,
		"title":            "",
		"channel":          "  The   Go <b>Team</b> ",
		"view_count":       "1,234 views",
		"description_html": `<p>Watch <a href="/watch?v=b">part two</a></p><script>alert(1)</script>`,
		"video":            map[string]any{"duration": 0, "current_time": 12.5, "paused": false},
	})

	x := NewInfoExtractor(time.Minute, 0)
	info, err := x.Extract(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if info.Title != "Gophers & Friends" {
		t.Fatalf("title: got %q, want %q", info.Title, "Gophers & Friends")
	}
	if info.Channel != "The Go Team" {
		t.Fatalf("channel: got %q, want %q", info.Channel, "The Go Team")
	}
	if info.Duration != 3723 {
		t.Fatalf("duration: got %v, want 3723", info.Duration)
	}
	if info.Thumbnail != "https://i.ytimg.com/vi/a/hq.jpg" {
		t.Fatalf("thumbnail: got %q", info.Thumbnail)
	}
	if !strings.Contains(info.Description, "[part two](https://www.youtube.com/watch?v=b)") {
		t.Fatalf("description: got %q", info.Description)
	}
	if strings.Contains(info.Description, "alert") {
		t.Fatalf("script leaked into description: %q", info.Description)
	}

	if _, err := x.Extract(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if n := p.EvalCount(pagejs.VideoInfo); n != 1 {
		t.Fatalf("evals: got %d, want 1 (cached)", n)
	}

	p.SetURL("https://www.youtube.com/watch?v=other")
	x.Extract(context.Background(), p)
	if n := p.EvalCount(pagejs.VideoInfo); n != 2 {
		t.Fatalf("evals after URL change: got %d, want 2", n)
	}
}

func TestInfoExtractor_Expiry(t *testing.T) {
	x := NewInfoExtractor(30*time.Second, 0)
	now := time.Unix(1000, 0)
	x.now = func() time.Time { return now }
	x.cached = &Info{URL: "u", ExtractedAt: now}

	if _, ok := x.Cached(); !ok {
		t.Fatal("fresh entry should be cached")
	}
	now = now.Add(31 * time.Second)
	if _, ok := x.Cached(); ok {
		t.Fatal("stale entry should expire")
	}
}

func TestInfoExtractor_Defaults(t *testing.T) {
	x := NewInfoExtractor(0, 10)
	info := x.build(rawInfo{URL: "u", DescriptionHTML: "<p>abcdefghijklmnop</p>"})
	if info.Title != "Unknown Video" || info.Channel != "Unknown Channel" {
		t.Fatalf("got %+v", info)
	}
	if info.Description != "abcdefghij..." {
		t.Fatalf("description: got %q, want %q", info.Description, "abcdefghij...")
	}
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"PT4M13S", 253},
		{"PT1H", 3600},
		{"pt30s", 30},
		{"", 0},
		{"4:13", 0},
	}
	for _, tt := range tests {
		if got := parseISODuration(tt.in); got != tt.want {
			t.Errorf("%q: got %v, want %v", tt.in, got, tt.want)
		}
	}
}

package fullscreen

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/browser/browsertest"
	"github.com/hazyhaar/tvremote/screenctl/internal/locator"
	"github.com/hazyhaar/tvremote/screenctl/internal/pagejs"
)

var videoBox = locator.Box{Found: true, X: 0, Y: 0, Width: 1280, Height: 720}

// pageWithVideo answers Query only for the bare "video" selector.
func pageWithVideo() *browsertest.Page {
	p := browsertest.NewPage("p", "http://guide/web/channels/a/watch")
	p.Handle(pagejs.Query, func(args []any) (any, error) {
		if args[0] == "video" {
			return videoBox, nil
		}
		return locator.Box{}, nil
	})
	return p
}

func TestRun_StopsAtFirstVerifiedTactic(t *testing.T) {
	p := pageWithVideo()
	p.Handle(pagejs.FullscreenState, func([]any) (any, error) {
		for _, c := range p.Clicks() {
			if c.Clicks == 2 {
				return State{Element: "VIDEO"}, nil
			}
		}
		return State{}, nil
	})

	res := New(Config{Settle: time.Millisecond}).Run(context.Background(), p)
	if !res.Success || res.Tactic != "double_click" {
		t.Fatalf("got %+v, want success via double_click", res)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("attempts: got %d, want 2", len(res.Attempts))
	}
	if res.Attempts[0].Verified {
		t.Fatalf("native control should not verify: %+v", res.Attempts[0])
	}
	clicks := p.Clicks()
	if len(clicks) != 1 || clicks[0].X != 640 || clicks[0].Y != 360 {
		t.Fatalf("clicks: got %+v, want one double click at the centre", clicks)
	}
	for _, js := range []string{pagejs.ClearOverlays, pagejs.RequestFullscreen} {
		if n := p.EvalCount(js); n != 0 {
			t.Fatalf("later tactic ran: %d evals", n)
		}
	}
	for _, k := range p.Keys() {
		if k == browser.KeyF11 {
			t.Fatal("F11 pressed after success")
		}
	}
}

func TestRun_AlreadyActive(t *testing.T) {
	p := pageWithVideo()
	p.HandleValue(pagejs.FullscreenState, State{Element: "VIDEO"})
	res := New(Config{Settle: time.Millisecond}).Run(context.Background(), p)
	if !res.Success || len(res.Attempts) != 0 {
		t.Fatalf("got %+v", res)
	}
}

func TestRun_F11VerifiedByWindowSize(t *testing.T) {
	p := pageWithVideo()
	p.Handle(pagejs.FullscreenState, func([]any) (any, error) {
		s := State{InnerWidth: 1280, InnerHeight: 600, ScreenWidth: 1920, ScreenHeight: 1080}
		for _, k := range p.Keys() {
			if k == browser.KeyF11 {
				s.InnerWidth, s.InnerHeight = 1920, 1075
			}
		}
		return s, nil
	})
	p.HandleValue(pagejs.RequestFullscreen, true)

	res := New(Config{Settle: time.Millisecond}).Run(context.Background(), p)
	if !res.Success || res.Tactic != "f11" || res.Fallback {
		t.Fatalf("got %+v, want f11 success", res)
	}
	if len(res.Attempts) != 5 {
		t.Fatalf("attempts: got %d, want 5", len(res.Attempts))
	}
}

func TestRun_TheaterFallbackOnVideoSite(t *testing.T) {
	p := browsertest.NewPage("p", "https://www.youtube.com/watch?v=a")
	theater := false
	p.Handle(pagejs.Query, func(args []any) (any, error) {
		if args[0] == "button.ytp-size-button" {
			return locator.Box{Found: true, Width: 10, Height: 10}, nil
		}
		return locator.Box{}, nil
	})
	p.Handle(pagejs.Click, func(args []any) (any, error) {
		if args[0] == "button.ytp-size-button" {
			theater = true
			return true, nil
		}
		return false, nil
	})
	p.Handle(pagejs.FullscreenState, func([]any) (any, error) {
		return State{Theater: theater}, nil
	})

	res := New(Config{VideoSite: true, Settle: time.Millisecond}).Run(context.Background(), p)
	if !res.Success || !res.Fallback || res.Tactic != "theater" {
		t.Fatalf("got %+v, want theater fallback", res)
	}
	// The accelerator fallback pressed f before anything else.
	if keys := p.Keys(); len(keys) == 0 || keys[0] != browser.KeyF {
		t.Fatalf("keys: got %v, want f first", keys)
	}
}

func TestRun_GuideHasNoTheater(t *testing.T) {
	p := pageWithVideo()
	res := New(Config{Settle: time.Millisecond}).Run(context.Background(), p)
	if res.Success {
		t.Fatalf("got %+v, want failure", res)
	}
	for _, a := range res.Attempts {
		if a.Tactic == "theater" {
			t.Fatal("theater tried on the guide")
		}
	}
}

func TestResume_StepsInOrder(t *testing.T) {
	p := browsertest.NewPage("p", "u")
	p.HandleValue(pagejs.PlayIfPaused, true)
	p.HandleValue(pagejs.ClickPlayControl, ".ytp-play-button")
	p.HandleValue(pagejs.DispatchSpace, false)

	r := Resume(context.Background(), p, time.Millisecond, nil)
	if !r.Played || r.Clicked != ".ytp-play-button" || r.Spaced {
		t.Fatalf("got %+v", r)
	}
	evals := p.Evals()
	want := []string{pagejs.PlayIfPaused, pagejs.ClickPlayControl, pagejs.DispatchSpace}
	if len(evals) != len(want) {
		t.Fatalf("evals: got %d, want %d", len(evals), len(want))
	}
	for i := range want {
		if evals[i] != want[i] {
			t.Fatalf("eval %d out of order", i)
		}
	}
}

func TestHideControls_Variant(t *testing.T) {
	p := browsertest.NewPage("p", "u")
	var got any
	p.Handle(pagejs.HideControls, func(args []any) (any, error) {
		got = args[0]
		return true, nil
	})
	added, err := HideControls(context.Background(), p, VariantGuide)
	if err != nil || !added {
		t.Fatalf("got %v, %v", added, err)
	}
	if got != VariantGuide {
		t.Fatalf("variant: got %v, want %q", got, VariantGuide)
	}
	if p.Moves() != 1 {
		t.Fatalf("moves: got %d, want 1", p.Moves())
	}
}

func TestFillsScreen(t *testing.T) {
	s := State{InnerWidth: 1900, InnerHeight: 1080, ScreenWidth: 1920, ScreenHeight: 1080}
	if !s.FillsScreen(50) {
		t.Fatal("within tolerance should fill")
	}
	if s.FillsScreen(10) {
		t.Fatal("outside tolerance should not fill")
	}
	if (State{}).FillsScreen(50) {
		t.Fatal("unknown screen should not fill")
	}
}

func TestHardenedDoubleClick_Cancelled(t *testing.T) {
	p := pageWithVideo()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	o := HardenedDoubleClick{Settle: time.Millisecond}.Attempt(ctx, p)
	if o.Applied || o.Err == "" {
		t.Fatalf("got %+v, want a failed outcome on cancellation", o)
	}
	if n := len(p.Clicks()); n != 0 {
		t.Fatalf("clicks: got %d, want 0 after cancellation", n)
	}
}

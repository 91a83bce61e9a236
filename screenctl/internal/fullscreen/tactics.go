package fullscreen

import (
	"context"
	"errors"
	"time"

	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/locator"
	"github.com/hazyhaar/tvremote/screenctl/internal/pagejs"
	"github.com/hazyhaar/tvremote/screenctl/internal/wait"
)

var errNoVideo = errors.New("no video element")

func failed(name string, err error) Outcome {
	return Outcome{Tactic: name, Err: err.Error()}
}

// settleAndVerify waits, then checks document.fullscreenElement.
func settleAndVerify(ctx context.Context, p browser.Page, name string, settle time.Duration) Outcome {
	o := Outcome{Tactic: name, Applied: true}
	if err := wait.Sleep(ctx, settle); err != nil {
		o.Err = err.Error()
		return o
	}
	s, err := ReadState(ctx, p)
	if err != nil {
		o.Err = err.Error()
		return o
	}
	o.Verified = s.Active()
	return o
}

func videoCenter(ctx context.Context, p browser.Page) (float64, float64, error) {
	r := locator.Video.Locate(ctx, p)
	if !r.Found {
		return 0, 0, errNoVideo
	}
	x, y := r.Box.Center()
	return x, y, nil
}

// NativeControl clicks the player's own fullscreen button. With
// Accelerator it falls back to focusing the video and pressing f.
type NativeControl struct {
	Settle      time.Duration
	Accelerator bool
}

func (NativeControl) Name() string { return "native_control" }

func (t NativeControl) Attempt(ctx context.Context, p browser.Page) Outcome {
	r, err := locator.FullscreenControl.LocateAndClick(ctx, p)
	if err != nil {
		return failed(t.Name(), err)
	}
	if r.Found {
		return settleAndVerify(ctx, p, t.Name(), t.Settle)
	}
	if !t.Accelerator {
		return failed(t.Name(), errors.New("no fullscreen control"))
	}
	if err := p.Eval(ctx, pagejs.FocusVideo, nil); err != nil {
		return failed(t.Name(), err)
	}
	if err := p.Press(ctx, browser.KeyF); err != nil {
		return failed(t.Name(), err)
	}
	return settleAndVerify(ctx, p, t.Name(), t.Settle)
}

// DoubleClick double-clicks the centre of the video.
type DoubleClick struct {
	Settle time.Duration
}

func (DoubleClick) Name() string { return "double_click" }

func (t DoubleClick) Attempt(ctx context.Context, p browser.Page) Outcome {
	x, y, err := videoCenter(ctx, p)
	if err != nil {
		return failed(t.Name(), err)
	}
	if err := p.Click(ctx, x, y, 2); err != nil {
		return failed(t.Name(), err)
	}
	return settleAndVerify(ctx, p, t.Name(), t.Settle)
}

// HardenedDoubleClick clears hover overlays and focuses the video before
// moving the mouse in and double-clicking.
type HardenedDoubleClick struct {
	Settle time.Duration
}

func (HardenedDoubleClick) Name() string { return "hardened_double_click" }

func (t HardenedDoubleClick) Attempt(ctx context.Context, p browser.Page) Outcome {
	if err := p.Eval(ctx, pagejs.ClearOverlays, nil); err != nil {
		return failed(t.Name(), err)
	}
	x, y, err := videoCenter(ctx, p)
	if err != nil {
		return failed(t.Name(), err)
	}
	if err := p.Eval(ctx, pagejs.FocusVideo, nil); err != nil {
		return failed(t.Name(), err)
	}
	if err := p.MoveMouse(ctx, x, y); err != nil {
		return failed(t.Name(), err)
	}
	if err := wait.Sleep(ctx, 200*time.Millisecond); err != nil {
		return failed(t.Name(), err)
	}
	if err := p.Click(ctx, x, y, 2); err != nil {
		return failed(t.Name(), err)
	}
	return settleAndVerify(ctx, p, t.Name(), t.Settle)
}

// Request calls requestFullscreen on the video element.
type Request struct {
	Settle time.Duration
}

func (Request) Name() string { return "request_fullscreen" }

func (t Request) Attempt(ctx context.Context, p browser.Page) Outcome {
	var called bool
	if err := p.Eval(ctx, pagejs.RequestFullscreen, &called); err != nil {
		return failed(t.Name(), err)
	}
	if !called {
		return failed(t.Name(), errors.New("requestFullscreen unavailable"))
	}
	return settleAndVerify(ctx, p, t.Name(), t.Settle)
}

// OSKey presses F11 and checks that the window now covers the screen.
type OSKey struct {
	Settle    time.Duration
	Tolerance int
}

func (OSKey) Name() string { return "f11" }

func (t OSKey) Attempt(ctx context.Context, p browser.Page) Outcome {
	if err := p.Press(ctx, browser.KeyF11); err != nil {
		return failed(t.Name(), err)
	}
	o := Outcome{Tactic: t.Name(), Applied: true}
	if err := wait.Sleep(ctx, t.Settle); err != nil {
		o.Err = err.Error()
		return o
	}
	s, err := ReadState(ctx, p)
	if err != nil {
		o.Err = err.Error()
		return o
	}
	o.Verified = s.Active() || s.FillsScreen(t.Tolerance)
	return o
}

// Theater switches the player to theater mode. It is accepted as a
// fallback success.
type Theater struct {
	Settle time.Duration
}

func (Theater) Name() string { return "theater" }

func (t Theater) Attempt(ctx context.Context, p browser.Page) Outcome {
	o := Outcome{Tactic: t.Name(), Fallback: true}
	if s, err := ReadState(ctx, p); err == nil && s.Theater {
		o.Verified = true
		return o
	}
	r, err := locator.TheaterControl.LocateAndClick(ctx, p)
	if err != nil {
		o.Err = err.Error()
		return o
	}
	if !r.Found {
		o.Err = "no theater control"
		return o
	}
	o.Applied = true
	if err := wait.Sleep(ctx, t.Settle); err != nil {
		o.Err = err.Error()
		return o
	}
	s, err := ReadState(ctx, p)
	if err != nil {
		o.Err = err.Error()
		return o
	}
	o.Verified = s.Theater
	return o
}

package screenctl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/tvremote/observability"
	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/captions"
	"github.com/hazyhaar/tvremote/screenctl/internal/fullscreen"
	"github.com/hazyhaar/tvremote/screenctl/internal/media"
	"github.com/hazyhaar/tvremote/screenctl/internal/target"
	"github.com/hazyhaar/tvremote/screenctl/internal/wait"
)

// errChannelMismatch is terminal: a reinitialised session would land on
// the same page, so the bare retry is skipped.
var errChannelMismatch = errors.New("page did not switch to the requested channel")

// NavigationReport describes one pass through the navigation pipeline.
// Degraded steps are reported, not failed.
type NavigationReport struct {
	Kind       target.Kind             `json:"kind"`
	URL        string                  `json:"url"`
	LandedURL  string                  `json:"landed_url,omitempty"`
	Renavigate bool                    `json:"renavigated"`
	Retried    bool                    `json:"reinitialised"`
	Media      media.State             `json:"media"`
	MediaError string                  `json:"media_error,omitempty"`
	Seeked     bool                    `json:"seeked_to_start"`
	Popups     bool                    `json:"popups_suppressed"`
	Captions   *captions.StateResult   `json:"captions,omitempty"`
	Fullscreen fullscreen.Result       `json:"fullscreen"`
	Resume     fullscreen.ResumeReport `json:"resume"`
	Hidden     bool                    `json:"controls_hidden"`
	Info       *media.Info             `json:"info,omitempty"`
	DurationMS int64                   `json:"duration_ms"`
}

func (c *Controller) mediaConfig() media.Config {
	return media.Config{
		ElementTimeout: c.cfg.Timings.MediaElement,
		ReadyTimeout:   c.cfg.Timings.MediaReady,
		Logger:         c.log,
	}
}

func (c *Controller) fullscreenEngine(videoSite bool) *fullscreen.Engine {
	return fullscreen.New(fullscreen.Config{
		VideoSite: videoSite,
		Settle:    c.cfg.Timings.TacticSettle,
		Logger:    c.log,
	})
}

// navigate runs the pipeline for t. Any failure gets one recovery: the
// session is restarted and the canonical URL loaded bare. The caller
// holds the gate.
func (c *Controller) navigate(ctx context.Context, t target.Target) (*NavigationReport, error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "screenctl.navigate",
		observability.AttrTargetKind.String(string(t.Kind)),
		observability.AttrTargetURL.String(t.URL))
	c.log.Info("screenctl: navigating", "kind", t.Kind, "url", t.URL, "channel_id", t.ChannelID)

	rep, err := c.pipeline(ctx, t)
	if err != nil && ctx.Err() == nil && !errors.Is(err, errChannelMismatch) {
		c.log.Warn("screenctl: pipeline failed, reinitialising session", "url", t.URL, "error", err)
		observability.AddEvent(ctx, "reinitialise")
		if rerr := c.bareRetry(ctx, t); rerr != nil {
			c.log.Error("screenctl: recovery navigation failed", "url", t.URL, "error", rerr)
			err = errors.Join(err, rerr)
		} else {
			rep = &NavigationReport{Kind: t.Kind, URL: t.URL, Retried: true}
			err = nil
		}
	}

	d := time.Since(start)
	observability.EndSpan(span, err)
	observability.ObserveNavigation(string(t.Kind), err == nil, d)
	ev := observability.Event{Type: "navigation", Action: string(t.Kind), Target: t.URL, Success: err == nil}
	if err != nil {
		ev.Details = err.Error()
		c.events.LogEvent(ctx, ev)
		return nil, &NavigationError{URL: t.URL, Err: err}
	}
	rep.DurationMS = d.Milliseconds()
	ev.Details = fmt.Sprintf("fullscreen=%s reinitialised=%t", rep.Fullscreen.Tactic, rep.Retried)
	c.events.LogEvent(ctx, ev)
	c.setCurrent(t)
	c.log.Info("screenctl: navigation complete", "kind", t.Kind, "url", t.URL,
		"fullscreen", rep.Fullscreen.Success, "tactic", rep.Fullscreen.Tactic, "duration", d)
	return rep, nil
}

func (c *Controller) pipeline(ctx context.Context, t target.Target) (*NavigationReport, error) {
	p, err := c.load(ctx, t.URL)
	if err != nil {
		return nil, err
	}
	c.session.SetLastTarget(t.URL)
	rep := &NavigationReport{Kind: t.Kind, URL: t.URL}
	if t.Kind == target.KindGuide {
		err = c.guidePipeline(ctx, p, t, rep)
	} else {
		err = c.videoPipeline(ctx, p, rep)
	}
	return rep, err
}

// load acquires a live page and drives it to url, waiting for
// DOMContentLoaded only.
func (c *Controller) load(ctx context.Context, url string) (browser.Page, error) {
	p, err := c.session.Page(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire page: %w", err)
	}
	nctx, cancel := context.WithTimeout(ctx, c.cfg.Timings.Navigation)
	defer cancel()
	if err := p.Navigate(nctx, url); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	return p, nil
}

func (c *Controller) bareRetry(ctx context.Context, t target.Target) error {
	if err := c.session.Restart(ctx); err != nil {
		return fmt.Errorf("restart session: %w", err)
	}
	observability.ObserveRestart()
	if _, err := c.load(ctx, t.URL); err != nil {
		return err
	}
	c.session.SetLastTarget(t.URL)
	return nil
}

func (c *Controller) guidePipeline(ctx context.Context, p browser.Page, t target.Target, rep *NavigationReport) error {
	tm := c.cfg.Timings

	if err := c.verifyChannelSwitch(ctx, p, t, rep); err != nil {
		return err
	}
	if sel, err := media.DismissLeaveDialog(ctx, p); err != nil {
		c.log.Debug("screenctl: leave dialog check failed", "error", err)
	} else if sel != "" {
		c.log.Info("screenctl: leave dialog dismissed", "selector", sel)
	}

	c.waitMedia(ctx, p, true, rep)
	if err := wait.Sleep(ctx, tm.GuideBuffer); err != nil {
		return err
	}
	if err := wait.Sleep(ctx, tm.FullscreenDelay); err != nil {
		return err
	}

	rep.Fullscreen = c.fullscreenEngine(false).Run(ctx, p)
	if !rep.Fullscreen.Success {
		c.log.Warn("screenctl: fullscreen not reached, channel still playing", "url", t.URL)
		return nil
	}
	rep.Resume = fullscreen.Resume(ctx, p, tm.ResumeDelay, c.log)
	if err := wait.Sleep(ctx, tm.Stabilization); err != nil {
		return err
	}
	if err := wait.Sleep(ctx, tm.HideControls); err != nil {
		return err
	}
	c.hideControls(ctx, p, fullscreen.VariantGuide, rep)
	return nil
}

// verifyChannelSwitch checks that the page URL carries the channel ID and
// re-issues the navigation once when it does not.
func (c *Controller) verifyChannelSwitch(ctx context.Context, p browser.Page, t target.Target, rep *NavigationReport) error {
	landed, err := p.URL(ctx)
	if err != nil {
		return fmt.Errorf("read page url: %w", err)
	}
	rep.LandedURL = landed
	if t.ChannelID == "" || t.Matches(landed) {
		return nil
	}

	c.log.Warn("screenctl: channel switch not observed, navigating again",
		"channel_id", t.ChannelID, "landed", landed)
	rep.Renavigate = true
	if err := p.BringToFront(ctx); err != nil {
		c.log.Debug("screenctl: bring to front failed", "error", err)
	}
	nctx, cancel := context.WithTimeout(ctx, c.cfg.Timings.Navigation)
	err = p.Navigate(nctx, t.URL)
	cancel()
	if err != nil {
		return fmt.Errorf("navigate again: %w", err)
	}
	if landed, err = p.URL(ctx); err != nil {
		return fmt.Errorf("read page url: %w", err)
	}
	rep.LandedURL = landed
	if !t.Matches(landed) {
		return fmt.Errorf("%w: %s (landed on %s)", errChannelMismatch, t.ChannelID, landed)
	}
	return nil
}

func (c *Controller) videoPipeline(ctx context.Context, p browser.Page, rep *NavigationReport) error {
	tm, vc := c.cfg.Timings, c.cfg.Video

	c.waitMedia(ctx, p, false, rep)
	if err := wait.Sleep(ctx, tm.VideoBuffer); err != nil {
		return err
	}

	if vc.PopupsBlocked() {
		ok, err := media.SuppressPopups(ctx, p, media.DefaultPopupSelectors, vc.PopupInterval)
		if err != nil {
			c.log.Warn("screenctl: popup suppression failed", "error", err)
		}
		rep.Popups = ok
	}
	if vc.FromStart() {
		seeked, err := media.ApplyStartPolicy(ctx, p, vc.SeekThreshold)
		if err != nil {
			c.log.Warn("screenctl: start policy failed", "error", err)
		} else if seeked {
			c.log.Info("screenctl: video rewound to start")
		}
		rep.Seeked = seeked
	}

	wantCaptions := c.captions.Preference().Effective(vc.CaptionsDefault)
	if wantCaptions {
		c.applyCaptions(ctx, p, true, rep)
	}

	if info, err := c.info.Extract(ctx, p); err != nil {
		c.log.Warn("screenctl: video info extraction failed", "error", err)
	} else {
		rep.Info = &info
	}

	if err := wait.Sleep(ctx, tm.FullscreenDelay); err != nil {
		return err
	}
	rep.Fullscreen = c.fullscreenEngine(true).Run(ctx, p)

	if !wantCaptions {
		// Entering fullscreen can switch captions back on.
		if err := wait.Sleep(ctx, tm.CaptionOffDelay); err != nil {
			return err
		}
		c.applyCaptions(ctx, p, false, rep)
	}

	if !rep.Fullscreen.Success {
		c.log.Warn("screenctl: large view not reached, video still playable", "url", rep.URL)
		return nil
	}
	rep.Resume = fullscreen.Resume(ctx, p, tm.ResumeDelay, c.log)
	c.hideControls(ctx, p, fullscreen.VariantVideoSite, rep)
	return nil
}

// waitMedia never fails the pipeline: a timeout is logged and the
// pipeline proceeds assuming the video will catch up.
func (c *Controller) waitMedia(ctx context.Context, p browser.Page, requirePlaying bool, rep *NavigationReport) {
	st, err := media.WaitReady(ctx, p, requirePlaying, c.mediaConfig())
	rep.Media = st
	if err != nil {
		rep.MediaError = err.Error()
		c.log.Warn("screenctl: media not ready, continuing", "error", err,
			"ready_state", st.ReadyState, "current_time", st.CurrentTime)
	}
}

func (c *Controller) applyCaptions(ctx context.Context, p browser.Page, on bool, rep *NavigationReport) {
	res, err := c.captions.Apply(ctx, p, on)
	if err != nil {
		c.log.Warn("screenctl: caption policy failed", "want", on, "error", err)
		return
	}
	rep.Captions = &res
}

func (c *Controller) hideControls(ctx context.Context, p browser.Page, variant string, rep *NavigationReport) {
	added, err := fullscreen.HideControls(ctx, p, variant)
	if err != nil {
		c.log.Debug("screenctl: hide controls failed", "variant", variant, "error", err)
		return
	}
	rep.Hidden = true
	c.log.Debug("screenctl: controls hidden", "variant", variant, "stylesheet_added", added)
}

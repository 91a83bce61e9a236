package screenctl

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/hazyhaar/tvremote/observability"
	"github.com/hazyhaar/tvremote/screenctl/internal/target"
)

// autoReload re-runs the last guide channel every interval so long
// screen-share sessions do not stall on a stale stream.
func (c *Controller) autoReload(ctx context.Context) {
	ar := c.cfg.AutoReload
	if !ar.On() {
		return
	}
	ticker := time.NewTicker(ar.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reloadGuide(ctx)
		}
	}
}

// reloadGuide reloads the current guide channel. It skips when another
// operation holds the gate or the screen is not on a guide channel.
func (c *Controller) reloadGuide(ctx context.Context) bool {
	t := c.currentTarget()
	if t.Kind != target.KindGuide {
		c.log.Debug("screenctl: auto-reload skipped, no guide channel on screen")
		return false
	}
	if c.cfg.AutoReload.OnlyDuringPrograms && t.ChannelID != "" {
		np, err := c.guide.NowPlaying(ctx, t.ChannelID)
		if err != nil || !programPlaying(np) {
			c.log.Info("screenctl: auto-reload skipped, nothing playing", "channel_id", t.ChannelID, "error", err)
			return false
		}
	}
	release, ok := c.tryAcquire()
	if !ok {
		c.log.Debug("screenctl: auto-reload skipped, operation in progress")
		return false
	}
	defer release()

	c.log.Info("screenctl: auto-reloading channel", "channel_id", t.ChannelID, "url", t.URL)
	_, err := c.navigate(ctx, t)
	c.events.LogEvent(ctx, observability.Event{
		Type: "auto_reload", Action: "reload", Target: t.URL, Success: err == nil,
	})
	return err == nil
}

func programPlaying(doc json.RawMessage) bool {
	doc = bytes.TrimSpace(doc)
	return len(doc) > 0 && !bytes.Equal(doc, []byte("null")) && !bytes.Equal(doc, []byte("{}"))
}

// Package captions reads and drives the video player's subtitles. The page
// reports raw caption nodes; visibility is decided here.
package captions

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/pagejs"
)

// TextSelectors match rendered caption text, most specific first.
var TextSelectors = []string{
	".ytp-caption-segment",
	".captions-text",
	".caption-visual-line",
	".ytp-caption-window-container .caption-window",
	".vjs-text-track-display div",
}

// ContainerSelectors match caption containers. A visible container is a
// weaker signal than visible text.
var ContainerSelectors = []string{
	".ytp-caption-window-container",
	".ytp-caption-window-bottom",
	".ytp-caption-window-rollup",
	".vjs-text-track-display",
}

// Node is one caption element as the page sees it.
type Node struct {
	Selector   string  `json:"selector"`
	Display    string  `json:"display"`
	Visibility string  `json:"visibility"`
	Opacity    string  `json:"opacity"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Text       string  `json:"text"`
}

// Visible applies the CSS visibility rules: displayed, not hidden, some
// opacity and a non-empty box.
func (n Node) Visible() bool {
	if n.Display == "none" || n.Visibility == "hidden" {
		return false
	}
	if op, err := strconv.ParseFloat(strings.TrimSpace(n.Opacity), 64); err == nil && op <= 0 {
		return false
	}
	return n.Width > 0 && n.Height > 0
}

// Snapshot is the set of caption nodes on the page.
type Snapshot struct {
	Text       []Node `json:"text"`
	Containers []Node `json:"containers"`
}

// Enabled decides whether captions are showing: any visible text node with
// text, else any visible container whose children carry text. The player
// keeps an empty container on the page while captions are off.
func (s Snapshot) Enabled() bool {
	for _, n := range s.Text {
		if n.Visible() && strings.TrimSpace(n.Text) != "" {
			return true
		}
	}
	for _, n := range s.Containers {
		if n.Visible() && strings.TrimSpace(n.Text) != "" {
			return true
		}
	}
	return false
}

// Observe collects the caption snapshot.
func Observe(ctx context.Context, p browser.Page) (Snapshot, error) {
	var s Snapshot
	if err := p.Eval(ctx, pagejs.CaptionSnapshot, &s, TextSelectors, ContainerSelectors); err != nil {
		return Snapshot{}, fmt.Errorf("captions: snapshot: %w", err)
	}
	return s, nil
}

// IsVisible reports whether captions are currently showing.
func IsVisible(ctx context.Context, p browser.Page) (bool, error) {
	s, err := Observe(ctx, p)
	if err != nil {
		return false, err
	}
	return s.Enabled(), nil
}

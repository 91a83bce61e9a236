package media

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/pagejs"
)

// PopupSelectors drive the upsell suppression script.
type PopupSelectors struct {
	Hide    []string
	Dismiss []string
	Remove  []string
}

// DefaultPopupSelectors target membership and sponsorship interstitials.
var DefaultPopupSelectors = PopupSelectors{
	Hide: []string{
		"ytd-sponsorships-offer-renderer",
		"ytd-membership-offer-renderer",
		`ytd-popup-container[dialog][style-target="player"]`,
		`[data-target-id*="membership"]`,
		".membership-offer-dialog",
		".ytp-paid-content-overlay",
		"ytd-paid-content-overlay-renderer",
		"#sponsor-button",
		`ytd-popup-container:has(ytd-sponsorships-offer-renderer)`,
		`tp-yt-paper-dialog:has([class*="membership"])`,
		`[class*="membership" i]:not(video):not(audio)`,
		`[id*="membership" i]:not(video):not(audio)`,
	},
	Dismiss: []string{
		`button[aria-label*="No thanks" i]`,
		`button[aria-label*="Dismiss" i]`,
		`[role="button"][aria-label*="No thanks" i]`,
		`.ytd-popup-container button[aria-label="Close"]`,
		`tp-yt-paper-button[aria-label*="No thanks" i]`,
		`paper-button[aria-label*="No thanks" i]`,
	},
	Remove: []string{
		"ytd-sponsorships-offer-renderer",
		"ytd-membership-offer-renderer",
		`[data-target-id*="membership"]`,
		".membership-offer-dialog",
	},
}

// SuppressPopups installs the popup filter once per document. It reports
// false when the filter was already present.
func SuppressPopups(ctx context.Context, p browser.Page, sel PopupSelectors, interval time.Duration) (bool, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	var installed bool
	err := p.Eval(ctx, pagejs.SuppressPopups, &installed, sel.Hide, sel.Dismiss, sel.Remove, interval.Milliseconds())
	if err != nil {
		return false, fmt.Errorf("media: suppress popups: %w", err)
	}
	return installed, nil
}

// LeaveSelectors match the guide's "leave page" confirmation button.
var LeaveSelectors = []string{
	`button[data-testid*="leave"]`,
	".leave-button",
	`button[aria-label*="leave" i]`,
}

// DismissLeaveDialog clicks the leave button if one is showing and returns
// the selector that matched.
func DismissLeaveDialog(ctx context.Context, p browser.Page) (string, error) {
	var matched string
	if err := p.Eval(ctx, pagejs.LeaveDialog, &matched, LeaveSelectors); err != nil {
		return "", fmt.Errorf("media: leave dialog: %w", err)
	}
	return matched, nil
}

// LoginState tells whether the video site session is signed in.
type LoginState struct {
	HasAvatar bool   `json:"has_avatar"`
	HasSignIn bool   `json:"has_sign_in"`
	URL       string `json:"url"`
}

// LoggedIn requires the avatar and no sign-in link.
func (s LoginState) LoggedIn() bool { return s.HasAvatar && !s.HasSignIn }

// ReadLogin inspects the current page for sign-in markers.
func ReadLogin(ctx context.Context, p browser.Page) (LoginState, error) {
	var s LoginState
	if err := p.Eval(ctx, pagejs.LoginState, &s); err != nil {
		return LoginState{}, fmt.Errorf("media: login state: %w", err)
	}
	return s, nil
}

// Dims is a width/height pair.
type Dims struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DebugVideo is the video block of DebugInfo.
type DebugVideo struct {
	Src         string  `json:"src"`
	ReadyState  int     `json:"ready_state"`
	Paused      bool    `json:"paused"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
}

// DebugFullscreen is the fullscreen block of DebugInfo.
type DebugFullscreen struct {
	Enabled bool   `json:"enabled"`
	Element string `json:"element"`
}

// DebugInfo is the diagnostic snapshot served on /debug.
type DebugInfo struct {
	URL        string          `json:"url"`
	Title      string          `json:"title"`
	Video      *DebugVideo     `json:"video"`
	Fullscreen DebugFullscreen `json:"fullscreen"`
	Window     Dims            `json:"window"`
	Screen     Dims            `json:"screen"`
}

// ReadDebug collects the diagnostic snapshot.
func ReadDebug(ctx context.Context, p browser.Page) (DebugInfo, error) {
	var d DebugInfo
	if err := p.Eval(ctx, pagejs.DebugInfo, &d); err != nil {
		return DebugInfo{}, fmt.Errorf("media: debug info: %w", err)
	}
	return d, nil
}

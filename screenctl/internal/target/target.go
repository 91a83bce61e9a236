// Package target describes what the screen should show: a guide channel or
// a page on the video site.
package target

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/hazyhaar/tvremote/horosafe"
)

// Kind discriminates targets.
type Kind string

const (
	KindGuide Kind = "guide-channel"
	KindVideo Kind = "video-site"
)

// DefaultAllowlist are the video-site domains. Subdomains match too.
var DefaultAllowlist = []string{
	"youtube.com",
	"www.youtube.com",
	"m.youtube.com",
	"youtu.be",
	"youtube-nocookie.com",
}

// ErrNotAllowed is returned for URLs outside the allowlist or with a
// non-http(s) scheme.
var ErrNotAllowed = errors.New("target: url not allowed")

// Target is an immutable playback target.
type Target struct {
	Kind             Kind   `json:"kind"`
	RawURL           string `json:"raw_url"`
	URL              string `json:"url"`
	ChannelID        string `json:"channel_id,omitempty"`
	AllowlistChecked bool   `json:"allowlist_checked"`
}

// Guide builds a guide-channel target. channelID may be empty, in which
// case it is derived from the URL.
func Guide(rawURL, channelID string) (Target, error) {
	u, err := horosafe.ParseHTTPURL(rawURL)
	if err != nil {
		return Target{}, fmt.Errorf("target: guide: %w", err)
	}
	if channelID == "" {
		channelID = ChannelIDFromURL(rawURL)
	}
	return Target{
		Kind:      KindGuide,
		RawURL:    rawURL,
		URL:       u.String(),
		ChannelID: channelID,
	}, nil
}

// Video builds a video-site target. The host must be in allowlist; with
// fromStart the URL is canonicalised to play from 0s.
func Video(rawURL string, allowlist []string, fromStart bool) (Target, error) {
	if len(allowlist) == 0 {
		allowlist = DefaultAllowlist
	}
	u, err := horosafe.ValidateAllowedURL(rawURL, allowlist)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %w", ErrNotAllowed, err)
	}
	if fromStart {
		Canonicalize(u)
	}
	return Target{
		Kind:             KindVideo,
		RawURL:           rawURL,
		URL:              u.String(),
		AllowlistChecked: true,
	}, nil
}

// Canonicalize drops any start offset from u and pins playback to 0s.
func Canonicalize(u *url.URL) {
	q := u.Query()
	q.Del("t")
	q.Del("start")
	q.Set("t", "0s")
	u.RawQuery = q.Encode()
}

// OnVideoSite reports whether rawURL is an http(s) URL on the allowlist.
func OnVideoSite(rawURL string, allowlist []string) bool {
	if len(allowlist) == 0 {
		allowlist = DefaultAllowlist
	}
	_, err := horosafe.ValidateAllowedURL(rawURL, allowlist)
	return err == nil
}

var channelPath = regexp.MustCompile(`(?i)/web/channels/([^/?#]+)`)

// ChannelIDFromURL extracts the channel ID from a guide URL, or "".
func ChannelIDFromURL(rawURL string) string {
	m := channelPath.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// ChannelURL builds the watch URL of a guide channel.
func ChannelURL(base, webPath, id string) string {
	base = strings.TrimRight(base, "/")
	webPath = "/" + strings.Trim(webPath, "/")
	return base + webPath + "/" + url.PathEscape(id) + "/watch?noAutoPlay=false"
}

// Matches reports whether pageURL shows the channel of t.
func (t Target) Matches(pageURL string) bool {
	if t.ChannelID == "" {
		return true
	}
	return strings.Contains(strings.ToLower(pageURL), strings.ToLower(t.ChannelID))
}

package media

import (
	"context"
	"fmt"
	stdhtml "html"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/pagejs"
)

// InfoSelectors are the ranked DOM selectors for each video info field.
type InfoSelectors struct {
	Title       []string `json:"title"`
	Channel     []string `json:"channel"`
	Views       []string `json:"views"`
	Date        []string `json:"date"`
	Description string   `json:"description"`
}

// DefaultInfoSelectors match the video site watch page.
var DefaultInfoSelectors = InfoSelectors{
	Title: []string{
		"h1.ytd-watch-metadata yt-formatted-string",
		"h1.style-scope.ytd-video-primary-info-renderer",
		`h1[class*="video-title"]`,
		"h1.title",
		`meta[property="og:title"]`,
	},
	Channel: []string{
		"ytd-channel-name .ytd-channel-name a",
		"#owner-text a",
		".ytd-video-owner-renderer a",
		"#channel-name .ytd-channel-name",
	},
	Views: []string{
		"#info-text #count .view-count",
		".view-count",
		"#count .ytd-video-view-count-renderer",
		"span.view-count",
	},
	Date: []string{
		"#info-strings yt-formatted-string",
		".date",
		"#upload-info .ytd-video-primary-info-renderer",
	},
	Description: "#description-inline-expander, #description .ytd-video-secondary-info-renderer, #meta-contents #description",
}

// Info describes the video on screen.
type Info struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Channel     string    `json:"channel"`
	ViewCount   string    `json:"view_count,omitempty"`
	UploadDate  string    `json:"upload_date,omitempty"`
	Description string    `json:"description,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Duration    float64   `json:"duration"`
	CurrentTime float64   `json:"current_time"`
	Paused      bool      `json:"paused"`
	ExtractedAt time.Time `json:"extracted_at"`
}

type rawInfo struct {
	URL             string `json:"url"`
	Head            string `json:"head"`
	Title           string `json:"title"`
	Channel         string `json:"channel"`
	ViewCount       string `json:"view_count"`
	UploadDate      string `json:"upload_date"`
	DescriptionHTML string `json:"description_html"`
	Video           *struct {
		Duration    float64 `json:"duration"`
		CurrentTime float64 `json:"current_time"`
		Paused      bool    `json:"paused"`
		ReadyState  int     `json:"ready_state"`
	} `json:"video"`
}

// InfoExtractor reads video info from the page and caches it per URL.
type InfoExtractor struct {
	ttl       time.Duration
	limit     int
	selectors InfoSelectors
	md        *converter.Converter
	text      *bluemonday.Policy
	rich      *bluemonday.Policy
	now       func() time.Time

	mu     sync.Mutex
	cached *Info
}

// NewInfoExtractor caches results for ttl (30s when <= 0) and cuts the
// description to limit runes (300 when <= 0).
func NewInfoExtractor(ttl time.Duration, limit int) *InfoExtractor {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if limit <= 0 {
		limit = 300
	}
	return &InfoExtractor{
		ttl:       ttl,
		limit:     limit,
		selectors: DefaultInfoSelectors,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		text: bluemonday.StrictPolicy(),
		rich: bluemonday.UGCPolicy(),
		now:  time.Now,
	}
}

// Cached returns the last extraction while it is fresh.
func (x *InfoExtractor) Cached() (Info, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.cached == nil || x.now().Sub(x.cached.ExtractedAt) > x.ttl {
		return Info{}, false
	}
	return *x.cached, true
}

// Invalidate drops the cache.
func (x *InfoExtractor) Invalidate() {
	x.mu.Lock()
	x.cached = nil
	x.mu.Unlock()
}

// Extract returns the cached info when it is fresh and for the page's
// current URL, otherwise reads the page.
func (x *InfoExtractor) Extract(ctx context.Context, p browser.Page) (Info, error) {
	if info, ok := x.Cached(); ok {
		if u, err := p.URL(ctx); err == nil && u == info.URL {
			return info, nil
		}
	}

	var raw rawInfo
	if err := p.Eval(ctx, pagejs.VideoInfo, &raw, x.selectors); err != nil {
		return Info{}, fmt.Errorf("media: video info: %w", err)
	}
	info := x.build(raw)

	x.mu.Lock()
	x.cached = &info
	x.mu.Unlock()
	return info, nil
}

func (x *InfoExtractor) build(raw rawInfo) Info {
	info := Info{
		URL:         raw.URL,
		Title:       x.clean(raw.Title),
		Channel:     x.clean(raw.Channel),
		ViewCount:   x.clean(raw.ViewCount),
		UploadDate:  x.clean(raw.UploadDate),
		Description: x.description(raw.DescriptionHTML, raw.URL),
		ExtractedAt: x.now(),
	}
	if raw.Video != nil {
		info.Duration = raw.Video.Duration
		info.CurrentTime = raw.Video.CurrentTime
		info.Paused = raw.Video.Paused
	}

	meta := parseHeadMeta(raw.Head)
	if info.Title == "" {
		info.Title = x.clean(meta.title)
	}
	if info.Description == "" {
		info.Description = truncate(x.clean(meta.description), x.limit)
	}
	if info.Duration == 0 {
		info.Duration = meta.duration
	}
	info.Thumbnail = meta.image
	if info.Title == "" {
		info.Title = "Unknown Video"
	}
	if info.Channel == "" {
		info.Channel = "Unknown Channel"
	}
	return info
}

func (x *InfoExtractor) clean(s string) string {
	s = stdhtml.UnescapeString(x.text.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func (x *InfoExtractor) description(htmlSrc, pageURL string) string {
	if strings.TrimSpace(htmlSrc) == "" {
		return ""
	}
	safe := x.rich.Sanitize(htmlSrc)
	out, err := x.md.ConvertString(safe, converter.WithDomain(pageURL))
	if err != nil || strings.TrimSpace(out) == "" {
		out = x.clean(safe)
	}
	return truncate(strings.TrimSpace(out), x.limit)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit])) + "..."
}

type headMeta struct {
	title       string
	description string
	image       string
	duration    float64
}

// parseHeadMeta reads Open Graph and schema.org metadata from the document
// head markup.
func parseHeadMeta(head string) headMeta {
	var m headMeta
	if strings.TrimSpace(head) == "" {
		return m
	}
	node, err := html.Parse(strings.NewReader("<html>" + head + "<body></body></html>"))
	if err != nil {
		return m
	}
	doc := goquery.NewDocumentFromNode(node)
	content := func(selectors ...string) string {
		for _, sel := range selectors {
			if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}
	m.title = content(`meta[property="og:title"]`, `meta[name="title"]`, `meta[name="twitter:title"]`)
	if m.title == "" {
		m.title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	m.description = content(`meta[property="og:description"]`, `meta[name="description"]`)
	m.image = content(`meta[property="og:image"]`, `meta[name="twitter:image"]`)
	m.duration = parseISODuration(content(`meta[itemprop="duration"]`))
	return m
}

var isoDuration = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration parses the PT#H#M#S form used by schema.org.
func parseISODuration(s string) float64 {
	m := isoDuration.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0
	}
	var total float64
	for i, unit := range []float64{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		total += float64(n) * unit
	}
	return total
}

// Package config loads the screen controller configuration from YAML and
// watches the file for hot-reloadable changes.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/tvremote/connectivity"
)

// Config is the top-level screen controller configuration.
type Config struct {
	Listen   string `yaml:"listen"`
	APIKey   string `yaml:"api_key"`
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
	MCP      string `yaml:"mcp"` // off | http | stdio

	Browser    BrowserConfig        `yaml:"browser"`
	Guide      GuideConfig          `yaml:"guide"`
	Video      VideoConfig          `yaml:"video"`
	Timings    Timings              `yaml:"timings"`
	AutoReload AutoReloadConfig     `yaml:"auto_reload"`
	RateLimit  RateLimitConfig      `yaml:"rate_limit"`
	Tracing    TracingConfig        `yaml:"tracing"`
	Heartbeat  time.Duration        `yaml:"heartbeat"`
	TaskLimit  int                  `yaml:"task_history"`
	Routes     []connectivity.Route `yaml:"routes"`
}

// BrowserConfig controls the Chrome process.
type BrowserConfig struct {
	DebugURL          string        `yaml:"debug_url"`
	DebugPort         int           `yaml:"debug_port"`
	AttachTimeout     time.Duration `yaml:"attach_timeout"`
	ProfileDir        string        `yaml:"profile_dir"`
	TempProfilePrefix string        `yaml:"temp_profile_prefix"`
	Bin               string        `yaml:"bin"`
	AppURL            string        `yaml:"app_url"`
	ExtraFlags        []string      `yaml:"extra_flags"`
	XvfbDisplay       string        `yaml:"xvfb_display"`
	Stealth           *bool         `yaml:"stealth"`
	BlockURLs         []string      `yaml:"block_urls"`
	UserAgent         string        `yaml:"user_agent"`
	MonitorInterval   time.Duration `yaml:"monitor_interval"`
}

// StealthEnabled defaults to true.
func (b BrowserConfig) StealthEnabled() bool { return b.Stealth == nil || *b.Stealth }

// GuideConfig locates the upstream channel guide.
type GuideConfig struct {
	BaseURL    string        `yaml:"base_url"`
	WebPath    string        `yaml:"web_path"`
	RatePerSec float64       `yaml:"rate_per_sec"`
	Burst      int           `yaml:"burst"`
	Retries    int           `yaml:"retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

// VideoConfig holds the video-site policies.
type VideoConfig struct {
	Allowlist          []string      `yaml:"allowlist"`
	StartFromBeginning *bool         `yaml:"start_from_beginning"`
	SeekThreshold      time.Duration `yaml:"seek_threshold"`
	BlockPopups        *bool         `yaml:"block_popups"`
	PopupInterval      time.Duration `yaml:"popup_interval"`
	CaptionsDefault    bool          `yaml:"captions_default"`
	LoginURL           string        `yaml:"login_url"`
	HomeURL            string        `yaml:"home_url"`
	DescriptionLimit   int           `yaml:"description_limit"`
}

// FromStart defaults to true.
func (v VideoConfig) FromStart() bool { return v.StartFromBeginning == nil || *v.StartFromBeginning }

// PopupsBlocked defaults to true.
func (v VideoConfig) PopupsBlocked() bool { return v.BlockPopups == nil || *v.BlockPopups }

// Timings are the waits and budgets of the control pipeline.
type Timings struct {
	HealthProbe     time.Duration `yaml:"health_probe"`
	CaptionProbe    time.Duration `yaml:"caption_probe"`
	RecoveryProbe   time.Duration `yaml:"recovery_probe"`
	Navigation      time.Duration `yaml:"navigation"`
	MediaElement    time.Duration `yaml:"media_element"`
	MediaReady      time.Duration `yaml:"media_ready"`
	VideoBuffer     time.Duration `yaml:"video_buffer"`
	GuideBuffer     time.Duration `yaml:"guide_buffer"`
	TacticSettle    time.Duration `yaml:"tactic_settle"`
	CaptionSettle   time.Duration `yaml:"caption_settle"`
	CaptionOffDelay time.Duration `yaml:"caption_off_delay"`
	FullscreenDelay time.Duration `yaml:"fullscreen_delay"`
	ResumeDelay     time.Duration `yaml:"resume_delay"`
	Stabilization   time.Duration `yaml:"stabilization"`
	HideControls    time.Duration `yaml:"hide_controls"`
	InfoCache       time.Duration `yaml:"info_cache"`
	ResizeDelta     int           `yaml:"resize_delta"`
}

// AutoReloadConfig periodically reloads the last guide channel.
type AutoReloadConfig struct {
	Enabled  *bool         `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	// OnlyDuringPrograms skips the reload when the guide reports nothing
	// playing on the channel.
	OnlyDuringPrograms bool `yaml:"only_during_programs"`
}

// On defaults to true.
func (a AutoReloadConfig) On() bool { return a.Enabled == nil || *a.Enabled }

// RateLimitConfig bounds the control API per client IP.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// TracingConfig enables span export.
type TracingConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"` // empty writes to stderr
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	switch c.MCP {
	case "off", "http", "stdio":
	default:
		return fmt.Errorf("config: mcp: unsupported mode %q (use off, http or stdio)", c.MCP)
	}
	for i, rt := range c.Routes {
		if rt.Service == "" {
			return fmt.Errorf("config: routes[%d]: service is required", i)
		}
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("config: rate_limit.rps must be >= 0")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:3001"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MCP == "" {
		c.MCP = "http"
	}

	b := &c.Browser
	if b.DebugPort == 0 {
		b.DebugPort = 9222
	}
	if b.DebugURL == "" {
		b.DebugURL = fmt.Sprintf("http://127.0.0.1:%d", b.DebugPort)
	}
	if b.AttachTimeout <= 0 {
		b.AttachTimeout = 1500 * time.Millisecond
	}
	if b.ProfileDir == "" {
		b.ProfileDir = "chrome-profile-data"
	}
	if b.TempProfilePrefix == "" {
		b.TempProfilePrefix = "tvremote-profile-"
	}
	if b.MonitorInterval <= 0 {
		b.MonitorInterval = 30 * time.Second
	}

	g := &c.Guide
	if g.BaseURL == "" {
		g.BaseURL = "http://localhost:8000"
	}
	if g.WebPath == "" {
		g.WebPath = "/web/channels"
	}
	if g.RatePerSec <= 0 {
		g.RatePerSec = 5
	}
	if g.Burst <= 0 {
		g.Burst = 10
	}

	v := &c.Video
	if len(v.Allowlist) == 0 {
		v.Allowlist = []string{"youtube.com", "www.youtube.com", "m.youtube.com", "youtu.be", "youtube-nocookie.com"}
	}
	if v.SeekThreshold <= 0 {
		v.SeekThreshold = 5 * time.Second
	}
	if v.PopupInterval <= 0 {
		v.PopupInterval = 2 * time.Second
	}
	if v.LoginURL == "" {
		v.LoginURL = "https://accounts.google.com/ServiceLogin?service=youtube&continue=https://www.youtube.com/"
	}
	if v.HomeURL == "" {
		v.HomeURL = "https://www.youtube.com/"
	}
	if v.DescriptionLimit <= 0 {
		v.DescriptionLimit = 300
	}

	t := &c.Timings
	setDur(&t.HealthProbe, 2500*time.Millisecond)
	setDur(&t.CaptionProbe, 2*time.Second)
	setDur(&t.RecoveryProbe, 3*time.Second)
	setDur(&t.Navigation, 30*time.Second)
	setDur(&t.MediaElement, 15*time.Second)
	setDur(&t.MediaReady, 15*time.Second)
	setDur(&t.VideoBuffer, 3*time.Second)
	setDur(&t.GuideBuffer, 15*time.Second)
	setDur(&t.TacticSettle, time.Second)
	setDur(&t.CaptionSettle, 1500*time.Millisecond)
	setDur(&t.CaptionOffDelay, 2*time.Second)
	setDur(&t.FullscreenDelay, 500*time.Millisecond)
	setDur(&t.ResumeDelay, time.Second)
	setDur(&t.Stabilization, 3*time.Second)
	setDur(&t.HideControls, 2*time.Second)
	setDur(&t.InfoCache, 30*time.Second)
	if t.ResizeDelta <= 0 {
		t.ResizeDelta = 1
	}

	setDur(&c.AutoReload.Interval, 24*time.Hour)
	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 10
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 20
	}
	setDur(&c.Heartbeat, time.Minute)
	if c.TaskLimit <= 0 {
		c.TaskLimit = 100
	}
}

func setDur(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "127.0.0.1:3001" {
		t.Fatalf("listen: got %q, want %q", cfg.Listen, "127.0.0.1:3001")
	}
	if cfg.Browser.DebugURL != "http://127.0.0.1:9222" {
		t.Fatalf("debug_url: got %q", cfg.Browser.DebugURL)
	}
	if cfg.Timings.HealthProbe != 2500*time.Millisecond {
		t.Fatalf("health_probe: got %v", cfg.Timings.HealthProbe)
	}
	if cfg.Timings.GuideBuffer != 15*time.Second || cfg.Timings.VideoBuffer != 3*time.Second {
		t.Fatalf("buffers: got %v / %v", cfg.Timings.GuideBuffer, cfg.Timings.VideoBuffer)
	}
	if !cfg.Video.FromStart() || !cfg.Video.PopupsBlocked() || cfg.Video.CaptionsDefault {
		t.Fatalf("video policies: got %+v", cfg.Video)
	}
	if !cfg.AutoReload.On() || cfg.AutoReload.Interval != 24*time.Hour {
		t.Fatalf("auto reload: got %+v", cfg.AutoReload)
	}
	if !cfg.Browser.StealthEnabled() {
		t.Fatal("stealth should default on")
	}
	if cfg.MCP != "http" {
		t.Fatalf("mcp: got %q, want http", cfg.MCP)
	}
}

func TestParse_Overrides(t *testing.T) {
	src := `
listen: 0.0.0.0:4000
mcp: stdio
browser:
  debug_port: 9333
  stealth: false
video:
  start_from_beginning: false
  captions_default: true
timings:
  navigation: 45s
  caption_settle: 2s
auto_reload:
  enabled: false
routes:
  - service: guide
    strategy: http
    endpoint: http://localhost:8000
    config:
      method: GET
`
	cfg, err := Parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Browser.DebugURL != "http://127.0.0.1:9333" {
		t.Fatalf("debug_url: got %q", cfg.Browser.DebugURL)
	}
	if cfg.Browser.StealthEnabled() || cfg.Video.FromStart() || !cfg.Video.CaptionsDefault || cfg.AutoReload.On() {
		t.Fatalf("bool overrides not applied: %+v", cfg)
	}
	if cfg.Timings.Navigation != 45*time.Second || cfg.Timings.CaptionSettle != 2*time.Second {
		t.Fatalf("timings: got %+v", cfg.Timings)
	}
	if len(cfg.Routes) != 1 || cfg.Routes[0].Config["method"] != "GET" {
		t.Fatalf("routes: got %+v", cfg.Routes)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"mcp: grpc",
		"routes:\n  - strategy: http",
		"listen: [",
	}
	for _, src := range tests {
		if _, err := Parse([]byte(src)); err == nil {
			t.Errorf("%q: accepted, want error", src)
		}
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tvremote.yaml")
	if err := os.WriteFile(path, []byte("listen: 127.0.0.1:3001\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := make(chan *Config, 4)
	w, err := NewWatcher(path, nil, func(c *Config) { got <- c })
	if err != nil {
		t.Fatal(err)
	}
	w.debounce = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	defer func() {
		cancel()
		<-w.Done()
	}()

	if err := os.WriteFile(path, []byte("rate_limit:\n  rps: 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case c := <-got:
		if c.RateLimit.RPS != 42 {
			t.Fatalf("rps: got %v, want 42", c.RateLimit.RPS)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
}

func TestWatcher_KeepsConfigOnParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tvremote.yaml")
	os.WriteFile(path, []byte("{}"), 0o644)

	calls := 0
	w, err := NewWatcher(path, nil, func(*Config) { calls++ })
	if err != nil {
		t.Fatal(err)
	}
	defer w.fsw.Close()

	os.WriteFile(path, []byte("mcp: nope"), 0o644)
	w.reload()
	if calls != 0 {
		t.Fatalf("callback calls: got %d, want 0", calls)
	}
}

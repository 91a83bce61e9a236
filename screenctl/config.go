package screenctl

import (
	"log/slog"

	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/config"
)

// Type aliases so callers outside screenctl can build a configuration
// without importing internal packages.
type (
	Config           = config.Config
	BrowserConfig    = config.BrowserConfig
	GuideConfig      = config.GuideConfig
	VideoConfig      = config.VideoConfig
	Timings          = config.Timings
	AutoReloadConfig = config.AutoReloadConfig
	RateLimitConfig  = config.RateLimitConfig
	TracingConfig    = config.TracingConfig
	ConfigWatcher    = config.Watcher
)

// LoadConfigFile reads a YAML configuration file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}

// WatchConfig returns a watcher calling onChange with every valid
// rewrite of the file at path.
var WatchConfig = config.NewWatcher

// Driver starts or attaches to the browser.
type Driver = browser.Driver

// NewChromeDriver returns the Chrome DevTools driver configured from
// cfg.Browser.
func NewChromeDriver(cfg *Config, logger *slog.Logger) Driver {
	return browser.NewRodDriver(browser.RodConfig{
		Stealth:          cfg.Browser.StealthEnabled(),
		BlockURLPatterns: cfg.Browser.BlockURLs,
		UserAgent:        cfg.Browser.UserAgent,
		Logger:           logger,
	})
}

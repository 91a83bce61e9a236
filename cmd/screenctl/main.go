// Command screenctl runs the TV screen controller: one Chrome session driven
// over HTTP, MCP and the connectivity router.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/tvremote/connectivity"
	"github.com/hazyhaar/tvremote/observability"
	"github.com/hazyhaar/tvremote/screenctl"
	"github.com/hazyhaar/tvremote/shield"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to tvremote.yaml config file")
	listen := flag.String("listen", "", "listen address (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	mcpMode := flag.String("mcp", "", "MCP transport: off, http, stdio (overrides config)")
	flag.Parse()

	cfg := screenctl.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = screenctl.LoadConfigFile(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *mcpMode != "" {
		cfg.MCP = *mcpMode
	}
	if k := os.Getenv("TVREMOTE_API_KEY"); k != "" {
		cfg.APIKey = k
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, *configPath); err != nil {
		logger.Error("screenctl: fatal", "error", err)
		closeLog()
		os.Exit(1)
	}
}

// newLogger writes JSON to stderr, and to cfg.LogFile as well when set.
// stdout stays free for the MCP stdio transport.
func newLogger(cfg *screenctl.Config) (*slog.Logger, func(), error) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeFn = func() { f.Close() }
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), closeFn, nil
}

func run(ctx context.Context, logger *slog.Logger, cfg *screenctl.Config, configPath string) error {
	if cfg.Tracing.Enabled {
		tp, closeTrace, err := newTracing(cfg.Tracing)
		if err != nil {
			return err
		}
		defer closeTrace()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tp.Shutdown(sctx)
		}()
	}

	router := connectivity.New(connectivity.WithLogger(logger))
	defer router.Close()

	events := observability.NewEventLogger(logger, 500)
	c, err := screenctl.New(cfg, screenctl.NewChromeDriver(cfg, logger),
		screenctl.WithLogger(logger),
		screenctl.WithRouter(router),
		screenctl.WithEventLogger(events))
	if err != nil {
		return err
	}
	defer c.Close()
	c.RegisterConnectivity(router)
	c.Start(ctx)

	hb := observability.NewHeartbeat(logger, cfg.Heartbeat, func() []any {
		h := c.Health()
		return []any{"browser", h.Browser.State, "on_video_site", h.OnVideoSite, "busy", h.Busy}
	})
	hb.Start(ctx)
	defer hb.Stop()

	var mcpSrv *mcp.Server
	if cfg.MCP != "off" {
		mcpSrv = mcp.NewServer(&mcp.Implementation{Name: "tvremote", Version: version}, nil)
		c.RegisterMCP(mcpSrv)
	}

	opts := screenctl.HTTPOptions{
		APIKey:    cfg.APIKey,
		RateLimit: shield.RateLimitConfig{Rate: cfg.RateLimit.RPS, Burst: cfg.RateLimit.Burst},
	}
	if cfg.MCP == "http" {
		opts.MCP = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil)
	}
	handler, limiter := c.Handler(opts)
	limiter.StartGC(ctx.Done())

	if configPath != "" {
		w, err := screenctl.WatchConfig(configPath, logger, func(next *screenctl.Config) {
			if err := c.ReloadRoutes(next.Routes); err != nil {
				logger.Warn("screenctl: route reload failed", "error", err)
			}
			limiter.SetConfig(shield.RateLimitConfig{Rate: next.RateLimit.RPS, Burst: next.RateLimit.Burst})
			logger.Info("screenctl: configuration reloaded", "routes", len(next.Routes), "rps", next.RateLimit.RPS)
		})
		if err != nil {
			logger.Warn("screenctl: config watch disabled", "error", err)
		} else {
			wctx, cancelWatch := context.WithCancel(ctx)
			go w.Run(wctx)
			defer func() {
				cancelWatch()
				<-w.Done()
			}()
		}
	}

	if cfg.APIKey == "" {
		logger.Warn("screenctl: no API key configured, control API is open")
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 2)
	go func() {
		logger.Info("screenctl: listening", "addr", cfg.Listen, "mcp", cfg.MCP, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()
	if cfg.MCP == "stdio" {
		go func() {
			logger.Info("screenctl: MCP on stdio")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				errc <- fmt.Errorf("mcp stdio: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errc:
		return err
	}

	logger.Info("screenctl: shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("screenctl: http shutdown", "error", err)
	}
	return nil
}

func newTracing(cfg screenctl.TracingConfig) (*observability.TracerProvider, func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open trace file: %w", err)
		}
		w = f
		closeFn = func() { f.Close() }
	}
	tp, err := observability.NewTracerProvider("tvremote", version, w)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return tp, closeFn, nil
}

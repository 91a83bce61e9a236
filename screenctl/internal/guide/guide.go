// Package guide reads the upstream channel guide API through the
// connectivity router. Responses are passed through untouched; the last
// good answer per path serves as a fallback when the upstream is down.
package guide

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/tvremote/connectivity"
)

// Service is the default route name of the guide API.
const Service = "guide"

// ErrNoCache is returned by the fallback when no earlier answer exists.
var ErrNoCache = errors.New("guide: no cached response")

// Caller dispatches a service call.
type Caller interface {
	Call(ctx context.Context, service string, payload []byte) ([]byte, error)
}

// Config tunes the client. Zero values take the defaults.
type Config struct {
	Service     string
	RatePerSec  float64 // default 5
	Burst       int     // default 10
	Retries     int     // default 2
	Backoff     time.Duration
	CallTimeout time.Duration // per attempt, default 5s
	BreakerTrip int           // consecutive failures, default 5
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.Service == "" {
		c.Service = Service
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 5
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	if c.Retries < 0 {
		c.Retries = 0
	} else if c.Retries == 0 {
		c.Retries = 2
	}
	if c.Backoff <= 0 {
		c.Backoff = 200 * time.Millisecond
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 5 * time.Second
	}
	if c.BreakerTrip <= 0 {
		c.BreakerTrip = 5
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client calls the guide API.
type Client struct {
	cfg     Config
	caller  Caller
	limiter *rate.Limiter

	mu    sync.RWMutex
	cache map[string][]byte
}

// New creates a client dispatching through caller.
func New(caller Caller, cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg:     cfg,
		caller:  caller,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		cache:   make(map[string][]byte),
	}
}

// Middleware is the chain installed on the guide route: logging, metrics,
// the last-good fallback, retry, circuit breaker and a per-attempt timeout.
func (c *Client) Middleware() connectivity.HandlerMiddleware {
	svc := c.cfg.Service
	cb := connectivity.NewCircuitBreaker(
		connectivity.WithBreakerThreshold(c.cfg.BreakerTrip),
		connectivity.BreakerStateGauge(svc),
	)
	return connectivity.Chain(
		connectivity.Logging(c.cfg.Logger, svc),
		connectivity.WithMetrics(svc),
		connectivity.WithFallback(c.cached, svc, c.cfg.Logger),
		connectivity.WithRetry(c.cfg.Retries, c.cfg.Backoff, c.cfg.Logger),
		connectivity.WithCircuitBreaker(cb, svc),
		connectivity.Timeout(c.cfg.CallTimeout),
	)
}

// Channels returns the raw channel list.
func (c *Client) Channels(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/api/channels")
}

// NowPlaying returns the raw now-playing document of a channel.
func (c *Client) NowPlaying(ctx context.Context, channelID string) (json.RawMessage, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, fmt.Errorf("guide: now playing: empty channel id")
	}
	return c.get(ctx, "/api/channels/"+url.PathEscape(channelID)+"/now_playing")
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("guide: rate limit: %w", err)
	}
	data, err := c.caller.Call(ctx, c.cfg.Service, []byte(path))
	if err != nil {
		return nil, fmt.Errorf("guide: %s: %w", path, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("guide: %s: upstream returned invalid JSON", path)
	}
	c.mu.Lock()
	c.cache[path] = data
	c.mu.Unlock()
	return data, nil
}

// cached is the local fallback handler: the last good answer for the path.
func (c *Client) cached(_ context.Context, payload []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.cache[string(payload)]
	if !ok {
		return nil, ErrNoCache
	}
	return data, nil
}

package shield

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket: Rate requests per second with Burst.
type RateLimitConfig struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// RateLimiter provides per-IP token-bucket rate limiting.
type RateLimiter struct {
	cfg      RateLimitConfig
	mu       sync.Mutex
	visitors map[string]*visitor
	exclude  []string
	now      func() time.Time
}

// NewRateLimiter creates a limiter. Paths with one of excludePrefixes are
// never limited. A zero Rate disables limiting.
func NewRateLimiter(cfg RateLimitConfig, excludePrefixes ...string) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &RateLimiter{
		cfg:      cfg,
		visitors: make(map[string]*visitor),
		exclude:  excludePrefixes,
		now:      time.Now,
	}
}

// StartGC drops visitors idle for more than 10 minutes, every 5 minutes,
// until done is closed.
func (rl *RateLimiter) StartGC(done <-chan struct{}) {
	tick := time.NewTicker(5 * time.Minute)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				rl.gc(10 * time.Minute)
			}
		}
	}()
}

func (rl *RateLimiter) gc(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-idle)
	for ip, v := range rl.visitors {
		if v.seen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// SetConfig swaps the bucket parameters. Existing buckets are dropped.
func (rl *RateLimiter) SetConfig(cfg RateLimitConfig) {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	rl.mu.Lock()
	rl.cfg = cfg
	rl.visitors = make(map[string]*visitor)
	rl.mu.Unlock()
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	if rl.cfg.Rate <= 0 {
		rl.mu.Unlock()
		return true
	}
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.cfg.Rate), rl.cfg.Burst)}
		rl.visitors[ip] = v
	}
	v.seen = rl.now()
	rl.mu.Unlock()
	return v.limiter.AllowN(v.seen, 1)
}

// Middleware answers 429 with a JSON error once the caller's bucket is empty.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range rl.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		ip := ExtractIP(r)
		if rl.allow(ip) {
			next.ServeHTTP(w, r)
			return
		}

		slog.Warn("ratelimit: request blocked", "ip", ip, "path", r.URL.Path)
		w.Header().Set("Retry-After", "1")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "rate limit exceeded",
		})
	})
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

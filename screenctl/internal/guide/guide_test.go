package guide

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/tvremote/connectivity"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouter(t *testing.T, srv *httptest.Server, c *Client) *connectivity.Router {
	t.Helper()
	r := connectivity.New(connectivity.WithLogger(quietLogger()))
	r.RegisterTransport("http", connectivity.HTTPFactory())
	r.Wrap(Service, c.Middleware())
	err := r.Reload([]connectivity.Route{{
		Service:  Service,
		Strategy: "http",
		Endpoint: srv.URL,
		Config:   map[string]any{"method": "GET", "timeout_ms": 2000},
	}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

// lazyCaller lets the client exist before the router it calls through.
type lazyCaller struct{ r *connectivity.Router }

func (l *lazyCaller) Call(ctx context.Context, service string, payload []byte) ([]byte, error) {
	return l.r.Call(ctx, service, payload)
}

func TestClient_PassThroughAndFallback(t *testing.T) {
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		switch r.URL.Path {
		case "/api/channels":
			w.Write([]byte(`[{"id":"abc123","name":"News"}]`))
		case "/api/channels/abc123/now_playing":
			w.Write([]byte(`{"title":"Evening"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	lc := &lazyCaller{}
	c := New(lc, Config{Retries: -1, Logger: quietLogger()})
	lc.r = newRouter(t, srv, c)

	got, err := c.Channels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `[{"id":"abc123","name":"News"}]` {
		t.Fatalf("got %s", got)
	}
	np, err := c.NowPlaying(context.Background(), "abc123")
	if err != nil || string(np) != `{"title":"Evening"}` {
		t.Fatalf("now playing: got %s, %v", np, err)
	}

	down.Store(true)
	got, err = c.Channels(context.Background())
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if string(got) != `[{"id":"abc123","name":"News"}]` {
		t.Fatalf("fallback: got %s", got)
	}

	if _, err := c.NowPlaying(context.Background(), "other"); err == nil {
		t.Fatal("uncached path should fail while upstream is down")
	}
}

func TestClient_SlowUpstreamTimesOutToFallback(t *testing.T) {
	var slow atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slow.Load() {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		w.Write([]byte(`[{"id":"abc123"}]`))
	}))
	defer srv.Close()

	lc := &lazyCaller{}
	c := New(lc, Config{Retries: -1, CallTimeout: 30 * time.Millisecond, Logger: quietLogger()})
	lc.r = newRouter(t, srv, c)

	if _, err := c.Channels(context.Background()); err != nil {
		t.Fatal(err)
	}
	slow.Store(true)
	start := time.Now()
	got, err := c.Channels(context.Background())
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if string(got) != `[{"id":"abc123"}]` {
		t.Fatalf("fallback: got %s", got)
	}
	if d := time.Since(start); d > 500*time.Millisecond {
		t.Fatalf("call took %v, want the per-attempt timeout to cut it short", d)
	}
}

func TestClient_RejectsInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>nope</html>"))
	}))
	defer srv.Close()

	lc := &lazyCaller{}
	c := New(lc, Config{Logger: quietLogger()})
	lc.r = newRouter(t, srv, c)

	if _, err := c.Channels(context.Background()); err == nil {
		t.Fatal("want error on invalid JSON")
	}
}

func TestClient_EmptyChannelID(t *testing.T) {
	c := New(&lazyCaller{}, Config{})
	if _, err := c.NowPlaying(context.Background(), " "); err == nil {
		t.Fatal("want error for empty channel id")
	}
}

func TestCached_Miss(t *testing.T) {
	c := New(&lazyCaller{}, Config{})
	if _, err := c.cached(context.Background(), []byte("/api/channels")); !errors.Is(err, ErrNoCache) {
		t.Fatalf("got %v, want ErrNoCache", err)
	}
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	c := New(&lazyCaller{}, Config{RatePerSec: 0.001, Burst: 1})
	c.limiter.Allow() // drain the single token
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Channels(ctx); err == nil {
		t.Fatal("want rate limit error")
	}
}

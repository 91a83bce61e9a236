package screenctl

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/tvremote/kit"
	"github.com/hazyhaar/tvremote/shield"
)

// HTTPOptions configures Handler.
type HTTPOptions struct {
	// APIKey, when set, is required on every route except /health.
	APIKey    string
	RateLimit shield.RateLimitConfig
	// MCP is mounted on /mcp when non-nil.
	MCP http.Handler
}

// Handler returns the control API behind the shield stack. The rate
// limiter is returned so the caller can run its GC and reload its limits.
func (c *Controller) Handler(o HTTPOptions) (http.Handler, *shield.RateLimiter) {
	stack, limiter := shield.DefaultAPIStack(o.APIKey, o.RateLimit)
	r := chi.NewRouter()
	for _, mw := range stack {
		r.Use(mw)
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(kit.WithTransport(r.Context(), "http")))
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, c.Health())
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/change-channel", c.handleChangeChannel)
	r.Post("/navigate-youtube", c.handleNavigateVideo)
	r.Post("/youtube-subtitles", c.handleCaptions)
	r.Post("/youtube-login", c.handleOpenLogin)
	r.Post("/restart-browser", c.handleRestart)

	r.Get("/browser-health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.PageHealth(r.Context()))
	})
	r.Get("/debug", func(w http.ResponseWriter, r *http.Request) {
		rep, err := c.Debug(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	})
	r.Get("/current", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, c.Current())
	})
	r.Get("/youtube-info", func(w http.ResponseWriter, r *http.Request) {
		res, err := c.VideoInfo(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
	r.Get("/youtube-status", func(w http.ResponseWriter, r *http.Request) {
		res, err := c.LoginStatus(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Get("/tasks", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, c.Tasks())
	})
	r.Get("/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		t, err := c.Task(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	})
	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.Events(queryInt(r, "limit", 50)))
	})

	r.Get("/channels", func(w http.ResponseWriter, r *http.Request) {
		data, err := c.Channels(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeRaw(w, data)
	})
	r.Get("/channels/{id}/now-playing", func(w http.ResponseWriter, r *http.Request) {
		data, err := c.NowPlaying(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeRaw(w, data)
	})

	if o.MCP != nil {
		r.Handle("/mcp", o.MCP)
		r.Handle("/mcp/*", o.MCP)
	}
	return r, limiter
}

type changeChannelRequest struct {
	ChannelID string `json:"channelId"`
	URL       string `json:"url"`
}

func (c *Controller) handleChangeChannel(w http.ResponseWriter, r *http.Request) {
	var req changeChannelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := c.ChangeTarget(r.Context(), req.ChannelID, req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type navigateVideoRequest struct {
	URL string `json:"url"`
}

func (c *Controller) handleNavigateVideo(w http.ResponseWriter, r *http.Request) {
	var req navigateVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.URL == "" {
		writeError(w, r, fmt.Errorf("%w: url is required", ErrInvalidInput))
		return
	}
	t, err := c.NavigateVideo(r.Context(), req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"message": "Navigating to video...",
		"task_id": t.ID,
	})
}

type captionsRequest struct {
	Action string `json:"action"`
}

func (c *Controller) handleCaptions(w http.ResponseWriter, r *http.Request) {
	var req captionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Action == "" {
		writeError(w, r, fmt.Errorf("%w: action is required", ErrInvalidInput))
		return
	}
	res, err := c.Captions(r.Context(), req.Action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *Controller) handleOpenLogin(w http.ResponseWriter, r *http.Request) {
	t, err := c.OpenLogin(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"message": "Navigating to video site login...",
		"task_id": t.ID,
	})
}

func (c *Controller) handleRestart(w http.ResponseWriter, r *http.Request) {
	res, err := c.RestartSession(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- helpers ---

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %w", ErrInvalidInput, err)
	}
	return nil
}

// StatusCode maps a control error to its HTTP status.
func StatusCode(err error) int {
	var frozen *BrowserFrozenError
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotOnVideoSite):
		return http.StatusBadRequest
	case errors.Is(err, ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrClosed), errors.As(err, &frozen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	body := map[string]any{"success": false, "error": err.Error()}
	var frozen *BrowserFrozenError
	if errors.As(err, &frozen) {
		body["frozen"] = frozen.Probe.Frozen
		body["recovery_attempted"] = true
	}
	if code >= http.StatusInternalServerError {
		shield.GetLogger(r.Context()).Error("request failed", "status", code, "error", err)
	}
	writeJSON(w, code, body)
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

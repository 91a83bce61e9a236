package screenctl

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazyhaar/tvremote/screenctl/internal/browser/browsertest"
	"github.com/hazyhaar/tvremote/shield"
)

func newTestServer(t *testing.T, c *Controller, apiKey string) *httptest.Server {
	t.Helper()
	h, _ := c.Handler(HTTPOptions{
		APIKey:    apiKey,
		RateLimit: shield.RateLimitConfig{Rate: 1000, Burst: 1000},
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHTTP_HealthAndChangeChannel(t *testing.T) {
	c := newTestController(t, nil, &browsertest.Driver{Setup: new(player).setup})
	srv := newTestServer(t, c, "")

	code, body := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	if code != http.StatusOK || body["status"] != "running" {
		t.Fatalf("health: %d %v", code, body)
	}

	code, body = doJSON(t, http.MethodPost, srv.URL+"/change-channel", map[string]string{"channelId": "abc123"})
	if code != http.StatusOK {
		t.Fatalf("change-channel: %d %v", code, body)
	}
	if body["success"] != true || body["message"] != "Changed to channel abc123" {
		t.Fatalf("change-channel: %v", body)
	}

	code, body = doJSON(t, http.MethodGet, srv.URL+"/current", nil)
	if code != http.StatusOK || body["channel_id"] != "abc123" {
		t.Fatalf("current: %d %v", code, body)
	}

	code, body = doJSON(t, http.MethodGet, srv.URL+"/browser-health", nil)
	if code != http.StatusOK || body["healthy"] != true {
		t.Fatalf("browser-health: %d %v", code, body)
	}
}

func TestHTTP_NavigateVideoTask(t *testing.T) {
	c := newTestController(t, nil, &browsertest.Driver{Setup: new(player).setup})
	srv := newTestServer(t, c, "")

	code, body := doJSON(t, http.MethodPost, srv.URL+"/navigate-youtube", map[string]string{"url": "https://www.youtube.com/watch?v=abc"})
	if code != http.StatusAccepted || body["success"] != true {
		t.Fatalf("navigate: %d %v", code, body)
	}
	id, _ := body["task_id"].(string)
	if id == "" {
		t.Fatalf("no task id: %v", body)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		code, body = doJSON(t, http.MethodGet, srv.URL+"/tasks/"+id, nil)
		if code != http.StatusOK {
			t.Fatalf("task: %d %v", code, body)
		}
		if body["status"] == string(TaskSucceeded) {
			break
		}
		if body["status"] == string(TaskFailed) || time.Now().After(deadline) {
			t.Fatalf("task: %v", body)
		}
		time.Sleep(5 * time.Millisecond)
	}

	code, body = doJSON(t, http.MethodPost, srv.URL+"/youtube-subtitles", map[string]string{"action": "on"})
	if code != http.StatusOK || body["enabled"] != true {
		t.Fatalf("subtitles: %d %v", code, body)
	}
}

func TestHTTP_Errors(t *testing.T) {
	c := newTestController(t, nil, &browsertest.Driver{Setup: new(player).setup})
	srv := newTestServer(t, c, "")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"off allowlist", http.MethodPost, "/navigate-youtube", map[string]string{"url": "https://evil.example/v"}, http.StatusBadRequest},
		{"missing url", http.MethodPost, "/navigate-youtube", map[string]string{}, http.StatusBadRequest},
		{"missing channel", http.MethodPost, "/change-channel", map[string]string{}, http.StatusBadRequest},
		{"captions off site", http.MethodPost, "/youtube-subtitles", map[string]string{"action": "on"}, http.StatusBadRequest},
		{"captions no action", http.MethodPost, "/youtube-subtitles", map[string]string{}, http.StatusBadRequest},
		{"unknown task", http.MethodGet, "/tasks/task_nope", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		code, body := doJSON(t, tt.method, srv.URL+tt.path, tt.body)
		if code != tt.want {
			t.Errorf("%s: got %d, want %d (%v)", tt.name, code, tt.want, body)
			continue
		}
		if body["success"] != false || body["error"] == "" {
			t.Errorf("%s: body %v", tt.name, body)
		}
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/change-channel", bytes.NewReader([]byte("{not json")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json: got %d, want 400", resp.StatusCode)
	}
}

func TestHTTP_APIKey(t *testing.T) {
	c := newTestController(t, nil, &browsertest.Driver{})
	srv := newTestServer(t, c, "s3cret")

	if code, _ := doJSON(t, http.MethodGet, srv.URL+"/health", nil); code != http.StatusOK {
		t.Fatalf("health: got %d, want 200", code)
	}
	if code, _ := doJSON(t, http.MethodGet, srv.URL+"/tasks", nil); code != http.StatusUnauthorized {
		t.Fatalf("tasks without key: got %d, want 401", code)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/events?limit=5", nil)
	req.Header.Set("x-api-key", "s3cret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events with key: got %d, want 200", resp.StatusCode)
	}
}

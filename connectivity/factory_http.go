package connectivity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/tvremote/horosafe"
)

// maxHTTPResponseBody caps the response data read from remote endpoints.
const maxHTTPResponseBody int64 = 10 << 20

// httpConfig is the per-route config.
type httpConfig struct {
	TimeoutMs   int64             `json:"timeout_ms"`
	Method      string            `json:"method"`
	ContentType string            `json:"content_type"`
	Headers     map[string]string `json:"headers"`
}

// HTTPFactory creates Handlers for HTTP endpoints.
//
// With method POST (default) the payload is the request body. With method
// GET the payload is a path (and optional query) appended to the endpoint,
// which is how the read-only guide API is consumed:
//
//	router.Call(ctx, "guide", []byte("/api/channels"))
//
// The endpoint is usually a loopback address, so only the scheme and host
// are validated.
func HTTPFactory() TransportFactory {
	return func(endpoint string, config json.RawMessage) (Handler, func(), error) {
		if _, err := horosafe.ParseHTTPURL(endpoint); err != nil {
			return nil, nil, fmt.Errorf("connectivity/http: %w", err)
		}

		var cfg httpConfig
		if len(config) > 0 {
			_ = json.Unmarshal(config, &cfg)
		}
		method := strings.ToUpper(cfg.Method)
		if method == "" {
			method = http.MethodPost
		}
		contentType := cfg.ContentType
		if contentType == "" {
			contentType = "application/json"
		}

		client := &http.Client{Timeout: callTimeout(config, 30*time.Second)}
		base := strings.TrimRight(endpoint, "/")

		handler := func(ctx context.Context, payload []byte) ([]byte, error) {
			target := endpoint
			var body io.Reader
			if method == http.MethodGet {
				if p := strings.TrimSpace(string(payload)); p != "" {
					target = base + "/" + strings.TrimLeft(p, "/")
				}
			} else {
				body = bytes.NewReader(payload)
			}

			req, err := http.NewRequestWithContext(ctx, method, target, body)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: create request: %w", err)
			}
			if body != nil {
				req.Header.Set("Content-Type", contentType)
			}
			req.Header.Set("Accept", "application/json")
			for k, v := range cfg.Headers {
				req.Header.Set(k, v)
			}

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: do request: %w", err)
			}
			defer resp.Body.Close()

			data, err := horosafe.LimitedReadAll(resp.Body, maxHTTPResponseBody)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: read response: %w", err)
			}

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &ErrStatus{Code: resp.StatusCode, Body: truncate(string(data), 256)}
			}
			return data, nil
		}

		return handler, client.CloseIdleConnections, nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

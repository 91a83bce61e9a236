// Package connectivity dispatches named service calls either to an
// in-process handler or to a remote endpoint described by a route table.
//
// tvremote registers its control operations as local services so that a
// co-located chat bot can drive the screen without going through HTTP, and
// reaches the upstream guide API through an "http" route:
//
//	router := connectivity.New(connectivity.WithLogger(logger))
//	router.RegisterTransport("http", connectivity.HTTPFactory())
//	router.RegisterLocal("screen_status", statusHandler)
//	router.Reload(cfg.Routes)
//
//	resp, err := router.Call(ctx, "guide", []byte("/api/channels"))
//
// Routes come from the YAML configuration. Calling Reload with a new table
// rebuilds only the routes whose strategy, endpoint or config changed.
package connectivity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Handler is a transport-agnostic service function: bytes in, bytes out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// TransportFactory creates a Handler for a remote endpoint. The returned
// close function is called when the route is removed or replaced; it may
// be nil.
type TransportFactory func(endpoint string, config json.RawMessage) (handler Handler, close func(), err error)

// Route is one entry of the route table.
type Route struct {
	Service  string         `yaml:"service" json:"service"`
	Strategy string         `yaml:"strategy" json:"strategy"` // local | noop | http
	Endpoint string         `yaml:"endpoint" json:"endpoint,omitempty"`
	Config   map[string]any `yaml:"config" json:"config,omitempty"`
}

func (rt Route) rawConfig() json.RawMessage {
	if len(rt.Config) == 0 {
		return json.RawMessage("{}")
	}
	data, err := json.Marshal(rt.Config)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

// fingerprint changes whenever the route's behaviour would change.
func (rt Route) fingerprint() string {
	return rt.Strategy + "|" + rt.Endpoint + "|" + string(rt.rawConfig())
}

type remoteEntry struct {
	handler Handler
	close   func()
}

// Router dispatches service calls. Reads use RLock, reloads take the full
// lock.
type Router struct {
	mu            sync.RWMutex
	localHandlers map[string]Handler
	remoteEntries map[string]remoteEntry
	routeSnap     map[string]Route
	factories     map[string]TransportFactory
	wrap          map[string]HandlerMiddleware
	logger        *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets a custom logger for the router.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a Router with no routes.
func New(opts ...Option) *Router {
	r := &Router{
		localHandlers: make(map[string]Handler),
		remoteEntries: make(map[string]remoteEntry),
		routeSnap:     make(map[string]Route),
		factories:     make(map[string]TransportFactory),
		wrap:          make(map[string]HandlerMiddleware),
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterLocal registers an in-memory handler for a service.
func (r *Router) RegisterLocal(service string, h Handler) {
	r.mu.Lock()
	r.localHandlers[service] = h
	r.mu.Unlock()
}

// RegisterTransport registers a factory for a remote strategy ("http").
func (r *Router) RegisterTransport(strategy string, f TransportFactory) {
	r.mu.Lock()
	r.factories[strategy] = f
	r.mu.Unlock()
}

// Wrap installs a middleware applied to every remote handler built for
// service from now on (retry, breaker, metrics). Call before Reload.
func (r *Router) Wrap(service string, mw HandlerMiddleware) {
	r.mu.Lock()
	r.wrap[service] = mw
	r.mu.Unlock()
}

// Call dispatches a service call:
//  1. noop route: succeed without doing anything;
//  2. remote route built by a factory;
//  3. local handler;
//  4. ErrServiceNotFound.
func (r *Router) Call(ctx context.Context, service string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	entry, hasRemote := r.remoteEntries[service]
	localH := r.localHandlers[service]
	snap, hasRoute := r.routeSnap[service]
	r.mu.RUnlock()

	if hasRoute && snap.Strategy == "noop" {
		r.logger.DebugContext(ctx, "routing noop", "service", service)
		return nil, nil
	}

	if hasRemote {
		r.logger.DebugContext(ctx, "routing remote",
			"service", service, "strategy", snap.Strategy, "endpoint", snap.Endpoint)
		return entry.handler(ctx, payload)
	}

	if localH != nil {
		r.logger.DebugContext(ctx, "routing local", "service", service)
		return localH(ctx, payload)
	}

	return nil, &ErrServiceNotFound{Service: service}
}

// Services lists the names that Call can currently dispatch.
func (r *Router) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for name := range r.localHandlers {
		seen[name] = true
		out = append(out, name)
	}
	for name := range r.routeSnap {
		if !seen[name] {
			out = append(out, name)
		}
	}
	return out
}

// Reload replaces the route table. Routes with strategy "local" or "noop"
// do not create remote handlers. Unchanged routes keep their handler.
// Factory failures are logged and collected; the remaining routes are
// still applied.
func (r *Router) Reload(routes []Route) error {
	newRoutes := make(map[string]Route, len(routes))
	for _, rt := range routes {
		if rt.Service == "" {
			return fmt.Errorf("connectivity: route with empty service name")
		}
		newRoutes[rt.Service] = rt
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	newEntries := make(map[string]remoteEntry, len(newRoutes))
	var firstErr error

	for name, rt := range newRoutes {
		switch rt.Strategy {
		case "local", "noop":
			continue
		}

		if old, ok := r.routeSnap[name]; ok && old.fingerprint() == rt.fingerprint() {
			if existing, exists := r.remoteEntries[name]; exists {
				newEntries[name] = existing
				continue
			}
		}

		factory, ok := r.factories[rt.Strategy]
		if !ok {
			r.logger.Warn("no transport factory for strategy",
				"service", name, "strategy", rt.Strategy)
			if firstErr == nil {
				firstErr = &ErrNoFactory{Service: name, Strategy: rt.Strategy}
			}
			continue
		}

		h, closeFn, err := factory(rt.Endpoint, rt.rawConfig())
		if err != nil {
			r.logger.Error("factory failed",
				"service", name, "strategy", rt.Strategy,
				"endpoint", rt.Endpoint, "error", err)
			if firstErr == nil {
				firstErr = &ErrFactoryFailed{Service: name, Strategy: rt.Strategy, Endpoint: rt.Endpoint, Cause: err}
			}
			continue
		}
		if mw, ok := r.wrap[name]; ok {
			h = mw(h)
		}
		newEntries[name] = remoteEntry{handler: h, close: closeFn}
		r.logger.Info("route built",
			"service", name, "strategy", rt.Strategy, "endpoint", rt.Endpoint)
	}

	for name, old := range r.remoteEntries {
		if old.close == nil {
			continue
		}
		if _, stillExists := newEntries[name]; !stillExists {
			old.close()
			continue
		}
		if r.routeSnap[name].fingerprint() != newRoutes[name].fingerprint() {
			old.close()
		}
	}

	r.remoteEntries = newEntries
	r.routeSnap = newRoutes

	r.logger.Info("routes reloaded",
		"total", len(newRoutes),
		"remote", len(newEntries),
		"local", countLocal(newRoutes))

	return firstErr
}

// Close shuts down all remote handlers.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.remoteEntries {
		if entry.close != nil {
			entry.close()
		}
	}
	r.remoteEntries = make(map[string]remoteEntry)
	r.routeSnap = make(map[string]Route)
	return nil
}

func countLocal(routes map[string]Route) int {
	n := 0
	for _, rt := range routes {
		if rt.Strategy == "local" {
			n++
		}
	}
	return n
}

// callTimeout extracts timeout_ms from route config, with a default.
func callTimeout(cfg json.RawMessage, defaultTimeout time.Duration) time.Duration {
	var parsed struct {
		TimeoutMs int64 `json:"timeout_ms"`
	}
	if json.Unmarshal(cfg, &parsed) == nil && parsed.TimeoutMs > 0 {
		return time.Duration(parsed.TimeoutMs) * time.Millisecond
	}
	return defaultTimeout
}

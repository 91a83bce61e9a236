package observability

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// RuntimeMetrics captures Go process health at a point in time.
type RuntimeMetrics struct {
	GoroutinesCount int     `json:"goroutines"`
	MemoryAllocMB   float64 `json:"memory_alloc_mb"`
	MemorySysMB     float64 `json:"memory_sys_mb"`
	GCCount         uint32  `json:"gc_count"`
}

// CollectRuntimeMetrics reads current Go runtime stats.
func CollectRuntimeMetrics() RuntimeMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeMetrics{
		GoroutinesCount: runtime.NumGoroutine(),
		MemoryAllocMB:   float64(mem.Alloc) / 1024 / 1024,
		MemorySysMB:     float64(mem.Sys) / 1024 / 1024,
		GCCount:         mem.NumGC,
	}
}

// Heartbeat periodically exports runtime gauges and logs a liveness line
// with the caller's status attributes.
type Heartbeat struct {
	logger   *slog.Logger
	interval time.Duration
	status   func() []any
	stop     chan struct{}
	done     chan struct{}
}

// NewHeartbeat creates a heartbeat. status may be nil; its key/value pairs
// are appended to every log line.
func NewHeartbeat(logger *slog.Logger, interval time.Duration, status func() []any) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Heartbeat{
		logger:   logger,
		interval: interval,
		status:   status,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start beats once immediately, then every interval until Stop or ctx ends.
func (hb *Heartbeat) Start(ctx context.Context) {
	go hb.loop(ctx)
}

// Beat exports one sample.
func (hb *Heartbeat) Beat() RuntimeMetrics {
	m := CollectRuntimeMetrics()
	metricGoroutines.Set(float64(m.GoroutinesCount))
	metricMemAlloc.Set(m.MemoryAllocMB * 1024 * 1024)
	args := []any{
		"goroutines", m.GoroutinesCount,
		"memory_alloc_mb", m.MemoryAllocMB,
		"gc_count", m.GCCount,
	}
	if hb.status != nil {
		args = append(args, hb.status()...)
	}
	hb.logger.Debug("heartbeat", args...)
	return m
}

// Stop ends the loop and waits for it.
func (hb *Heartbeat) Stop() {
	close(hb.stop)
	<-hb.done
}

func (hb *Heartbeat) loop(ctx context.Context) {
	defer close(hb.done)
	ticker := time.NewTicker(hb.interval)
	defer ticker.Stop()

	hb.Beat()
	for {
		select {
		case <-ctx.Done():
			return
		case <-hb.stop:
			return
		case <-ticker.C:
			hb.Beat()
		}
	}
}

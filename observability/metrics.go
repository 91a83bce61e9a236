// Package observability exports what the screen controller does: prometheus
// collectors for freezes, recoveries, tactic outcomes and navigations, an
// OpenTelemetry tracer for pipeline stages, a runtime heartbeat and an
// in-memory log of control events.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tvremote"

var (
	metricProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "page_probes_total",
		Help:      "Page health probes by result (healthy, frozen, error).",
	}, []string{"result"})
	metricProbeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "page_probe_duration_seconds",
		Help:      "Round trip of the page health probe.",
		Buckets:   []float64{.005, .02, .1, .25, .5, 1, 2, 3},
	})
	metricRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recoveries_total",
		Help:      "Freeze recovery runs by result.",
	}, []string{"result"})
	metricTactics = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tactic_attempts_total",
		Help:      "Tactic attempts by engine, tactic and result.",
	}, []string{"engine", "tactic", "result"})
	metricNavigations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "navigations_total",
		Help:      "Target navigations by kind and result.",
	}, []string{"kind", "result"})
	metricNavigationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "navigation_duration_seconds",
		Help:      "Full navigation pipeline duration.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90},
	}, []string{"kind"})
	metricCaptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "caption_operations_total",
		Help:      "Caption operations by action and result.",
	}, []string{"action", "result"})
	metricSessionConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "browser_connected",
		Help:      "1 while the browser session is connected.",
	})
	metricSessionRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "browser_restarts_total",
		Help:      "Browser session restarts.",
	})
	metricGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "goroutines",
		Help:      "Goroutines at the last heartbeat.",
	})
	metricMemAlloc = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "memory_alloc_bytes",
		Help:      "Heap bytes allocated at the last heartbeat.",
	})
)

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// ObserveProbe records one health probe.
func ObserveProbe(frozen, responded bool, rtt time.Duration) {
	switch {
	case frozen:
		metricProbes.WithLabelValues("frozen").Inc()
	case responded:
		metricProbes.WithLabelValues("healthy").Inc()
	default:
		metricProbes.WithLabelValues("error").Inc()
	}
	metricProbeDuration.Observe(rtt.Seconds())
}

// ObserveRecovery records a recovery run.
func ObserveRecovery(recovered bool) {
	metricRecoveries.WithLabelValues(result(recovered)).Inc()
}

// ObserveTactic records one tactic attempt.
func ObserveTactic(engine, tactic string, ok bool) {
	metricTactics.WithLabelValues(engine, tactic, result(ok)).Inc()
}

// ObserveNavigation records a finished navigation.
func ObserveNavigation(kind string, ok bool, d time.Duration) {
	metricNavigations.WithLabelValues(kind, result(ok)).Inc()
	metricNavigationDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveCaption records a caption operation.
func ObserveCaption(action string, ok bool) {
	metricCaptions.WithLabelValues(action, result(ok)).Inc()
}

// SetConnected exports the session connection flag.
func SetConnected(connected bool) {
	if connected {
		metricSessionConnected.Set(1)
		return
	}
	metricSessionConnected.Set(0)
}

// ObserveRestart counts a session restart.
func ObserveRestart() { metricSessionRestarts.Inc() }

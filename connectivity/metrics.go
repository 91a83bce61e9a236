package connectivity

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tvremote",
		Subsystem: "connectivity",
		Name:      "calls_total",
		Help:      "Routed service calls by service and result.",
	}, []string{"service", "result"})
	metricCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tvremote",
		Subsystem: "connectivity",
		Name:      "call_duration_seconds",
		Help:      "Routed service call latency.",
		Buckets:   []float64{.005, .025, .1, .5, 1, 2.5, 10, 30, 60},
	}, []string{"service"})
	metricBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tvremote",
		Subsystem: "connectivity",
		Name:      "breaker_state",
		Help:      "Circuit breaker state per service (0 closed, 1 open, 2 half-open).",
	}, []string{"service"})
)

// WithMetrics records call counts and latency for service.
func WithMetrics(service string) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next(ctx, payload)
			metricCallDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
			result := "ok"
			if err != nil {
				result = "error"
			}
			metricCalls.WithLabelValues(service, result).Inc()
			return resp, err
		}
	}
}

// BreakerStateGauge returns a state hook exporting transitions of the
// breaker guarding service.
func BreakerStateGauge(service string) BreakerOption {
	metricBreakerState.WithLabelValues(service).Set(float64(BreakerClosed))
	return WithBreakerStateHook(func(_, to BreakerState) {
		metricBreakerState.WithLabelValues(service).Set(float64(to))
	})
}

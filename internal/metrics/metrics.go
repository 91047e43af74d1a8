package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/finguard/finguard-server/auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "finguard"

var (
	authEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "events_total",
			Help:      "Authentication and authorization activity by event type.",
		},
		[]string{"event"},
	)

	histogramResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "histogram_response_time_seconds",
			Help:      "HTTP handler latency by route and status.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route", "status"},
	)
)

// ActivitySink counts auth activity events
type ActivitySink struct{}

var _ auth.ActivitySink = ActivitySink{}

// Record implements auth.ActivitySink.
func (ActivitySink) Record(_ context.Context, event auth.ActivityEvent) error {
	authEvents.WithLabelValues(string(event.EventType)).Inc()
	return nil
}

// ObserveRequest records the latency of one HTTP request. route must be the
// route pattern, not the raw path.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	histogramResponseTime.
		WithLabelValues(method, route, strconv.Itoa(status)).
		Observe(elapsed.Seconds())
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuthEvents returns the counter for event, for tests and diagnostics
func AuthEvents(event auth.ActivityEventType) prometheus.Counter {
	return authEvents.WithLabelValues(string(event))
}

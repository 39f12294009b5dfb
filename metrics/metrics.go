package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	PinsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pins_created_total",
			Help: "Map pins created, by kind",
		},
		[]string{"kind"}, // "sighting", "camera"
	)

	PinsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pins_deleted_total",
			Help: "Map pins deleted",
		},
	)

	StreamRelayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_relay_requests_total",
			Help: "Stream relay requests by resource kind and result",
		},
		[]string{"kind", "result"}, // kind: playlist, segment, other; result: ok, upstream_error, transport_error, rejected
	)

	StreamRelayUpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stream_relay_upstream_duration_seconds",
			Help:    "Time to first byte from the HLS origin",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	PushNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_notifications_total",
			Help: "Push notification batches sent, by result",
		},
		[]string{"result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	ThumbnailJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_thumbnail_jobs_total",
			Help: "Snapshot thumbnail jobs processed, by result",
		},
		[]string{"result"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency keyed by the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsCollector tracks request counters and durations plus a few
// domain counters fed by the audit logger.
type metricsCollector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	loginFailures   prometheus.Counter
	fileDenials     prometheus.Counter
}

func newMetricsCollector() *metricsCollector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &metricsCollector{
		registry: registry,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regdesk",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests handled by the API",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "regdesk",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request processing duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		loginFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "regdesk",
			Name:      "login_failures_total",
			Help:      "Failed login attempts",
		}),
		fileDenials: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "regdesk",
			Name:      "file_access_denied_total",
			Help:      "File downloads blocked by the ownership gate",
		}),
	}
}

// recordEvent feeds domain counters from audit events.
func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil {
		return
	}
	switch event {
	case AuditLoginFailure:
		m.loginFailures.Inc()
	case AuditFileDenied:
		m.fileDenials.Inc()
	}
}

// middleware records per-request counters keyed by the chi route
// pattern, not the raw path, to keep label cardinality bounded.
func (m *metricsCollector) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the collector for the server's /metrics mount.
func (a *API) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.metrics.registry, promhttp.HandlerOpts{})
}

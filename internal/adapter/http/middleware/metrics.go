package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bolsoapp/bolso/internal/infrastructure/metrics"
)

// MetricsMiddleware records per-request Prometheus metrics.
type MetricsMiddleware struct {
	metrics *metrics.Metrics
}

// NewMetricsMiddleware creates a new MetricsMiddleware.
func NewMetricsMiddleware(m *metrics.Metrics) *MetricsMiddleware {
	return &MetricsMiddleware{metrics: m}
}

// Wrap wraps an http.Handler with metrics recording.
func (m *MetricsMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &metricsRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := normalizePath(r.URL.Path)
		m.metrics.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.metrics.HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type metricsRecorder struct {
	http.ResponseWriter

	statusCode int
}

func (r *metricsRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// normalizePath keeps metric label cardinality bounded: only the fixed
// routes of this API are reported verbatim.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/sync/"), strings.HasPrefix(path, "/auth/"):
		return path
	case path == "/health", path == "/ready", path == "/metrics":
		return path
	}
	return "/other"
}

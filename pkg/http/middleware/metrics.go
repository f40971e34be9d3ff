package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	applogger "SignalForge/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

type httpMetricSet struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
	respSize *prometheus.HistogramVec
}

var (
	httpMetricsOnce sync.Once
	httpMetricSetV  *httpMetricSet
)

func httpMetrics() *httpMetricSet {
	httpMetricsOnce.Do(func() {
		httpMetricSetV = &httpMetricSet{
			requests: prometheus.NewCounterVec(
				prometheus.CounterOpts{Name: "signalforge_http_requests_total", Help: "HTTP requests served"},
				[]string{"path", "method", "status"},
			),
			duration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "signalforge_http_request_duration_seconds",
					Help:    "Request duration",
					Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
				},
				[]string{"path", "method", "status"},
			),
			inFlight: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{Name: "signalforge_http_in_flight_requests", Help: "Requests currently being served"},
				[]string{"path", "method"},
			),
			respSize: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "signalforge_http_response_size_bytes",
					Help:    "Response body size",
					Buckets: []float64{200, 500, 1_000, 5_000, 10_000, 50_000, 100_000, 1_000_000},
				},
				[]string{"path", "method", "status"},
			),
		}
		prometheus.MustRegister(
			httpMetricSetV.requests,
			httpMetricSetV.duration,
			httpMetricSetV.inFlight,
			httpMetricSetV.respSize,
		)
	})
	return httpMetricSetV
}

// Metrics records per-request Prometheus metrics keyed by URL path; the API
// surface is a fixed set of routes with query parameters, so path labels stay
// low-cardinality. When a logger is given, 5xx responses log as errors and
// requests over slowThreshold as warnings.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) func(http.Handler) http.Handler {
	mx := httpMetrics()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path, method := r.URL.Path, r.Method

			mx.inFlight.WithLabelValues(path, method).Inc()
			start := time.Now()

			rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			elapsed := time.Since(start)
			status := strconv.Itoa(rw.status)
			mx.requests.WithLabelValues(path, method, status).Inc()
			mx.duration.WithLabelValues(path, method, status).Observe(elapsed.Seconds())
			mx.respSize.WithLabelValues(path, method, status).Observe(float64(rw.written))
			mx.inFlight.WithLabelValues(path, method).Dec()

			if l == nil {
				return
			}
			fields := []applogger.Field{
				applogger.String("path", path),
				applogger.String("method", method),
				applogger.String("status", status),
				applogger.Duration("duration", elapsed),
				applogger.Int("bytes", rw.written),
			}
			switch {
			case rw.status >= 500:
				l.Error("http request failed", fields...)
			case slowThreshold > 0 && elapsed >= slowThreshold:
				l.Warn("http request slow", fields...)
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

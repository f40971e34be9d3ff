package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func counter(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

func gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
}

func histogram(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: prometheus.DefBuckets,
	}, labels)
}

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsEmitted *prometheus.CounterVec
	retrains       *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

func New() *Recorder {
	return &Recorder{
		signalsEmitted: counter("signalforge_signals_emitted_total",
			"Per-bar signals emitted", "instrument", "label"),
		retrains: counter("signalforge_model_retrains_total",
			"Model retrains by outcome", "instrument", "outcome"),
		errorsTotal: counter("signalforge_errors_total",
			"Errors encountered", "type"),
		lastPrice: gauge("signalforge_last_price",
			"Last close observed for an instrument", "instrument"),
		latency: histogram("signalforge_operation_duration_seconds",
			"Operation duration in seconds", "operation"),
	}
}

// RecordSignal counts an emitted per-bar signal by label.
func (r *Recorder) RecordSignal(instrument, label string) {
	r.signalsEmitted.WithLabelValues(instrument, label).Inc()
}

func (r *Recorder) RecordRetrain(instrument, outcome string) {
	r.retrains.WithLabelValues(instrument, outcome).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastPrice(instrument string, price float64) {
	r.lastPrice.WithLabelValues(instrument).Set(price)
}

// RecordLatency takes the elapsed time in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

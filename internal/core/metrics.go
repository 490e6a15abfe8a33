package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports operation latency, outcome counters and
// unresolved alert gauges. It implements MetricsRecorder and AlertGauge.
type PrometheusRecorder struct {
	durations  *prometheus.HistogramVec
	results    *prometheus.CounterVec
	unresolved *prometheus.GaugeVec
}

// NewPrometheusRecorder registers the pharmacore collectors with reg. A nil
// registerer uses prometheus.DefaultRegisterer.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pharmacore",
			Name:      "operation_duration_seconds",
			Help:      "Latency of engine operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmacore",
			Name:      "operations_total",
			Help:      "Engine operations by outcome.",
		}, []string{"operation", "status"}),
		unresolved: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pharmacore",
			Name:      "unresolved_alerts",
			Help:      "Unresolved alerts per engine after the last monitoring pass.",
		}, []string{"engine"}),
	}
	for _, c := range []prometheus.Collector{r.durations, r.results, r.unresolved} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records a service operation outcome.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}

// SetUnresolvedAlerts implements AlertGauge.
func (r *PrometheusRecorder) SetUnresolvedAlerts(engine string, count int) {
	r.unresolved.WithLabelValues(engine).Set(float64(count))
}

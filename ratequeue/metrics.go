/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package ratequeue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector is an interface for collecting metrics of the dispatch queue.
type MetricsCollector interface {
	// QueueLength reports the current number of descriptors waiting in the queue.
	QueueLength(length int)

	// RequestDispatched observes one finished dispatch: its HTTP status
	// ("0" for transport-level failures) and how long the descriptor waited in the queue.
	RequestDispatched(method, status string, enqueuedAt time.Time)

	// Throttled counts transitions into the throttled state.
	Throttled()
}

type disabledMetrics struct{}

func (disabledMetrics) QueueLength(int)                             {}
func (disabledMetrics) RequestDispatched(string, string, time.Time) {}
func (disabledMetrics) Throttled()                                  {}

// PrometheusMetricsCollector is a Prometheus metrics collector.
type PrometheusMetricsCollector struct {
	// PendingRequests is a gauge of descriptors waiting in the queue.
	PendingRequests prometheus.Gauge

	// QueueWaitTime is a histogram of time descriptors spend in the queue before dispatching.
	QueueWaitTime *prometheus.HistogramVec

	// ThrottleActivations is a counter of transitions into the throttled state.
	ThrottleActivations prometheus.Counter
}

// NewPrometheusMetricsCollector creates a new Prometheus metrics collector.
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	return &PrometheusMetricsCollector{
		PendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_queue_pending_requests",
			Help:      "The current number of requests waiting in the dispatch queue.",
		}),
		QueueWaitTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_queue_wait_time_seconds",
			Help:      "A histogram of time requests spend in the dispatch queue.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 150, 300},
		}, []string{"method", "status"}),
		ThrottleActivations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_queue_throttle_activations_total",
			Help:      "The total number of times dispatching was paused after a rate limit violation.",
		}),
	}
}

// MustRegister registers the Prometheus metrics.
func (p *PrometheusMetricsCollector) MustRegister() {
	prometheus.MustRegister(p.PendingRequests, p.QueueWaitTime, p.ThrottleActivations)
}

// Unregister the Prometheus metrics.
func (p *PrometheusMetricsCollector) Unregister() {
	prometheus.Unregister(p.PendingRequests)
	prometheus.Unregister(p.QueueWaitTime)
	prometheus.Unregister(p.ThrottleActivations)
}

// QueueLength reports the current number of descriptors waiting in the queue.
func (p *PrometheusMetricsCollector) QueueLength(length int) {
	p.PendingRequests.Set(float64(length))
}

// RequestDispatched observes one finished dispatch.
func (p *PrometheusMetricsCollector) RequestDispatched(method, status string, enqueuedAt time.Time) {
	p.QueueWaitTime.WithLabelValues(method, status).Observe(time.Since(enqueuedAt).Seconds())
}

// Throttled counts transitions into the throttled state.
func (p *PrometheusMetricsCollector) Throttled() {
	p.ThrottleActivations.Inc()
}

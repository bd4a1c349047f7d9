package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IncrementPublishes increments the publication counter with a given outcome label.
// Example: metrics.IncrementPublishes("confirmed")
func (m *Metrics) IncrementPublishes(outcome string) {
	m.publishesTotal.WithLabelValues(outcome).Inc()
}

// RecordOperationDuration records the duration (in seconds) of a broker operation.
// Example: defer metrics.RecordOperationDuration(time.Now(), "connect")
func (m *Metrics) RecordOperationDuration(start time.Time, operation string) {
	duration := time.Since(start).Seconds()
	m.operationDuration.WithLabelValues(operation).Observe(duration)
}

// IncrementConnectionAttempts counts one connection attempt against a host.
// Example: metrics.IncrementConnectionAttempts("rabbit-1.example.org", "failure")
func (m *Metrics) IncrementConnectionAttempts(host, result string) {
	m.connectionsTotal.WithLabelValues(host, result).Inc()
}

// SetQueueDepth sets the depth gauge for one of the internal queues.
// Example: metrics.SetQueueDepth("pending", 12)
func (m *Metrics) SetQueueDepth(queue string, depth float64) {
	m.queueDepthGauge.WithLabelValues(queue).Set(depth)
}

// CreateCounter creates a new CounterVec metric and registers it.
func (m *Metrics) CreateCounter(name, help string, labels []string) *prometheus.CounterVec {
	counter := createCounterVec(name, help, labels)
	m.Registry.MustRegister(counter)
	return counter
}

// CreateHistogram creates a new HistogramVec metric and registers it.
func (m *Metrics) CreateHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	hist := createHistogramVec(name, help, labels, buckets)
	m.Registry.MustRegister(hist)
	return hist
}

// CreateGauge creates a new GaugeVec metric and registers it.
func (m *Metrics) CreateGauge(name, help string, labels []string) *prometheus.GaugeVec {
	gauge := createGaugeVec(name, help, labels)
	m.Registry.MustRegister(gauge)
	return gauge
}

// createCounterVec defines a new CounterVec with standard options.
// Used internally by NewMetrics to maintain consistency.
func createCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
}

// createHistogramVec defines a new HistogramVec with configurable buckets.
// Used internally by NewMetrics for latency tracking.
func createHistogramVec(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: buckets,
		},
		labels,
	)
}

// createGaugeVec defines a new GaugeVec safely for resource monitoring.
// Used internally by NewMetrics to track resource utilization.
func createGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
}

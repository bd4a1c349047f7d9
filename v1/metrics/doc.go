// Package metrics provides Prometheus-based monitoring and metrics collection
// functionality for the PID publishing pipeline.
//
// The metrics package is designed to provide a standardized observability
// approach with features such as configurable HTTP endpoints for metrics exposure,
// automatic runtime instrumentation, and integration with the Fx dependency
// injection framework.
//
// # Architecture
//
// This package follows the "accept interfaces, return structs" design pattern:
//   - MetricsCollector interface: Defines the contract for metrics operations
//   - Metrics struct: Concrete implementation of the MetricsCollector interface
//   - PublisherObserver: Bridges the publisher's observability hook onto this registry
//   - NewMetrics constructor: Returns *Metrics (concrete type)
//   - FX module: Provides *Metrics and the observability.Observer for dependency injection
//
// Core Features:
//   - Exposes a configurable /metrics endpoint for Prometheus scraping
//   - Integration with go.uber.org/fx for automatic lifecycle management
//   - Automatic registration of Go runtime and process-level metrics
//   - Built-in counters, histograms, and gauges for publications, broker
//     operations, connection attempts, and queue depths
//   - Support for custom metric registration (counters, gauges, histograms)
//   - Graceful startup and shutdown via Fx lifecycle hooks
//
// # Direct Usage (Without FX)
//
// For simple applications or tests, create metrics directly:
//
//	import "github.com/Aleph-Alpha/pidmq/v1/metrics"
//
//	// Create a new metrics server (returns concrete *Metrics)
//	cfg := metrics.Config{
//		Address:                 ":9090",
//		EnableDefaultCollectors: true,
//		ServiceName:             "pid-publisher",
//	}
//
//	m := metrics.NewMetrics(cfg)
//	go m.Server.ListenAndServe()
//
//	// Use built-in metrics
//	m.IncrementPublishes("confirmed")
//	defer m.RecordOperationDuration(time.Now(), "connect")
//
// # Feeding the Publisher
//
// The publisher reports every broker operation through an
// observability.Observer. Wrap the Metrics instance in a PublisherObserver
// to have those operations counted and timed here:
//
//	m := metrics.NewMetrics(cfg)
//	pub.WithObserver(metrics.NewPublisherObserver(m))
//
// # FX Module Integration
//
// For production applications using Uber's fx, use the FXModule which provides
// the concrete type and the observer:
//
//	import (
//		"go.uber.org/fx"
//		"github.com/Aleph-Alpha/pidmq/v1/metrics"
//		"github.com/Aleph-Alpha/pidmq/v1/logger"
//	)
//
//	app := fx.New(
//		logger.FXModule,  // Optional: provides the structured logger
//		metrics.FXModule, // Provides *Metrics and observability.Observer
//		fx.Provide(func() metrics.Config {
//			return metrics.Config{
//				Address:                 ":9090",
//				EnableDefaultCollectors: true,
//				ServiceName:             "pid-publisher",
//			}
//		}),
//	)
//	app.Run()
//
// # Default Collectors
//
// When EnableDefaultCollectors is true, the package automatically registers
// the following collectors:
//   - Go runtime metrics (goroutines, GC stats, heap usage)
//   - Process metrics (CPU time, memory, file descriptors)
//
// These metrics provide deep visibility into service performance and stability.
//
// # Custom Metrics
//
// Applications can register additional Prometheus metrics using the exposed
// Registry. For example:
//
//	registrationLag := prometheus.NewHistogramVec(
//	    prometheus.HistogramOpts{
//	        Name:    "registration_lag_seconds",
//	        Help:    "Histogram of accept-to-confirm latencies.",
//	        Buckets: prometheus.DefBuckets,
//	    },
//	    []string{"exchange"},
//	)
//	m.Registry.MustRegister(registrationLag)
//
// # Thread Safety
//
// All methods on the Metrics struct and Prometheus collectors are safe for
// concurrent use by multiple goroutines.
package metrics

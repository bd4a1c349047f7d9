// Package observability defines the contract between infrastructure
// components and observability backends.
//
// Components in this repository (publisher, metrics, ...) do not depend on a
// concrete metrics or tracing library. Instead they report every completed
// operation through the Observer interface, and backends such as the metrics
// package translate those reports into Prometheus series.
//
// # Usage
//
// A component holds an optional Observer and reports through it:
//
//	if o.observer != nil {
//		o.observer.ObserveOperation(observability.OperationContext{
//			Component: "publisher",
//			Operation: "publish",
//			Resource:  exchange,
//			Duration:  time.Since(start),
//			Error:     err,
//			Size:      int64(len(body)),
//		})
//	}
//
// Observers must be cheap and non-blocking; they are invoked inline on the
// reporting component's goroutine.
package observability

package observability

import "time"

// OperationContext carries the details of a single operation performed by an
// infrastructure component. It is handed to an Observer after the operation
// completed, successfully or not.
type OperationContext struct {
	// Component is the name of the package reporting the operation,
	// e.g. "publisher" or "nodes".
	Component string

	// Operation is the short verb describing what was done,
	// e.g. "publish", "confirm", "connect", "reconnect".
	Operation string

	// Resource is the primary resource the operation acted on,
	// e.g. an exchange name or a broker host.
	Resource string

	// SubResource further qualifies the resource, e.g. a routing key.
	SubResource string

	// Duration is how long the operation took.
	Duration time.Duration

	// Error is the error the operation ended with, or nil on success.
	Error error

	// Size is the payload size in bytes, where applicable. Zero otherwise.
	Size int64

	// Metadata carries optional component-specific details.
	Metadata map[string]interface{}
}

// Observer receives operation reports from infrastructure components.
// Implementations typically translate them into metrics or traces.
//
// Observers are called inline from the reporting component and must not
// block.
type Observer interface {
	// ObserveOperation is invoked once per completed operation.
	ObserveOperation(ctx OperationContext)
}

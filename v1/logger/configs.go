package logger

// Level represents the minimum severity of log entries that will be emitted.
type Level int

const (
	// Debug emits everything, including very detailed connection traces.
	Debug Level = iota

	// Info emits informational messages and above. This is the default.
	Info

	// Warning emits warnings and errors only.
	Warning

	// Error emits errors only.
	Error
)

// Config defines the configuration for the logger package.
type Config struct {
	// Level is the minimum severity to emit.
	Level Level

	// ServiceName is attached to every log entry as the "service" field.
	ServiceName string

	// EnableTracing enables extraction of trace and span identifiers from
	// the context passed to the *WithContext logging methods.
	EnableTracing bool
}

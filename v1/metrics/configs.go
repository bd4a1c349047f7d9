package metrics

// Config defines the configuration for the Prometheus metrics server.
type Config struct {
	// Address is the listen address of the HTTP server exposing the
	// /metrics endpoint, e.g. ":9090".
	Address string

	// ServiceName is attached as a constant `service` label to every
	// metric emitted by this registry.
	ServiceName string

	// EnableDefaultCollectors controls registration of the standard Go,
	// process, and build info collectors.
	EnableDefaultCollectors bool
}

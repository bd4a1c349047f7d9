package nodes

import "errors"

var (
	// ErrNoEndpoints is returned when a Directory is constructed without
	// any endpoints.
	ErrNoEndpoints = errors.New("no endpoints configured")

	// ErrMissingHost is returned when an endpoint has an empty host.
	ErrMissingHost = errors.New("endpoint host must not be empty")
)

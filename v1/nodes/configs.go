package nodes

import "time"

// Endpoint describes one candidate RabbitMQ node together with the
// parameters needed to open a connection to it. An Endpoint is immutable
// once constructed; the Directory never changes anything but its own cursor.
type Endpoint struct {
	// Host is the RabbitMQ node hostname or IP address.
	Host string

	// Port is the AMQP port (typically 5672 for plain, 5671 for TLS).
	Port uint

	// VHost is the virtual host to open. Empty means the default vhost "/".
	VHost string

	// User is the RabbitMQ username for authentication.
	User string

	// Password is the RabbitMQ password for authentication.
	Password string

	// IsSSLEnabled switches the connection to the amqps scheme.
	IsSSLEnabled bool

	// UseCert enables mutual TLS with a client certificate.
	// Only honored when IsSSLEnabled is true.
	UseCert bool

	// CACertPath is the file path to the CA certificate used to verify the
	// server. Used when IsSSLEnabled is true.
	CACertPath string

	// ClientCertPath is the file path to the client certificate.
	ClientCertPath string

	// ClientKeyPath is the file path to the client certificate's key.
	ClientKeyPath string

	// ServerName is the expected TLS server name. It should match a CN or
	// SAN in the server certificate.
	ServerName string

	// SocketTimeout bounds the TCP dial to this node.
	// Zero means DefaultSocketTimeout.
	SocketTimeout time.Duration

	// ConnectionAttempts is how many times a single dial to this node is
	// tried before the attempt counts as failed. Zero means
	// DefaultConnectionAttempts.
	ConnectionAttempts int
}

const (
	// DefaultSocketTimeout is applied when an Endpoint does not set one.
	DefaultSocketTimeout = 2 * time.Second

	// DefaultConnectionAttempts is applied when an Endpoint does not set one.
	DefaultConnectionAttempts = 1

	// DefaultPort is the plain AMQP port.
	DefaultPort uint = 5672
)

// withDefaults returns a copy of the endpoint with zero values replaced by
// the package defaults.
func (e Endpoint) withDefaults() Endpoint {
	if e.Port == 0 {
		e.Port = DefaultPort
	}
	if e.SocketTimeout <= 0 {
		e.SocketTimeout = DefaultSocketTimeout
	}
	if e.ConnectionAttempts <= 0 {
		e.ConnectionAttempts = DefaultConnectionAttempts
	}
	return e
}

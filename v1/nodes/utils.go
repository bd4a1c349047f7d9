package nodes

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// heartbeatInterval is used on every connection to detect broken
// connections quickly.
const heartbeatInterval = 2 * time.Second

// URL renders the AMQP connection URL for this endpoint. The scheme is
// amqps when TLS is enabled, amqp otherwise.
func (e Endpoint) URL() string {
	scheme := "amqp"
	if e.IsSSLEnabled {
		scheme = "amqps"
	}
	url := fmt.Sprintf("%s://%v:%v@%v:%v", scheme, e.User, e.Password, e.Host, e.Port)
	if e.VHost != "" {
		url += "/" + e.VHost
	}
	return url
}

// DialConfig builds the amqp091 configuration for dialing this endpoint:
// heartbeat interval, bounded TCP dial, and TLS settings when enabled.
func (e Endpoint) DialConfig() (amqp.Config, error) {
	cfg := amqp.Config{
		Heartbeat: heartbeatInterval,
		Dial:      amqp.DefaultDial(e.SocketTimeout),
	}

	if e.IsSSLEnabled {
		tlsCfg, err := e.tlsConfig()
		if err != nil {
			return amqp.Config{}, err
		}
		cfg.TLSClientConfig = tlsCfg
	}

	return cfg, nil
}

// tlsConfig assembles the TLS configuration for an amqps endpoint. With
// UseCert set, a client certificate is loaded for mutual TLS; otherwise
// only the server is authenticated.
func (e Endpoint) tlsConfig() (*tls.Config, error) {
	tlsCfg := &tls.Config{
		ServerName: e.ServerName,
	}

	if e.CACertPath != "" {
		caCert, err := os.ReadFile(e.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(caCert)
		tlsCfg.RootCAs = pool
	}

	if e.UseCert {
		cert, err := tls.LoadX509KeyPair(e.ClientCertPath, e.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}

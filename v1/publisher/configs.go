package publisher

import (
	"context"
	"time"

	"github.com/Aleph-Alpha/pidmq/v1/nodes"
)

// Config defines the top-level configuration for the publisher.
// It contains the broker endpoints, exchange and routing settings, and the
// reconnection and drain policies.
type Config struct {
	// Endpoints is the ordered list of candidate RabbitMQ nodes. Failover
	// walks this list in order; see the nodes package for rotation rules.
	Endpoints []nodes.Endpoint

	// Exchange configures the publication destinations.
	Exchange Exchange

	// Routing configures the routing keys used for publication.
	Routing Routing

	// Reconnect configures the failover and backoff policy.
	Reconnect Reconnect

	// Drain configures the graceful-shutdown drain policy.
	Drain Drain

	// OnOutcome, when set, receives one Outcome per accepted message once
	// its fate is known (confirmed, nacked, returned, or discarded). It is
	// invoked from the worker goroutine and must not block.
	OnOutcome func(Outcome)
}

// Exchange holds the publication destination names.
type Exchange struct {
	// Name is the primary exchange messages are published to.
	Name string

	// FallbackName is used when the broker reports that the primary
	// exchange does not exist. Once switched, the fallback stays active
	// until the publisher is reconfigured; reconnects do not reset it.
	FallbackName string
}

// Routing holds the routing keys used during publication.
type Routing struct {
	// DefaultKey is used for messages that do not carry their own routing
	// key.
	DefaultKey string

	// EmergencyKey marks messages that the broker returned as unroutable.
	// The publisher reports returned messages and never resubmits them
	// itself; callers that resubmit should do so under this key.
	EmergencyKey string
}

// Reconnect holds the failover and backoff policy.
type Reconnect struct {
	// MaxCycles is the maximum number of full passes over the endpoint
	// list before the publisher gives up permanently. With N endpoints
	// this allows exactly N*MaxCycles connection attempts.
	MaxCycles int

	// CycleDelay is the fixed wait between cycles. There is no wait
	// between attempts within one cycle.
	CycleDelay time.Duration
}

// Drain holds the graceful-shutdown drain policy: how often and how many
// times outstanding confirmations are rechecked before the connection is
// closed anyway.
type Drain struct {
	// MaxChecks is how many times the drain loop rechecks for outstanding
	// messages before closing regardless.
	MaxChecks int

	// CheckInterval is the wait between drain rechecks.
	CheckInterval time.Duration
}

// Defaults mirror the values the PID registration service has been
// operated with.
const (
	// DefaultFallbackExchange is the exchange tried when the primary one
	// does not exist on the broker.
	DefaultFallbackExchange = "FALLBACK"

	// routingKeyBasis prefixes all default routing keys.
	routingKeyBasis = "cmip6.publisher.HASH."

	// DefaultRoutingKey is used when a message carries no routing key.
	DefaultRoutingKey = routingKeyBasis + "fallback"

	// DefaultEmergencyRoutingKey marks messages returned as unroutable.
	DefaultEmergencyRoutingKey = routingKeyBasis + "emergency"

	// DefaultMaxReconnectCycles bounds the failover effort. Server reboots
	// can take a while, so this is generous.
	DefaultMaxReconnectCycles = 60

	// DefaultCycleDelay is the wait before starting a new cycle over the
	// endpoint list.
	DefaultCycleDelay = 5 * time.Second

	// DefaultDrainMaxChecks and DefaultDrainCheckInterval bound the
	// graceful-shutdown drain.
	DefaultDrainMaxChecks     = 10
	DefaultDrainCheckInterval = 500 * time.Millisecond
)

// withDefaults returns a copy of the config with zero values replaced by
// the package defaults.
func (c Config) withDefaults() Config {
	if c.Exchange.FallbackName == "" {
		c.Exchange.FallbackName = DefaultFallbackExchange
	}
	if c.Routing.DefaultKey == "" {
		c.Routing.DefaultKey = DefaultRoutingKey
	}
	if c.Routing.EmergencyKey == "" {
		c.Routing.EmergencyKey = DefaultEmergencyRoutingKey
	}
	if c.Reconnect.MaxCycles <= 0 {
		c.Reconnect.MaxCycles = DefaultMaxReconnectCycles
	}
	if c.Reconnect.CycleDelay <= 0 {
		c.Reconnect.CycleDelay = DefaultCycleDelay
	}
	if c.Drain.MaxChecks <= 0 {
		c.Drain.MaxChecks = DefaultDrainMaxChecks
	}
	if c.Drain.CheckInterval <= 0 {
		c.Drain.CheckInterval = DefaultDrainCheckInterval
	}
	return c
}

//go:generate mockgen -source=configs.go -destination=mock_logger_test.go -package=publisher

// Logger matches the v1/logger.Logger surface consumed by this package.
// It provides context-aware structured logging with optional error and
// field parameters.
type Logger interface {
	// DebugWithContext logs a debug message with trace context.
	DebugWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})

	// InfoWithContext logs an informational message with trace context.
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})

	// WarnWithContext logs a warning message with trace context.
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})

	// ErrorWithContext logs an error message with trace context.
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

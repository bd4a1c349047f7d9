package publisher

import "context"

// Client provides a high-level interface for publishing PID registration
// messages to RabbitMQ with at-least-once delivery across reconnects.
//
// This interface is implemented by the concrete *Publisher type.
type Client interface {
	// Publish enqueues a fully-formed message body for publication. It
	// never blocks on the network: the message is queued and sent once the
	// connection is available. Publish fails only when the publisher is
	// shutting down or permanently unavailable.
	Publish(ctx context.Context, body []byte, opts ...PublishOption) error

	// AwaitReady blocks until the first connection is ready, the publisher
	// becomes permanently unavailable, or ctx expires. It reports whether
	// the connection became ready. A false return is not an error: queued
	// messages are still sent if the connection comes up later.
	AwaitReady(ctx context.Context) bool

	// GracefulShutdown flushes queued messages, waits (bounded) for
	// outstanding confirmations, and closes the connection.
	GracefulShutdown(ctx context.Context) error

	// ForceShutdown closes the transport immediately without waiting for
	// outstanding confirmations and unblocks any waiting callers.
	ForceShutdown() error

	// QueueDepth reports how many messages are currently queued for
	// publication and how many are sent but unconfirmed.
	QueueDepth() (pending, unconfirmed int)

	// State returns the current lifecycle state.
	State() State

	// Err returns the fatal error the publisher gave up with, or nil.
	Err() error
}

// Message is one accepted publication: a fully-formed body plus routing
// metadata. The publisher never interprets the body.
type Message struct {
	// Body is the message payload.
	Body []byte

	// RoutingKey routes the message. Empty means the configured default.
	RoutingKey string

	// Exchange overrides the active exchange for this message when set.
	Exchange string
}

// OutcomeKind classifies the final fate of an accepted message.
type OutcomeKind int

const (
	// OutcomeConfirmed means the broker acknowledged the message.
	OutcomeConfirmed OutcomeKind = iota

	// OutcomeNacked means the broker explicitly rejected the message.
	OutcomeNacked

	// OutcomeReturned means the broker accepted the message but could not
	// route it to any queue. A message can be both confirmed and returned.
	OutcomeReturned

	// OutcomeDiscarded means the message was dropped because the publisher
	// became permanently unavailable before it could be delivered.
	OutcomeDiscarded
)

// String returns a human-readable name for the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeNacked:
		return "nacked"
	case OutcomeReturned:
		return "returned"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Outcome reports the fate of one message to the caller.
type Outcome struct {
	// Message is the affected message.
	Message Message

	// Kind classifies the outcome.
	Kind OutcomeKind

	// Err carries detail for non-success outcomes, when available.
	Err error
}

// PublishOption customizes a single publication.
type PublishOption func(*Message)

// WithRoutingKey sets the routing key for this message.
func WithRoutingKey(key string) PublishOption {
	return func(m *Message) {
		m.RoutingKey = key
	}
}

// WithExchange overrides the active exchange for this message.
func WithExchange(name string) PublishOption {
	return func(m *Message) {
		m.Exchange = name
	}
}

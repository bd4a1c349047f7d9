package publisher

import (
	"github.com/Aleph-Alpha/pidmq/v1/nodes"
	amqp "github.com/rabbitmq/amqp091-go"
)

// The transport seam mirrors the small slice of the amqp091 surface the
// worker needs. The controller's transition table is driven entirely
// through these interfaces, so it can be exercised in tests without a
// broker or a network.

// Dialer opens a connection to one broker endpoint.
type Dialer interface {
	// Dial connects to the given endpoint. It blocks for at most the
	// endpoint's socket timeout per attempt.
	Dial(ep nodes.Endpoint) (Connection, error)
}

// Connection is an open transport connection.
type Connection interface {
	// Channel opens a new channel on this connection.
	Channel() (Channel, error)

	// NotifyClose registers a listener for the connection closing. The
	// transport sends the close reason (nil for a local, clean close) and
	// then closes the listener channel.
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error

	// Close closes the connection and all its channels.
	Close() error

	// IsClosed reports whether the connection is closed.
	IsClosed() bool
}

// Channel is an open transport channel in publisher-confirm mode.
type Channel interface {
	// Confirm puts the channel into confirm mode so every publication is
	// acknowledged or rejected by the broker.
	Confirm(noWait bool) error

	// NotifyPublish registers a listener for publisher confirmations.
	// Delivery tags start at 1 and increase per publication on this
	// channel.
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation

	// NotifyReturn registers a listener for messages the broker could not
	// route.
	NotifyReturn(ret chan amqp.Return) chan amqp.Return

	// NotifyClose registers a listener for the channel closing without the
	// underlying connection closing.
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error

	// Publish hands a message to the broker on this channel.
	Publish(exchange, routingKey string, mandatory bool, pub amqp.Publishing) error

	// Close closes the channel.
	Close() error
}

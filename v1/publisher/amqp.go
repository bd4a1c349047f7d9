package publisher

import (
	"context"

	"github.com/Aleph-Alpha/pidmq/v1/nodes"
	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpDialer is the production Dialer backed by amqp091.
type amqpDialer struct{}

// NewAMQPDialer returns the Dialer used against a real RabbitMQ broker.
func NewAMQPDialer() Dialer {
	return amqpDialer{}
}

// Dial connects to the endpoint, retrying the single endpoint up to its
// configured connection-attempt count before reporting failure.
func (amqpDialer) Dial(ep nodes.Endpoint) (Connection, error) {
	cfg, err := ep.DialConfig()
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < ep.ConnectionAttempts; attempt++ {
		conn, dialErr := amqp.DialConfig(ep.URL(), cfg)
		if dialErr == nil {
			return &amqpConnection{conn: conn}, nil
		}
		lastErr = dialErr
	}
	return nil, lastErr
}

// amqpConnection adapts *amqp.Connection to the Connection seam.
type amqpConnection struct {
	conn *amqp.Connection
}

func (c *amqpConnection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return &amqpChannel{ch: ch}, nil
}

func (c *amqpConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	return c.conn.NotifyClose(receiver)
}

func (c *amqpConnection) Close() error {
	return c.conn.Close()
}

func (c *amqpConnection) IsClosed() bool {
	return c.conn.IsClosed()
}

// amqpChannel adapts *amqp.Channel to the Channel seam.
type amqpChannel struct {
	ch *amqp.Channel
}

func (c *amqpChannel) Confirm(noWait bool) error {
	return c.ch.Confirm(noWait)
}

func (c *amqpChannel) NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation {
	return c.ch.NotifyPublish(confirm)
}

func (c *amqpChannel) NotifyReturn(ret chan amqp.Return) chan amqp.Return {
	return c.ch.NotifyReturn(ret)
}

func (c *amqpChannel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	return c.ch.NotifyClose(receiver)
}

func (c *amqpChannel) Publish(exchange, routingKey string, mandatory bool, pub amqp.Publishing) error {
	return c.ch.PublishWithContext(context.Background(), exchange, routingKey, mandatory, false, pub)
}

func (c *amqpChannel) Close() error {
	return c.ch.Close()
}

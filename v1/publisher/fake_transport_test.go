package publisher

import (
	"sync"

	"github.com/Aleph-Alpha/pidmq/v1/nodes"
	amqp "github.com/rabbitmq/amqp091-go"
)

// The fakes below stand in for the amqp091 transport. They mimic its
// notification contract: a broker-initiated close sends the reason on the
// registered listener and then closes it, a locally initiated close just
// closes the listeners without sending anything.

type fakeDialer struct {
	mu    sync.Mutex
	dial  func(ep nodes.Endpoint) (Connection, error)
	hosts []string
}

func (d *fakeDialer) Dial(ep nodes.Endpoint) (Connection, error) {
	d.mu.Lock()
	d.hosts = append(d.hosts, ep.Host)
	dial := d.dial
	d.mu.Unlock()
	return dial(ep)
}

func (d *fakeDialer) dialedHosts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.hosts))
	copy(out, d.hosts)
	return out
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.hosts)
}

type fakeConnection struct {
	mu       sync.Mutex
	closed   bool
	closeCh  chan *amqp.Error
	channels []*fakeChannel
	// newChannel produces the next channel; defaults to a fresh
	// fakeChannel.
	newChannel func() (Channel, error)
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{}
}

func (c *fakeConnection) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.newChannel != nil {
		ch, err := c.newChannel()
		if err != nil {
			return nil, err
		}
		if fc, ok := ch.(*fakeChannel); ok {
			c.channels = append(c.channels, fc)
		}
		return ch, nil
	}
	ch := newFakeChannel()
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *fakeConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCh = receiver
	return receiver
}

// Close simulates a local close: every listener is closed without a
// reason, matching the amqp091 behavior for closes we initiate.
func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, ch := range c.channels {
		ch.closeLocally()
	}
	if c.closeCh != nil {
		close(c.closeCh)
	}
	return nil
}

func (c *fakeConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// breakWith simulates a broker-initiated connection loss: the reason is
// delivered to the listener, then every listener is closed.
func (c *fakeConnection) breakWith(reason *amqp.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.channels {
		ch.closeLocally()
	}
	if c.closeCh != nil {
		c.closeCh <- reason
		close(c.closeCh)
	}
}

// channelAt returns the i-th channel opened on this connection.
func (c *fakeConnection) channelAt(i int) *fakeChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= len(c.channels) {
		return nil
	}
	return c.channels[i]
}

func (c *fakeConnection) channelCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.channels)
}

type publishedMessage struct {
	exchange   string
	routingKey string
	body       []byte
}

type fakeChannel struct {
	mu          sync.Mutex
	confirmMode bool
	closed      bool
	published   []publishedMessage
	publishErr  error

	confirmCh chan amqp.Confirmation
	returnCh  chan amqp.Return
	closeCh   chan *amqp.Error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{}
}

func (ch *fakeChannel) Confirm(noWait bool) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.confirmMode = true
	return nil
}

func (ch *fakeChannel) NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.confirmCh = confirm
	return confirm
}

func (ch *fakeChannel) NotifyReturn(ret chan amqp.Return) chan amqp.Return {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.returnCh = ret
	return ret
}

func (ch *fakeChannel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.closeCh = receiver
	return receiver
}

func (ch *fakeChannel) Publish(exchange, routingKey string, mandatory bool, pub amqp.Publishing) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.publishErr != nil {
		return ch.publishErr
	}
	ch.published = append(ch.published, publishedMessage{
		exchange:   exchange,
		routingKey: routingKey,
		body:       pub.Body,
	})
	return nil
}

func (ch *fakeChannel) Close() error {
	ch.closeLocally()
	return nil
}

func (ch *fakeChannel) closeLocally() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return
	}
	ch.closed = true
	if ch.confirmCh != nil {
		close(ch.confirmCh)
	}
	if ch.returnCh != nil {
		close(ch.returnCh)
	}
	if ch.closeCh != nil {
		close(ch.closeCh)
	}
}

// breakWith simulates a channel-level exception: the reason reaches the
// close listener, the channel dies, the connection survives.
func (ch *fakeChannel) breakWith(reason *amqp.Error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return
	}
	ch.closed = true
	if ch.confirmCh != nil {
		close(ch.confirmCh)
	}
	if ch.returnCh != nil {
		close(ch.returnCh)
	}
	if ch.closeCh != nil {
		ch.closeCh <- reason
		close(ch.closeCh)
	}
}

// confirm delivers one publisher confirmation for the given delivery tag.
func (ch *fakeChannel) confirm(tag uint64, ack bool) {
	ch.mu.Lock()
	confirmCh := ch.confirmCh
	ch.mu.Unlock()
	confirmCh <- amqp.Confirmation{DeliveryTag: tag, Ack: ack}
}

// returned delivers one unroutable-message return.
func (ch *fakeChannel) returned(ret amqp.Return) {
	ch.mu.Lock()
	returnCh := ch.returnCh
	ch.mu.Unlock()
	returnCh <- ret
}

func (ch *fakeChannel) publishedMessages() []publishedMessage {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	out := make([]publishedMessage, len(ch.published))
	copy(out, ch.published)
	return out
}

func (ch *fakeChannel) publishedCount() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.published)
}

package publisher

import (
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ReturnedMessage records one message the broker accepted but could not
// route to any destination. Returns are independent of confirmations: a
// message can be both confirmed and returned.
type ReturnedMessage struct {
	// Message is the returned publication, reconstructed from the broker's
	// Return frame.
	Message Message

	// ReplyCode is the broker's reason code (typically 312, NO_ROUTE).
	ReplyCode uint16

	// ReplyText is the broker's reason text.
	ReplyText string
}

// returnHandler records broker returns for surfacing to the caller. It
// never retries returned messages; callers that want to resubmit should do
// so under the configured emergency routing key.
//
// The worker records returns; the caller side may read them at any time,
// so access is locked.
type returnHandler struct {
	mu       sync.Mutex
	returned []ReturnedMessage
}

func newReturnHandler() *returnHandler {
	return &returnHandler{}
}

// handleReturn records a broker Return frame and produces the outcome to
// report to the caller.
func (r *returnHandler) handleReturn(ret amqp.Return) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := Message{
		Body:       ret.Body,
		RoutingKey: ret.RoutingKey,
		Exchange:   ret.Exchange,
	}
	r.returned = append(r.returned, ReturnedMessage{
		Message:   msg,
		ReplyCode: ret.ReplyCode,
		ReplyText: ret.ReplyText,
	})
	return Outcome{
		Message: msg,
		Kind:    OutcomeReturned,
		Err:     ErrMessageReturned,
	}
}

// count reports how many returns were recorded.
func (r *returnHandler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.returned)
}

// all returns a copy of the recorded returns in arrival order.
func (r *returnHandler) all() []ReturnedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ReturnedMessage, len(r.returned))
	copy(out, r.returned)
	return out
}

package publisher

// firstDeliverySequence is the delivery sequence number assigned to the
// first message published on a fresh channel. amqp091 numbers publisher
// confirms the same way, so the tracker's counter stays aligned with the
// broker's delivery tags.
const firstDeliverySequence uint64 = 1

// confirmationTracker maps each message handed to the current channel to
// its delivery sequence number and records acknowledgements. Sequence
// numbers are meaningful only within the lifetime of one channel; on every
// channel teardown the tracker is drained through extractUnconfirmed and
// reset for the next channel.
//
// The tracker is owned by the worker goroutine and is not safe for
// concurrent use.
type confirmationTracker struct {
	nextSeq  uint64
	inflight map[uint64]Message

	// order keeps the submission order of outstanding sequence numbers so
	// rescued messages can be re-queued in their original relative order.
	order []uint64
}

func newConfirmationTracker() *confirmationTracker {
	return &confirmationTracker{
		nextSeq:  firstDeliverySequence,
		inflight: make(map[uint64]Message),
	}
}

// next assigns the delivery sequence number for the next publication.
func (t *confirmationTracker) next() uint64 {
	seq := t.nextSeq
	t.nextSeq++
	return seq
}

// track records a message as in flight under the given sequence number.
func (t *confirmationTracker) track(seq uint64, msg Message) {
	t.inflight[seq] = msg
	t.order = append(t.order, seq)
}

// ack removes and returns the message confirmed under seq.
func (t *confirmationTracker) ack(seq uint64) (Message, bool) {
	return t.remove(seq)
}

// nack removes and returns the message the broker rejected under seq.
func (t *confirmationTracker) nack(seq uint64) (Message, bool) {
	return t.remove(seq)
}

func (t *confirmationTracker) remove(seq uint64) (Message, bool) {
	msg, ok := t.inflight[seq]
	if !ok {
		return Message{}, false
	}
	delete(t.inflight, seq)
	for i, s := range t.order {
		if s == seq {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return msg, true
}

// extractUnconfirmed returns all in-flight messages in their original
// submission order and clears the sequence mapping. The old sequence
// numbers are meaningless to a new channel, so the binding is discarded.
func (t *confirmationTracker) extractUnconfirmed() []Message {
	msgs := make([]Message, 0, len(t.order))
	for _, seq := range t.order {
		if msg, ok := t.inflight[seq]; ok {
			msgs = append(msgs, msg)
		}
	}
	t.inflight = make(map[uint64]Message)
	t.order = nil
	return msgs
}

// reset restarts the delivery sequence for a new channel.
func (t *confirmationTracker) reset() {
	t.nextSeq = firstDeliverySequence
	t.inflight = make(map[uint64]Message)
	t.order = nil
}

// unconfirmedCount reports how many messages are in flight.
func (t *confirmationTracker) unconfirmedCount() int {
	return len(t.inflight)
}

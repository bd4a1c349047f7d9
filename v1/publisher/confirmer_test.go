package publisher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfirmationTrackerSequencesStartAtOne(t *testing.T) {
	tr := newConfirmationTracker()

	assert.Equal(t, uint64(1), tr.next())
	assert.Equal(t, uint64(2), tr.next())
	assert.Equal(t, uint64(3), tr.next())
}

func TestConfirmationTrackerAckRemovesMessage(t *testing.T) {
	tr := newConfirmationTracker()

	seq := tr.next()
	tr.track(seq, Message{Body: []byte("a")})
	assert.Equal(t, 1, tr.unconfirmedCount())

	msg, ok := tr.ack(seq)
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), msg.Body)
	assert.Equal(t, 0, tr.unconfirmedCount())

	// A second settlement of the same sequence finds nothing.
	_, ok = tr.ack(seq)
	assert.False(t, ok)
}

func TestConfirmationTrackerUnknownSequence(t *testing.T) {
	tr := newConfirmationTracker()

	_, ok := tr.ack(42)
	assert.False(t, ok)
	_, ok = tr.nack(42)
	assert.False(t, ok)
}

func TestExtractUnconfirmedPreservesSubmissionOrder(t *testing.T) {
	tr := newConfirmationTracker()

	for _, body := range []string{"a", "b", "c", "d"} {
		seq := tr.next()
		tr.track(seq, Message{Body: []byte(body)})
	}
	// "b" settles out of order; the rest must come back as a, c, d.
	_, ok := tr.ack(2)
	assert.True(t, ok)

	rescued := tr.extractUnconfirmed()
	assert.Len(t, rescued, 3)
	assert.Equal(t, []byte("a"), rescued[0].Body)
	assert.Equal(t, []byte("c"), rescued[1].Body)
	assert.Equal(t, []byte("d"), rescued[2].Body)

	// The extraction clears the tracker.
	assert.Equal(t, 0, tr.unconfirmedCount())
	assert.Empty(t, tr.extractUnconfirmed())
}

func TestResetRestartsSequenceForNewChannel(t *testing.T) {
	tr := newConfirmationTracker()

	tr.track(tr.next(), Message{Body: []byte("a")})
	tr.track(tr.next(), Message{Body: []byte("b")})

	tr.reset()

	assert.Equal(t, 0, tr.unconfirmedCount())
	assert.Equal(t, uint64(1), tr.next())
}

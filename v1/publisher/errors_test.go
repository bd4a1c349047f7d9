package publisher

import (
	"errors"
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestClassifyChannelClose(t *testing.T) {
	tests := []struct {
		name      string
		reason    *amqp.Error
		userClose bool
		want      channelCloseKind
	}{
		{
			name:   "nil reason is expected",
			reason: nil,
			want:   channelCloseExpected,
		},
		{
			name:      "user-initiated close is expected regardless of reason",
			reason:    &amqp.Error{Code: amqp.ChannelError, Reason: "whatever"},
			userClose: true,
			want:      channelCloseExpected,
		},
		{
			name:   "missing primary exchange",
			reason: &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no exchange 'esgffed-exchange' in vhost '/'"},
			want:   channelClosePrimaryExchangeMissing,
		},
		{
			name:   "missing fallback exchange",
			reason: &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no exchange 'FALLBACK' in vhost '/'"},
			want:   channelCloseFallbackExchangeMissing,
		},
		{
			name:   "other channel exception",
			reason: &amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED"},
			want:   channelCloseUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyChannelClose(tt.reason, "FALLBACK", tt.userClose)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyConnectionClose(t *testing.T) {
	tests := []struct {
		name      string
		reason    *amqp.Error
		userClose bool
		want      connectionCloseKind
	}{
		{
			name:   "nil reason means local close",
			reason: nil,
			want:   connectionCloseByUser,
		},
		{
			name:      "user close with reason",
			reason:    &amqp.Error{Code: amqp.ConnectionForced, Reason: "bye"},
			userClose: true,
			want:      connectionCloseByUser,
		},
		{
			name:   "permanent error marker",
			reason: &amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED - PERMANENT_ERROR detected"},
			want:   connectionClosePermanent,
		},
		{
			name:   "broker restart",
			reason: &amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED - broker restart"},
			want:   connectionCloseUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyConnectionClose(tt.reason, tt.userClose)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsAuthenticationError(t *testing.T) {
	assert.False(t, isAuthenticationError(nil))
	assert.False(t, isAuthenticationError(errors.New("connection refused")))

	assert.True(t, isAuthenticationError(amqp.ErrCredentials))
	assert.True(t, isAuthenticationError(amqp.ErrSASL))
	assert.True(t, isAuthenticationError(fmt.Errorf("dial: %w", amqp.ErrCredentials)))
	assert.True(t, isAuthenticationError(&amqp.Error{Code: amqp.AccessRefused, Reason: "ACCESS_REFUSED"}))
	assert.True(t, isAuthenticationError(errors.New("Exception (403) Reason: \"username or password not allowed\"")))
}

package publisher

import (
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Standardized errors returned by this package. They abstract away the
// underlying AMQP error details so callers can handle failures in a
// transport-agnostic way.
var (
	// ErrShuttingDown is returned by Publish after a graceful shutdown was
	// requested. Messages submitted after the stop request are rejected.
	ErrShuttingDown = errors.New("publisher is shutting down")

	// ErrPermanentlyUnavailable is returned when the publisher reached its
	// terminal state and will never publish again.
	ErrPermanentlyUnavailable = errors.New("publisher is permanently unavailable")

	// ErrForceFinished is returned when an operation or connection error
	// occurs after an external force-finish.
	ErrForceFinished = errors.New("publisher was force-finished")

	// ErrCouldNotConnect is the fatal error raised once all endpoints have
	// been tried the configured number of cycles without success.
	ErrCouldNotConnect = errors.New("could not connect to any endpoint")

	// ErrAuthenticationFailed marks a connection attempt rejected during
	// authentication. It consumes a host attempt like any other connection
	// failure.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrPermanentBrokerError marks a broker-initiated close carrying the
	// permanent-error marker. No reconnect is attempted.
	ErrPermanentBrokerError = errors.New("permanent broker error")

	// ErrExchangeNotFound marks a channel close caused by publishing to a
	// nonexistent exchange.
	ErrExchangeNotFound = errors.New("exchange not found")

	// ErrMessageNacked is reported when the broker explicitly rejects a
	// message. It is surfaced to the caller, never silently retried.
	ErrMessageNacked = errors.New("message nacked by broker")

	// ErrMessageReturned is reported when the broker accepted a message
	// but could not route it to any destination.
	ErrMessageReturned = errors.New("message returned as unroutable")

	// ErrMessageDiscarded is reported for messages dropped because the
	// publisher became permanently unavailable.
	ErrMessageDiscarded = errors.New("message discarded")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("publisher already started")
)

// permanentErrorMarker is the designated reason text a broker-side close
// may carry to signal that reconnecting is pointless.
const permanentErrorMarker = "PERMANENT_ERROR"

// exchangeNotFoundCode is the AMQP reply code for a missing exchange.
const exchangeNotFoundCode = amqp.NotFound

// channelCloseKind classifies the broker-supplied reason of a channel
// close event.
type channelCloseKind int

const (
	// channelCloseExpected: the close is part of a teardown we initiated.
	channelCloseExpected channelCloseKind = iota

	// channelClosePrimaryExchangeMissing: publishing hit a nonexistent
	// exchange; recover locally by switching to the fallback exchange and
	// reopening a channel on the same connection.
	channelClosePrimaryExchangeMissing

	// channelCloseFallbackExchangeMissing: even the fallback exchange does
	// not exist; escalate by closing the whole connection.
	channelCloseFallbackExchangeMissing

	// channelCloseUnexpected: any other reason; escalate identically.
	channelCloseUnexpected
)

// classifyChannelClose maps a channel-close reason onto the recovery
// decision. userClose marks a close we initiated ourselves.
func classifyChannelClose(reason *amqp.Error, fallbackExchange string, userClose bool) channelCloseKind {
	if reason == nil || userClose {
		return channelCloseExpected
	}
	if reason.Code == exchangeNotFoundCode {
		if strings.Contains(reason.Reason, fmt.Sprintf("no exchange '%s'", fallbackExchange)) {
			return channelCloseFallbackExchangeMissing
		}
		return channelClosePrimaryExchangeMissing
	}
	return channelCloseUnexpected
}

// connectionCloseKind classifies the reason of a connection close event.
type connectionCloseKind int

const (
	// connectionCloseByUser: normal or forced shutdown from our side.
	connectionCloseByUser connectionCloseKind = iota

	// connectionClosePermanent: the designated permanent-error marker; no
	// retry.
	connectionClosePermanent

	// connectionCloseUnexpected: anything else; treated exactly like a
	// connection failure and drives failover.
	connectionCloseUnexpected
)

// classifyConnectionClose maps a connection-close reason onto the recovery
// decision. userClose marks a close we initiated ourselves; amqp091
// delivers those as a nil close reason as well.
func classifyConnectionClose(reason *amqp.Error, userClose bool) connectionCloseKind {
	if reason == nil || userClose {
		return connectionCloseByUser
	}
	if strings.Contains(reason.Reason, permanentErrorMarker) {
		return connectionClosePermanent
	}
	return connectionCloseUnexpected
}

// isAuthenticationError detects a dial rejected during authentication.
// Some transports surface this without any close callback, so it is
// detected here at the event boundary and then treated identically to a
// transient connection failure.
func isAuthenticationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp.ErrCredentials) || errors.Is(err, amqp.ErrSASL) {
		return true
	}
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) && amqpErr.Code == amqp.AccessRefused {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "access refused") ||
		strings.Contains(msg, "authentication failure") ||
		strings.Contains(msg, "username or password not allowed")
}

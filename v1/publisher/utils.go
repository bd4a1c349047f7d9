package publisher

import (
	"context"
	"time"

	"github.com/Aleph-Alpha/pidmq/v1/observability"
)

// Publish accepts a message body for delivery. Acceptance is immediate
// and never blocks on the broker: the message enters an unbounded FIFO
// intake and is delivered once a connection is available. The routing key
// is resolved at acceptance time, so changing the configuration later
// never affects messages already accepted.
//
// After a shutdown request or a terminal state the message is rejected.
func (p *Publisher) Publish(ctx context.Context, body []byte, opts ...PublishOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := Message{Body: body}
	for _, opt := range opts {
		opt(&msg)
	}
	if msg.RoutingKey == "" {
		msg.RoutingKey = p.cfg.Routing.DefaultKey
	}

	if p.lifecycle.isTerminal() {
		return p.terminalErr()
	}
	if p.shutter.stopRequested() {
		return ErrShuttingDown
	}

	p.intakeMu.Lock()
	if p.intakeClosed {
		p.intakeMu.Unlock()
		return p.terminalErr()
	}
	p.intake = append(p.intake, msg)
	p.intakeMu.Unlock()

	// Non-blocking wake: one pending signal is enough, the worker drains
	// the whole intake per flush.
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// AwaitReady blocks until the first connection is established, the
// publisher reaches a terminal state, or the context ends. It reports
// whether the connection became ready. A false return is not an error:
// messages accepted so far are still sent if a connection comes up later.
func (p *Publisher) AwaitReady(ctx context.Context) bool {
	select {
	case <-p.ready:
		return true
	case <-p.terminal:
		return false
	case <-ctx.Done():
		return false
	}
}

// GracefulShutdown asks the publisher to stop once every accepted message
// has been confirmed or the drain budget runs out. New publications are
// rejected from this point on. It returns the publisher's fatal error, if
// any, once the worker has stopped or the context ends.
func (p *Publisher) GracefulShutdown(ctx context.Context) error {
	// Flag first so the worker and any in-flight connect attempt see the
	// request before the command is even received.
	p.shutter.requestGraceful()
	return p.sendCommand(ctx, commandGracefulStop)
}

// ForceShutdown stops the publisher immediately, without waiting for
// outstanding confirmations. Unconfirmed and queued messages are reported
// as discarded.
func (p *Publisher) ForceShutdown() error {
	p.shutter.requestForce()
	return p.sendCommand(context.Background(), commandForceStop)
}

func (p *Publisher) sendCommand(ctx context.Context, kind commandKind) error {
	if !p.started.Load() {
		// Never started: there is no worker to stop.
		p.applyForcedStateUnstarted(kind)
		return nil
	}

	done := make(chan error, 1)
	select {
	case p.commands <- command{kind: kind, done: done}:
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// applyForcedStateUnstarted settles the terminal state for a publisher
// that was shut down before Start.
func (p *Publisher) applyForcedStateUnstarted(kind commandKind) {
	if kind == commandForceStop {
		p.lifecycle.toForceFinished()
	} else if !p.lifecycle.isTerminal() {
		p.lifecycle.toPermanentlyUnavailable()
	}
	p.termOnce.Do(func() { close(p.terminal) })
}

// QueueDepth reports the current number of accepted-but-unsent messages
// and of sent-but-unconfirmed messages. Both values are diagnostic
// snapshots.
func (p *Publisher) QueueDepth() (pending int, unconfirmed int) {
	p.intakeMu.Lock()
	intakeLen := len(p.intake)
	p.intakeMu.Unlock()
	return intakeLen + int(p.pendingDepth.Load()), int(p.unconfirmedDepth.Load())
}

// State returns the current lifecycle state.
func (p *Publisher) State() State {
	return p.lifecycle.current()
}

// Err returns the fatal error that ended the publisher, or nil while it is
// still serving or when it stopped cleanly.
func (p *Publisher) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.fatalErr
}

// setFatal records the first fatal error; later ones are kept out so the
// root cause survives.
func (p *Publisher) setFatal(err error) {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	if p.fatalErr == nil {
		p.fatalErr = err
	}
}

// terminalErr maps the terminal state onto its sentinel when no explicit
// fatal error was recorded.
func (p *Publisher) terminalErr() error {
	if err := p.Err(); err != nil {
		return err
	}
	if p.lifecycle.is(StateForceFinished) {
		return ErrForceFinished
	}
	return ErrPermanentlyUnavailable
}

// Returned returns the messages the broker reported as unroutable so far.
func (p *Publisher) Returned() []ReturnedMessage {
	return p.returns.all()
}

// ReturnedCount reports how many messages were returned as unroutable.
func (p *Publisher) ReturnedCount() int {
	return p.returns.count()
}

// reportOutcome notifies the configured outcome callback, if any.
func (p *Publisher) reportOutcome(o Outcome) {
	if p.cfg.OnOutcome != nil {
		p.cfg.OnOutcome(o)
	}
}

// The log helpers are nil-safe so the publisher works without a logger
// attached.

func (p *Publisher) logDebug(msg string, fields map[string]interface{}) {
	if p.logger != nil {
		p.logger.DebugWithContext(context.Background(), msg, nil, fields)
	}
}

func (p *Publisher) logInfo(msg string, fields map[string]interface{}) {
	if p.logger != nil {
		p.logger.InfoWithContext(context.Background(), msg, nil, fields)
	}
}

func (p *Publisher) logWarn(msg string, err error, fields map[string]interface{}) {
	if p.logger != nil {
		p.logger.WarnWithContext(context.Background(), msg, err, fields)
	}
}

func (p *Publisher) logError(msg string, err error, fields map[string]interface{}) {
	if p.logger != nil {
		p.logger.ErrorWithContext(context.Background(), msg, err, fields)
	}
}

// observeOperation feeds one transport operation into the attached
// observer, if any.
func (p *Publisher) observeOperation(operation, resource, subResource string, duration time.Duration, err error, size int64) {
	if p.observer == nil {
		return
	}
	p.observer.ObserveOperation(observability.OperationContext{
		Component:   "publisher",
		Operation:   operation,
		Resource:    resource,
		SubResource: subResource,
		Duration:    duration,
		Error:       err,
		Size:        size,
	})
}

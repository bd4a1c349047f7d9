package publisher

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// The worker is a single-goroutine reactor. It is the only execution
// context allowed to touch the live connection and channel handles. Every
// external callback of the transport is translated into one event and
// dispatched through the single handle entry point, which keeps the
// transition table testable without a real network.

// event is one unit of work for the worker.
type event interface{}

type (
	// flushEvent asks the worker to drain the intake and publish.
	flushEvent struct{}

	// confirmEvent carries one publisher confirmation from the broker.
	confirmEvent struct{ confirmation amqp.Confirmation }

	// returnEvent carries one unroutable-message return from the broker.
	returnEvent struct{ ret amqp.Return }

	// channelClosedEvent reports the channel closing without the
	// underlying connection closing.
	channelClosedEvent struct{ reason *amqp.Error }

	// connectionClosedEvent reports the connection closing. A nil reason
	// is a clean, locally initiated close.
	connectionClosedEvent struct{ reason *amqp.Error }

	// drainCheckEvent fires while a graceful shutdown waits for
	// outstanding confirmations.
	drainCheckEvent struct{}
)

// command carries a shutdown request from the caller side.
type commandKind int

const (
	commandGracefulStop commandKind = iota
	commandForceStop
)

type command struct {
	kind commandKind
	done chan error
}

// serveDirective tells the run loop what to do after an event.
type serveDirective int

const (
	directiveContinue serveDirective = iota
	directiveReconnect
	directiveTerminal
)

// run is the worker main loop: connect, serve events, reconnect on
// disruption, exit on a terminal state.
func (p *Publisher) run() {
	defer p.finish()

	for {
		if p.lifecycle.isTerminal() {
			return
		}
		p.lifecycle.toWaitingToBeAvailable()

		if !p.connect() {
			return
		}
		if p.serve() == directiveTerminal {
			return
		}
		// directiveReconnect: the failover decision has already advanced
		// the directory and applied any cycle delay; go around.
	}
}

// serve owns the established connection: it waits for submissions,
// shutdown commands, transport notifications, and drain timer ticks, and
// dispatches each as one event.
func (p *Publisher) serve() serveDirective {
	for {
		var dir serveDirective

		select {
		case <-p.wake:
			dir = p.handle(flushEvent{})

		case cmd := <-p.commands:
			dir = p.handleCommand(cmd)

		case c, ok := <-p.confirmCh:
			if !ok {
				p.confirmCh = nil
				continue
			}
			dir = p.handle(confirmEvent{confirmation: c})

		case r, ok := <-p.returnCh:
			if !ok {
				p.returnCh = nil
				continue
			}
			dir = p.handle(returnEvent{ret: r})

		case e, ok := <-p.chanCloseCh:
			p.chanCloseCh = nil
			if !ok {
				// Listener closed without a reason: part of a
				// connection-level teardown, reported separately.
				continue
			}
			dir = p.handle(channelClosedEvent{reason: e})

		case e, ok := <-p.connCloseCh:
			p.connCloseCh = nil
			if !ok {
				// A locally initiated close delivers no reason.
				e = nil
			}
			dir = p.handle(connectionClosedEvent{reason: e})

		case <-p.drainC:
			dir = p.handle(drainCheckEvent{})
		}

		if dir != directiveContinue {
			return dir
		}
	}
}

// handle is the single dispatch point for all worker events.
func (p *Publisher) handle(ev event) serveDirective {
	switch e := ev.(type) {
	case flushEvent:
		p.drainIntake()
		p.flushPending()
		return directiveContinue

	case confirmEvent:
		p.handleConfirmation(e.confirmation)
		return directiveContinue

	case returnEvent:
		p.handleReturn(e.ret)
		return directiveContinue

	case channelClosedEvent:
		return p.handleChannelClosed(e.reason)

	case connectionClosedEvent:
		return p.handleConnectionClosed(e.reason)

	case drainCheckEvent:
		return p.handleDrainCheck()

	default:
		panic(fmt.Sprintf("publisher: unknown event %T", ev))
	}
}

// drainIntake moves newly submitted messages into the worker's pending
// queue, preserving submission order.
func (p *Publisher) drainIntake() {
	p.intakeMu.Lock()
	msgs := p.intake
	p.intake = nil
	p.intakeMu.Unlock()

	if len(msgs) == 0 {
		return
	}
	p.pending = append(p.pending, msgs...)
	p.pendingDepth.Store(int64(len(p.pending)))
}

// pollCommands processes any queued shutdown commands without blocking.
// Reports false once the worker must stop.
func (p *Publisher) pollCommands() bool {
	for {
		select {
		case cmd := <-p.commands:
			if p.handleCommand(cmd) == directiveTerminal {
				return false
			}
		default:
			return true
		}
	}
}

// waitCycleDelay waits the configured inter-cycle backoff while staying
// responsive to shutdown commands. Reports false when interrupted by a
// terminal command.
func (p *Publisher) waitCycleDelay() bool {
	timer := time.NewTimer(p.cfg.Reconnect.CycleDelay)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return true
		case cmd := <-p.commands:
			if p.handleCommand(cmd) == directiveTerminal {
				return false
			}
		}
	}
}

// finish performs the terminal cleanup: release waiting callers, close the
// transport, discard whatever could not be delivered, and answer any
// outstanding shutdown requests.
func (p *Publisher) finish() {
	p.stopDrainTimer()
	p.closeTransport()

	// Close the intake before the final drain so a concurrent Publish
	// either lands in the drain below or is rejected; an acceptance can
	// never slip in after the last drain and vanish unreported.
	p.intakeMu.Lock()
	p.intakeClosed = true
	p.intakeMu.Unlock()

	// Everything still queued or in flight will never be delivered.
	p.drainIntake()
	discardErr := p.Err()
	if discardErr == nil {
		discardErr = ErrMessageDiscarded
	}
	for _, msg := range p.confirmer.extractUnconfirmed() {
		p.reportOutcome(Outcome{Message: msg, Kind: OutcomeDiscarded, Err: discardErr})
	}
	for _, msg := range p.pending {
		p.reportOutcome(Outcome{Message: msg, Kind: OutcomeDiscarded, Err: discardErr})
	}
	p.pending = nil
	p.pendingDepth.Store(0)
	p.unconfirmedDepth.Store(0)

	p.replyGraceful(p.Err())
	p.termOnce.Do(func() { close(p.terminal) })

	// Answer any shutdown requests that arrived too late to be served. A
	// force request always succeeds: the publisher is stopped.
	for {
		select {
		case cmd := <-p.commands:
			if cmd.kind == commandForceStop {
				cmd.done <- nil
			} else {
				cmd.done <- p.Err()
			}
		default:
			p.logInfo("publisher stopped", map[string]interface{}{
				"state": p.lifecycle.current().String(),
			})
			close(p.done)
			return
		}
	}
}

// replyGraceful answers all recorded graceful-shutdown requests.
func (p *Publisher) replyGraceful(err error) {
	for _, done := range p.gracefulDones {
		done <- err
	}
	p.gracefulDones = nil
}

// closeTransport closes the channel and connection, ignoring errors; at
// this point they can no longer be meaningfully handled.
func (p *Publisher) closeTransport() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil && !p.conn.IsClosed() {
		_ = p.conn.Close()
	}
	p.conn = nil
}

func (p *Publisher) startDrainTimer() {
	p.drainChecks = 0
	if p.drainTimer != nil {
		p.drainTimer.Stop()
	}
	p.drainTimer = time.NewTimer(p.cfg.Drain.CheckInterval)
	p.drainC = p.drainTimer.C
}

func (p *Publisher) stopDrainTimer() {
	if p.drainTimer != nil {
		p.drainTimer.Stop()
		p.drainTimer = nil
		p.drainC = nil
	}
}

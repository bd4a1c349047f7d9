package publisher

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// The connection controller drives the connect -> open-channel -> ready ->
// publish -> close -> reconnect state chain. Failover consults the node
// directory: within one cycle failed endpoints are skipped with zero
// delay; a fixed delay applies only at cycle boundaries; and after the
// configured number of cycles the controller gives up permanently.

// connect runs the connect chain until a channel is ready or the publisher
// must stop. Reports whether the publisher became available.
func (p *Publisher) connect() bool {
	for {
		// A connect attempt racing with a shutdown request must abort
		// without silently reconnecting.
		if !p.pollCommands() {
			return false
		}
		if p.lifecycle.is(StateForceFinished) || p.shutter.forceRequestedNow() {
			p.giveUpForceFinished()
			return false
		}

		ep := p.directory.Current()
		p.directory.MarkTried()
		p.startConnect = time.Now()
		p.logInfo("opening connection to RabbitMQ", map[string]interface{}{
			"host": ep.Host,
		})

		conn, err := p.dialer.Dial(ep)
		p.observeOperation("connect", ep.Host, "", time.Since(p.startConnect), err, 0)
		if err != nil {
			if isAuthenticationError(err) {
				// Some transports swallow authentication failures instead
				// of reporting them through the close callback. Detect it
				// here and treat it like any other connection failure.
				p.lifecycle.setAuthenticationFailed()
				err = fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
			}
			p.logWarn("connection attempt failed", err, map[string]interface{}{
				"host":    ep.Host,
				"elapsed": time.Since(p.startConnect).String(),
			})
			if !p.nextAttempt(err) {
				return false
			}
			continue
		}

		// The dial may have raced with a forced shutdown; check before
		// proceeding to open a channel.
		if p.shutter.forceRequestedNow() || p.lifecycle.isTerminal() {
			_ = conn.Close()
			p.giveUpForceFinished()
			return false
		}

		p.connCloseCh = conn.NotifyClose(make(chan *amqp.Error, 1))

		ch, chErr := p.openChannel(conn)
		if chErr != nil {
			p.logWarn("channel setup failed", chErr, map[string]interface{}{
				"host": ep.Host,
			})
			_ = conn.Close()
			if !p.nextAttempt(chErr) {
				return false
			}
			continue
		}

		p.conn = conn
		p.channel = ch
		p.shutter.markConnected()
		p.cycleRetries = 0
		p.lifecycle.toAvailable()
		p.readyOnce.Do(func() { close(p.ready) })
		p.logInfo("connection to RabbitMQ opened", map[string]interface{}{
			"host":     ep.Host,
			"exchange": p.activeExchange,
			"elapsed":  time.Since(p.startConnect).String(),
		})

		// A graceful stop issued while connecting starts draining right
		// away; the queued messages are still flushed first.
		if p.shutter.gracefulRequestedNow() {
			p.lifecycle.toAvailableButWantsToStop()
			p.startDrainTimer()
		}

		p.drainIntake()
		p.flushPending()
		return true
	}
}

// openChannel opens a channel on conn, enables publisher confirmations,
// and registers the confirmation, return, and close listeners. The caller
// keeps ownership of conn and decides what to do on failure.
func (p *Publisher) openChannel(conn Connection) (Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, confirmBuffer))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, returnBuffer))
	p.chanCloseCh = ch.NotifyClose(make(chan *amqp.Error, 1))
	return ch, nil
}

// nextAttempt applies the failover policy after a failed attempt: next
// endpoint in the cycle with zero delay, or a new cycle after the fixed
// delay, or give up once the cycle budget is spent. Reports false when the
// connect chain must stop.
func (p *Publisher) nextAttempt(cause error) bool {
	if p.lifecycle.is(StateForceFinished) || p.shutter.forceRequestedNow() {
		p.giveUpForceFinished()
		return false
	}

	if p.directory.HasMoreInCycle() {
		p.directory.Advance()
		p.logInfo("trying next endpoint now", map[string]interface{}{
			"host": p.directory.Current().Host,
		})
		return true
	}

	p.cycleRetries++
	if p.cycleRetries >= p.cfg.Reconnect.MaxCycles {
		p.lifecycle.setCouldNotConnect()
		p.giveUp(fmt.Errorf("%w: tried hosts %v in %d cycles, last error: %v",
			ErrCouldNotConnect, p.directory.TriedHosts(), p.cycleRetries, cause))
		return false
	}

	p.directory.ResetCycle()
	p.logInfo("all endpoints failed, starting next cycle", map[string]interface{}{
		"delay":  p.cfg.Reconnect.CycleDelay.String(),
		"cycle":  p.cycleRetries + 1,
		"cycles": p.cfg.Reconnect.MaxCycles,
	})
	if !p.waitCycleDelay() {
		return false
	}
	// Re-check after the wait: a force-finish that arrived during the
	// delay must abort instead of scheduling the retry.
	if p.lifecycle.is(StateForceFinished) || p.shutter.forceRequestedNow() {
		p.giveUpForceFinished()
		return false
	}
	return true
}

// giveUp records the fatal error and enters the terminal state.
func (p *Publisher) giveUp(err error) {
	p.setFatal(err)
	p.logError("giving up permanently, no more messages will be sent", err, nil)
	if !p.lifecycle.isTerminal() {
		p.lifecycle.toPermanentlyUnavailable()
	}
}

// giveUpForceFinished aborts the connect chain after a force-finish. Any
// connection error from this point on is fatal, never retried.
func (p *Publisher) giveUpForceFinished() {
	p.applyForcedState()
	p.setFatal(fmt.Errorf("%w: tried hosts %v until force-finish",
		ErrForceFinished, p.directory.TriedHosts()))
}

// applyForcedState enters the terminal state appropriate for a forced
// shutdown: ForceFinished when no connection was ever established,
// PermanentlyUnavailable otherwise.
func (p *Publisher) applyForcedState() {
	if p.lifecycle.isTerminal() {
		return
	}
	if p.shutter.wasEverConnected() {
		p.lifecycle.setClosedByUser()
		p.lifecycle.toPermanentlyUnavailable()
	} else {
		p.lifecycle.toForceFinished()
	}
}

// flushPending hands queued messages to the channel in FIFO order,
// recording each under its delivery sequence number.
func (p *Publisher) flushPending() {
	state := p.lifecycle.current()
	if p.channel == nil || (state != StateAvailable && state != StateAvailableButWantsToStop) {
		return
	}

	for len(p.pending) > 0 {
		msg := p.pending[0]
		exchange := msg.Exchange
		if exchange == "" {
			exchange = p.activeExchange
		}

		start := time.Now()
		err := p.channel.Publish(exchange, msg.RoutingKey, true, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         msg.Body,
		})
		p.observeOperation("publish", exchange, msg.RoutingKey, time.Since(start), err, int64(len(msg.Body)))
		if err != nil {
			// The channel is unusable; keep the message queued. The close
			// event that follows rescues everything in flight.
			p.logWarn("publish failed, message stays queued", err, map[string]interface{}{
				"exchange":    exchange,
				"routing_key": msg.RoutingKey,
			})
			return
		}

		seq := p.confirmer.next()
		p.confirmer.track(seq, msg)
		p.pending = p.pending[1:]
		p.pendingDepth.Store(int64(len(p.pending)))
		p.unconfirmedDepth.Store(int64(p.confirmer.unconfirmedCount()))
	}
}

// handleConfirmation settles one delivery sequence number: removes the
// in-flight entry and notifies the caller of success or rejection. A
// rejection is surfaced, never silently retried.
func (p *Publisher) handleConfirmation(c amqp.Confirmation) {
	var (
		msg Message
		ok  bool
	)
	if c.Ack {
		msg, ok = p.confirmer.ack(c.DeliveryTag)
	} else {
		msg, ok = p.confirmer.nack(c.DeliveryTag)
	}
	if !ok {
		p.logDebug("confirmation for unknown delivery tag", map[string]interface{}{
			"delivery_tag": c.DeliveryTag,
		})
		return
	}
	p.unconfirmedDepth.Store(int64(p.confirmer.unconfirmedCount()))

	if c.Ack {
		p.observeOperation("confirm", p.activeExchange, msg.RoutingKey, 0, nil, int64(len(msg.Body)))
		p.reportOutcome(Outcome{Message: msg, Kind: OutcomeConfirmed})
	} else {
		p.observeOperation("nack", p.activeExchange, msg.RoutingKey, 0, ErrMessageNacked, int64(len(msg.Body)))
		p.reportOutcome(Outcome{Message: msg, Kind: OutcomeNacked, Err: ErrMessageNacked})
	}

	p.maybeFinishDrain()
}

// handleReturn records and reports a message the broker could not route.
// Returns are independent of confirmations and never affect the
// connection state.
func (p *Publisher) handleReturn(ret amqp.Return) {
	p.logWarn("message returned as unroutable", nil, map[string]interface{}{
		"exchange":    ret.Exchange,
		"routing_key": ret.RoutingKey,
		"reply_code":  ret.ReplyCode,
		"reply_text":  ret.ReplyText,
	})
	p.observeOperation("return", ret.Exchange, ret.RoutingKey, 0, ErrMessageReturned, int64(len(ret.Body)))
	p.reportOutcome(p.returns.handleReturn(ret))
}

// handleChannelClosed classifies a channel-level close.
//
// A channel close without a connection close happens in three situations:
// a close we initiated ourselves, a publish to a nonexistent exchange, or
// some other channel-level problem. The middle case is recovered locally
// by switching to the fallback exchange and reopening a channel on the
// same connection; everything else unexpected escalates by closing the
// whole connection, which drives the full reconnection chain.
func (p *Publisher) handleChannelClosed(reason *amqp.Error) serveDirective {
	kind := classifyChannelClose(reason, p.cfg.Exchange.FallbackName, p.shutter.wasCloseInitiated())

	switch kind {
	case channelCloseExpected:
		p.logDebug("channel closed as part of shutdown", nil)
		return directiveContinue

	case channelClosePrimaryExchangeMissing:
		p.logWarn("channel closed: exchange does not exist, switching to fallback", nil, map[string]interface{}{
			"exchange": p.activeExchange,
			"fallback": p.cfg.Exchange.FallbackName,
		})
		return p.reopenChannelOnFallback()

	case channelCloseFallbackExchangeMissing:
		p.logError("channel closed: fallback exchange does not exist, closing connection", nil, map[string]interface{}{
			"fallback": p.cfg.Exchange.FallbackName,
		})
		p.escalateConnectionClose()
		return directiveContinue

	default:
		p.logError("unexpected channel shutdown, closing connection", reasonErr(reason), nil)
		p.escalateConnectionClose()
		return directiveContinue
	}
}

// reopenChannelOnFallback swaps the active exchange to the fallback name
// and reopens a channel on the same connection. Messages already handed to
// the old channel are rescued first. The fallback stays active until
// explicit reconfiguration; reconnects do not reset it.
func (p *Publisher) reopenChannelOnFallback() serveDirective {
	p.lifecycle.toWaitingToBeAvailable()
	p.activeExchange = p.cfg.Exchange.FallbackName
	p.channel = nil
	p.rescueInFlight()

	ch, err := p.openChannel(p.conn)
	if err != nil {
		p.logError("failed to reopen channel on same connection", err, nil)
		p.escalateConnectionClose()
		return directiveContinue
	}
	p.channel = ch
	p.lifecycle.toAvailable()
	if p.shutter.gracefulRequestedNow() {
		p.lifecycle.toAvailableButWantsToStop()
	}
	p.observeOperation("reopen-channel", p.activeExchange, "", 0, nil, 0)
	p.flushPending()
	return directiveContinue
}

// escalateConnectionClose closes the whole connection on purpose so the
// connection-closed handler drives the full reconnection chain.
func (p *Publisher) escalateConnectionClose() {
	p.escalatePending = true
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// handleConnectionClosed classifies the end of the connection: a shutdown
// from our side ends the publisher; the permanent-error marker ends it
// fatally; anything else is treated exactly like a connection failure and
// triggers failover.
func (p *Publisher) handleConnectionClosed(reason *amqp.Error) serveDirective {
	p.channel = nil
	p.conn = nil
	p.stopDrainTimer()

	escalated := p.escalatePending
	p.escalatePending = false

	kind := classifyConnectionClose(reason, p.shutter.wasCloseInitiated())
	if kind == connectionCloseByUser && escalated {
		// The clean close was our own escalation, not a user shutdown.
		kind = connectionCloseUnexpected
	}

	switch kind {
	case connectionCloseByUser:
		p.logInfo("connection closed by user, will not reopen", nil)
		p.lifecycle.setClosedByUser()
		if !p.lifecycle.isTerminal() {
			p.lifecycle.toPermanentlyUnavailable()
		}
		p.replyGraceful(nil)
		return directiveTerminal

	case connectionClosePermanent:
		p.giveUp(fmt.Errorf("%w: %s", ErrPermanentBrokerError, reason.Reason))
		return directiveTerminal

	default:
		p.logWarn("connection lost, reconnecting", reasonErr(reason), nil)
		p.observeOperation("reconnect", p.directory.Current().Host, "", 0, reasonErr(reason), 0)
		p.rescueInFlight()
		p.lifecycle.toWaitingToBeAvailable()
		if !p.nextAttempt(reasonErr(reason)) {
			return directiveTerminal
		}
		return directiveReconnect
	}
}

// rescueInFlight migrates every sent-but-unconfirmed message back to the
// front of the pending queue, preserving their original relative order,
// and resets the delivery sequence for the next channel. The old sequence
// numbers are meaningless there.
func (p *Publisher) rescueInFlight() {
	rescued := p.confirmer.extractUnconfirmed()
	p.confirmer.reset()
	if len(rescued) > 0 {
		p.logInfo("rescuing unconfirmed messages for resend", map[string]interface{}{
			"count": len(rescued),
		})
		p.pending = append(rescued, p.pending...)
	}
	p.pendingDepth.Store(int64(len(p.pending)))
	p.unconfirmedDepth.Store(0)
}

// handleCommand serves one shutdown request from the caller side.
func (p *Publisher) handleCommand(cmd command) serveDirective {
	switch cmd.kind {
	case commandGracefulStop:
		p.shutter.requestGraceful()
		if p.lifecycle.isTerminal() {
			cmd.done <- p.Err()
			return directiveContinue
		}
		p.gracefulDones = append(p.gracefulDones, cmd.done)
		if p.lifecycle.is(StateAvailable) {
			p.lifecycle.toAvailableButWantsToStop()
			p.drainIntake()
			p.flushPending()
			p.startDrainTimer()
			p.maybeFinishDrain()
		}
		// While still connecting, the request is recorded; the connect
		// chain enters the drain as soon as the channel is ready.
		return directiveContinue

	case commandForceStop:
		p.shutter.requestForce()
		if p.lifecycle.isTerminal() {
			cmd.done <- nil
			return directiveContinue
		}
		p.logInfo("forced shutdown, closing without waiting for confirmations", nil)
		p.shutter.markCloseInitiated()
		p.applyForcedState()
		p.closeTransport()
		cmd.done <- nil
		return directiveTerminal

	default:
		panic(fmt.Sprintf("publisher: unknown command %d", cmd.kind))
	}
}

// handleDrainCheck is the periodic recheck while a graceful shutdown
// waits for outstanding confirmations.
func (p *Publisher) handleDrainCheck() serveDirective {
	p.drainChecks++
	if p.queuesEmpty() {
		p.closeForShutdown()
		return directiveContinue
	}
	if p.drainChecks >= p.cfg.Drain.MaxChecks {
		p.logWarn("drain budget exhausted, closing with outstanding messages", nil, map[string]interface{}{
			"pending":     len(p.pending),
			"unconfirmed": p.confirmer.unconfirmedCount(),
		})
		p.closeForShutdown()
		return directiveContinue
	}
	p.drainTimer.Reset(p.cfg.Drain.CheckInterval)
	return directiveContinue
}

// maybeFinishDrain closes early when a drain is in progress and nothing is
// outstanding anymore.
func (p *Publisher) maybeFinishDrain() {
	if p.lifecycle.is(StateAvailableButWantsToStop) && p.queuesEmpty() {
		p.closeForShutdown()
	}
}

// queuesEmpty reports whether no message is queued or in flight.
func (p *Publisher) queuesEmpty() bool {
	p.intakeMu.Lock()
	intakeLen := len(p.intake)
	p.intakeMu.Unlock()
	return intakeLen == 0 && len(p.pending) == 0 && p.confirmer.unconfirmedCount() == 0
}

// closeForShutdown closes the connection from our side to complete a
// graceful shutdown. The resulting close event finishes the lifecycle.
func (p *Publisher) closeForShutdown() {
	p.stopDrainTimer()
	p.shutter.markCloseInitiated()
	if p.conn != nil {
		p.logInfo("drain complete, closing connection", nil)
		_ = p.conn.Close()
		return
	}
	// Not connected anymore; finish directly.
	p.lifecycle.setClosedByUser()
	if !p.lifecycle.isTerminal() {
		p.lifecycle.toPermanentlyUnavailable()
	}
	p.replyGraceful(nil)
}

// reasonErr converts a transport close reason into an error value.
func reasonErr(reason *amqp.Error) error {
	if reason == nil {
		return nil
	}
	return reason
}

// Package publisher implements a reliability layer over a RabbitMQ
// publisher connection for identifier-registration messages.
//
// The package owns the full connection and delivery lifecycle. A single
// worker goroutine holds the live connection and channel; callers interact
// with it only through thread-safe hand-off points. This layer provides:
//
//   - Multi-endpoint failover: candidate nodes are tried in order with no
//     delay inside a cycle and a fixed delay between cycles, until a
//     configurable cycle budget is spent.
//   - Loss-free reconnection: messages accepted before or during an outage
//     stay queued; messages sent but not yet confirmed when a connection
//     drops are rescued back to the front of the queue and resent.
//   - Publisher confirmations: every delivery is tracked under its channel
//     sequence number until the broker acks or nacks it, and each accepted
//     message ends in exactly one reported outcome.
//   - Exchange fallback: publishing against a nonexistent exchange is
//     recovered locally by switching to a fallback exchange and reopening
//     the channel on the same connection.
//   - Graceful and forced shutdown: a graceful stop drains outstanding
//     confirmations within a bounded budget before closing; a forced stop
//     closes immediately and reports the remaining messages as discarded.
//
// Construct a Publisher with NewPublisher, attach an optional logger and
// observer, and call Start to launch the worker:
//
//	pub, err := publisher.NewPublisher(publisher.Config{
//		Endpoints: []nodes.Endpoint{
//			{Host: "rabbit-1.example.org", User: "pid", Password: secret},
//			{Host: "rabbit-2.example.org", User: "pid", Password: secret},
//		},
//		Exchange: publisher.Exchange{Name: "esgffed-exchange"},
//	})
//	if err != nil {
//		return err
//	}
//	pub.WithLogger(log)
//	if err := pub.Start(); err != nil {
//		return err
//	}
//
//	err = pub.Publish(ctx, payload)
//
//	// on the way out:
//	err = pub.GracefulShutdown(ctx)
//
// Publish never blocks on the broker: acceptance enqueues the message and
// returns. Delivery outcomes are reported asynchronously through the
// configured OnOutcome callback. After a shutdown request new publications
// are rejected with ErrShuttingDown.
//
// The package also ships an Fx module (FXModule) that wires the publisher
// into an application lifecycle, starting the worker on application start
// and draining it on shutdown.
package publisher

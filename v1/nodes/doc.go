// Package nodes manages the ordered set of candidate RabbitMQ endpoints
// used for connection failover.
//
// The publisher package consults a Directory whenever it needs to know
// where to connect next. The Directory is pure data plus rotation logic:
// an ordered endpoint list and a cursor. Within one cycle a failed
// endpoint is never retried before the rest of the list has been tried;
// a fresh cycle starts only through ResetCycle.
//
//	dir, err := nodes.NewDirectory([]nodes.Endpoint{
//		{Host: "rabbit-1.example.org", User: "pid", Password: secret},
//		{Host: "rabbit-2.example.org", User: "pid", Password: secret},
//	})
//
//	ep := dir.Current()
//	if dialFailed && dir.HasMoreInCycle() {
//		dir.Advance() // try the next node, no delay
//	}
//
// Endpoints also know how to render themselves for the transport: URL()
// produces the amqp/amqps URL and DialConfig() the amqp091 dial
// configuration including heartbeat, socket timeout, and TLS material.
package nodes

// Package transport implements the broker-facing side of the external
// interface (§6): the order/instantActions/state/connection/visualization
// topic contract, independent of any one broker implementation.
package transport

import "github.com/fleetline/agvctl/wire"

// Consumer receives inbound messages decoded off the order and
// instantActions topics, plus connection-topic echoes. Implemented by the
// vehicle-level wiring, not by transport itself.
type Consumer interface {
	ReceivedOrder(order wire.Order)
	ReceivedInstantActions(ia wire.InstantActions)
	ReceivedConnection(conn wire.Connection)
}

// Transport is the contract a vehicle uses to talk to Master Control. An
// implementation is expected to run its own internal receive loop (a
// goroutine reading from the broker) and deliver inbound messages to the
// configured Consumer as they arrive; see Passive for a variant without
// one.
type Transport interface {
	// SetConsumer installs the receiver for inbound messages. Must be
	// called before Connect.
	SetConsumer(c Consumer)

	// QueueConnection publishes a retained connection-state document.
	QueueConnection(conn wire.Connection) error

	// QueueState publishes a state document.
	QueueState(s wire.State) error

	// QueueVisualization publishes a visualization document, subject to
	// the implementation's own rate limiting.
	QueueVisualization(v wire.Visualization) error

	// Connect establishes the broker connection, registers subscriptions,
	// and publishes the retained ONLINE connection document.
	Connect() error

	// Disconnect publishes the retained OFFLINE connection document and
	// tears down the broker connection.
	Disconnect() error
}

// Passive is a Transport with no internal receive loop; the caller must
// drive SpinOnce from its own loop to poll for and dispatch inbound
// messages. Used for test/offline transports and any broker client whose
// native API is itself synchronous.
type Passive interface {
	Transport

	// SpinOnce polls for at most one inbound message and dispatches it to
	// the consumer, returning immediately if none is pending.
	SpinOnce()
}

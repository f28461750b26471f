package transport

import (
	"sync"

	"github.com/fleetline/agvctl/wire"
)

// Loopback is an in-process Transport with no broker: InjectOrder/
// InjectInstantActions below feed it directly instead of a subscription
// callback, and published documents are retained for inspection. It mirrors
// the original library's own in-tree test connector — a Connector
// implementation used only by the test suite and never wired to a real
// broker — adapted here into a Passive transport usable both in tests and
// for running a vehicle fully offline (e.g. a demo harness with no MQTT
// broker available).
type Loopback struct {
	mu            sync.Mutex
	consumer      Consumer
	connected     bool
	inbox         []func(Consumer)
	LastConnection wire.Connection
	LastState      wire.State
	LastVisualization wire.Visualization
	StatesPublished int
}

// NewLoopback returns a disconnected Loopback transport.
func NewLoopback() *Loopback { return &Loopback{} }

func (l *Loopback) SetConsumer(c Consumer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consumer = c
}

func (l *Loopback) Connect() error {
	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()
	return nil
}

func (l *Loopback) Disconnect() error {
	l.mu.Lock()
	l.connected = false
	l.mu.Unlock()
	return nil
}

func (l *Loopback) QueueConnection(conn wire.Connection) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.LastConnection = conn
	return nil
}

func (l *Loopback) QueueState(s wire.State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.LastState = s
	l.StatesPublished++
	return nil
}

func (l *Loopback) QueueVisualization(v wire.Visualization) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.LastVisualization = v
	return nil
}

// InjectOrder queues an order for delivery on the next SpinOnce, as if it
// had arrived over the order topic.
func (l *Loopback) InjectOrder(o wire.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inbox = append(l.inbox, func(c Consumer) { c.ReceivedOrder(o) })
}

// InjectInstantActions queues an instantActions message for delivery on the
// next SpinOnce.
func (l *Loopback) InjectInstantActions(ia wire.InstantActions) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inbox = append(l.inbox, func(c Consumer) { c.ReceivedInstantActions(ia) })
}

// SpinOnce delivers at most one pending injected message to the consumer.
func (l *Loopback) SpinOnce() {
	l.mu.Lock()
	if len(l.inbox) == 0 || l.consumer == nil {
		l.mu.Unlock()
		return
	}
	next := l.inbox[0]
	l.inbox = l.inbox[1:]
	c := l.consumer
	l.mu.Unlock()
	next(c)
}

var _ Passive = (*Loopback)(nil)

package transport

import (
	"testing"
	"time"

	"github.com/fleetline/agvctl/wire"
)

type fakeConsumer struct {
	orders   []wire.Order
	instants []wire.InstantActions
}

func (f *fakeConsumer) ReceivedOrder(o wire.Order)                   { f.orders = append(f.orders, o) }
func (f *fakeConsumer) ReceivedInstantActions(ia wire.InstantActions) { f.instants = append(f.instants, ia) }
func (f *fakeConsumer) ReceivedConnection(wire.Connection)           {}

func TestLoopbackDeliversInjectedOrderOnSpinOnce(t *testing.T) {
	l := NewLoopback()
	c := &fakeConsumer{}
	l.SetConsumer(c)
	if err := l.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	l.InjectOrder(wire.Order{OrderID: "order-1"})
	l.SpinOnce()

	if len(c.orders) != 1 || c.orders[0].OrderID != "order-1" {
		t.Fatalf("expected one delivered order, got %+v", c.orders)
	}
}

func TestLoopbackSpinOnceIsNoOpWithEmptyInbox(t *testing.T) {
	l := NewLoopback()
	c := &fakeConsumer{}
	l.SetConsumer(c)
	l.SpinOnce()
	if len(c.orders) != 0 || len(c.instants) != 0 {
		t.Fatalf("expected no deliveries, got orders=%v instants=%v", c.orders, c.instants)
	}
}

func TestLoopbackQueueStateRecordsLastPublish(t *testing.T) {
	l := NewLoopback()
	if err := l.QueueState(wire.State{OrderID: "order-1"}); err != nil {
		t.Fatalf("QueueState: %v", err)
	}
	if l.StatesPublished != 1 || l.LastState.OrderID != "order-1" {
		t.Fatalf("expected last state to be recorded, got %+v count=%d", l.LastState, l.StatesPublished)
	}
}

func TestReconnectBackoffGrowsAndCaps(t *testing.T) {
	base, max := 100*time.Millisecond, 500*time.Millisecond
	d0 := reconnectBackoff(0, base, max)
	d5 := reconnectBackoff(5, base, max)
	if d0 < base || d0 > base+base {
		t.Fatalf("attempt 0 backoff out of expected range: %v", d0)
	}
	if d5 > max+base {
		t.Fatalf("attempt 5 backoff should be capped near max, got %v", d5)
	}
}

package state

import (
	"testing"

	"github.com/fleetline/agvctl/wire"
)

func TestInstallOrderCreatesWaitingActions(t *testing.T) {
	s := New()
	s.InstallOrder("order-1", 0, "", []wire.Node{
		{NodeID: "n1", SequenceID: 0, Actions: []wire.Action{{ActionID: "a1", BlockingType: wire.BlockingNone}}},
	}, nil)

	st, ok := s.ActionStatus("a1")
	if !ok || st != wire.ActionWaiting {
		t.Fatalf("expected a1 WAITING, got %v ok=%v", st, ok)
	}
	orderID, updateID := s.OrderIdentity()
	if orderID != "order-1" || updateID != 0 {
		t.Fatalf("unexpected order identity: %s/%d", orderID, updateID)
	}
}

func TestAdvanceToNodeRemovesPriorStates(t *testing.T) {
	s := New()
	s.InstallOrder("order-1", 0, "", []wire.Node{
		{NodeID: "n1", SequenceID: 0},
		{NodeID: "n2", SequenceID: 2},
	}, []wire.Edge{
		{EdgeID: "e1", SequenceID: 1},
	})

	s.AdvanceToNode("n1", 0)
	snap := s.Snapshot()
	if len(snap.NodeStates) != 1 || snap.NodeStates[0].SequenceID != 2 {
		t.Fatalf("expected only n2 remaining, got %+v", snap.NodeStates)
	}
	if len(snap.EdgeStates) != 1 {
		t.Fatalf("expected e1 to remain (seq 1 > 0), got %+v", snap.EdgeStates)
	}
	if snap.LastNodeSequenceID != 0 || snap.LastNodeID != "n1" {
		t.Fatalf("unexpected last-node fields: %+v", snap)
	}
}

func TestAccumulateDistanceResetsOnMapChange(t *testing.T) {
	s := New()
	s.AccumulateDistance("map1", 5)
	s.AccumulateDistance("map1", 3)
	snap := s.Snapshot()
	if snap.DistanceSinceLastNode != 8 {
		t.Fatalf("expected accumulated distance 8, got %v", snap.DistanceSinceLastNode)
	}

	s.AccumulateDistance("map2", 2)
	snap = s.Snapshot()
	if snap.DistanceSinceLastNode != 2 {
		t.Fatalf("expected distance reset to 2 on map change, got %v", snap.DistanceSinceLastNode)
	}
}

func TestIsIdleReflectsInstalledOrder(t *testing.T) {
	s := New()
	if !s.IsIdle() {
		t.Fatalf("expected fresh store to be idle")
	}
	s.InstallOrder("order-1", 0, "", nil, nil)
	if s.IsIdle() {
		t.Fatalf("expected store to not be idle after InstallOrder")
	}
}

func TestAddErrorAppearsInSnapshot(t *testing.T) {
	s := New()
	s.AddError(wire.Error{ErrorType: "OrderStitchingError", ErrorLevel: wire.ErrorWarning})
	snap := s.Snapshot()
	if len(snap.Errors) != 1 || snap.Errors[0].ErrorType != "OrderStitchingError" {
		t.Fatalf("unexpected errors in snapshot: %+v", snap.Errors)
	}
}

package validate

import (
	"testing"

	"github.com/fleetline/agvctl/wire"
)

func baseCtx() Context {
	return Context{
		Header:       wire.Header{Manufacturer: "acme", SerialNumber: "v1", Version: "2.0.0"},
		Manufacturer: "acme",
		SerialNumber: "v1",
		Description: AGVDescription{
			SupportedActions: map[string]ActionDeclaration{
				"pick": {
					Contexts:      map[ActionContext]bool{ContextNode: true},
					BlockingTypes: map[wire.BlockingType]bool{wire.BlockingHard: true},
				},
			},
		},
	}
}

func TestHeaderTargetRuleRejectsMismatch(t *testing.T) {
	ctx := baseCtx()
	ctx.Header.Manufacturer = "other"
	errs := HeaderTargetRule(ctx)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
}

func TestOrderIdentityRuleRequiresMonotonicUpdate(t *testing.T) {
	ctx := baseCtx()
	ctx.CurrentOrderID = "order-1"
	ctx.CurrentOrderUpdateID = 2
	ctx.Order = &wire.Order{OrderID: "order-1", OrderUpdateID: 2}
	if errs := OrderIdentityRule(ctx); len(errs) == 0 {
		t.Fatalf("expected rejection for non-monotonic update id")
	}

	ctx.Order.OrderUpdateID = 3
	if errs := OrderIdentityRule(ctx); len(errs) != 0 {
		t.Fatalf("expected acceptance for monotonic update id, got %v", errs)
	}
}

func TestOrderIdentityRuleRequiresIdleForNewOrder(t *testing.T) {
	ctx := baseCtx()
	ctx.CurrentOrderID = "order-1"
	ctx.CurrentOrderIdle = false
	ctx.Order = &wire.Order{OrderID: "order-2", OrderUpdateID: 0}
	if errs := OrderIdentityRule(ctx); len(errs) == 0 {
		t.Fatalf("expected rejection of new order while not idle")
	}
}

func TestSequenceGraphRuleDetectsParityAndDuplicates(t *testing.T) {
	ctx := baseCtx()
	ctx.Order = &wire.Order{
		Nodes: []wire.Node{{SequenceID: 0, Released: true}, {SequenceID: 1, Released: true}},
		Edges: []wire.Edge{{SequenceID: 1}},
	}
	errs := SequenceGraphRule(ctx)
	if len(errs) < 2 {
		t.Fatalf("expected at least 2 errors (parity + duplicate), got %v", errs)
	}
}

func TestReachabilityRuleRejectsUnreachableFirstNode(t *testing.T) {
	ctx := baseCtx()
	ctx.LastNodeID = "n0"
	ctx.BaseSequenceID = 0
	ctx.Order = &wire.Order{OrderID: "order-1", Nodes: []wire.Node{{NodeID: "n4", SequenceID: 4}}}
	errs := ReachabilityRule(ctx)
	if len(errs) != 1 || errs[0].ErrorType != "OrderStitchingError" {
		t.Fatalf("expected OrderStitchingError, got %v", errs)
	}
}

func TestActionDeclarationRuleRejectsUnknownType(t *testing.T) {
	ctx := baseCtx()
	ctx.Order = &wire.Order{
		Nodes: []wire.Node{{Actions: []wire.Action{{ActionID: "a1", ActionType: "unknown", BlockingType: wire.BlockingHard}}}},
	}
	errs := ActionDeclarationRule(ctx)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error for unsupported actionType, got %v", errs)
	}
}

func TestActionDeclarationRuleAcceptsKnownAction(t *testing.T) {
	ctx := baseCtx()
	ctx.Order = &wire.Order{
		Nodes: []wire.Node{{Actions: []wire.Action{{ActionID: "a1", ActionType: "pick", BlockingType: wire.BlockingHard}}}},
	}
	if errs := ActionDeclarationRule(ctx); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestRunComposesAllRules(t *testing.T) {
	ctx := baseCtx()
	ctx.Header.Manufacturer = "other"
	ctx.Order = &wire.Order{Nodes: []wire.Node{{SequenceID: 1, Released: true}}}
	errs := Run(OrderRules(), ctx)
	if len(errs) == 0 {
		t.Fatalf("expected composed rules to surface errors")
	}
}

package vehicle

import (
	"github.com/fleetline/agvctl/config"
	"github.com/fleetline/agvctl/emit"
	"github.com/fleetline/agvctl/exec"
	"github.com/fleetline/agvctl/transport"
	"github.com/fleetline/agvctl/validate"
	"github.com/fleetline/agvctl/wire"
)

var _ transport.Consumer = (*Vehicle)(nil)

// ReceivedOrder implements transport.Consumer. It runs §4.7's order
// acceptance rules, attaches any resulting errors to canonical state, and
// only hands the order to the net manager when every rule passes.
func (v *Vehicle) ReceivedOrder(order wire.Order) {
	ctx := v.validateContext(order.Header, &order, nil)
	if validate.HeaderTargetRule(ctx) != nil {
		// Not addressed to this vehicle; never even surfaced as an error.
		return
	}

	errs := validate.Run(validate.OrderRules(), ctx)
	if len(errs) > 0 {
		for _, e := range errs {
			v.store.AddError(e)
		}
		v.requestUpdate(exec.Immediate)
		v.emitter.Emit(emit.Event{OrderID: order.OrderID, Msg: "order_rejected", Meta: map[string]interface{}{"errorCount": len(errs)}})
		return
	}

	if err := v.net.InstallOrder(order); err != nil {
		v.store.AddError(wire.Error{
			ErrorType:        "InternalError",
			ErrorLevel:       wire.ErrorFatal,
			ErrorDescription: err.Error(),
			ErrorReferences:  []wire.ErrorReference{{ReferenceKey: "orderId", ReferenceValue: order.OrderID}},
		})
		v.requestUpdate(exec.Immediate)
	}
}

// ReceivedInstantActions implements transport.Consumer. Validation
// mirrors ReceivedOrder's shape, rejecting the whole batch on any error
// rather than partially applying it.
func (v *Vehicle) ReceivedInstantActions(ia wire.InstantActions) {
	ctx := v.validateContext(ia.Header, nil, &ia)
	if validate.HeaderTargetRule(ctx) != nil {
		return
	}

	errs := validate.Run(validate.InstantActionRules(), ctx)
	if len(errs) > 0 {
		for _, e := range errs {
			v.store.AddError(e)
		}
		v.requestUpdate(exec.Immediate)
		v.emitter.Emit(emit.Event{Msg: "instant_actions_rejected", Meta: map[string]interface{}{"errorCount": len(errs)}})
		return
	}

	if err := v.net.HandleInstantActions(ia); err != nil {
		v.store.AddError(wire.Error{
			ErrorType:        "InternalError",
			ErrorLevel:       wire.ErrorFatal,
			ErrorDescription: err.Error(),
		})
		v.requestUpdate(exec.Immediate)
	}
}

// ReceivedConnection implements transport.Consumer. The connection topic
// is vehicle-to-MasterControl; an inbound echo of it carries no action of
// its own, but is worth surfacing for diagnostics (e.g. a retained message
// from a second vehicle instance sharing this vehicle's identity by
// misconfiguration).
func (v *Vehicle) ReceivedConnection(conn wire.Connection) {
	v.emitter.Emit(emit.Event{Msg: "connection_echo_received", Meta: map[string]interface{}{"state": string(conn.ConnectionState)}})
}

func (v *Vehicle) requestUpdate(u exec.Urgency) {
	v.debouncer.RequestUpdate(u)
}

func (v *Vehicle) validateContext(h wire.Header, order *wire.Order, ia *wire.InstantActions) validate.Context {
	currentOrderID, currentUpdateID := v.store.OrderIdentity()
	return validate.Context{
		Header:               h,
		Order:                order,
		Instant:              ia,
		Description:          v.vdesc,
		Manufacturer:         v.cfg.AGV.Manufacturer,
		SerialNumber:         v.cfg.AGV.SerialNumber,
		CurrentOrderID:       currentOrderID,
		CurrentOrderUpdateID: currentUpdateID,
		CurrentOrderIdle:     v.store.IsIdle(),
		BaseSequenceID:       v.store.BaseSequenceID(),
		LastNodeID:           v.store.LastNodeID(),
	}
}

// buildValidateDescription projects config.AGVDescription's supported
// actions into the lookup-table shape validate.ActionDeclarationRule
// checks against: per action type, which contexts/blocking types are
// permitted. Every declared action is permitted in every scope it
// declares and under any blocking type — config.ActionDeclaration does
// not yet separate "permitted blocking types" from "declared scopes", so
// all three blocking types are accepted for a declared action.
func buildValidateDescription(agv config.AGVDescription) validate.AGVDescription {
	desc := validate.AGVDescription{SupportedActions: make(map[string]validate.ActionDeclaration)}
	for _, a := range agv.SupportedActions {
		decl := validate.ActionDeclaration{
			Contexts:      make(map[validate.ActionContext]bool),
			BlockingTypes: map[wire.BlockingType]bool{wire.BlockingHard: true, wire.BlockingSoft: true, wire.BlockingNone: true},
		}
		for _, scope := range a.ActionScopes {
			switch scope {
			case "INSTANT":
				decl.Contexts[validate.ContextInstant] = true
			case "NODE":
				decl.Contexts[validate.ContextNode] = true
			case "EDGE":
				decl.Contexts[validate.ContextEdge] = true
			}
		}
		desc.SupportedActions[a.ActionType] = decl
	}
	return desc
}

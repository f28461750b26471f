// Package validate implements the order and instant-action acceptance
// rules the scheduler depends on (§4.7). Validation is side-effect-free
// and composes as a list of rules; each rule yields zero or more errors.
package validate

import (
	"fmt"

	"github.com/fleetline/agvctl/wire"
)

// Rule is one acceptance check. It must not mutate anything it is given;
// callers own attaching the returned errors to canonical state.
type Rule func(ctx Context) []wire.Error

// Context carries everything a rule needs to judge one inbound order,
// without giving it write access to canonical state.
type Context struct {
	Header       wire.Header
	Order        *wire.Order // nil when validating an InstantActions message
	Instant      *wire.InstantActions
	Description  AGVDescription

	Manufacturer string
	SerialNumber string

	CurrentOrderID       string
	CurrentOrderUpdateID uint32
	CurrentOrderIdle     bool
	BaseSequenceID       uint32
	LastNodeID           string
}

// AGVDescription is the subset of the vehicle's self-description the
// validator needs: which action types are supported, in which contexts,
// with which blocking types and parameter constraints (§4.7 rule 6).
type AGVDescription struct {
	SupportedActions map[string]ActionDeclaration
}

// ActionDeclaration constrains one action type.
type ActionDeclaration struct {
	Contexts      map[ActionContext]bool
	BlockingTypes map[wire.BlockingType]bool
	Parameters    map[string]ParameterConstraint
}

// ActionContext is where an action may legally appear.
type ActionContext int

const (
	ContextInstant ActionContext = iota
	ContextNode
	ContextEdge
)

// ParameterConstraint restricts one action parameter's admissible values.
type ParameterConstraint struct {
	AllowedValues []interface{} // non-empty: value must be one of these
	Min, Max      *float64      // set: numeric value must fall in [Min, Max]
}

func errRef(key, value string) wire.ErrorReference {
	return wire.ErrorReference{ReferenceKey: key, ReferenceValue: value}
}

// HeaderTargetRule implements §4.7 rule 1: header target matches this
// vehicle's manufacturer and serial.
func HeaderTargetRule(ctx Context) []wire.Error {
	if ctx.Header.Manufacturer != ctx.Manufacturer || ctx.Header.SerialNumber != ctx.SerialNumber {
		return []wire.Error{{
			ErrorType:  "ValidationError",
			ErrorLevel: wire.ErrorWarning,
			ErrorDescription: fmt.Sprintf(
				"header target %s/%s does not match vehicle %s/%s",
				ctx.Header.Manufacturer, ctx.Header.SerialNumber, ctx.Manufacturer, ctx.SerialNumber),
		}}
	}
	return nil
}

// HeaderVersionRule implements §4.7 rule 2: header version is in the
// compatible set.
func HeaderVersionRule(ctx Context) []wire.Error {
	for _, v := range wire.SupportedVersions {
		if v == ctx.Header.Version {
			return nil
		}
	}
	return []wire.Error{{
		ErrorType:        "ValidationError",
		ErrorLevel:       wire.ErrorWarning,
		ErrorDescription: fmt.Sprintf("unsupported protocol version %q", ctx.Header.Version),
	}}
}

// OrderIdentityRule implements §4.7 rule 3: equal order id requires a
// monotonic update id; a different order id requires the vehicle to be
// idle.
func OrderIdentityRule(ctx Context) []wire.Error {
	if ctx.Order == nil {
		return nil
	}
	if ctx.Order.OrderID == ctx.CurrentOrderID && ctx.CurrentOrderID != "" {
		if ctx.Order.OrderUpdateID <= ctx.CurrentOrderUpdateID {
			return []wire.Error{{
				ErrorType:  "OrderUpdateError",
				ErrorLevel: wire.ErrorWarning,
				ErrorDescription: fmt.Sprintf(
					"orderUpdateId %d is not greater than current %d",
					ctx.Order.OrderUpdateID, ctx.CurrentOrderUpdateID),
				ErrorReferences: []wire.ErrorReference{errRef("orderId", ctx.Order.OrderID)},
			}}
		}
		return nil
	}
	if !ctx.CurrentOrderIdle {
		return []wire.Error{{
			ErrorType:        "OrderIdentityError",
			ErrorLevel:       wire.ErrorWarning,
			ErrorDescription: "cannot accept a new orderId while a different order is active",
			ErrorReferences:  []wire.ErrorReference{errRef("orderId", ctx.Order.OrderID)},
		}}
	}
	return nil
}

// SequenceGraphRule implements §4.7 rule 4 / §3's invariants: nodes at even
// and edges at odd sequence ids, no duplicates, and no released node after
// a horizon node. Whether the sequence ids are contiguous is not checked.
func SequenceGraphRule(ctx Context) []wire.Error {
	if ctx.Order == nil {
		return nil
	}
	seen := make(map[uint32]bool)
	var errs []wire.Error
	addDup := func(seq uint32) {
		errs = append(errs, wire.Error{
			ErrorType:        "SequenceIdError",
			ErrorLevel:       wire.ErrorWarning,
			ErrorDescription: fmt.Sprintf("duplicate sequenceId %d", seq),
		})
	}
	addParity := func(seq uint32, wantEven bool) {
		kind := "odd"
		if wantEven {
			kind = "even"
		}
		errs = append(errs, wire.Error{
			ErrorType:        "SequenceIdError",
			ErrorLevel:       wire.ErrorWarning,
			ErrorDescription: fmt.Sprintf("sequenceId %d must be %s", seq, kind),
		})
	}

	horizonStarted := false
	for _, n := range ctx.Order.Nodes {
		if seen[n.SequenceID] {
			addDup(n.SequenceID)
		}
		seen[n.SequenceID] = true
		if n.SequenceID%2 != 0 {
			addParity(n.SequenceID, true)
		}
		if !n.Released {
			horizonStarted = true
		} else if horizonStarted {
			errs = append(errs, wire.Error{
				ErrorType:        "SequenceIdError",
				ErrorLevel:       wire.ErrorWarning,
				ErrorDescription: fmt.Sprintf("base node at sequenceId %d follows horizon", n.SequenceID),
			})
		}
	}
	for _, e := range ctx.Order.Edges {
		if seen[e.SequenceID] {
			addDup(e.SequenceID)
		}
		seen[e.SequenceID] = true
		if e.SequenceID%2 == 0 {
			addParity(e.SequenceID, false)
		}
	}
	return errs
}

// ReachabilityRule implements §4.7 rule 5: the first base node is
// reachable from the vehicle's current position.
func ReachabilityRule(ctx Context) []wire.Error {
	if ctx.Order == nil || len(ctx.Order.Nodes) == 0 {
		return nil
	}
	first := ctx.Order.Nodes[0]
	if first.NodeID == ctx.LastNodeID {
		return nil
	}
	if ctx.Order.OrderID == ctx.CurrentOrderID && first.SequenceID == ctx.BaseSequenceID {
		return nil
	}
	return []wire.Error{{
		ErrorType:        "OrderStitchingError",
		ErrorLevel:       wire.ErrorWarning,
		ErrorDescription: "first base node is not reachable from the vehicle's current position",
		ErrorReferences: []wire.ErrorReference{
			errRef("order.node.sequenceId", fmt.Sprintf("%d", first.SequenceID)),
			errRef("state.baseSequenceId", fmt.Sprintf("%d", ctx.BaseSequenceID)),
		},
	}}
}

// ActionDeclarationRule implements §4.7 rule 6: every action is declared
// by the vehicle's self-description, in the right context, with a
// permitted blocking type and in-range parameters.
func ActionDeclarationRule(ctx Context) []wire.Error {
	var errs []wire.Error
	check := func(a wire.Action, actionCtx ActionContext) {
		decl, ok := ctx.Description.SupportedActions[a.ActionType]
		if !ok {
			errs = append(errs, wire.Error{
				ErrorType:        "ValidationError",
				ErrorLevel:       wire.ErrorWarning,
				ErrorDescription: fmt.Sprintf("actionType %q is not supported", a.ActionType),
				ErrorReferences:  []wire.ErrorReference{errRef("actionId", a.ActionID)},
			})
			return
		}
		if !decl.Contexts[actionCtx] {
			errs = append(errs, wire.Error{
				ErrorType:        "ValidationError",
				ErrorLevel:       wire.ErrorWarning,
				ErrorDescription: fmt.Sprintf("actionType %q is not permitted in this context", a.ActionType),
				ErrorReferences:  []wire.ErrorReference{errRef("actionId", a.ActionID)},
			})
		}
		if !decl.BlockingTypes[a.BlockingType] {
			errs = append(errs, wire.Error{
				ErrorType:        "ValidationError",
				ErrorLevel:       wire.ErrorWarning,
				ErrorDescription: fmt.Sprintf("blockingType %q is not permitted for actionType %q", a.BlockingType, a.ActionType),
				ErrorReferences:  []wire.ErrorReference{errRef("actionId", a.ActionID)},
			})
		}
		for name, constraint := range decl.Parameters {
			val, present := a.ActionParameters[name]
			if !present {
				continue
			}
			if !constraint.allows(val) {
				errs = append(errs, wire.Error{
					ErrorType:        "ValidationError",
					ErrorLevel:       wire.ErrorWarning,
					ErrorDescription: fmt.Sprintf("parameter %q of action %q is out of range", name, a.ActionID),
					ErrorReferences:  []wire.ErrorReference{errRef("actionId", a.ActionID)},
				})
			}
		}
	}

	if ctx.Order != nil {
		for _, n := range ctx.Order.Nodes {
			for _, a := range n.Actions {
				check(a, ContextNode)
			}
		}
		for _, e := range ctx.Order.Edges {
			for _, a := range e.Actions {
				check(a, ContextEdge)
			}
		}
	}
	if ctx.Instant != nil {
		for _, a := range ctx.Instant.InstantActions {
			check(a, ContextInstant)
		}
	}
	return errs
}

func (c ParameterConstraint) allows(v interface{}) bool {
	if len(c.AllowedValues) > 0 {
		for _, allowed := range c.AllowedValues {
			if allowed == v {
				return true
			}
		}
		return false
	}
	if c.Min != nil || c.Max != nil {
		f, ok := toFloat(v)
		if !ok {
			return false
		}
		if c.Min != nil && f < *c.Min {
			return false
		}
		if c.Max != nil && f > *c.Max {
			return false
		}
	}
	return true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// OrderRules is the default rule set applied to an inbound order.
func OrderRules() []Rule {
	return []Rule{HeaderTargetRule, HeaderVersionRule, OrderIdentityRule, SequenceGraphRule, ReachabilityRule, ActionDeclarationRule}
}

// InstantActionRules is the default rule set applied to an inbound
// instant-actions message.
func InstantActionRules() []Rule {
	return []Rule{HeaderTargetRule, HeaderVersionRule, ActionDeclarationRule}
}

// Run composes rules against ctx and returns every error any rule
// produced, in rule order.
func Run(rules []Rule, ctx Context) []wire.Error {
	var all []wire.Error
	for _, r := range rules {
		all = append(all, r(ctx)...)
	}
	return all
}

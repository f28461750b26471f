package pnet

// Arc connects a transition to a place with an integer weight: the number
// of tokens moved (or required) on fire.
type Arc struct {
	Place  PlaceID
	Weight uint64
}

// TransitionID identifies a transition within a Net.
type TransitionID string

// TransitionDef describes a transition to be added to a Net via
// Net.AddTransition. Ingoing arcs are consumed (the place must hold at
// least Weight tokens for the transition to be enabled); Outgoing arcs are
// produced.
type TransitionDef struct {
	ID       TransitionID
	Ingoing  []Arc
	Outgoing []Arc
}

// Transition moves tokens from its ingoing places to its outgoing places
// when fired. A transition is enabled when every ingoing place holds at
// least the arc's weight in tokens.
type Transition struct {
	id       TransitionID
	ingoing  []arcRef
	outgoing []arcRef
	autoFire bool
	net      *Net
}

type arcRef struct {
	place  *Place
	weight uint64
}

// ID returns the transition's identifier.
func (t *Transition) ID() TransitionID { return t.id }

// Enabled reports whether every ingoing place currently holds enough
// tokens for the transition to fire.
func (t *Transition) Enabled() bool {
	for _, a := range t.ingoing {
		if a.place.Tokens() < a.weight {
			return false
		}
	}
	return true
}

// Fire fires the transition exactly once if enabled: it debits every
// ingoing arc and credits every outgoing arc, in that order, and returns
// whether it fired. Fire does not cascade — it does not attempt to fire
// any other transition that becomes enabled as a side effect. Use DeepFire
// or the net's Tick/DeepTickCover for that.
func (t *Transition) Fire() bool {
	if !t.Enabled() {
		return false
	}
	for _, a := range t.ingoing {
		a.place.set(a.place.tokens - a.weight)
	}
	for _, a := range t.outgoing {
		a.place.set(a.place.tokens + a.weight)
	}
	return true
}

// AutoFire marks the transition as a candidate for the net's Tick and
// DeepTickCover sweeps. Most task-subnet transitions are auto-fire;
// transitions representing an external decision (operator pause, explicit
// cancel) are left manual and fired directly by the owning component.
func (t *Transition) AutoFire() {
	if t.autoFire {
		return
	}
	t.autoFire = true
	if t.net != nil {
		t.net.autoFireIDs = append(t.net.autoFireIDs, t.id)
	}
}

// DeepFire fires the transition once, then drives the owning net to
// quiescence (DeepTickCover), so that any transition chain unblocked by
// this fire also settles before DeepFire returns.
func (t *Transition) DeepFire() bool {
	fired := t.Fire()
	if fired && t.net != nil {
		t.net.DeepTickCover()
	}
	return fired
}

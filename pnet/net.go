package pnet

import "fmt"

// Net is a Petri net: a set of places and transitions built up
// incrementally by AddPlace/AddTransition, then driven by Fire/DeepFire on
// individual transitions or by Tick/DeepTickCover across the whole net.
//
// Net carries no internal lock. Callers that touch one Net from more than
// one goroutine must provide their own synchronization.
type Net struct {
	places      map[PlaceID]*Place
	transitions map[TransitionID]*Transition
	autoFireIDs []TransitionID
}

// New returns an empty Net.
func New() *Net {
	return &Net{
		places:      make(map[PlaceID]*Place),
		transitions: make(map[TransitionID]*Transition),
	}
}

// AddPlace adds a place with the given initial token count and returns it.
// It is an error to add a place whose ID already exists in the net.
func (n *Net) AddPlace(id PlaceID, initial uint64) (*Place, error) {
	if _, exists := n.places[id]; exists {
		return nil, fmt.Errorf("pnet: place %q already exists", id)
	}
	p := &Place{id: id, tokens: initial}
	n.places[id] = p
	return p, nil
}

// Place looks up a place by ID, returning (nil, false) if it does not exist.
func (n *Net) Place(id PlaceID) (*Place, bool) {
	p, ok := n.places[id]
	return p, ok
}

// AddTransition builds and registers a transition from def. Unknown place
// references in def.Ingoing/def.Outgoing are reported as an error rather
// than a panic, since transition definitions are frequently assembled from
// order data at runtime (see netmgr) and a malformed order must not crash
// the vehicle's scheduler.
func (n *Net) AddTransition(def TransitionDef) (*Transition, error) {
	if _, exists := n.transitions[def.ID]; exists {
		return nil, fmt.Errorf("pnet: transition %q already exists", def.ID)
	}

	ingoing, err := n.resolveArcs(def.Ingoing)
	if err != nil {
		return nil, fmt.Errorf("pnet: transition %q: %w", def.ID, err)
	}
	outgoing, err := n.resolveArcs(def.Outgoing)
	if err != nil {
		return nil, fmt.Errorf("pnet: transition %q: %w", def.ID, err)
	}

	t := &Transition{
		id:       def.ID,
		ingoing:  ingoing,
		outgoing: outgoing,
		net:      n,
	}
	n.transitions[def.ID] = t
	return t, nil
}

func (n *Net) resolveArcs(arcs []Arc) ([]arcRef, error) {
	refs := make([]arcRef, 0, len(arcs))
	for _, a := range arcs {
		p, ok := n.places[a.Place]
		if !ok {
			return nil, fmt.Errorf("unknown place %q", a.Place)
		}
		weight := a.Weight
		if weight == 0 {
			weight = 1
		}
		refs = append(refs, arcRef{place: p, weight: weight})
	}
	return refs, nil
}

// Transition looks up a transition by ID, returning (nil, false) if it does
// not exist.
func (n *Net) Transition(id TransitionID) (*Transition, bool) {
	t, ok := n.transitions[id]
	return t, ok
}

// Merge copies every place and transition of other into n, then adds the
// bridge transitions (whose arcs may reference places from either net). It
// is an error for other to contain a place or transition ID already present
// in n. The net manager and the task managers do not use Merge: they add
// their places and transitions directly to one shared net.
func (n *Net) Merge(other *Net, bridge []TransitionDef) error {
	for id, p := range other.places {
		if _, exists := n.places[id]; exists {
			return fmt.Errorf("pnet: merge: place %q already exists", id)
		}
		n.places[id] = p
	}
	for id, t := range other.transitions {
		if _, exists := n.transitions[id]; exists {
			return fmt.Errorf("pnet: merge: transition %q already exists", id)
		}
		t.net = n
		n.transitions[id] = t
		if t.autoFire {
			n.autoFireIDs = append(n.autoFireIDs, id)
		}
	}
	for _, def := range bridge {
		if _, err := n.AddTransition(def); err != nil {
			return fmt.Errorf("pnet: merge: bridge: %w", err)
		}
	}
	return nil
}

// Tick makes one pass over every auto-fire transition in registration
// order, firing each one that is enabled, and returns whether anything
// fired. Because the pass is sequential, a transition unblocked by another
// transition firing earlier in the same pass can still fire during this
// same Tick if it is registered later; a transition registered earlier
// than the one that unblocks it has to wait for the next Tick. Use
// DeepTickCover to run to a fixed point regardless of registration order.
func (n *Net) Tick() bool {
	any := false
	for _, id := range n.autoFireIDs {
		t, ok := n.transitions[id]
		if !ok {
			continue
		}
		if t.Fire() {
			any = true
		}
	}
	return any
}

// DeepTickCover repeatedly calls Tick until a pass fires nothing, i.e.
// until the net reaches quiescence under its auto-fire transitions. It is
// the net-wide analogue of Transition.DeepFire.
func (n *Net) DeepTickCover() {
	for n.Tick() {
	}
}

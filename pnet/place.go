// Package pnet implements the labeled place/transition Petri-net kernel that
// the task manager and net manager packages build subnets out of.
//
// The kernel itself assumes single-threaded mutation: callers are expected
// to serialize Fire/Tick calls (the scheduler package does this by running
// all net-mutating work on its spinner threads). Observers must not fire
// transitions synchronously from within their own callback — they should
// enqueue follow-up work instead, per the net manager and task packages.
package pnet

// PlaceID identifies a place within a Net. Components that build subnets
// (task, netmgr) mint IDs that encode the owning task/step so that two
// merged subnets never collide, e.g. "action:A3:running".
type PlaceID string

// Observer is notified after a Place's token count changes. prior is the
// count immediately before the change; p.Tokens() gives the new count.
// Observers run synchronously during Fire/Tick and must not call back into
// the net (no Fire/Tick/AddPlace from inside an Observer).
type Observer func(p *Place, prior uint64)

// Place holds a non-negative integer token count and the observers
// registered against it.
type Place struct {
	id        PlaceID
	tokens    uint64
	observers []Observer
}

// ID returns the place's identifier.
func (p *Place) ID() PlaceID { return p.id }

// Tokens returns the current token count.
func (p *Place) Tokens() uint64 { return p.tokens }

// OnChange registers an observer invoked after every token-count change on
// this place (credit or debit, by any amount). Order of invocation across
// multiple observers on the same place is registration order.
func (p *Place) OnChange(obs Observer) {
	p.observers = append(p.observers, obs)
}

func (p *Place) set(newCount uint64) {
	prior := p.tokens
	if prior == newCount {
		return
	}
	p.tokens = newCount
	for _, obs := range p.observers {
		obs(p, prior)
	}
}

package pnet

import "testing"

func TestAddPlaceDuplicate(t *testing.T) {
	n := New()
	if _, err := n.AddPlace("p1", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := n.AddPlace("p1", 0); err == nil {
		t.Fatalf("expected error adding duplicate place")
	}
}

func TestAddTransitionUnknownPlace(t *testing.T) {
	n := New()
	if _, err := n.AddPlace("p1", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := n.AddTransition(TransitionDef{
		ID:      "t1",
		Ingoing: []Arc{{Place: "p1"}},
		Outgoing: []Arc{{Place: "does-not-exist"}},
	})
	if err == nil {
		t.Fatalf("expected error referencing unknown place")
	}
}

func TestFireMovesTokens(t *testing.T) {
	n := New()
	src, _ := n.AddPlace("src", 1)
	dst, _ := n.AddPlace("dst", 0)
	tr, err := n.AddTransition(TransitionDef{
		ID:       "move",
		Ingoing:  []Arc{{Place: "src", Weight: 1}},
		Outgoing: []Arc{{Place: "dst", Weight: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !tr.Fire() {
		t.Fatalf("expected transition to fire")
	}
	if src.Tokens() != 0 || dst.Tokens() != 1 {
		t.Fatalf("unexpected token counts: src=%d dst=%d", src.Tokens(), dst.Tokens())
	}
	if tr.Fire() {
		t.Fatalf("expected second fire to be a no-op (src now empty)")
	}
}

func TestOnChangeObserverFiresOnEveryChange(t *testing.T) {
	n := New()
	p, _ := n.AddPlace("p1", 0)
	n.AddPlace("p2", 1)
	tr, _ := n.AddTransition(TransitionDef{
		ID:       "t1",
		Ingoing:  []Arc{{Place: "p2", Weight: 1}},
		Outgoing: []Arc{{Place: "p1", Weight: 1}},
	})

	var priorSeen []uint64
	p.OnChange(func(p *Place, prior uint64) {
		priorSeen = append(priorSeen, prior)
	})

	tr.Fire()
	if len(priorSeen) != 1 || priorSeen[0] != 0 {
		t.Fatalf("expected one observer call with prior=0, got %v", priorSeen)
	}
}

func TestTickFiresInRegistrationOrderWithinOnePass(t *testing.T) {
	n := New()
	n.AddPlace("a", 1)
	n.AddPlace("b", 0)
	n.AddPlace("c", 0)

	t1, _ := n.AddTransition(TransitionDef{
		ID:       "t1",
		Ingoing:  []Arc{{Place: "a", Weight: 1}},
		Outgoing: []Arc{{Place: "b", Weight: 1}},
	})
	t2, _ := n.AddTransition(TransitionDef{
		ID:       "t2",
		Ingoing:  []Arc{{Place: "b", Weight: 1}},
		Outgoing: []Arc{{Place: "c", Weight: 1}},
	})
	t1.AutoFire()
	t2.AutoFire()

	if fired := n.Tick(); !fired {
		t.Fatalf("expected tick to fire t1, then (same pass, registration order) t2")
	}

	c, _ := n.Place("c")
	if c.Tokens() != 1 {
		t.Fatalf("expected c=1 after single tick given registration order, got %d", c.Tokens())
	}
}

func TestDeepTickCoverReachesQuiescence(t *testing.T) {
	n := New()
	n.AddPlace("a", 1)
	n.AddPlace("b", 0)
	n.AddPlace("c", 0)

	// Register t2 before t1 so a single Tick pass cannot cascade, forcing
	// DeepTickCover to take more than one pass to reach quiescence.
	t2, _ := n.AddTransition(TransitionDef{
		ID:       "t2",
		Ingoing:  []Arc{{Place: "b", Weight: 1}},
		Outgoing: []Arc{{Place: "c", Weight: 1}},
	})
	t1, _ := n.AddTransition(TransitionDef{
		ID:       "t1",
		Ingoing:  []Arc{{Place: "a", Weight: 1}},
		Outgoing: []Arc{{Place: "b", Weight: 1}},
	})
	t2.AutoFire()
	t1.AutoFire()

	n.DeepTickCover()

	a, _ := n.Place("a")
	b, _ := n.Place("b")
	c, _ := n.Place("c")
	if a.Tokens() != 0 || b.Tokens() != 0 || c.Tokens() != 1 {
		t.Fatalf("expected quiescence at a=0 b=0 c=1, got a=%d b=%d c=%d", a.Tokens(), b.Tokens(), c.Tokens())
	}
}

func TestDeepFireDrivesDownstreamChain(t *testing.T) {
	n := New()
	n.AddPlace("a", 1)
	n.AddPlace("b", 0)
	n.AddPlace("c", 0)

	t1, _ := n.AddTransition(TransitionDef{
		ID:       "t1",
		Ingoing:  []Arc{{Place: "a", Weight: 1}},
		Outgoing: []Arc{{Place: "b", Weight: 1}},
	})
	t2, _ := n.AddTransition(TransitionDef{
		ID:       "t2",
		Ingoing:  []Arc{{Place: "b", Weight: 1}},
		Outgoing: []Arc{{Place: "c", Weight: 1}},
	})
	t2.AutoFire()

	if !t1.DeepFire() {
		t.Fatalf("expected t1 to fire")
	}

	c, _ := n.Place("c")
	if c.Tokens() != 1 {
		t.Fatalf("expected DeepFire to drive t2 via net quiescence, c=%d", c.Tokens())
	}
}

func TestMergeStitchesTwoNets(t *testing.T) {
	n := New()
	n.AddPlace("a", 1)

	other := New()
	other.AddPlace("b", 0)
	if _, err := other.AddTransition(TransitionDef{ID: "internal"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bridge := []TransitionDef{
		{
			ID:       "bridge",
			Ingoing:  []Arc{{Place: "a", Weight: 1}},
			Outgoing: []Arc{{Place: "b", Weight: 1}},
		},
	}
	if err := n.Merge(other, bridge); err != nil {
		t.Fatalf("unexpected merge error: %v", err)
	}

	bt, ok := n.Transition("bridge")
	if !ok {
		t.Fatalf("expected bridge transition to exist after merge")
	}
	if !bt.Fire() {
		t.Fatalf("expected bridge transition to fire across merged places")
	}
	b, _ := n.Place("b")
	if b.Tokens() != 1 {
		t.Fatalf("expected b=1 after bridge fire, got %d", b.Tokens())
	}
}

func TestMergeRejectsDuplicatePlace(t *testing.T) {
	n := New()
	n.AddPlace("a", 0)

	other := New()
	other.AddPlace("a", 0)

	if err := n.Merge(other, nil); err == nil {
		t.Fatalf("expected error merging nets with colliding place id")
	}
}

package task

import (
	"testing"

	"github.com/fleetline/agvctl/pnet"
)

type recordingHooks struct {
	initialized, running, paused, finished, failed int
}

func (h *recordingHooks) TaskInitialize() { h.initialized++ }
func (h *recordingHooks) TaskRunning()    { h.running++ }
func (h *recordingHooks) TaskPaused()     { h.paused++ }
func (h *recordingHooks) TaskFinished()   { h.finished++ }
func (h *recordingHooks) TaskFailed()     { h.failed++ }

func newTestManager(t *testing.T, id string) (*pnet.Net, *Manager, *recordingHooks) {
	t.Helper()
	net := pnet.New()
	hooks := &recordingHooks{}
	m, err := NewManager(net, id, hooks)
	if err != nil {
		t.Fatalf("unexpected error building manager: %v", err)
	}
	return net, m, hooks
}

func TestHappyPathLifecycle(t *testing.T) {
	_, m, hooks := newTestManager(t, "t1")

	// ready is credited externally (the composer's bridging transition);
	// simulate that directly here.
	creditReady(m)

	if hooks.initialized != 1 {
		t.Fatalf("expected TaskInitialize called once, got %d", hooks.initialized)
	}
	if !m.Started() {
		t.Fatalf("expected started() to succeed")
	}
	if hooks.running != 1 {
		t.Fatalf("expected TaskRunning called once, got %d", hooks.running)
	}
	if !m.MarkFinished() {
		t.Fatalf("expected finish to succeed")
	}
	if hooks.finished != 1 {
		t.Fatalf("expected TaskFinished called once, got %d", hooks.finished)
	}
	if m.Done().Tokens() != 1 {
		t.Fatalf("expected task to reach done (no interception), got tokens=%d", m.Done().Tokens())
	}
}

// creditReady simulates the bridging transition the composer would wire:
// a transition with no ingoing arcs that fires once and credits ready.
func creditReady(m *Manager) {
	net := m.net
	tr, err := net.AddTransition(pnet.TransitionDef{
		ID:       pnet.TransitionID(m.ID() + ":test_bridge_ready"),
		Outgoing: []pnet.Arc{{Place: m.Ready().ID(), Weight: 1}},
	})
	if err != nil {
		panic(err)
	}
	tr.DeepFire()
}

func TestFailFromRunning(t *testing.T) {
	_, m, hooks := newTestManager(t, "t2")
	creditReady(m)
	m.Started()

	if !m.Failed() {
		t.Fatalf("expected Failed() to succeed from running")
	}
	if hooks.failed != 1 {
		t.Fatalf("expected TaskFailed called once, got %d", hooks.failed)
	}
	if m.FailedPlace().Tokens() != 1 {
		t.Fatalf("expected failed place credited")
	}
	if m.Done().Tokens() != 1 {
		t.Fatalf("expected done reached after failure (no interception)")
	}
}

func TestCancelBeforeEntered(t *testing.T) {
	_, m, _ := newTestManager(t, "t3")
	if !m.Cancel() {
		t.Fatalf("expected cancel to succeed before entered")
	}
	creditReady(m)
	if m.FailedPlace().Tokens() != 1 {
		t.Fatalf("expected skip path to land in failed place")
	}
}

func TestCancelAfterEnteredFails(t *testing.T) {
	_, m, _ := newTestManager(t, "t4")
	creditReady(m)
	if m.Cancel() {
		t.Fatalf("expected cancel to fail once the task has entered")
	}
}

func TestPauseResumeCycle(t *testing.T) {
	_, m, hooks := newTestManager(t, "t5")
	creditReady(m)
	m.Started()

	if !m.Paused() {
		t.Fatalf("expected pause to succeed")
	}
	if hooks.paused != 1 {
		t.Fatalf("expected TaskPaused called once, got %d", hooks.paused)
	}
	if !m.Resumed() {
		t.Fatalf("expected resume to succeed")
	}
	if hooks.running != 2 {
		t.Fatalf("expected TaskRunning called twice (start + resume), got %d", hooks.running)
	}
}

func TestInterceptSequentialHoldsDoneUntilSync(t *testing.T) {
	_, m, _ := newTestManager(t, "t6")
	creditReady(m)
	m.Started()
	m.Intercept()
	m.InterceptSequential()
	m.MarkFinished()

	if m.Done().Tokens() != 0 {
		t.Fatalf("expected done to be withheld pending interception, got tokens=%d", m.Done().Tokens())
	}
	if m.InterceptingBegin().Tokens() != 1 {
		t.Fatalf("expected intercepting_begin credited once pre_done reached")
	}

	// composer bridges the interceptor's completion back to intercepting_end
	net := m.net
	tr, _ := net.AddTransition(pnet.TransitionDef{
		ID:       pnet.TransitionID(m.ID() + ":test_bridge_end"),
		Outgoing: []pnet.Arc{{Place: m.InterceptingEnd().ID(), Weight: 1}},
	})
	tr.DeepFire()

	if m.Done().Tokens() != 1 {
		t.Fatalf("expected done reached once intercepting_end credited")
	}
}

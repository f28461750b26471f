package netmgr

import (
	"testing"

	"github.com/fleetline/agvctl/emit"
	"github.com/fleetline/agvctl/exec"
	"github.com/fleetline/agvctl/handler"
	"github.com/fleetline/agvctl/state"
	"github.com/fleetline/agvctl/wire"
)

// recordingContinuousNavHandler never auto-acknowledges; it just records
// every call so a test can assert the handler instance and call sequence
// directly (§4.4, spec S4).
type recordingContinuousNavHandler struct {
	starts        int
	startNodes    []wire.Node
	startEdges    []wire.Edge
	baseIncreases int
	deltaNodes    []wire.Node
	deltaEdges    []wire.Edge
}

func (h *recordingContinuousNavHandler) Start(ack handler.ContinuousNavAck, baseNodes []wire.Node, baseEdges []wire.Edge) {
	h.starts++
	h.startNodes = baseNodes
	h.startEdges = baseEdges
}
func (h *recordingContinuousNavHandler) HorizonUpdated([]wire.Node, []wire.Edge) {}
func (h *recordingContinuousNavHandler) BaseIncreased(deltaNodes []wire.Node, deltaEdges []wire.Edge) {
	h.baseIncreases++
	h.deltaNodes = deltaNodes
	h.deltaEdges = deltaEdges
}
func (h *recordingContinuousNavHandler) Pause(handler.ContinuousNavAck)  {}
func (h *recordingContinuousNavHandler) Resume(handler.ContinuousNavAck) {}
func (h *recordingContinuousNavHandler) Stop(handler.ContinuousNavAck)   {}

func TestInstallOrderAppendReusesContinuousNavHandler(t *testing.T) {
	store := state.New()
	e := exec.New(32, 2, nil, nil, nil)
	debouncer := exec.NewDebouncer(0, nil, func(exec.Urgency) {})
	rec := &recordingContinuousNavHandler{}
	m, err := New(store, e, emit.NewBufferedEmitter(), debouncer, Config{
		NavMode:              NavContinuous,
		ContinuousNavFactory: func() handler.ContinuousNavigation { return rec },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.executor = nil

	first := wire.Order{
		OrderID: "order-4", OrderUpdateID: 0,
		Nodes: []wire.Node{
			{NodeID: "n1", SequenceID: 0, Released: true},
			{NodeID: "n2", SequenceID: 2, Released: true},
		},
		Edges: []wire.Edge{
			{EdgeID: "e1", SequenceID: 1, StartNodeID: "n1", EndNodeID: "n2", Released: true},
		},
	}
	if err := m.InstallOrder(first); err != nil {
		t.Fatalf("InstallOrder: %v", err)
	}
	if rec.starts != 1 {
		t.Fatalf("expected exactly one Start call, got %d", rec.starts)
	}
	if len(rec.startNodes) != 1 || rec.startNodes[0].NodeID != "n2" {
		t.Fatalf("expected base = {n2}, got %v", rec.startNodes)
	}
	if len(rec.startEdges) != 1 || rec.startEdges[0].EdgeID != "e1" {
		t.Fatalf("expected edges = {e1}, got %v", rec.startEdges)
	}

	update := wire.Order{
		OrderID: "order-4", OrderUpdateID: 1,
		Nodes: []wire.Node{
			{NodeID: "n2", SequenceID: 2, Released: true},
			{NodeID: "n3", SequenceID: 4, Released: true},
			{NodeID: "n4", SequenceID: 6, Released: true},
		},
		Edges: []wire.Edge{
			{EdgeID: "e1", SequenceID: 1, StartNodeID: "n1", EndNodeID: "n2", Released: true},
			{EdgeID: "e2", SequenceID: 3, StartNodeID: "n2", EndNodeID: "n3", Released: true},
			{EdgeID: "e3", SequenceID: 5, StartNodeID: "n3", EndNodeID: "n4", Released: true},
		},
	}
	if err := m.InstallOrder(update); err != nil {
		t.Fatalf("InstallOrder update: %v", err)
	}

	// No second handler instance, no second Start call.
	if rec.starts != 1 {
		t.Fatalf("expected Start still called exactly once after append, got %d", rec.starts)
	}
	if rec.baseIncreases != 1 {
		t.Fatalf("expected exactly one BaseIncreased call, got %d", rec.baseIncreases)
	}
	if len(rec.deltaNodes) != 2 || rec.deltaNodes[0].NodeID != "n3" || rec.deltaNodes[1].NodeID != "n4" {
		t.Fatalf("expected delta nodes = {n3, n4}, got %v", rec.deltaNodes)
	}
	if len(rec.deltaEdges) != 2 || rec.deltaEdges[0].EdgeID != "e2" || rec.deltaEdges[1].EdgeID != "e3" {
		t.Fatalf("expected delta edges = {e2, e3}, got %v", rec.deltaEdges)
	}
}

// holdingActionHandler acknowledges started() on Start and failed() on
// Stop, but never acknowledges finished() on its own — it stays RUNNING
// until a test drives it to completion directly, so interception tests
// can observe the intermediate RUNNING state a default auto-acknowledging
// handler would skip past instantly.
type holdingActionHandler struct{ m *Manager }

func (h *holdingActionHandler) Start(ack handler.Ack, action wire.Action) {
	h.m.enqueue(func() { ack.Started() })
}
func (h *holdingActionHandler) Pause(ack handler.Ack)  { h.m.enqueue(func() { ack.Paused() }) }
func (h *holdingActionHandler) Resume(ack handler.Ack) { h.m.enqueue(func() { ack.Resumed() }) }
func (h *holdingActionHandler) Stop(ack handler.Ack)   { h.m.enqueue(func() { ack.Failed() }) }

// TestHardInstantActionInterceptsRunningActions is spec scenario S3: a HARD
// instant action arrives while a SOFT action (a1) and a NONE action (a2)
// are running on the current node. Both must fail, the instant action must
// run to completion, and only then does the next sequenced order task
// (a3, HARD) reach RUNNING — the testable property of §8.6.
func TestHardInstantActionInterceptsRunningActions(t *testing.T) {
	store := state.New()
	e := exec.New(32, 2, nil, nil, nil)
	debouncer := exec.NewDebouncer(0, nil, func(exec.Urgency) {})

	var m *Manager
	cfg := Config{
		ActionFactory: func(a wire.Action) handler.Action {
			switch a.ActionID {
			case "a1", "a2", "i3":
				return &holdingActionHandler{m: m}
			default:
				return noopActionHandler{m: m}
			}
		},
	}
	var err error
	m, err = New(store, e, emit.NewBufferedEmitter(), debouncer, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.executor = nil

	order := wire.Order{
		OrderID: "order-3", OrderUpdateID: 0,
		Nodes: []wire.Node{
			{NodeID: "n1", SequenceID: 0, Released: true, Actions: []wire.Action{
				{ActionID: "a1", ActionType: "wait", BlockingType: wire.BlockingSoft},
				{ActionID: "a2", ActionType: "wait", BlockingType: wire.BlockingNone},
				{ActionID: "a3", ActionType: "pick", BlockingType: wire.BlockingHard},
			}},
			{NodeID: "n2", SequenceID: 2, Released: true},
		},
		Edges: []wire.Edge{
			{EdgeID: "e1", SequenceID: 1, StartNodeID: "n1", EndNodeID: "n2", Released: true},
		},
	}
	if err := m.InstallOrder(order); err != nil {
		t.Fatalf("InstallOrder: %v", err)
	}

	if status, _ := store.ActionStatus("a1"); status != wire.ActionRunning {
		t.Fatalf("expected a1 RUNNING before interception, got %v", status)
	}
	if status, _ := store.ActionStatus("a2"); status != wire.ActionRunning {
		t.Fatalf("expected a2 RUNNING before interception, got %v", status)
	}
	if status, ok := store.ActionStatus("a3"); ok && status != wire.ActionWaiting {
		t.Fatalf("expected a3 still WAITING before interception, got %v", status)
	}

	ia := wire.InstantActions{InstantActions: []wire.Action{
		{ActionID: "i3", ActionType: "interrupt", BlockingType: wire.BlockingHard},
	}}
	if err := m.HandleInstantActions(ia); err != nil {
		t.Fatalf("HandleInstantActions: %v", err)
	}

	if status, _ := store.ActionStatus("a1"); status != wire.ActionFailed {
		t.Fatalf("expected a1 FAILED after HARD interception, got %v", status)
	}
	if status, _ := store.ActionStatus("a2"); status != wire.ActionFailed {
		t.Fatalf("expected a2 FAILED after HARD interception, got %v", status)
	}
	if status, _ := store.ActionStatus("i3"); status != wire.ActionRunning {
		t.Fatalf("expected i3 RUNNING after interception, got %v", status)
	}

	if m.actions["a1"].Done().Tokens() != 0 {
		t.Fatalf("expected a1 to still be withheld from done pending i3's completion")
	}

	if !m.actions["i3"].MarkFinished() {
		t.Fatalf("expected i3 to finish")
	}

	if status, _ := store.ActionStatus("a3"); status != wire.ActionFinished {
		t.Fatalf("expected a3 to have run to completion once i3 finished, got %v", status)
	}
	// a1 is a synchronized member of step 1: intercept_complete credits its
	// done place, and sync:1 consumes that token, which is what let a3 launch.
	if m.actions["a1"].InterceptSync().Tokens() != 0 || m.actions["a1"].Done().Tokens() != 0 {
		t.Fatalf("expected a1 to reach done once i3's completion synced back, and step 1's sync to consume it")
	}
	if m.actions["a2"].Done().Tokens() != 1 {
		t.Fatalf("expected a2 to reach done once i3's completion synced back")
	}
}

func newTestManager(t *testing.T) (*Manager, *state.Store) {
	t.Helper()
	store := state.New()
	e := exec.New(32, 2, nil, nil, nil)
	debouncer := exec.NewDebouncer(0, nil, func(exec.Urgency) {})
	m, err := New(store, e, emit.NewBufferedEmitter(), debouncer, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// The default handlers enqueue onto the executor; drive it inline since
	// no Run loop is active in this test.
	m.executor = nil
	return m, store
}

func twoNodeOrder() wire.Order {
	return wire.Order{
		OrderID:       "order-1",
		OrderUpdateID: 0,
		Nodes: []wire.Node{
			{NodeID: "n1", SequenceID: 0, Released: true},
			{
				NodeID: "n2", SequenceID: 2, Released: true,
				Actions: []wire.Action{
					{ActionID: "a1", ActionType: "pick", BlockingType: wire.BlockingHard},
				},
			},
		},
		Edges: []wire.Edge{
			{EdgeID: "e1", SequenceID: 1, StartNodeID: "n1", EndNodeID: "n2", Released: true},
		},
	}
}

func TestInstallOrderDrivesTailToCompletion(t *testing.T) {
	m, store := newTestManager(t)
	if err := m.InstallOrder(twoNodeOrder()); err != nil {
		t.Fatalf("InstallOrder: %v", err)
	}
	if m.tail.Tokens() != 1 {
		t.Fatalf("expected final tail to hold 1 token with default handlers, got %d", m.tail.Tokens())
	}
	status, ok := store.ActionStatus("a1")
	if !ok || status != wire.ActionFinished {
		t.Fatalf("expected action a1 finished, got %v ok=%v", status, ok)
	}
}

func TestCancelOrderFailsActiveActions(t *testing.T) {
	m, store := newTestManager(t)
	store.InstallOrder("order-2", 0, "", []wire.Node{{NodeID: "n1", SequenceID: 0}}, nil)
	m.cfg.ActionFactory = func(wire.Action) handler.Action { return &holdingActionHandler{m: m} }

	ref, err := m.buildActionTask(wire.Action{ActionID: "a2", ActionType: "wait", BlockingType: wire.BlockingNone}, 0)
	if err != nil {
		t.Fatalf("buildActionTask: %v", err)
	}
	m.launchDangling(m.actions["a2"].Manager)
	m.net.DeepTickCover()
	_ = ref

	m.CancelOrder()

	status, ok := store.ActionStatus("a2")
	if !ok {
		t.Fatalf("expected a2 status to exist")
	}
	if status != wire.ActionFailed {
		t.Fatalf("expected a2 to have been failed, got %v", status)
	}
}

func TestHandleInstantActionsStateRequestTriggersPublish(t *testing.T) {
	m, _ := newTestManager(t)
	published := false
	m.debouncer = exec.NewDebouncer(0, nil, func(exec.Urgency) { published = true })

	ia := wire.InstantActions{InstantActions: []wire.Action{{ActionID: "sr1", ActionType: actionStateRequest}}}
	if err := m.HandleInstantActions(ia); err != nil {
		t.Fatalf("HandleInstantActions: %v", err)
	}
	if !published {
		t.Fatalf("expected stateRequest to trigger an immediate publish")
	}
}

func TestHandleInstantActionsInitPositionRequiresOdometry(t *testing.T) {
	m, _ := newTestManager(t)
	ia := wire.InstantActions{InstantActions: []wire.Action{{
		ActionID:   "ip1",
		ActionType: actionInitPosition,
		ActionParameters: map[string]interface{}{
			"x": 1.0, "y": 2.0, "theta": 0.0, "mapId": "map1", "lastNodeId": "n1",
		},
	}}}
	if err := m.HandleInstantActions(ia); err == nil {
		t.Fatalf("expected an error when no odometry handler is configured")
	}
}

// Package state holds the canonical vehicle state store: the single
// source of truth for everything a state-update publish reads, and the
// only component allowed to mutate the action/node/edge maps and scalar
// fields that back it (§3 of the design).
//
// A single sync.RWMutex guards the whole structure. Readers (the
// state-update debouncer, the factsheet builder, tests) take a shared
// lock; writers (task managers, the net manager, validators appending
// errors) take an exclusive lock. The store never blocks on anything but
// its own lock — no I/O, no handler calls — so the lock is always held
// briefly.
package state

import (
	"sync"

	"github.com/fleetline/agvctl/wire"
)

// Store is the canonical vehicle state. Zero value is not usable; use New.
type Store struct {
	mu sync.RWMutex

	orderID       string
	orderUpdateID uint32
	zoneSetID     string

	lastNodeID         string
	lastNodeSequenceID uint32
	driving            bool
	paused             bool
	newBaseRequested   bool

	distanceSinceLastNode float64
	distanceMapID         string

	operatingMode wire.OperatingMode
	position      *wire.AGVPosition
	velocity      *wire.Velocity
	battery       wire.BatteryState
	safety        wire.SafetyState
	loads         []wire.Load

	actions      map[string]wire.Action
	actionStates map[string]wire.ActionState
	nodes        map[uint32]wire.Node
	nodeStates   map[uint32]wire.NodeState
	edges        map[uint32]wire.Edge
	edgeStates   map[uint32]wire.EdgeState

	errors        []wire.Error
	informations  []wire.Info

	headerSeq map[string]uint32
}

// New returns an empty Store in its idle default state.
func New() *Store {
	return &Store{
		operatingMode: wire.OperatingAutomatic,
		actions:       make(map[string]wire.Action),
		actionStates:  make(map[string]wire.ActionState),
		nodes:         make(map[uint32]wire.Node),
		nodeStates:    make(map[uint32]wire.NodeState),
		edges:         make(map[uint32]wire.Edge),
		edgeStates:    make(map[uint32]wire.EdgeState),
		headerSeq:     make(map[string]uint32),
	}
}

// NextHeaderSeq returns the next per-topic monotonic header sequence
// number, incrementing it. Each outbound topic (state, connection,
// visualization) keeps an independent counter, per spec.md §6.
func (s *Store) NextHeaderSeq(topic string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headerSeq[topic]++
	return s.headerSeq[topic]
}

// IsIdle reports whether no order is currently installed — the condition
// §4.7 rule 3 checks before accepting a fresh (non-stitching) order.
func (s *Store) IsIdle() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderID == ""
}

// OrderIdentity returns the currently installed order id and update id.
func (s *Store) OrderIdentity() (orderID string, updateID uint32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orderID, s.orderUpdateID
}

// BaseSequenceID returns the sequence id the stitching rule compares an
// incoming order update against: the greatest of the last-reached node's
// sequence id and every node/edge sequence id still installed.
func (s *Store) BaseSequenceID() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := s.lastNodeSequenceID
	for seq := range s.nodeStates {
		if seq > max {
			max = seq
		}
	}
	for seq := range s.edgeStates {
		if seq > max {
			max = seq
		}
	}
	return max
}

// LastNodeID returns the vehicle's last-reached node id, for reachability
// checks (§4.7 rule 5).
func (s *Store) LastNodeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastNodeID
}

// InstallOrder replaces the installed order identity and merges the given
// nodes/edges into the canonical maps. Called by the net manager after
// translation succeeds; validation must already have happened (§4.7: "the
// only state mutation performed by validation is the post-failure error
// append").
func (s *Store) InstallOrder(orderID string, updateID uint32, zoneSetID string, nodes []wire.Node, edges []wire.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orderID = orderID
	s.orderUpdateID = updateID
	if zoneSetID != "" {
		s.zoneSetID = zoneSetID
	}

	for _, n := range nodes {
		s.nodes[n.SequenceID] = n
		s.nodeStates[n.SequenceID] = wire.NodeState{
			NodeID:       n.NodeID,
			SequenceID:   n.SequenceID,
			Released:     n.Released,
			NodePosition: n.NodePosition,
		}
		for _, a := range n.Actions {
			s.installAction(a)
		}
	}
	for _, e := range edges {
		s.edges[e.SequenceID] = e
		s.edgeStates[e.SequenceID] = wire.EdgeState{
			EdgeID:      e.EdgeID,
			SequenceID:  e.SequenceID,
			Released:    e.Released,
			StartNodeID: e.StartNodeID,
			EndNodeID:   e.EndNodeID,
		}
		for _, a := range e.Actions {
			s.installAction(a)
		}
	}
}

// installAction must be called with mu held for write.
func (s *Store) installAction(a wire.Action) {
	s.actions[a.ActionID] = a
	if _, exists := s.actionStates[a.ActionID]; !exists {
		s.actionStates[a.ActionID] = wire.ActionState{
			ActionID:     a.ActionID,
			ActionType:   a.ActionType,
			ActionStatus: wire.ActionWaiting,
		}
	}
}

// InstallInstantAction installs a single instant action (always WAITING on
// arrival), used by the net manager before dispatching interception.
func (s *Store) InstallInstantAction(a wire.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installAction(a)
}

// SetActionStatus updates one action's status and optional result
// description. Called exclusively by the owning task manager's hooks
// (§4.2: "mutated exclusively by the owning task manager").
func (s *Store) SetActionStatus(actionID string, status wire.ActionStatus, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	as, ok := s.actionStates[actionID]
	if !ok {
		as = wire.ActionState{ActionID: actionID}
	}
	as.ActionStatus = status
	if result != "" {
		as.ResultDescription = result
	}
	s.actionStates[actionID] = as
}

// ActionStatus returns the current status of an action.
func (s *Store) ActionStatus(actionID string) (wire.ActionStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	as, ok := s.actionStates[actionID]
	return as.ActionStatus, ok
}

// Action returns the installed definition of an action.
func (s *Store) Action(actionID string) (wire.Action, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[actionID]
	return a, ok
}

// AdvanceToNode implements the §4.4 progress invariant: once sequence id s
// is reported reached, every node/edge state with sequence id <= s is
// removed from the canonical maps, lastNodeSequenceId becomes s, and the
// distance accumulator is reset to zero.
func (s *Store) AdvanceToNode(nodeID string, seq uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastNodeID = nodeID
	s.lastNodeSequenceID = seq
	s.distanceSinceLastNode = 0

	for sid := range s.nodeStates {
		if sid <= seq {
			delete(s.nodeStates, sid)
			delete(s.nodes, sid)
		}
	}
	for sid := range s.edgeStates {
		if sid <= seq {
			delete(s.edgeStates, sid)
			delete(s.edges, sid)
		}
	}
}

// SetDriving sets the driving flag (the vehicle is actively moving along
// an edge).
func (s *Store) SetDriving(driving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driving = driving
}

// SetPaused sets the paused flag.
func (s *Store) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

// SetNewBaseRequested sets the flag signaling the vehicle wants a fresh
// base (e.g. it has run out of released nodes while still driving).
func (s *Store) SetNewBaseRequested(requested bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newBaseRequested = requested
}

// AccumulateDistance adds delta meters to distanceSinceLastNode, first
// resetting the accumulator to zero if mapID differs from the map the
// accumulator was last updated under — the Open Question decision that
// distance accumulation is only valid within a single mapId (spec.md §9).
func (s *Store) AccumulateDistance(mapID string, delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mapID != s.distanceMapID {
		s.distanceSinceLastNode = 0
		s.distanceMapID = mapID
	}
	s.distanceSinceLastNode += delta
}

// ResetDistance zeroes the distance accumulator; AdvanceToNode performs
// the same reset when a node is reached.
func (s *Store) ResetDistance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distanceSinceLastNode = 0
}

// SetPosition records the vehicle's current pose, as reported by a
// navigation or odometry handler.
func (s *Store) SetPosition(pos wire.AGVPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = &pos
}

// SetVelocity records the vehicle's current velocity.
func (s *Store) SetVelocity(v wire.Velocity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.velocity = &v
}

// SetOperatingMode sets the vehicle's control mode.
func (s *Store) SetOperatingMode(m wire.OperatingMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operatingMode = m
}

// SetBatteryState records the battery subsystem's latest report.
func (s *Store) SetBatteryState(b wire.BatteryState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.battery = b
}

// SetSafetyState records the safety subsystem's latest report.
func (s *Store) SetSafetyState(sf wire.SafetyState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.safety = sf
}

// SetLoads records the vehicle's current payload list.
func (s *Store) SetLoads(loads []wire.Load) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads = loads
}

// AddError appends an error entry to canonical state — the only mutation a
// validator is allowed to perform (§4.7, §7).
func (s *Store) AddError(e wire.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, e)
}

// AddInfo appends an informational entry to canonical state.
func (s *Store) AddInfo(i wire.Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.informations = append(s.informations, i)
}

// ClearErrors drops every error entry, called when a new order is
// successfully installed (the prior rejection no longer applies).
func (s *Store) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = nil
}

// Snapshot returns an immutable wire.State built from the current
// canonical state, for publishing. The header is left zero-valued; the
// caller (the debouncer's publish callback, vehicle.publishState) stamps
// headerId/timestamp/version/identity.
func (s *Store) Snapshot() wire.State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := wire.State{
		OrderID:               s.orderID,
		OrderUpdateID:         s.orderUpdateID,
		ZoneSetID:             s.zoneSetID,
		LastNodeID:            s.lastNodeID,
		LastNodeSequenceID:    s.lastNodeSequenceID,
		Driving:               s.driving,
		Paused:                s.paused,
		NewBaseRequested:      s.newBaseRequested,
		DistanceSinceLastNode: s.distanceSinceLastNode,
		OperatingMode:         s.operatingMode,
		BatteryState:          s.battery,
		SafetyState:           s.safety,
		AGVPosition:           s.position,
		Velocity:              s.velocity,
	}

	if len(s.loads) > 0 {
		out.Loads = append([]wire.Load(nil), s.loads...)
	}
	for _, ns := range s.nodeStates {
		out.NodeStates = append(out.NodeStates, ns)
	}
	for _, es := range s.edgeStates {
		out.EdgeStates = append(out.EdgeStates, es)
	}
	for _, as := range s.actionStates {
		out.ActionStates = append(out.ActionStates, as)
	}
	if len(s.errors) > 0 {
		out.Errors = append([]wire.Error(nil), s.errors...)
	}
	if len(s.informations) > 0 {
		out.Informations = append([]wire.Info(nil), s.informations...)
	}
	return out
}

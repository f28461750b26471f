package netmgr

import (
	"fmt"

	"github.com/fleetline/agvctl/exec"
	"github.com/fleetline/agvctl/handler"
	"github.com/fleetline/agvctl/pnet"
	"github.com/fleetline/agvctl/task"
	"github.com/fleetline/agvctl/wire"
)

// Well-known instant action types special-cased by §4.5, dispatched before
// the generic interception path below ever runs.
const (
	actionCancelOrder      = "cancelOrder"
	actionStateRequest     = "stateRequest"
	actionStartPause       = "startPause"
	actionStopPause        = "stopPause"
	actionInitPosition     = "initPosition"
	actionFactsheetRequest = "factsheetRequest"
)

// trackCeiling registers observers that keep m's "running ceiling" — the
// most-blocking blocking type among active tasks — up to date, per §4.5's
// use of the ceiling to decide whether an incoming instant action must
// wait, intercept, or run alongside. A task counts once, from its first
// entry to running until it exits, so a paused task still counts.
func (m *Manager) trackCeiling(bt wire.BlockingType, mgr *task.Manager) {
	rank := bt.Rank()
	counted := false
	mgr.Running().OnChange(func(p *pnet.Place, prior uint64) {
		if prior == 0 && p.Tokens() == 1 && !counted {
			counted = true
			m.runningCounts[rank]++
		}
	})
	mgr.Exited().OnChange(func(p *pnet.Place, prior uint64) {
		if prior == 0 && p.Tokens() == 1 && counted {
			counted = false
			m.runningCounts[rank]--
		}
	})
}

// runningCeiling returns the most-blocking type among active tasks, or
// BlockingNone if nothing is running.
func (m *Manager) runningCeiling() wire.BlockingType {
	if m.runningCounts[2] > 0 {
		return wire.BlockingHard
	}
	if m.runningCounts[1] > 0 {
		return wire.BlockingSoft
	}
	return wire.BlockingNone
}

// HandleInstantActions dispatches each instant action either to its
// special-cased handling (§4.5's named actions) or to generic interception.
func (m *Manager) HandleInstantActions(ia wire.InstantActions) error {
	for _, a := range ia.InstantActions {
		switch a.ActionType {
		case actionCancelOrder:
			m.CancelOrder()
		case actionStateRequest:
			m.requestUpdate(exec.Immediate)
		case actionStartPause:
			m.dispatchPauseResume(a, task.ModePause)
		case actionStopPause:
			m.dispatchPauseResume(a, task.ModeResume)
		case actionInitPosition:
			if err := m.dispatchInitPosition(a); err != nil {
				return err
			}
		case actionFactsheetRequest:
			// Answered by the host application directly from canonical
			// state (a factsheet has no lifecycle of its own); nothing to
			// splice into the net.
		default:
			if err := m.interceptGeneric(a); err != nil {
				return err
			}
		}
	}
	m.net.DeepTickCover()
	return nil
}

// CancelOrder cancels every not-yet-entered task and fails every active
// one, the blunt instrument behind the cancelOrder instant action (§4.5).
func (m *Manager) CancelOrder() {
	for _, t := range m.tasks {
		if !t.Cancel() {
			t.Failed()
		}
	}
	if m.contRun != nil {
		m.contRun.Finalize()
	}
	m.requestUpdate(exec.Immediate)
}

// abortOrder cancels every not-yet-entered task and fails every active one
// across the whole order, exactly like CancelOrder, but driven internally
// by a task's own failure rather than an incoming cancelOrder instant
// action (§4.4's "on task_failed it aborts the order", §7's handler-driven
// failures). Like CancelOrder it ranges over m.tasks, so drive steps and
// pause/resume tasks are taken down too, not just actions.
func (m *Manager) abortOrder() {
	for _, t := range m.tasks {
		if !t.Cancel() {
			t.Failed()
		}
	}
	if m.contRun != nil {
		m.contRun.Finalize()
	}
	m.requestUpdate(exec.Immediate)
}

func (m *Manager) dispatchPauseResume(a wire.Action, mode task.PauseMode) {
	var h handler.PauseResume
	if m.cfg.PauseResumeFactory != nil {
		h = m.cfg.PauseResumeFactory()
	} else {
		h = noopPauseResumeHandler{m: m}
	}
	notifyActions := func() {
		for _, am := range m.actions {
			if mode == task.ModePause {
				am.Paused()
			} else {
				am.Resumed()
			}
		}
	}
	// The navigation handler is neither paused nor resumed here; only the
	// order's actions are notified.
	notifyNav := func() {}
	id := taskID(m.orderID, a.ActionID)
	pm, err := task.NewPauseResumeManager(m.net, id, mode, h, m.store, m.emitter, m.orderID, notifyActions, notifyNav)
	if err != nil {
		return
	}
	m.tasks = append(m.tasks, pm.Manager)
	m.trackCeiling(wire.BlockingHard, pm.Manager)
	m.launchDangling(pm.Manager)
}

func (m *Manager) dispatchInitPosition(a wire.Action) error {
	if m.cfg.Odometry == nil {
		return fmt.Errorf("netmgr: initPosition instant action received but no odometry handler is configured")
	}
	x, _ := a.ActionParameters["x"].(float64)
	y, _ := a.ActionParameters["y"].(float64)
	theta, _ := a.ActionParameters["theta"].(float64)
	mapID, _ := a.ActionParameters["mapId"].(string)
	lastNodeID, _ := a.ActionParameters["lastNodeId"].(string)
	return m.cfg.Odometry.InitializePosition(x, y, theta, mapID, lastNodeID)
}

// interceptGeneric splices a new action in as an instant action per §4.5's
// HARD/SOFT/NONE interception rules against the current running ceiling.
// With no active task (ceiling NONE) the new action simply runs as a
// dangling top-level task, §4.5's "no currently running action" case. With
// an active ceiling, only tasks actually in flight (IsActive: initializing,
// running, or paused) are intercepted — a task still waiting its turn
// (ready not yet credited) or already done has nothing to intercept.
//
// Per active task, whether it is intercepted sequentially (and stopped) or
// in parallel (and left running) depends on the OR of "the new action is
// HARD" and "this active task is HARD": a HARD-new action sequences and
// stops every active task regardless of its own blocking type ("stop all
// currently running actions of every blocking type"); a SOFT/NONE-new
// action sequences and stops only the active HARD tasks, leaving active
// SOFT/NONE tasks running in parallel alongside it ("stop currently
// running HARD actions").
func (m *Manager) interceptGeneric(a wire.Action) error {
	ref, err := m.buildActionTask(a, -1)
	if err != nil {
		return err
	}
	am := m.actions[a.ActionID]

	ceiling := m.runningCeiling()
	if ceiling == wire.BlockingNone && m.runningCounts[wire.BlockingNone.Rank()] == 0 {
		m.launchDangling(am.Manager)
		return nil
	}

	var sequential, parallel []*task.ActionManager
	for id, active := range m.actions {
		if id == a.ActionID || !active.IsActive() {
			continue
		}
		active.Intercept()
		if a.BlockingType == wire.BlockingHard || active.BlockingType() == wire.BlockingHard {
			active.RequestStop()
			active.InterceptSequential()
			sequential = append(sequential, active)
		} else {
			active.InterceptParallel()
			parallel = append(parallel, active)
		}
	}
	if len(sequential) > 0 {
		m.bridgeInterceptLaunch(sequential, ref)
	} else {
		m.launchDangling(am.Manager)
	}
	intercepted := append(sequential, parallel...)
	if len(intercepted) > 0 {
		m.bridgeInterceptingEnd(intercepted, ref)
	}
	return nil
}

// launchDangling credits ready directly via a zero-ingoing bridging
// transition, §4.5's dangling subnet for an instant action with nothing to
// synchronize against.
func (m *Manager) launchDangling(mgr *task.Manager) {
	m.stepCounter++
	id := pnet.TransitionID(fmt.Sprintf("dangling:%d", m.stepCounter))
	tr, err := m.net.AddTransition(pnet.TransitionDef{
		ID:       id,
		Ingoing:  nil,
		Outgoing: []pnet.Arc{{Place: mgr.Ready().ID(), Weight: 1}},
	})
	if err != nil {
		return
	}
	tr.AutoFire()
}

// bridgeInterceptLaunch wires the new action's ready place to fire once
// every sequentially-intercepted task in sequential has reached
// intercepting_begin (§4.2's "intercepted_sequential -> intercepting_begin
// and intercept_sync" half of the fork: the new action only starts once
// every task it must run after has stopped and reached that point).
// Callers only pass tasks that were actually marked InterceptSequential,
// never the full action set, so the new action isn't stalled waiting on
// tasks that haven't started yet or are being intercepted in parallel.
func (m *Manager) bridgeInterceptLaunch(sequential []*task.ActionManager, ref taskRef) {
	m.stepCounter++
	var beginIn []pnet.Arc
	for _, active := range sequential {
		beginIn = append(beginIn, pnet.Arc{Place: active.InterceptingBegin().ID(), Weight: 1})
	}
	launchID := pnet.TransitionID(fmt.Sprintf("intercept_launch:%d", m.stepCounter))
	launch, err := m.net.AddTransition(pnet.TransitionDef{
		ID:       launchID,
		Ingoing:  beginIn,
		Outgoing: []pnet.Arc{{Place: ref.ready.ID(), Weight: 1}},
	})
	if err == nil {
		launch.AutoFire()
	}
}

// bridgeInterceptingEnd wires the new interceptor's own completion back
// onto every intercepted task's intercepting_end place — sequential and
// parallel alike — matching the original's own doc comment that "the
// original done place of this task is reached, once the intercepting is
// finished or failed" (§4.2's `intercepting_end + intercept_sync -> done`).
// It is the one place an intercepted task picks up the credit that, paired
// with its own internally-credited intercept_sync, lets it finally reach
// Done().
func (m *Manager) bridgeInterceptingEnd(intercepted []*task.ActionManager, ref taskRef) {
	m.stepCounter++
	var endOut []pnet.Arc
	for _, active := range intercepted {
		endOut = append(endOut, pnet.Arc{Place: active.InterceptingEnd().ID(), Weight: 1})
	}
	syncID := pnet.TransitionID(fmt.Sprintf("intercept_sync:%d", m.stepCounter))
	sync, err := m.net.AddTransition(pnet.TransitionDef{
		ID:       syncID,
		Ingoing:  []pnet.Arc{{Place: ref.done.ID(), Weight: 1}},
		Outgoing: endOut,
	})
	if err == nil {
		sync.AutoFire()
	}
}

package task

import (
	"github.com/fleetline/agvctl/emit"
	"github.com/fleetline/agvctl/handler"
	"github.com/fleetline/agvctl/pnet"
	"github.com/fleetline/agvctl/state"
	"github.com/fleetline/agvctl/wire"
)

// PauseMode selects which half of the pause/resume handler contract a
// PauseResumeManager drives.
type PauseMode int

const (
	ModePause PauseMode = iota
	ModeResume
)

// Propagate is called once the pause/resume handler acknowledges, to push
// the same pause/resume onward. Supplied by the net manager, which is the
// only component that knows the full set of currently active tasks: its
// action callback pauses/resumes every action of the order, and its
// navigation callback does nothing, so the navigation handler is neither
// paused nor resumed.
type Propagate func()

// PauseResumeManager is the task manager variant for the startPause /
// stopPause instant actions.
type PauseResumeManager struct {
	*Manager
	handler        handler.PauseResume
	mode           PauseMode
	store          *state.Store
	emitter        emit.Emitter
	orderID        string
	notifyActions  Propagate
	notifyNav      Propagate
}

// NewPauseResumeManager builds a pause/resume task manager.
func NewPauseResumeManager(net *pnet.Net, id string, mode PauseMode, h handler.PauseResume, store *state.Store, emitter emit.Emitter, orderID string, notifyActions, notifyNav Propagate) (*PauseResumeManager, error) {
	pm := &PauseResumeManager{
		handler:       h,
		mode:          mode,
		store:         store,
		emitter:       emitter,
		orderID:       orderID,
		notifyActions: notifyActions,
		notifyNav:     notifyNav,
	}
	m, err := NewManager(net, "pauseresume:"+id, pm)
	if err != nil {
		return nil, err
	}
	pm.Manager = m
	return pm, nil
}

func (pm *PauseResumeManager) TaskInitialize() {
	pm.emitEvent("pause_resume_started")
	switch pm.mode {
	case ModePause:
		pm.store.SetPaused(true)
		pm.handler.DoPause(pm)
	case ModeResume:
		pm.store.SetPaused(false)
		pm.handler.DoResume(pm)
	}
}

func (pm *PauseResumeManager) TaskRunning() {}
func (pm *PauseResumeManager) TaskPaused()  {}

func (pm *PauseResumeManager) TaskFinished() {
	pm.emitEvent("pause_resume_finished")
	if pm.notifyActions != nil {
		pm.notifyActions()
	}
	if pm.notifyNav != nil {
		pm.notifyNav()
	}
}

func (pm *PauseResumeManager) TaskFailed() {
	pm.emitEvent("pause_resume_failed")
	if pm.mode == ModePause {
		pm.store.SetPaused(false)
	}
}

func (pm *PauseResumeManager) emitEvent(msg string) {
	if pm.emitter == nil {
		return
	}
	pm.emitter.Emit(emit.Event{OrderID: pm.orderID, Msg: msg})
}

func (pm *PauseResumeManager) Finished() bool { return pm.MarkFinished() }

func (pm *PauseResumeManager) SetResult(description string) {}
func (pm *PauseResumeManager) AddError(e wire.Error)         { pm.store.AddError(e) }
func (pm *PauseResumeManager) AddInfo(i wire.Info)           { pm.store.AddInfo(i) }

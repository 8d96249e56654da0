package bot

import "sync/atomic"

// AutomationState is the run state of the automation loop
type AutomationState int32

const (
	StateStopped AutomationState = iota // Initial, and after an external stop
	StateRunning
	StatePaused // Reached after a detection; left only by Restart
)

func (s AutomationState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// StateMachine holds the single process-wide automation state.
// Every transition is a compare-and-swap so check-then-spawn decisions are atomic.
type StateMachine struct {
	state atomic.Int32
}

// NewStateMachine creates a state machine in StateStopped
func NewStateMachine() *StateMachine {
	sm := &StateMachine{}
	sm.state.Store(int32(StateStopped))
	return sm
}

// State returns the current state
func (sm *StateMachine) State() AutomationState {
	return AutomationState(sm.state.Load())
}

// IsRunning returns true while an execution should keep iterating
func (sm *StateMachine) IsRunning() bool {
	return sm.State() == StateRunning
}

// Start transitions Stopped -> Running
// Returns true if the caller won the transition and must spawn an execution
func (sm *StateMachine) Start() bool {
	return sm.transition(StateStopped, StateRunning)
}

// Restart transitions Paused -> Running
// Returns true if the caller won the transition and must spawn an execution
func (sm *StateMachine) Restart() bool {
	return sm.transition(StatePaused, StateRunning)
}

// Pause transitions Running -> Paused
func (sm *StateMachine) Pause() bool {
	return sm.transition(StateRunning, StatePaused)
}

// Halt transitions Running -> Stopped; used when the loop gives up on its own
func (sm *StateMachine) Halt() bool {
	return sm.transition(StateRunning, StateStopped)
}

// Stop forces StateStopped from any state and returns the previous state
func (sm *StateMachine) Stop() AutomationState {
	return AutomationState(sm.state.Swap(int32(StateStopped)))
}

func (sm *StateMachine) transition(from, to AutomationState) bool {
	return sm.state.CompareAndSwap(int32(from), int32(to))
}

// Package agent provides the core domain model for the step-loop controller.
package agent

// State is the lifecycle state of a controller.
type State string

// Lifecycle states.
const (
	StateIdle     State = "idle"     // Ready to start a run
	StateRunning  State = "running"  // Step loop in progress
	StateFinished State = "finished" // Terminal success or forced finish
	StateError    State = "error"    // Terminal failure
)

// IsTerminal returns true if this is a terminal state (finished or error).
func (s State) IsTerminal() bool {
	return s == StateFinished || s == StateError
}

// CanStart returns true if a run may be started from this state.
func (s State) CanStart() bool {
	return s == StateIdle
}

// IsValid returns true if the state is a recognized lifecycle state.
func (s State) IsValid() bool {
	switch s {
	case StateIdle, StateRunning, StateFinished, StateError:
		return true
	default:
		return false
	}
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// AllStates returns all lifecycle states.
func AllStates() []State {
	return []State{
		StateIdle,
		StateRunning,
		StateFinished,
		StateError,
	}
}

// TerminalStates returns all terminal states.
func TerminalStates() []State {
	return []State{StateFinished, StateError}
}

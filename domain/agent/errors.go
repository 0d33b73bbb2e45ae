package agent

import (
	"errors"
	"fmt"
)

// Domain errors for the step-loop controller.
var (
	// ErrInvalidState indicates a run was started from a state other than idle.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidInput indicates a blank prompt or a malformed identifier.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition indicates an attempted lifecycle transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrModelCall indicates the model collaborator failed during think.
	ErrModelCall = errors.New("model call failed")

	// ErrToolExecution indicates a tool invocation failed.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrRuntimeLoop indicates an uncaught failure inside the step loop.
	ErrRuntimeLoop = errors.New("runtime loop failure")

	// ErrStreamTimeout indicates the output stream expired before the loop finished.
	ErrStreamTimeout = errors.New("stream timed out")
)

// LifecycleError reports an operation attempted from the wrong lifecycle state.
type LifecycleError struct {
	Op    string
	State State
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("cannot %s agent from state: %s", e.Op, e.State)
}

// Unwrap allows errors.Is(err, ErrInvalidState).
func (e *LifecycleError) Unwrap() error {
	return ErrInvalidState
}

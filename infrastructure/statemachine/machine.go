// Package statemachine provides the statekit chart behind the controller
// lifecycle.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/steploop/domain/agent"
)

// Context carries transition bookkeeping through the chart.
type Context struct {
	Agent       string
	Transitions int
	Last        TransitionPayload
}

// TransitionPayload describes a transition carried by an event.
type TransitionPayload struct {
	From agent.State
	To   agent.State
}

// Lifecycle events.
const (
	EventStart  = "START"
	EventFinish = "FINISH"
	EventReset  = "RESET"
	EventFail   = "FAIL"
)

const (
	stateIdle     = statekit.StateID(agent.StateIdle)
	stateRunning  = statekit.StateID(agent.StateRunning)
	stateFinished = statekit.StateID(agent.StateFinished)
	stateError    = statekit.StateID(agent.StateError)
)

// transitions mirrors the chart so events can be checked before they are
// sent to the interpreter.
var transitions = map[agent.State]map[statekit.EventType]agent.State{
	agent.StateIdle: {
		EventStart:  agent.StateRunning,
		EventFinish: agent.StateFinished,
	},
	agent.StateRunning: {
		EventFinish: agent.StateFinished,
		EventReset:  agent.StateIdle,
		EventFail:   agent.StateError,
	},
}

// Target returns the state an event leads to from the given state.
func Target(from agent.State, event statekit.EventType) (agent.State, bool) {
	to, ok := transitions[from][event]
	return to, ok
}

// NewLifecycleMachine creates the controller lifecycle statechart.
func NewLifecycleMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context]("lifecycle").
		WithInitial(stateIdle).
		WithContext(&Context{}).
		WithAction("recordTransition", recordTransition).
		State(stateIdle).
			On(EventStart).Target(stateRunning).Do("recordTransition").
			On(EventFinish).Target(stateFinished).Do("recordTransition").
			Done().
		State(stateRunning).
			On(EventFinish).Target(stateFinished).Do("recordTransition").
			On(EventReset).Target(stateIdle).Do("recordTransition").
			On(EventFail).Target(stateError).Do("recordTransition").
			Done().
		State(stateFinished).
			Final().
			Done().
		State(stateError).
			Final().
			Done().
		Build()
}

func recordTransition(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	c := *ctx
	c.Transitions++
	if payload, ok := event.Payload.(TransitionPayload); ok {
		c.Last = payload
	}
}

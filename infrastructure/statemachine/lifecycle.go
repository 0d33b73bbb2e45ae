package statemachine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/infrastructure/logging"
)

// Lifecycle owns one controller's state. Transitions are serialized; State is
// safe to read from any goroutine.
type Lifecycle struct {
	mu     sync.Mutex
	interp *statekit.Interpreter[*Context]
	ctx    *Context
	state  atomic.Value
}

// NewLifecycle creates a lifecycle in the Idle state.
func NewLifecycle(name string) (*Lifecycle, error) {
	machine, err := NewLifecycleMachine()
	if err != nil {
		return nil, fmt.Errorf("build lifecycle machine: %w", err)
	}

	ctx := &Context{Agent: name}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	interp.Start()

	l := &Lifecycle{interp: interp, ctx: ctx}
	l.state.Store(agent.State(interp.State().Value))
	return l, nil
}

// State returns the current state.
func (l *Lifecycle) State() agent.State {
	return l.state.Load().(agent.State)
}

// Transitions returns how many transitions have been applied.
func (l *Lifecycle) Transitions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ctx.Transitions
}

// Start moves Idle to Running.
func (l *Lifecycle) Start() error {
	if !l.fire(EventStart) {
		return &agent.LifecycleError{Op: "run", State: l.State()}
	}
	return nil
}

// Finish moves an Idle or Running lifecycle to Finished.
func (l *Lifecycle) Finish() bool {
	return l.fire(EventFinish)
}

// Reset moves Running back to Idle after the step budget is exhausted.
func (l *Lifecycle) Reset() bool {
	return l.fire(EventReset)
}

// Fail moves Running to Error.
func (l *Lifecycle) Fail() bool {
	return l.fire(EventFail)
}

// Matches reports whether the lifecycle is in the given state.
func (l *Lifecycle) Matches(s agent.State) bool {
	return l.State() == s
}

// fire applies event if the chart allows it from the current state and
// reports whether a transition happened.
func (l *Lifecycle) fire(event statekit.EventType) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := agent.State(l.interp.State().Value)
	to, ok := Target(from, event)
	if !ok {
		logging.Debug().
			Add(logging.Agent(l.ctx.Agent)).
			Add(logging.State(from)).
			Add(logging.Str("event", string(event))).
			Msg("transition ignored")
		return false
	}

	l.interp.Send(statekit.Event{
		Type:    event,
		Payload: TransitionPayload{From: from, To: to},
	})

	current := agent.State(l.interp.State().Value)
	l.state.Store(current)

	logging.Debug().
		Add(logging.Agent(l.ctx.Agent)).
		Add(logging.FromState(from)).
		Add(logging.ToState(current)).
		Msg("state transition")

	return current == to
}

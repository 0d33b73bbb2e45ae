package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/steploop/domain/agent"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// SessionID adds a session id field.
func SessionID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("session_id", id)
	}
}

// Agent adds the agent persona name.
func Agent(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("agent", name)
	}
}

// Step adds the current step number.
func Step(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("step", n)
	}
}

// MaxSteps adds the step budget.
func MaxSteps(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("max_steps", n)
	}
}

// State adds a state field.
func State(s agent.State) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("state", string(s))
	}
}

// FromState adds a from_state field for transitions.
func FromState(s agent.State) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("from_state", string(s))
	}
}

// ToState adds a to_state field for transitions.
func ToState(s agent.State) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("to_state", string(s))
	}
}

// ToolName adds a tool name field.
func ToolName(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("tool", name)
	}
}

// ToolCount adds the number of tool calls.
func ToolCount(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("tool_count", n)
	}
}

// Provider adds the model provider name.
func Provider(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("provider", name)
	}
}

// Model adds the model identifier.
func Model(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("model", name)
	}
}

// Outcome adds a step outcome kind.
func Outcome(kind agent.OutcomeKind) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("outcome", string(kind))
	}
}

// Mode adds a termination mode (hard or soft).
func Mode(hard bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		if hard {
			return e.Str("mode", "hard")
		}
		return e.Str("mode", "soft")
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}

// Int adds an int field with custom key.
func Int(key string, value int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, value)
	}
}

// Bool adds a bool field with custom key.
func Bool(key string, value bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool(key, value)
	}
}

package tool

import (
	"encoding/json"
	"time"
)

// Result contains the output of a tool execution.
type Result struct {
	// Output is the primary result data.
	Output json.RawMessage `json:"output"`

	// Duration is how long the execution took.
	Duration time.Duration `json:"duration"`

	// Error is a tool-level error (distinct from execution error).
	Error error `json:"-"`
}

// NewResult creates a successful result with the given output.
func NewResult(output json.RawMessage) Result {
	return Result{Output: output}
}

// NewTextResult creates a result whose output is a JSON string.
func NewTextResult(text string) Result {
	raw, _ := json.Marshal(text)
	return Result{Output: raw}
}

// NewErrorResult creates a result representing an error.
func NewErrorResult(err error) Result {
	return Result{Error: err}
}

// IsError returns true if the result represents an error.
func (r Result) IsError() bool {
	return r.Error != nil
}

// Text returns the output as display text. JSON strings are unquoted; any
// other payload is returned verbatim.
func (r Result) Text() string {
	var s string
	if err := json.Unmarshal(r.Output, &s); err == nil {
		return s
	}
	return string(r.Output)
}

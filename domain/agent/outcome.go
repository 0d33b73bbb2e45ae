package agent

// ThinkResult is the transient result of the think phase.
type ThinkResult struct {
	// ShouldAct is true when tool invocations are pending.
	ShouldAct bool

	// Rationale is the assistant text (or error text) of this think.
	Rationale string

	// Pending is the assistant message carrying the requested tool calls.
	Pending Message
}

// OutcomeKind tags a step outcome.
type OutcomeKind string

// Outcome kinds.
const (
	OutcomeContinue OutcomeKind = "continue" // Keep iterating
	OutcomeDone     OutcomeKind = "done"     // Task finished
	OutcomeFailed   OutcomeKind = "failed"   // Step failed, recovered locally
)

// StepOutcome is the tagged result of one step.
type StepOutcome struct {
	Kind OutcomeKind

	// Text is the user-visible step result.
	Text string

	// Err is set for failed outcomes.
	Err error
}

// Continue creates an outcome that keeps the loop going.
func Continue(text string) StepOutcome {
	return StepOutcome{Kind: OutcomeContinue, Text: text}
}

// Done creates an outcome that finishes the run.
func Done(text string) StepOutcome {
	return StepOutcome{Kind: OutcomeDone, Text: text}
}

// Failed creates an outcome for a step that failed but was contained.
func Failed(text string, err error) StepOutcome {
	return StepOutcome{Kind: OutcomeFailed, Text: text, Err: err}
}

// IsDone returns true if the outcome finishes the run.
func (o StepOutcome) IsDone() bool {
	return o.Kind == OutcomeDone
}

// IsFailed returns true if the step failed.
func (o StepOutcome) IsFailed() bool {
	return o.Kind == OutcomeFailed
}

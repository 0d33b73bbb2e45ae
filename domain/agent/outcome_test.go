package agent

import (
	"errors"
	"testing"
)

func TestStepOutcome(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")

	tests := []struct {
		name       string
		outcome    StepOutcome
		wantKind   OutcomeKind
		wantDone   bool
		wantFailed bool
	}{
		{"continue", Continue("working"), OutcomeContinue, false, false},
		{"done", Done("finished"), OutcomeDone, true, false},
		{"failed", Failed("error", cause), OutcomeFailed, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.outcome.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", tt.outcome.Kind, tt.wantKind)
			}
			if got := tt.outcome.IsDone(); got != tt.wantDone {
				t.Errorf("IsDone() = %v, want %v", got, tt.wantDone)
			}
			if got := tt.outcome.IsFailed(); got != tt.wantFailed {
				t.Errorf("IsFailed() = %v, want %v", got, tt.wantFailed)
			}
		})
	}

	if got := Failed("error", cause).Err; !errors.Is(got, cause) {
		t.Errorf("Failed().Err = %v, want %v", got, cause)
	}
}

package application

import (
	"strings"

	"github.com/felixgeelhaar/steploop/domain/agent"
)

// StuckPrompt is prepended to the next-step prompt when the loop repeats itself.
const StuckPrompt = "Observed duplicate responses. Consider new strategies and avoid repeating ineffective paths already attempted"

// DefaultDuplicateThreshold is the number of identical assistant replies
// that marks a loop as stuck.
const DefaultDuplicateThreshold = 2

// StuckDetector inspects the tail of a message log for repetition.
type StuckDetector struct {
	// Threshold is the number of earlier assistant messages that must equal
	// the last message. Values below 1 use DefaultDuplicateThreshold.
	Threshold int
}

// IsStuck reports whether the last message repeats at least Threshold
// earlier assistant messages verbatim.
func (d StuckDetector) IsStuck(messages []agent.Message) bool {
	if len(messages) < 2 {
		return false
	}
	last := messages[len(messages)-1]
	if last.IsBlank() {
		return false
	}

	threshold := d.Threshold
	if threshold < 1 {
		threshold = DefaultDuplicateThreshold
	}

	duplicates := 0
	for i := len(messages) - 2; i >= 0; i-- {
		m := messages[i]
		if m.Role == agent.RoleAssistant && m.Content == last.Content {
			duplicates++
		}
	}
	return duplicates >= threshold
}

// Recover returns the next-step prompt nudged away from repeated behavior.
func (d StuckDetector) Recover(nextStepPrompt string) string {
	var b strings.Builder
	b.WriteString(StuckPrompt)
	b.WriteString("\n")
	b.WriteString(nextStepPrompt)
	return b.String()
}

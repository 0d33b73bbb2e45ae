// Package tool provides the domain model for agent tools.
package tool

// Annotations describe tool behavior for retry and loop control.
type Annotations struct {
	// ReadOnly indicates the tool has no side effects.
	ReadOnly bool `json:"read_only"`

	// Idempotent indicates multiple calls with same input yield same result.
	Idempotent bool `json:"idempotent"`

	// Terminal indicates that executing the tool finishes the run.
	Terminal bool `json:"terminal"`

	// Timeout is the maximum execution time in seconds (0 = executor default).
	Timeout int `json:"timeout,omitempty"`

	// Tags are arbitrary labels for categorization.
	Tags []string `json:"tags,omitempty"`
}

// DefaultAnnotations returns annotations with safe defaults.
func DefaultAnnotations() Annotations {
	return Annotations{}
}

// ReadOnlyAnnotations returns annotations for a read-only tool.
func ReadOnlyAnnotations() Annotations {
	return Annotations{
		ReadOnly:   true,
		Idempotent: true,
	}
}

// CanRetry returns true if the tool can be safely retried on failure.
func (a Annotations) CanRetry() bool {
	return a.Idempotent || a.ReadOnly
}

// HasTag reports whether the tool carries the given tag.
func (a Annotations) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

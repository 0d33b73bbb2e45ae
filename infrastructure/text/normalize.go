// Package text holds the text shaping used by the step loop: output
// normalization, tool-output previews and the completion heuristic.
package text

import (
	"regexp"
	"strings"
)

var (
	spaceRun   = regexp.MustCompile(`[ \t\x{00A0}\x{2007}\x{202F}]+`)
	hanSpacing = regexp.MustCompile(`(\p{Han})\s+(\p{Han})`)
)

// Normalize trims each line and drops blank lines, then collapses horizontal
// whitespace and removes spacing between Han characters.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	var b strings.Builder
	lastBlank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !lastBlank && b.Len() > 0 {
				b.WriteByte('\n')
				lastBlank = true
			}
			continue
		}
		if b.Len() > 0 && !lastBlank {
			b.WriteByte('\n')
		}
		b.WriteString(trimmed)
		lastBlank = false
	}

	out := strings.TrimSpace(b.String())
	out = spaceRun.ReplaceAllString(out, " ")
	for {
		next := hanSpacing.ReplaceAllString(out, "$1$2")
		if next == out {
			return out
		}
		out = next
	}
}

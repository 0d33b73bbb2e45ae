package text

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Preview limits, in runes.
const (
	MaxHTMLLen     = 600
	MaxJSONLen     = 800
	MaxLongTextLen = 600
)

// TruncatedMarker is appended to shortened previews.
const TruncatedMarker = "...[truncated]"

// FormatToolOutput turns a raw tool result into a short preview. HTML is
// reduced to its text, JSON is pretty-printed and everything is truncated.
func FormatToolOutput(data string) string {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return ""
	}

	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "<!doctype") || strings.Contains(lower, "<html") || strings.Contains(lower, "<body") {
		if doc, err := ParseHTML(strings.NewReader(trimmed)); err == nil {
			return Truncate(doc.Text(), MaxHTMLLen)
		}
	}

	if looksLikeJSON(trimmed) {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(trimmed), "", "  "); err == nil {
			return Truncate(buf.String(), MaxJSONLen)
		}
	}

	return Truncate(trimmed, MaxLongTextLen)
}

func looksLikeJSON(s string) bool {
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}

// Truncate cuts s to at most limit runes and appends TruncatedMarker when
// anything was removed.
func Truncate(s string, limit int) string {
	return TruncateWith(s, limit, TruncatedMarker)
}

// TruncateWith is Truncate with a custom marker.
func TruncateWith(s string, limit int, marker string) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + marker
}

package session

import "strings"

// SentinelPrefix marks the first stream item that announces the session id.
const SentinelPrefix = "__CHAT_ID__:"

// Sentinel encodes id as a stream handshake item.
func Sentinel(id string) string {
	return SentinelPrefix + id
}

// ParseSentinel extracts the session id from a handshake item.
// It returns false for ordinary stream items.
func ParseSentinel(item string) (string, bool) {
	if !strings.HasPrefix(item, SentinelPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(item, SentinelPrefix)
	if !IsValid(id) {
		return "", false
	}
	return id, true
}

package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// sseWriter writes Server-Sent Events and flushes after every frame.
type sseWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &sseWriter{w: w, flusher: flusher}, nil
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteData sends item as one event. Each line of a multi-line item becomes
// its own data field.
func (s *sseWriter) WriteData(item string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	for _, line := range strings.Split(strings.ReplaceAll(item, "\r\n", "\n"), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return s.write(b.String())
}

// WriteEvent sends a named event with an optional payload.
func (s *sseWriter) WriteEvent(name, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(fmt.Sprintf("event: %s\ndata: %s\n\n", name, data))
}

// WriteKeepAlive sends a comment frame.
func (s *sseWriter) WriteKeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(": ping\n\n")
}

func (s *sseWriter) write(frame string) error {
	if _, err := s.w.Write([]byte(frame)); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}

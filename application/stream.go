package application

import (
	"context"
	"sync"
)

// DefaultStreamBuffer is the number of items a stream holds before the
// producer blocks.
const DefaultStreamBuffer = 64

// Stream is a one-writer, one-reader channel of step results. Close may be
// called from any goroutine, any number of times.
type Stream struct {
	ch   chan string
	done chan struct{}

	mu      sync.RWMutex
	closed  bool
	once    sync.Once
	onClose []func()
}

// NewStream creates an open stream with the given buffer size.
func NewStream(buffer int) *Stream {
	if buffer < 0 {
		buffer = 0
	}
	return &Stream{
		ch:   make(chan string, buffer),
		done: make(chan struct{}),
	}
}

// Events returns the receive side of the stream. It is closed after Close.
func (s *Stream) Events() <-chan string {
	return s.ch
}

// Done is closed as soon as Close is called.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Closed reports whether Close has been called.
func (s *Stream) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Send pushes item, blocking while the buffer is full. It returns false if
// the stream is closed or ctx is done before the item was accepted.
func (s *Stream) Send(ctx context.Context, item string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.ch <- item:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Offer pushes item only if there is buffer space.
func (s *Stream) Offer(item string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- item:
		return true
	default:
		return false
	}
}

// OnClose registers fn to run once when the stream closes. If the stream is
// already closed fn is not called.
func (s *Stream) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.onClose = append(s.onClose, fn)
}

// Close closes the stream and runs the close hooks.
func (s *Stream) Close() {
	s.once.Do(func() {
		// Releases producers blocked in Send before taking the write lock.
		close(s.done)

		s.mu.Lock()
		s.closed = true
		close(s.ch)
		hooks := s.onClose
		s.onClose = nil
		s.mu.Unlock()

		for _, fn := range hooks {
			fn()
		}
	})
}

package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/steploop/infrastructure/logging"
	"github.com/felixgeelhaar/steploop/infrastructure/observability"
)

// TerminatedNotice is sent to a stream terminated through the registry.
const TerminatedNotice = "Task terminated by user."

// Entry is a registered session. Any field may be nil: a placeholder is
// registered before its controller exists.
type Entry struct {
	Controller *Controller
	Stream     *Stream
	Cancel     context.CancelFunc
	UpdatedAt  time.Time
}

// SessionRegistry maps session ids to live controllers, their streams and
// their cancellation handles. All entry access goes through its mutex.
type SessionRegistry struct {
	mu        sync.Mutex
	entries   map[string]*Entry
	retainTTL time.Duration
	metrics   *observability.Metrics
	now       func() time.Time
}

// RegistryOption configures a SessionRegistry.
type RegistryOption func(*SessionRegistry)

// WithRetainTTL sets how long idle entries survive a sweep. Zero keeps them
// forever.
func WithRetainTTL(ttl time.Duration) RegistryOption {
	return func(r *SessionRegistry) {
		r.retainTTL = ttl
	}
}

// WithRegistryMetrics sets the metrics sink.
func WithRegistryMetrics(m *observability.Metrics) RegistryOption {
	return func(r *SessionRegistry) {
		r.metrics = m
	}
}

// WithClock sets the time source used for UpdatedAt.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *SessionRegistry) {
		r.now = now
	}
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(opts ...RegistryOption) *SessionRegistry {
	r := &SessionRegistry{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts or overwrites the entry for id.
func (r *SessionRegistry) Register(id string, ctrl *Controller, stream *Stream, cancel context.CancelFunc) {
	if id == "" {
		return
	}

	r.mu.Lock()
	r.entries[id] = &Entry{
		Controller: ctrl,
		Stream:     stream,
		Cancel:     cancel,
		UpdatedAt:  r.now(),
	}
	n := len(r.entries)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(n)
	logging.Debug().
		Add(logging.SessionID(id)).
		Add(logging.Bool("placeholder", ctrl == nil && stream == nil)).
		Msg("session registered")
}

// Unregister removes the entry for id. It is a no-op if absent.
func (r *SessionRegistry) Unregister(id string) {
	r.mu.Lock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	n := len(r.entries)
	r.mu.Unlock()

	if ok {
		r.metrics.SetActiveSessions(n)
		logging.Debug().
			Add(logging.SessionID(id)).
			Msg("session unregistered")
	}
}

// release removes the entry for id only while it still holds stream, so an
// entry kept by a soft termination or replaced by a newer session survives.
func (r *SessionRegistry) release(id string, stream *Stream) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok || e.Stream != stream {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, id)
	n := len(r.entries)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(n)
	logging.Debug().
		Add(logging.SessionID(id)).
		Msg("session released")
	return true
}

// Lookup returns a copy of the entry for id.
func (r *SessionRegistry) Lookup(id string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of entries.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Terminate stops the session id. It cancels the background work, notifies
// and closes the stream, and for a hard termination removes the entry and
// discards the controller's memory. A soft termination keeps the entry with
// its controller. It returns false only when no entry exists.
func (r *SessionRegistry) Terminate(id string, hard bool) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	cancel, stream, ctrl := e.Cancel, e.Stream, e.Controller
	e.Cancel = nil
	e.Stream = nil
	e.UpdatedAt = r.now()
	if hard {
		delete(r.entries, id)
	}
	n := len(r.entries)
	r.mu.Unlock()

	// A hard terminate finishes the controller before cancelling it, so the
	// cancelled loop cannot move it to Error.
	if hard && ctrl != nil {
		ctrl.Terminate()
	}
	if cancel != nil {
		safeCall(cancel)
	}
	if stream != nil {
		stream.Offer(TerminatedNotice)
		stream.Close()
	}

	r.metrics.Terminated(hard)
	r.metrics.SetActiveSessions(n)
	logging.Info().
		Add(logging.SessionID(id)).
		Add(logging.Mode(hard)).
		Msg("session terminated")
	return true
}

// Sweep evicts idle entries, those with neither stream nor cancel handle,
// last updated more than the retain TTL before now. It returns the number
// evicted.
func (r *SessionRegistry) Sweep(now time.Time) int {
	if r.retainTTL <= 0 {
		return 0
	}

	r.mu.Lock()
	evicted := 0
	for id, e := range r.entries {
		if e.Stream != nil || e.Cancel != nil {
			continue
		}
		if e.UpdatedAt.Add(r.retainTTL).Before(now) {
			delete(r.entries, id)
			evicted++
		}
	}
	n := len(r.entries)
	r.mu.Unlock()

	if evicted > 0 {
		r.metrics.SetActiveSessions(n)
		logging.Debug().
			Add(logging.Int("evicted", evicted)).
			Msg("session sweep")
	}
	return evicted
}

// StartJanitor sweeps every interval until ctx is done.
func (r *SessionRegistry) StartJanitor(ctx context.Context, interval time.Duration) {
	if r.retainTTL <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.Sweep(now)
			}
		}
	}()
}

// safeCall invokes fn, swallowing any panic.
func safeCall(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Warn().
				Add(logging.Str("panic", fmt.Sprint(rec))).
				Msg("cancel handle panicked")
		}
	}()
	fn()
}

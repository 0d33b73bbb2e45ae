package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/steploop/domain/config"
	"github.com/felixgeelhaar/steploop/infrastructure/logging"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 100 * time.Millisecond

// ErrWatcherClosed is returned when Watch is called on a closed watcher.
var ErrWatcherClosed = errors.New("config watcher closed")

// ChangeFunc receives every successfully reloaded configuration.
type ChangeFunc func(*config.AppConfig)

// Watcher reloads a configuration file when it changes on disk.
// Reloads that fail to load or validate are logged and skipped so the
// previous configuration stays in effect.
type Watcher struct {
	path     string
	loader   *Loader
	onChange ChangeFunc
	debounce time.Duration

	watcher *fsnotify.Watcher

	mu     sync.Mutex
	closed bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLoader sets the loader used for reloads.
func WithLoader(l *Loader) WatcherOption {
	return func(w *Watcher) {
		w.loader = l
	}
}

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher watches path and calls onChange after each reload.
// The parent directory is watched so atomic rename-on-save is observed.
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	w := &Watcher{
		path:     abs,
		loader:   NewLoader(),
		onChange: onChange,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	w.watcher = fw
	return w, nil
}

// Watch blocks until ctx is done or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	w.mu.Unlock()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn().
				Add(logging.Str("path", w.path)).
				Add(logging.ErrorField(err)).
				Msg("config watcher error")

		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.LoadFile(w.path)
	if err != nil {
		logging.Warn().
			Add(logging.Str("path", w.path)).
			Add(logging.ErrorField(err)).
			Msg("config reload skipped")
		return
	}

	logging.Info().
		Add(logging.Str("path", w.path)).
		Msg("config reloaded")

	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.watcher.Close()
}

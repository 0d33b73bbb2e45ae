package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	domainconfig "github.com/felixgeelhaar/steploop/domain/config"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "steploop.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	changes := make(chan *domainconfig.AppConfig, 4)
	w, err := NewWatcher(path, func(cfg *domainconfig.AppConfig) {
		changes <- cfg
	}, WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watch loop a moment to start selecting.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case cfg := <-changes:
		if cfg.Logging.Level != "debug" {
			t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Watch() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func TestWatcher_SkipsInvalidReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "steploop.yaml")
	if err := os.WriteFile(path, []byte("name: ok\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	called := make(chan struct{}, 1)
	w, err := NewWatcher(path, func(*domainconfig.AppConfig) { called <- struct{}{} })
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	w.path = filepath.Join(filepath.Dir(path), "missing.yaml")
	w.reload()

	select {
	case <-called:
		t.Error("onChange should not run for a failed reload")
	default:
	}
}

func TestWatcher_Close(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "steploop.yaml")
	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if w.Path() != path {
		t.Errorf("Path() = %s, want %s", w.Path(), path)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.Watch(context.Background()); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("Watch() after Close error = %v, want ErrWatcherClosed", err)
	}
}

// Package storage selects the conversation history back-end.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/steploop/domain/config"
	"github.com/felixgeelhaar/steploop/domain/history"
	"github.com/felixgeelhaar/steploop/infrastructure/storage/filesystem"
	"github.com/felixgeelhaar/steploop/infrastructure/storage/memory"
	"github.com/felixgeelhaar/steploop/infrastructure/storage/postgres"
	"github.com/felixgeelhaar/steploop/infrastructure/storage/redis"
	"github.com/felixgeelhaar/steploop/infrastructure/storage/sqlite"
)

// ErrUnknownBackend indicates an unsupported history back-end name.
var ErrUnknownBackend = errors.New("unknown history backend")

// OpenHistory opens the configured history store. The returned close
// function releases its connections and is never nil. The none back-end
// returns a nil store.
func OpenHistory(ctx context.Context, cfg config.HistoryConfig) (history.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendNone:
		return nil, noop, nil
	case "", config.BackendMemory:
		return memory.NewHistoryStore(), noop, nil
	case config.BackendFile:
		store, err := filesystem.NewHistoryStore(cfg.Dir)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case config.BackendRedis:
		store, err := redis.NewHistoryStore(redis.ConfigFrom(cfg.Redis))
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case config.BackendSQLite:
		sc := sqlite.DefaultConfig()
		if cfg.SQLite.DSN != "" {
			sc.DSN = cfg.SQLite.DSN
		}
		store, err := sqlite.NewHistoryStore(sc)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case config.BackendPostgres:
		pc := postgres.ConfigFrom(cfg.Postgres)
		pool, err := postgres.Connect(ctx, pc)
		if err != nil {
			return nil, noop, err
		}
		store, err := postgres.NewHistoryStore(pool, pc.Schema)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return store, func() error { pool.Close(); return nil }, nil
	default:
		return nil, noop, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

// Package postgres provides PostgreSQL-backed storage implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/steploop/domain/config"
	"github.com/felixgeelhaar/steploop/domain/history"
)

// ErrInvalidSchema indicates a schema name that is not a plain identifier.
var ErrInvalidSchema = errors.New("postgres: invalid schema name")

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds PostgreSQL connection configuration.
type Config struct {
	// DSN is a postgres:// URL or key=value connection string.
	DSN string

	// Schema holds the messages table.
	Schema string

	// MaxConns is the maximum pool size.
	MaxConns int32

	// MinConns is the minimum number of idle connections.
	MinConns int32

	// MaxConnLifetime is the maximum connection lifetime.
	MaxConnLifetime time.Duration

	// MaxConnIdleTime is the maximum idle time for connections.
	MaxConnIdleTime time.Duration

	// ConnectTimeout bounds the initial connection.
	ConnectTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DSN:             "postgres://localhost:5432/steploop",
		Schema:          "public",
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// ConfigFrom maps the postgres section of the history config onto the defaults.
func ConfigFrom(c config.PostgresConfig) Config {
	cfg := DefaultConfig()
	if c.DSN != "" {
		cfg.DSN = c.DSN
	}
	if c.Schema != "" {
		cfg.Schema = c.Schema
	}
	return cfg
}

// Connect opens a connection pool and verifies it.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Join(history.ErrConnectionFailed, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Join(history.ErrConnectionFailed, err)
	}
	return pool, nil
}

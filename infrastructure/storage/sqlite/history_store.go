package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/history"
)

// HistoryStore is a SQLite-backed implementation of history.Store.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore opens the database described by cfg.
func NewHistoryStore(cfg Config, opts ...Option) (*HistoryStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &HistoryStore{db: db}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewHistoryStoreFromDB creates a store from an existing database connection.
func NewHistoryStoreFromDB(db *sql.DB) (*HistoryStore, error) {
	s := &HistoryStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *HistoryStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			conversation_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_name TEXT NOT NULL DEFAULT '',
			tool_call_id TEXT NOT NULL DEFAULT '',
			tool_calls TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			PRIMARY KEY (conversation_id, seq)
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Append adds messages to the end of a conversation.
func (s *HistoryStore) Append(ctx context.Context, conversationID string, messages ...agent.Message) error {
	if err := history.ValidateID(conversationID); err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM messages WHERE conversation_id = ?`,
		conversationID,
	).Scan(&next)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (conversation_id, seq, role, content, tool_name, tool_call_id, tool_calls, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, m := range messages {
		calls, err := history.EncodeToolCalls(m.ToolCalls)
		if err != nil {
			return err
		}
		next++
		if _, err := stmt.ExecContext(ctx,
			conversationID, next, string(m.Role), m.Content, m.ToolName, m.ToolCallID, calls, now,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	return tx.Commit()
}

// Load returns the last n messages of a conversation.
func (s *HistoryStore) Load(ctx context.Context, conversationID string, lastN int) ([]agent.Message, error) {
	if err := history.ValidateID(conversationID); err != nil {
		return nil, err
	}

	limit := -1
	if lastN > 0 {
		limit = lastN
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, tool_name, tool_call_id, tool_calls FROM (
			SELECT seq, role, content, tool_name, tool_call_id, tool_calls
			FROM messages WHERE conversation_id = ?
			ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []agent.Message
	for rows.Next() {
		var (
			m     agent.Message
			role  string
			calls string
		)
		if err := rows.Scan(&role, &m.Content, &m.ToolName, &m.ToolCallID, &calls); err != nil {
			return nil, err
		}
		m.Role = agent.Role(role)
		if m.ToolCalls, err = history.DecodeToolCalls(calls); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Clear removes a conversation.
func (s *HistoryStore) Clear(ctx context.Context, conversationID string) error {
	if err := history.ValidateID(conversationID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	return err
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

var _ history.Store = (*HistoryStore)(nil)

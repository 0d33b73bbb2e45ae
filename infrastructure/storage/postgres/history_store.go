package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/history"
)

// HistoryStore is a PostgreSQL-backed implementation of history.Store.
type HistoryStore struct {
	pool   *pgxpool.Pool
	schema string
}

// NewHistoryStore creates a store over an existing pool. An empty schema
// means public.
func NewHistoryStore(pool *pgxpool.Pool, schema string) (*HistoryStore, error) {
	if schema == "" {
		schema = "public"
	}
	if !identifier.MatchString(schema) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchema, schema)
	}
	return &HistoryStore{pool: pool, schema: schema}, nil
}

// tableName returns the fully qualified table name.
func (s *HistoryStore) tableName() string {
	return fmt.Sprintf("%s.messages", s.schema)
}

// Migrate creates the messages table if it does not exist.
func (s *HistoryStore) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			conversation_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_name TEXT NOT NULL DEFAULT '',
			tool_call_id TEXT NOT NULL DEFAULT '',
			tool_calls TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (conversation_id, seq)
		)
	`, s.tableName())

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("migrate messages table: %w", err)
	}
	return nil
}

// Append adds messages to the end of a conversation. Concurrent appends to
// one conversation are serialised by a transaction-scoped advisory lock.
func (s *HistoryStore) Append(ctx context.Context, conversationID string, messages ...agent.Message) error {
	if err := history.ValidateID(conversationID); err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, conversationID); err != nil {
		return err
	}

	var next int64
	err = tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT COALESCE(MAX(seq), 0) FROM %s WHERE conversation_id = $1`, s.tableName()),
		conversationID,
	).Scan(&next)
	if err != nil {
		return err
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (conversation_id, seq, role, content, tool_name, tool_call_id, tool_calls, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.tableName())

	now := time.Now().UTC()
	for _, m := range messages {
		calls, err := history.EncodeToolCalls(m.ToolCalls)
		if err != nil {
			return err
		}
		next++
		if _, err := tx.Exec(ctx, insert,
			conversationID, next, string(m.Role), m.Content, m.ToolName, m.ToolCallID, calls, now,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Load returns the last n messages of a conversation.
func (s *HistoryStore) Load(ctx context.Context, conversationID string, lastN int) ([]agent.Message, error) {
	if err := history.ValidateID(conversationID); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT role, content, tool_name, tool_call_id, tool_calls FROM (
			SELECT seq, role, content, tool_name, tool_call_id, tool_calls
			FROM %s WHERE conversation_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) recent ORDER BY seq ASC
	`, s.tableName())

	var limit *int
	if lastN > 0 {
		limit = &lastN
	}

	rows, err := s.pool.Query(ctx, query, conversationID, limit)
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
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE conversation_id = $1`, s.tableName()),
		conversationID,
	)
	return err
}

var _ history.Store = (*HistoryStore)(nil)

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/history"
)

// HistoryStore keeps each conversation as a Redis list of JSON messages.
type HistoryStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewHistoryStore connects to Redis and verifies the connection.
func NewHistoryStore(cfg Config, opts ...ConfigOption) (*HistoryStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(history.ErrConnectionFailed, err)
	}

	return &HistoryStore{client: client, keyPrefix: cfg.KeyPrefix, ttl: cfg.TTL}, nil
}

// NewHistoryStoreFromClient creates a store from an existing Redis client.
func NewHistoryStoreFromClient(client *redis.Client, keyPrefix string) *HistoryStore {
	return &HistoryStore{client: client, keyPrefix: keyPrefix}
}

func (s *HistoryStore) key(conversationID string) string {
	return s.keyPrefix + "history:" + conversationID
}

// Append adds messages to the end of a conversation.
func (s *HistoryStore) Append(ctx context.Context, conversationID string, messages ...agent.Message) error {
	if err := history.ValidateID(conversationID); err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	values, err := encodeMessages(messages)
	if err != nil {
		return err
	}

	key := s.key(conversationID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return wrapError(err)
	}
	return nil
}

// Load returns the last n messages of a conversation.
func (s *HistoryStore) Load(ctx context.Context, conversationID string, lastN int) ([]agent.Message, error) {
	if err := history.ValidateID(conversationID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := int64(0)
	if lastN > 0 {
		start = -int64(lastN)
	}

	raw, err := s.client.LRange(ctx, s.key(conversationID), start, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, wrapError(err)
	}
	return decodeMessages(raw)
}

// Clear removes a conversation.
func (s *HistoryStore) Clear(ctx context.Context, conversationID string) error {
	if err := history.ValidateID(conversationID); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key(conversationID)).Err(); err != nil {
		return wrapError(err)
	}
	return nil
}

// Close closes the Redis client.
func (s *HistoryStore) Close() error {
	return s.client.Close()
}

func encodeMessages(messages []agent.Message) ([]any, error) {
	values := make([]any, 0, len(messages))
	for _, m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encode message: %w", err)
		}
		values = append(values, string(data))
	}
	return values, nil
}

func decodeMessages(raw []string) ([]agent.Message, error) {
	out := make([]agent.Message, 0, len(raw))
	for _, item := range raw {
		var m agent.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return errors.Join(history.ErrConnectionFailed, err)
	}
	return err
}

var _ history.Store = (*HistoryStore)(nil)

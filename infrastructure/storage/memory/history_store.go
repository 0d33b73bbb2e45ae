package memory

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/history"
)

// HistoryStore keeps conversations in process memory.
type HistoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]agent.Message
}

// NewHistoryStore creates an empty in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{conversations: make(map[string][]agent.Message)}
}

// Append adds messages to the end of a conversation.
func (s *HistoryStore) Append(ctx context.Context, conversationID string, messages ...agent.Message) error {
	if err := history.ValidateID(conversationID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conversationID] = append(s.conversations[conversationID], messages...)
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

	s.mu.RLock()
	defer s.mu.RUnlock()

	tail := history.Tail(s.conversations[conversationID], lastN)
	return append([]agent.Message(nil), tail...), nil
}

// Clear removes a conversation.
func (s *HistoryStore) Clear(_ context.Context, conversationID string) error {
	if err := history.ValidateID(conversationID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
	return nil
}

// Len returns the number of stored conversations.
func (s *HistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

var _ history.Store = (*HistoryStore)(nil)

// Package history provides the domain interface for conversation persistence.
package history

import (
	"context"
	"errors"
	"strings"

	"github.com/felixgeelhaar/steploop/domain/agent"
)

// Store persists conversation messages keyed by conversation id.
// Implementations may be in-memory, file based, Redis, SQLite or Postgres.
type Store interface {
	// Append adds messages to the end of a conversation.
	Append(ctx context.Context, conversationID string, messages ...agent.Message) error

	// Load returns the last n messages of a conversation in order.
	// A non-positive n returns the whole conversation.
	Load(ctx context.Context, conversationID string, lastN int) ([]agent.Message, error)

	// Clear removes a conversation.
	Clear(ctx context.Context, conversationID string) error
}

// Domain errors for history stores.
var (
	// ErrInvalidConversationID indicates an empty conversation id.
	ErrInvalidConversationID = errors.New("invalid conversation id")

	// ErrConnectionFailed indicates the backing store is unreachable.
	ErrConnectionFailed = errors.New("history store connection failed")
)

// ValidateID returns ErrInvalidConversationID for blank ids.
func ValidateID(conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return ErrInvalidConversationID
	}
	return nil
}

// Tail returns the last n messages, or all of them when n is non-positive.
func Tail(messages []agent.Message, n int) []agent.Message {
	if n <= 0 || n >= len(messages) {
		return messages
	}
	return messages[len(messages)-n:]
}

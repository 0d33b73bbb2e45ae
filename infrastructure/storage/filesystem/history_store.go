// Package filesystem provides filesystem-based storage implementations.
package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/history"
)

// HistoryStore keeps one JSON file per conversation in a directory.
type HistoryStore struct {
	mu  sync.Mutex
	dir string
}

// NewHistoryStore creates the directory if needed and returns a store over it.
func NewHistoryStore(dir string) (*HistoryStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &HistoryStore{dir: dir}, nil
}

// Dir returns the directory holding the conversation files.
func (s *HistoryStore) Dir() string {
	return s.dir
}

// Append adds messages to the end of a conversation.
func (s *HistoryStore) Append(ctx context.Context, conversationID string, messages ...agent.Message) error {
	path, err := s.path(conversationID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := readFile(path)
	if err != nil {
		return err
	}
	return writeFile(path, append(existing, messages...))
}

// Load returns the last n messages of a conversation.
func (s *HistoryStore) Load(ctx context.Context, conversationID string, lastN int) ([]agent.Message, error) {
	path, err := s.path(conversationID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return history.Tail(messages, lastN), nil
}

// Clear removes a conversation file.
func (s *HistoryStore) Clear(_ context.Context, conversationID string) error {
	path, err := s.path(conversationID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove history file: %w", err)
	}
	return nil
}

func (s *HistoryStore) path(conversationID string) (string, error) {
	if err := history.ValidateID(conversationID); err != nil {
		return "", err
	}
	if strings.ContainsAny(conversationID, `/\`) || strings.Contains(conversationID, "..") {
		return "", fmt.Errorf("%w: %q", history.ErrInvalidConversationID, conversationID)
	}
	return filepath.Join(s.dir, conversationID+".json"), nil
}

func readFile(path string) ([]agent.Message, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is built from a validated id
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var messages []agent.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode history file: %w", err)
	}
	return messages, nil
}

// writeFile replaces the file through a rename so readers never see a
// partial document.
func writeFile(path string, messages []agent.Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // #nosec G104 -- best-effort cleanup in error path
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}

var _ history.Store = (*HistoryStore)(nil)

package application

import (
	"context"
	"strings"
	"time"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/session"
	"github.com/felixgeelhaar/steploop/infrastructure/llm"
	"github.com/felixgeelhaar/steploop/infrastructure/logging"
)

// Simple chat stream markers.
const (
	ChatDone    = "[DONE]"
	ChatFailure = "Sorry, something went wrong while handling your request, please try again later."
)

// StartChat starts a single-turn, tool-less chat session. Up to last_n
// stored messages are loaded as memory and the exchange is appended to the
// history store. The stream yields the sentinel, the reply chunks, and then
// ChatDone or ChatFailure.
func (s *Service) StartChat(ctx context.Context, message, chatID, clientKey string) (*Session, error) {
	id, err := s.admit(ctx, message, chatID, clientKey)
	if err != nil {
		return nil, err
	}
	cfg := s.Config()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream := NewStream(DefaultStreamBuffer)
	s.registry.Register(id, nil, stream, cancel)
	stream.Send(runCtx, session.Sentinel(id))

	timeout := cfg.Agent.StreamTimeout.Duration()
	if timeout <= 0 {
		timeout = DefaultStreamTimeout
	}
	timer := time.AfterFunc(timeout, func() {
		logging.Warn().
			Add(logging.SessionID(id)).
			Add(logging.Duration(timeout)).
			Msg("chat stream timed out")
		cancel()
		stream.Close()
	})

	go func() {
		defer s.registry.release(id, stream)
		defer timer.Stop()
		defer cancel()
		defer stream.Close()

		reply, err := s.chat(runCtx, id, message, cfg.History.LastN, cfg.SimpleChat.SystemPrompt, func(chunk string) error {
			if chunk == "" {
				return nil
			}
			if !stream.Send(runCtx, chunk) {
				return context.Canceled
			}
			return nil
		})
		if err != nil {
			logging.Error().
				Add(logging.SessionID(id)).
				Add(logging.Provider(s.provider.Name())).
				Add(logging.ErrorField(err)).
				Msg("chat stream failed")
			stream.Send(runCtx, ChatFailure)
			return
		}
		stream.Send(runCtx, ChatDone)

		logging.Info().
			Add(logging.SessionID(id)).
			Add(logging.Int("reply_len", len(reply))).
			Msg("chat complete")
	}()

	return &Session{ID: id, Events: stream.Events(), cancel: cancel}, nil
}

// chat performs one model call with memory and persists the exchange.
func (s *Service) chat(ctx context.Context, id, message string, lastN int, system string, onChunk func(string) error) (string, error) {
	var memory []agent.Message
	if s.history != nil {
		loaded, err := s.history.Load(ctx, id, lastN)
		if err != nil {
			logging.Warn().
				Add(logging.SessionID(id)).
				Add(logging.ErrorField(err)).
				Msg("failed to load chat memory")
		}
		memory = loaded
	}

	user := agent.NewUserMessage(message)
	req := llm.CompletionRequest{
		System:   system,
		Messages: append(memory, user),
	}

	var reply strings.Builder
	err := llm.StreamOrComplete(ctx, s.provider, req, func(chunk string) error {
		reply.WriteString(chunk)
		return onChunk(chunk)
	})
	if err != nil {
		return "", err
	}

	if s.history != nil {
		assistant := agent.NewAssistantMessage(reply.String())
		if err := s.history.Append(context.WithoutCancel(ctx), id, user, assistant); err != nil {
			logging.Warn().
				Add(logging.SessionID(id)).
				Add(logging.ErrorField(err)).
				Msg("failed to persist chat history")
		}
	}
	return reply.String(), nil
}

package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/config"
	"github.com/felixgeelhaar/steploop/domain/history"
	"github.com/felixgeelhaar/steploop/domain/session"
	"github.com/felixgeelhaar/steploop/infrastructure/llm"
	"github.com/felixgeelhaar/steploop/infrastructure/logging"
	"github.com/felixgeelhaar/steploop/infrastructure/observability"
	"github.com/felixgeelhaar/steploop/infrastructure/resilience"
)

// ErrNoSentinel indicates a stream did not open with a session sentinel.
var ErrNoSentinel = errors.New("stream did not start with a session sentinel")

// Session is a started streaming session. Events yields the sentinel first,
// followed by the session's output, and is closed when the session ends.
type Session struct {
	ID     string
	Events <-chan string

	cancel context.CancelFunc
}

// Cancel stops the session's background work. It is safe to call more than
// once and after the session ended.
func (s *Session) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// RunResult is the outcome of a blocking run.
type RunResult struct {
	ChatID string
	State  agent.State
	Steps  int
	Result string
}

// ServiceConfig contains the collaborators of a Service.
type ServiceConfig struct {
	Config   config.AppConfig
	Provider llm.Provider
	Tools    ToolRunner
	Registry *SessionRegistry
	History  history.Store
	Limiter  *resilience.StartLimiter
	Metrics  *observability.Metrics
	Tracer   trace.Tracer
}

// Service orchestrates sessions: it builds controllers, registers them and
// exposes termination by session id.
type Service struct {
	mu  sync.RWMutex
	cfg config.AppConfig

	provider llm.Provider
	tools    ToolRunner
	registry *SessionRegistry
	history  history.Store
	limiter  *resilience.StartLimiter
	metrics  *observability.Metrics
	tracer   trace.Tracer
}

// NewService creates a service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Provider == nil {
		return nil, errors.New("model provider is required")
	}

	s := &Service{
		cfg:      cfg.Config,
		provider: cfg.Provider,
		tools:    cfg.Tools,
		registry: cfg.Registry,
		history:  cfg.History,
		limiter:  cfg.Limiter,
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
	}
	if s.registry == nil {
		s.registry = NewSessionRegistry(
			WithRetainTTL(cfg.Config.Registry.RetainTTL.Duration()),
			WithRegistryMetrics(cfg.Metrics),
		)
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("steploop")
	}
	return s, nil
}

// Registry returns the session registry.
func (s *Service) Registry() *SessionRegistry {
	return s.registry
}

// Config returns the configuration applied to new sessions.
func (s *Service) Config() config.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// UpdateConfig replaces the configuration applied to new sessions. Running
// controllers keep the settings they were built with.
func (s *Service) UpdateConfig(cfg config.AppConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	logging.Info().
		Add(logging.Agent(cfg.Name)).
		Add(logging.MaxSteps(cfg.Agent.MaxSteps)).
		Msg("session defaults updated")
}

// NewController builds a controller for conversation id with the current
// defaults. Its final messages are persisted to the history store.
func (s *Service) NewController(id string, opts ...Option) (*Controller, error) {
	cfg := s.Config()

	executor := NewToolCallExecutor(s.provider, s.tools, ModelSettings{
		Model:       cfg.Model.Model,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	})

	base := []Option{
		WithSettings(cfg.Name, cfg.Agent),
		WithConversationID(id),
		WithMetrics(s.metrics),
		WithTracer(s.tracer),
	}
	if s.history != nil {
		base = append(base, WithCleanup(s.persist))
	}
	return NewController(executor, append(base, opts...)...)
}

// persist appends a run's messages to the history store.
func (s *Service) persist(ctx context.Context, snap RunSnapshot) {
	if len(snap.Messages) == 0 {
		return
	}
	if err := s.history.Append(ctx, snap.ConversationID, snap.Messages...); err != nil {
		logging.Warn().
			Add(logging.SessionID(snap.ConversationID)).
			Add(logging.ErrorField(err)).
			Msg("failed to persist history")
	}
}

// admit validates a session start and returns the session id.
func (s *Service) admit(ctx context.Context, prompt, chatID, clientKey string) (string, error) {
	id, err := session.ValidateOrGenerate(chatID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: message must not be blank", agent.ErrInvalidInput)
	}
	if err := s.limiter.Allow(ctx, clientKey); err != nil {
		return "", err
	}
	return id, nil
}

// StartStream starts a streaming agent session. chatID may be empty, in which
// case a fresh id is generated. clientKey scopes the start rate limit.
func (s *Service) StartStream(ctx context.Context, prompt, chatID, clientKey string) (*Session, error) {
	id, err := s.admit(ctx, prompt, chatID, clientKey)
	if err != nil {
		return nil, err
	}

	// Placeholder so termination works before the controller exists.
	s.registry.Register(id, nil, nil, nil)

	ctrl, err := s.NewController(id)
	if err != nil {
		s.registry.Unregister(id)
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream := ctrl.RunStream(runCtx, prompt, id)

	first, ok := <-stream.Events()
	if !ok {
		cancel()
		s.registry.Unregister(id)
		return nil, ErrNoSentinel
	}
	sentinelID, ok := session.ParseSentinel(first)
	if !ok {
		cancel()
		s.registry.Unregister(id)
		return nil, fmt.Errorf("%w: %s", ErrNoSentinel, first)
	}
	s.registry.Register(sentinelID, ctrl, stream, cancel)

	logging.Info().
		Add(logging.SessionID(sentinelID)).
		Add(logging.Agent(ctrl.Name())).
		Msg("stream session started")

	events := s.relay(runCtx, sentinelID, first, stream)
	return &Session{ID: sentinelID, Events: events, cancel: cancel}, nil
}

// relay republishes the stream behind first and releases the registry entry
// once the stream closes.
func (s *Service) relay(ctx context.Context, id, first string, stream *Stream) <-chan string {
	out := make(chan string, DefaultStreamBuffer)
	out <- first

	go func() {
		defer close(out)
		defer s.registry.release(id, stream)

		for item := range stream.Events() {
			select {
			case out <- item:
			case <-ctx.Done():
				// Drain so the producer is never left blocked.
				for range stream.Events() {
				}
				return
			}
		}
	}()
	return out
}

// Run executes a blocking agent run. chatID may be empty.
func (s *Service) Run(ctx context.Context, prompt, chatID, clientKey string) (RunResult, error) {
	id, err := s.admit(ctx, prompt, chatID, clientKey)
	if err != nil {
		return RunResult{}, err
	}

	ctrl, err := s.NewController(id)
	if err != nil {
		return RunResult{}, err
	}

	result, err := ctrl.Run(ctx, prompt)
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{
		ChatID: id,
		State:  ctrl.State(),
		Steps:  ctrl.StepsTaken(),
		Result: result,
	}, nil
}

// Terminate stops the session id. It returns false when no session exists.
func (s *Service) Terminate(id string, hard bool) bool {
	return s.registry.Terminate(id, hard)
}

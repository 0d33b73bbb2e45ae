// Package application provides the step-loop controller and the session
// services built on it.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/config"
	"github.com/felixgeelhaar/steploop/domain/session"
	"github.com/felixgeelhaar/steploop/infrastructure/logging"
	"github.com/felixgeelhaar/steploop/infrastructure/observability"
	"github.com/felixgeelhaar/steploop/infrastructure/statemachine"
)

// Controller defaults.
const (
	DefaultMaxSteps      = 10
	DefaultStreamTimeout = 3 * time.Minute
)

const (
	budgetNoticeFormat = "Terminated: Reached max steps (%d)"
	agentErrorPrefix   = "Error executing agent: "
)

// RunSnapshot describes a finished run to cleanup hooks.
type RunSnapshot struct {
	ConversationID string
	Name           string
	State          agent.State
	Steps          int

	// Messages are the messages added to the log during this run. They are
	// empty if the log was cleared by a hard termination.
	Messages []agent.Message
}

// CleanupFunc runs once at the end of every run, on every exit path.
type CleanupFunc func(ctx context.Context, snap RunSnapshot)

// Controller drives a bounded think/act loop for one agent. It is created
// per logical session and is not safe for concurrent runs; State, Terminate
// and the message log may be used from other goroutines.
type Controller struct {
	name           string
	systemPrompt   string
	nextStepPrompt string
	conversationID string

	lifecycle   *statemachine.Lifecycle
	currentStep atomic.Int32
	stepsTaken  atomic.Int32
	maxSteps    int
	detector    StuckDetector
	log         *agent.MessageLog
	executor    StepExecutor

	streamTimeout time.Duration
	cleanups      []CleanupFunc
	metrics       *observability.Metrics
	tracer        trace.Tracer
}

// NewController creates an idle controller around a step executor.
func NewController(executor StepExecutor, opts ...Option) (*Controller, error) {
	if executor == nil {
		return nil, errors.New("step executor is required")
	}

	cfg := ControllerConfig{
		Name:               config.DefaultName,
		SystemPrompt:       config.DefaultSystemPrompt,
		NextStepPrompt:     config.DefaultNextStepPrompt,
		MaxSteps:           DefaultMaxSteps,
		DuplicateThreshold: DefaultDuplicateThreshold,
		StreamTimeout:      DefaultStreamTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.DuplicateThreshold < 1 {
		cfg.DuplicateThreshold = DefaultDuplicateThreshold
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = DefaultStreamTimeout
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("steploop")
	}

	lc, err := statemachine.NewLifecycle(cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create lifecycle: %w", err)
	}

	return &Controller{
		name:           cfg.Name,
		systemPrompt:   cfg.SystemPrompt,
		nextStepPrompt: cfg.NextStepPrompt,
		conversationID: cfg.ConversationID,
		lifecycle:      lc,
		maxSteps:       cfg.MaxSteps,
		detector:       StuckDetector{Threshold: cfg.DuplicateThreshold},
		log:            agent.NewMessageLog(cfg.History...),
		executor:       executor,
		streamTimeout:  cfg.StreamTimeout,
		cleanups:       cfg.Cleanups,
		metrics:        cfg.Metrics,
		tracer:         cfg.Tracer,
	}, nil
}

// Name returns the persona name.
func (c *Controller) Name() string {
	return c.name
}

// State returns the current lifecycle state.
func (c *Controller) State() agent.State {
	return c.lifecycle.State()
}

// CurrentStep returns the step counter.
func (c *Controller) CurrentStep() int {
	return int(c.currentStep.Load())
}

// StepsTaken returns the number of steps executed by the latest run. Unlike
// CurrentStep it survives the budget reset.
func (c *Controller) StepsTaken() int {
	return int(c.stepsTaken.Load())
}

// MaxSteps returns the step budget.
func (c *Controller) MaxSteps() int {
	return c.maxSteps
}

// NextStepPrompt returns the prompt appended before the next think. It must
// only be read from the goroutine running the loop or after the run ends.
func (c *Controller) NextStepPrompt() string {
	return c.nextStepPrompt
}

// Messages returns a copy of the message log.
func (c *Controller) Messages() []agent.Message {
	return c.log.Messages()
}

// ConversationID returns the conversation id.
func (c *Controller) ConversationID() string {
	return c.conversationID
}

// Terminate forces the controller to Finished and discards its memory. A
// controller already in Error stays in Error. The log stays empty even if a
// step is still in flight.
func (c *Controller) Terminate() {
	c.lifecycle.Finish()
	c.log.Seal()
}

// Run executes the loop and blocks until it ends. Precondition failures are
// returned as errors; every other failure becomes the returned text.
func (c *Controller) Run(ctx context.Context, prompt string) (string, error) {
	if c.conversationID == "" {
		c.conversationID = session.Generate()
	}
	mark, err := c.begin(prompt)
	if err != nil {
		return "", err
	}

	ctx, span := c.startRunSpan(ctx)
	defer span.End()
	defer c.cleanup(ctx, mark)

	results, err := c.loop(ctx, nil)
	if err != nil {
		c.fail(span, err)
		return agentErrorPrefix + err.Error(), nil
	}

	span.SetAttributes(attribute.String("agent.state", string(c.State())))
	return strings.Join(results, "\n"), nil
}

// RunStream starts the loop in the background and returns its stream
// immediately. The first item is the session sentinel for sessionID (a
// fresh id when empty); step results follow. Precondition failures are sent
// as the only item. The stream is closed exactly once on every exit path.
func (c *Controller) RunStream(ctx context.Context, prompt, sessionID string) *Stream {
	stream := NewStream(DefaultStreamBuffer)

	if sessionID == "" {
		sessionID = c.conversationID
	}
	id, err := session.ValidateOrGenerate(sessionID)
	if err != nil {
		stream.Offer(err.Error())
		stream.Close()
		return stream
	}
	c.conversationID = id

	mark, err := c.begin(prompt)
	if err != nil {
		stream.Offer(err.Error())
		stream.Close()
		return stream
	}

	ctx, cancel := context.WithCancel(ctx)
	ctx, span := c.startRunSpan(ctx)
	finish := sync.OnceFunc(func() {
		c.cleanup(ctx, mark)
		span.End()
	})

	stream.OnClose(func() {
		if c.lifecycle.Matches(agent.StateRunning) && c.lifecycle.Finish() {
			logging.Debug().
				Add(logging.SessionID(id)).
				Msg("stream closed while running, state finished")
		}
		cancel()
	})

	timer := time.AfterFunc(c.streamTimeout, func() {
		logging.Warn().
			Add(logging.SessionID(id)).
			Add(logging.Agent(c.name)).
			Add(logging.Duration(c.streamTimeout)).
			Msg("stream timed out")
		if c.lifecycle.Fail() {
			span.RecordError(agent.ErrStreamTimeout)
			span.SetStatus(codes.Error, agent.ErrStreamTimeout.Error())
		}
		cancel()
		finish()
		stream.Close()
	})

	go func() {
		defer timer.Stop()
		defer cancel()
		defer stream.Close()
		defer finish()

		if !stream.Send(ctx, session.Sentinel(id)) {
			return
		}

		_, err := c.loop(ctx, func(line string) {
			stream.Send(ctx, line)
		})
		if err != nil {
			c.fail(span, err)
			stream.Send(ctx, agentErrorPrefix+err.Error())
			return
		}
		span.SetAttributes(attribute.String("agent.state", string(c.State())))
	}()

	return stream
}

// begin checks the preconditions, starts the lifecycle and appends the
// prompt. It returns the log length before the prompt.
func (c *Controller) begin(prompt string) (int, error) {
	if state := c.lifecycle.State(); state != agent.StateIdle {
		return 0, &agent.LifecycleError{Op: "run", State: state}
	}
	if strings.TrimSpace(prompt) == "" {
		return 0, fmt.Errorf("%w: cannot run agent with empty user prompt", agent.ErrInvalidInput)
	}
	if err := c.lifecycle.Start(); err != nil {
		return 0, err
	}

	c.stepsTaken.Store(0)
	mark := c.log.Len()
	c.log.Append(agent.NewUserMessage(prompt))

	logging.Info().
		Add(logging.SessionID(c.conversationID)).
		Add(logging.Agent(c.name)).
		Add(logging.MaxSteps(c.maxSteps)).
		Msg("run started")
	return mark, nil
}

// loop runs steps until the budget is spent or the state turns terminal.
// emit, when set, receives every non-blank step line as it is produced.
func (c *Controller) loop(ctx context.Context, emit func(string)) ([]string, error) {
	var results []string
	for int(c.currentStep.Load()) < c.maxSteps && !c.lifecycle.State().IsTerminal() {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("%w: %v", agent.ErrRuntimeLoop, err)
		}

		step := int(c.currentStep.Add(1))
		c.stepsTaken.Add(1)
		logging.Info().
			Add(logging.SessionID(c.conversationID)).
			Add(logging.Step(step)).
			Add(logging.MaxSteps(c.maxSteps)).
			Msg("executing step")

		outcome, err := c.safeStep(ctx, step)
		if err != nil {
			return results, err
		}

		if c.detector.IsStuck(c.log.Messages()) {
			c.handleStuck()
		}
		if outcome.IsDone() {
			c.lifecycle.Finish()
		}

		line := fmt.Sprintf("Step %d: %s", step, outcome.Text)
		results = append(results, line)
		if emit != nil && strings.TrimSpace(outcome.Text) != "" {
			emit(line)
		}
	}

	if int(c.currentStep.Load()) >= c.maxSteps && c.lifecycle.Matches(agent.StateRunning) {
		c.currentStep.Store(0)
		c.lifecycle.Reset()
		notice := fmt.Sprintf(budgetNoticeFormat, c.maxSteps)
		logging.Info().
			Add(logging.SessionID(c.conversationID)).
			Add(logging.MaxSteps(c.maxSteps)).
			Msg("step budget exhausted")
		results = append(results, notice)
		if emit != nil {
			emit(notice)
		}
	}

	logging.Info().
		Add(logging.SessionID(c.conversationID)).
		Add(logging.State(c.lifecycle.State())).
		Msg("run finished")
	return results, nil
}

// safeStep runs one step, converting a panic into an ErrRuntimeLoop error.
func (c *Controller) safeStep(ctx context.Context, step int) (outcome agent.StepOutcome, err error) {
	ctx, span := c.tracer.Start(ctx, "controller.step",
		trace.WithAttributes(attribute.Int("agent.step", step)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: step %d panicked: %v", agent.ErrRuntimeLoop, step, r)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetAttributes(attribute.String("step.outcome", string(outcome.Kind)))
		c.metrics.ObserveStep(outcome.Kind, time.Since(start))
		if outcome.IsFailed() {
			logging.Error().
				Add(logging.SessionID(c.conversationID)).
				Add(logging.Step(step)).
				Add(logging.ErrorField(outcome.Err)).
				Msg("step failed")
		}
	}()

	outcome = c.executor.Step(ctx, StepInput{
		Agent:          c.name,
		SystemPrompt:   c.systemPrompt,
		NextStepPrompt: c.nextStepPrompt,
		Log:            c.log,
	})
	return outcome, nil
}

func (c *Controller) handleStuck() {
	c.nextStepPrompt = c.detector.Recover(c.nextStepPrompt)
	c.metrics.StuckDetected()
	logging.Warn().
		Add(logging.SessionID(c.conversationID)).
		Add(logging.Agent(c.name)).
		Add(logging.Str("prompt", StuckPrompt)).
		Msg("agent detected stuck state")
}

func (c *Controller) fail(span trace.Span, err error) {
	if !c.lifecycle.Fail() && c.lifecycle.Matches(agent.StateFinished) {
		logging.Debug().
			Add(logging.SessionID(c.conversationID)).
			Add(logging.ErrorField(err)).
			Msg("run stopped after finish")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("agent.state", string(c.State())))
	logging.Error().
		Add(logging.SessionID(c.conversationID)).
		Add(logging.Agent(c.name)).
		Add(logging.State(c.State())).
		Add(logging.ErrorField(err)).
		Msg("run failed")
}

func (c *Controller) startRunSpan(ctx context.Context) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "controller.run",
		trace.WithAttributes(
			attribute.String("session.id", c.conversationID),
			attribute.String("agent.name", c.name),
			attribute.Int("agent.max_steps", c.maxSteps),
		),
	)
}

// cleanup runs the hooks with the run's messages. Hooks outlive cancellation
// of the run context.
func (c *Controller) cleanup(ctx context.Context, mark int) {
	if len(c.cleanups) == 0 {
		return
	}
	messages := c.log.Messages()
	if mark <= len(messages) {
		messages = messages[mark:]
	} else {
		messages = nil
	}
	snap := RunSnapshot{
		ConversationID: c.conversationID,
		Name:           c.name,
		State:          c.State(),
		Steps:          c.StepsTaken(),
		Messages:       messages,
	}

	ctx = context.WithoutCancel(ctx)
	for _, fn := range c.cleanups {
		fn(ctx, snap)
	}
}

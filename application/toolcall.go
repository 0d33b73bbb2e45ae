package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/tool"
	"github.com/felixgeelhaar/steploop/infrastructure/llm"
	"github.com/felixgeelhaar/steploop/infrastructure/logging"
	"github.com/felixgeelhaar/steploop/infrastructure/text"
	"github.com/felixgeelhaar/steploop/infrastructure/tools"
)

// Step result strings.
const (
	noActionPrefix    = "Thinking complete, no action needed: "
	noToolCallSuffix  = "No tool call needed."
	thinkErrorPrefix  = "Error during think: "
	stepErrorPrefix   = "Error executing step: "
	toolSummaryFormat = "Tool %s executed, result summary:\n%s"
)

// StepInput is what a step executor sees of its controller.
type StepInput struct {
	// Agent is the controller name, for logging.
	Agent string

	// SystemPrompt is sent with every model call.
	SystemPrompt string

	// NextStepPrompt is appended as a user turn before thinking.
	NextStepPrompt string

	// Log is the controller's message log. Executors may append to it or
	// replace it; the controller never touches it while a step runs.
	Log *agent.MessageLog
}

// StepExecutor runs one step of the loop.
type StepExecutor interface {
	Step(ctx context.Context, in StepInput) agent.StepOutcome
}

// ToolRunner executes pending tool calls and returns the updated history.
type ToolRunner interface {
	Execute(ctx context.Context, history []agent.Message, pending agent.Message) ([]agent.Message, error)
	Registry() tool.Registry
}

// ModelSettings are the per-request model overrides.
type ModelSettings struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ToolCallExecutor is the think-then-act step strategy backed by a model
// that can request tool calls.
type ToolCallExecutor struct {
	provider llm.Provider
	tools    ToolRunner
	settings ModelSettings
}

// NewToolCallExecutor creates a think/act executor. tools may be nil, in
// which case the model is offered no tools.
func NewToolCallExecutor(provider llm.Provider, tools ToolRunner, settings ModelSettings) *ToolCallExecutor {
	return &ToolCallExecutor{
		provider: provider,
		tools:    tools,
		settings: settings,
	}
}

// Step thinks and, when tool calls are pending, acts.
func (e *ToolCallExecutor) Step(ctx context.Context, in StepInput) agent.StepOutcome {
	think, outcome, decided := e.Think(ctx, in)
	if decided {
		return outcome
	}
	return e.Act(ctx, in, think)
}

// Think asks the model for the next move. When decided is true the step is
// over and outcome is final; otherwise think carries the pending tool calls.
func (e *ToolCallExecutor) Think(ctx context.Context, in StepInput) (think agent.ThinkResult, outcome agent.StepOutcome, decided bool) {
	if strings.TrimSpace(in.NextStepPrompt) != "" {
		in.Log.Append(agent.NewUserMessage(in.NextStepPrompt))
	}

	req := llm.CompletionRequest{
		System:      in.SystemPrompt,
		Messages:    in.Log.Messages(),
		Tools:       e.toolSpecs(),
		Model:       e.settings.Model,
		Temperature: e.settings.Temperature,
		MaxTokens:   e.settings.MaxTokens,
	}

	resp, err := e.provider.Complete(ctx, req)
	if err != nil {
		err = fmt.Errorf("%w: %v", agent.ErrModelCall, err)
		logging.Error().
			Add(logging.Agent(in.Agent)).
			Add(logging.Provider(e.provider.Name())).
			Add(logging.ErrorField(err)).
			Msg("think failed")
		rationale := thinkErrorPrefix + err.Error()
		in.Log.Append(agent.NewAssistantMessage(rationale))
		return agent.ThinkResult{Rationale: rationale}, agent.Failed(noActionPrefix+rationale, err), true
	}

	msg := resp.Message
	rationale := text.Normalize(msg.Content)

	logging.Info().
		Add(logging.Agent(in.Agent)).
		Add(logging.ToolCount(len(msg.ToolCalls))).
		Msg("think complete")
	for _, call := range msg.ToolCalls {
		logging.Debug().
			Add(logging.Agent(in.Agent)).
			Add(logging.ToolName(call.Name)).
			Add(logging.Str("arguments", call.Arguments)).
			Msg("tool selected")
	}

	if !msg.HasToolCalls() || text.IsTaskComplete(rationale) {
		// The log never holds unanswered tool calls.
		in.Log.Append(agent.NewAssistantMessage(msg.Content))
		return agent.ThinkResult{Rationale: rationale}, agent.Done(noActionPrefix + rationale), true
	}

	return agent.ThinkResult{ShouldAct: true, Rationale: rationale, Pending: msg}, agent.StepOutcome{}, false
}

// Act executes the pending tool calls of think and folds their results into
// the log.
func (e *ToolCallExecutor) Act(ctx context.Context, in StepInput, think agent.ThinkResult) agent.StepOutcome {
	if !think.ShouldAct || !think.Pending.HasToolCalls() {
		return agent.Continue(noToolCall(think.Rationale))
	}
	if e.tools == nil {
		// Unrunnable calls are dropped; the assistant text still enters the log.
		in.Log.Append(agent.NewAssistantMessage(think.Pending.Content))
		return agent.Continue(noToolCall(think.Rationale))
	}

	history := in.Log.Messages()
	updated, err := e.tools.Execute(ctx, history, think.Pending)
	if err != nil {
		return agent.Failed(stepErrorPrefix+err.Error(), fmt.Errorf("%w: %v", agent.ErrToolExecution, err))
	}
	in.Log.Replace(updated)

	results := updated[len(history):]
	summaries := make([]string, 0, len(results))
	terminated := false
	for _, m := range results {
		if m.Role != agent.RoleToolResult {
			continue
		}
		summaries = append(summaries, fmt.Sprintf(toolSummaryFormat, m.ToolName, text.FormatToolOutput(m.Content)))
		if e.isTerminal(m.ToolName) {
			terminated = true
		}
	}

	joined := text.Normalize(strings.Join(summaries, "\n\n"))
	logging.Info().
		Add(logging.Agent(in.Agent)).
		Add(logging.ToolCount(len(summaries))).
		Msg("act complete")

	result := text.Normalize(think.Rationale + "\n" + joined)
	if terminated {
		logging.Info().
			Add(logging.Agent(in.Agent)).
			Msg("terminate tool executed")
		return agent.Done(result)
	}
	return agent.Continue(result)
}

func noToolCall(rationale string) string {
	if strings.TrimSpace(rationale) == "" {
		return noToolCallSuffix
	}
	return rationale + "\n" + noToolCallSuffix
}

func (e *ToolCallExecutor) toolSpecs() []llm.ToolSpec {
	if e.tools == nil || e.tools.Registry() == nil {
		return nil
	}
	return llm.SpecsFrom(e.tools.Registry().List())
}

// isTerminal reports whether the named tool ends the run.
func (e *ToolCallExecutor) isTerminal(name string) bool {
	if tools.IsTerminate(name) {
		return true
	}
	if e.tools == nil || e.tools.Registry() == nil {
		return false
	}
	t, ok := e.tools.Registry().Get(name)
	return ok && t.Annotations().Terminal
}

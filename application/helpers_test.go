package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/steploop/application"
	"github.com/felixgeelhaar/steploop/domain/agent"
)

// stepFunc adapts a function to application.StepExecutor.
type stepFunc func(ctx context.Context, in application.StepInput) agent.StepOutcome

func (f stepFunc) Step(ctx context.Context, in application.StepInput) agent.StepOutcome {
	return f(ctx, in)
}

// recordingExecutor returns outcomes in order and records every input.
type recordingExecutor struct {
	mu       sync.Mutex
	outcomes []agent.StepOutcome
	inputs   []application.StepInput
}

func (e *recordingExecutor) Step(_ context.Context, in application.StepInput) agent.StepOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputs = append(e.inputs, in)
	if len(e.outcomes) == 0 {
		return agent.Continue("working")
	}
	out := e.outcomes[0]
	if len(e.outcomes) > 1 {
		e.outcomes = e.outcomes[1:]
	}
	return out
}

func (e *recordingExecutor) Inputs() []application.StepInput {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]application.StepInput(nil), e.inputs...)
}

// blockingExecutor blocks every step until its context is done.
func blockingExecutor() application.StepExecutor {
	return stepFunc(func(ctx context.Context, _ application.StepInput) agent.StepOutcome {
		<-ctx.Done()
		return agent.Failed("cancelled", ctx.Err())
	})
}

// collect drains events until the channel closes.
func collect(t *testing.T, events <-chan string) []string {
	t.Helper()
	var items []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case item, ok := <-events:
			if !ok {
				return items
			}
			items = append(items, item)
		case <-timeout:
			t.Fatalf("timed out waiting for stream to close, got %q", items)
			return nil
		}
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newController(t *testing.T, exec application.StepExecutor, opts ...application.Option) *application.Controller {
	t.Helper()
	c, err := application.NewController(exec, opts...)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return c
}

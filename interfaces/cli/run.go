package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/config"
)

// runOptions holds options for the run command.
type runOptions struct {
	chatID      string
	maxSteps    int
	timeout     time.Duration
	jsonOutput  bool
	interactive bool
}

func (o *runOptions) apply(cfg *config.AppConfig) {
	if o.maxSteps > 0 {
		cfg.Agent.MaxSteps = o.maxSteps
	}
	// A local run is a single start; the limiter is meant for the server.
	cfg.RateLimit.Enabled = false
}

// newRunCmd creates the run command.
func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run the agent on a prompt and print every step",
		Long: `Run the think/act loop on a prompt and block until it ends.

The loop stops when the model reports the task as done, calls the terminate
tool, or the step budget is spent.

Examples:
  # Run with defaults
  steploop run "Summarise https://go.dev"

  # Prompt from stdin, custom config and budget
  echo "Plan a weekend in Lisbon" | steploop run -c steploop.yaml --max-steps 5

  # JSON output
  steploop run --json "What time is it in Tokyo?"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := a.readPrompt(args)
			if err != nil {
				return err
			}
			return a.runAgent(cmd.Context(), prompt, opts)
		},
	}

	cmd.Flags().StringVar(&opts.chatID, "chat-id", "", "Conversation id (32 hex characters, generated when empty)")
	cmd.Flags().IntVar(&opts.maxSteps, "max-steps", 0, "Maximum steps per run (overrides config)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Run timeout")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the result as JSON")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Offer the ask_human tool on this terminal")

	return cmd
}

// runAgent executes a blocking run.
func (a *App) runAgent(ctx context.Context, prompt string, opts *runOptions) error {
	rt, err := a.bootstrap(ctx, runtimeOptions{
		interactive: opts.interactive,
		override:    opts.apply,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(ctx) }()

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := rt.svc.Run(ctx, prompt, opts.chatID, "")
	if err != nil {
		return fmt.Errorf("agent run failed: %w", err)
	}
	duration := time.Since(start)

	if opts.jsonOutput {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"chatId":   res.ChatID,
			"state":    res.State,
			"steps":    res.Steps,
			"result":   res.Result,
			"duration": duration.String(),
		})
	}

	_, _ = fmt.Fprintln(a.stdout, res.Result)
	_, _ = fmt.Fprintf(a.stdout, "\nRun completed\n")
	_, _ = fmt.Fprintf(a.stdout, "  Chat ID: %s\n", res.ChatID)
	_, _ = fmt.Fprintf(a.stdout, "  State: %s\n", res.State)
	_, _ = fmt.Fprintf(a.stdout, "  Steps: %d\n", res.Steps)
	_, _ = fmt.Fprintf(a.stdout, "  Duration: %s\n", duration)

	switch res.State {
	case agent.StateFinished:
		_, _ = fmt.Fprintf(a.stdout, "  Status: SUCCESS\n")
	case agent.StateIdle:
		_, _ = fmt.Fprintf(a.stdout, "  Status: BUDGET EXHAUSTED\n")
	case agent.StateError:
		_, _ = fmt.Fprintf(a.stdout, "  Status: FAILED\n")
	}
	return nil
}

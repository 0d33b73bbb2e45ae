package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/steploop/application"
	"github.com/felixgeelhaar/steploop/domain/session"
)

// newStreamCmd creates the stream command.
func (a *App) newStreamCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "stream [prompt]",
		Short: "Run the agent and print each step as it completes",
		Long: `Run the think/act loop in streaming mode. The session id is printed to
stderr first; every step result is printed to stdout as soon as it is ready.

Examples:
  steploop stream "Find the latest Go release notes"
  steploop stream --chat-id 0123456789abcdef0123456789abcdef "Continue"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := a.readPrompt(args)
			if err != nil {
				return err
			}
			return a.streamAgent(cmd.Context(), prompt, opts)
		},
	}

	cmd.Flags().StringVar(&opts.chatID, "chat-id", "", "Conversation id (32 hex characters, generated when empty)")
	cmd.Flags().IntVar(&opts.maxSteps, "max-steps", 0, "Maximum steps per run (overrides config)")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Offer the ask_human tool on this terminal")

	return cmd
}

func (a *App) streamAgent(ctx context.Context, prompt string, opts *runOptions) error {
	rt, err := a.bootstrap(ctx, runtimeOptions{
		interactive: opts.interactive,
		override:    opts.apply,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(ctx) }()

	sess, err := rt.svc.StartStream(ctx, prompt, opts.chatID, "")
	if err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	a.printSession(ctx, sess, func(item string) {
		_, _ = fmt.Fprintln(a.stdout, item)
	})
	return ctx.Err()
}

// printSession announces the session id and hands every other item to out
// until the session ends or ctx is done.
func (a *App) printSession(ctx context.Context, sess *application.Session, out func(string)) {
	for {
		select {
		case <-ctx.Done():
			sess.Cancel()
			return
		case item, ok := <-sess.Events:
			if !ok {
				return
			}
			if id, isSentinel := session.ParseSentinel(item); isSentinel {
				_, _ = fmt.Fprintf(a.stderr, "Session: %s\n", id)
				continue
			}
			out(item)
		}
	}
}

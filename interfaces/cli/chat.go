package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/steploop/application"
	"github.com/felixgeelhaar/steploop/domain/config"
)

// newChatCmd creates the chat command.
func (a *App) newChatCmd() *cobra.Command {
	var chatID string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask a single question without tools",
		Long: `Send one message to the model without the think/act loop. Earlier
messages of the conversation are loaded from the history store, so reusing
--chat-id continues a conversation.

Examples:
  steploop chat "What is a goroutine?"
  steploop chat --chat-id 0123456789abcdef0123456789abcdef "And a channel?"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := a.readPrompt(args)
			if err != nil {
				return err
			}
			return a.chat(cmd.Context(), message, chatID)
		},
	}

	cmd.Flags().StringVar(&chatID, "chat-id", "", "Conversation id (32 hex characters, generated when empty)")
	return cmd
}

func (a *App) chat(ctx context.Context, message, chatID string) error {
	rt, err := a.bootstrap(ctx, runtimeOptions{
		override: func(cfg *config.AppConfig) { cfg.RateLimit.Enabled = false },
	})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(ctx) }()

	sess, err := rt.svc.StartChat(ctx, message, chatID, "")
	if err != nil {
		return fmt.Errorf("failed to start chat: %w", err)
	}

	failed := false
	a.printSession(ctx, sess, func(chunk string) {
		switch chunk {
		case application.ChatDone:
			_, _ = fmt.Fprintln(a.stdout)
		case application.ChatFailure:
			failed = true
			_, _ = fmt.Fprintln(a.stderr, chunk)
		default:
			_, _ = fmt.Fprint(a.stdout, chunk)
		}
	})
	if failed {
		return errors.New("chat failed")
	}
	return ctx.Err()
}

// Package cli provides the command-line interface for steploop.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/steploop"
)

// Version information set at build time.
var (
	Version   = steploop.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "steploop",
		Short: "Bounded think/act agent controller",
		Long: `steploop drives a language model through a bounded think/act loop.

Each step asks the model what to do next, runs the tools it requests and
feeds the results back, until the task is finished, the terminate tool is
called or the step budget runs out. Runs can be blocking, streamed to the
terminal, or served over HTTP as Server-Sent Events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	app.root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Path to configuration file (defaults are used when omitted)")
	app.root.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newValidateCmd(),
		app.newRunCmd(),
		app.newStreamCmd(),
		app.newChatCmd(),
		app.newServeCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// WithInput sets the reader used for prompts read from stdin and for the
// ask_human tool.
func (a *App) WithInput(stdin io.Reader) *App {
	a.stdin = stdin
	a.root.SetIn(stdin)
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// newVersionCmd creates the version command.
func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "steploop version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	cfgloader "github.com/felixgeelhaar/steploop/infrastructure/config"
)

// validateOptions holds options for the validate command.
type validateOptions struct {
	strict bool
}

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate a steploop configuration file.

This command checks:
  - File format (YAML or JSON)
  - Step budget, duplicate threshold and durations
  - Known model provider, history back-end and trace exporter
  - Rate limit values
  - Environment variable references (in strict mode)

Examples:
  steploop validate -c steploop.yaml
  steploop validate -c steploop.yaml --strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validateConfig(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail on undefined environment variables")
	return cmd
}

// validateConfig validates the configuration file.
func (a *App) validateConfig(opts *validateOptions) error {
	if a.configPath == "" {
		return fmt.Errorf("configuration file path is required (-c flag)")
	}

	loaderOpts := []cfgloader.LoaderOption{
		cfgloader.WithValidation(true),
	}
	if opts.strict {
		loaderOpts = append(loaderOpts, cfgloader.WithStrictEnv(true))
	}

	cfg, err := cfgloader.NewLoaderWithOptions(loaderOpts...).LoadFile(a.configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(a.stdout, "✓ Configuration is valid\n")
	fmt.Fprintf(a.stdout, "  Name: %s\n", cfg.Name)

	fmt.Fprintf(a.stdout, "\nConfiguration summary:\n")
	fmt.Fprintf(a.stdout, "  Max steps: %d\n", cfg.Agent.MaxSteps)
	fmt.Fprintf(a.stdout, "  Duplicate threshold: %d\n", cfg.Agent.DuplicateThreshold)
	fmt.Fprintf(a.stdout, "  Stream timeout: %s\n", cfg.Agent.StreamTimeout.Duration())
	fmt.Fprintf(a.stdout, "  Model: %s (%s)\n", cfg.Model.Model, cfg.Model.Provider)
	fmt.Fprintf(a.stdout, "  History: %s\n", cfg.History.Backend)

	if len(cfg.Tools.Enabled) > 0 {
		fmt.Fprintf(a.stdout, "  Tools: %d\n", len(cfg.Tools.Enabled))
		for _, name := range cfg.Tools.Enabled {
			fmt.Fprintf(a.stdout, "    - %s\n", name)
		}
	}

	if cfg.RateLimit.Enabled {
		fmt.Fprintf(a.stdout, "  Rate limiting: enabled (rate=%d, burst=%d)\n",
			cfg.RateLimit.Rate, cfg.RateLimit.Burst)
	}
	if retain := cfg.Registry.RetainTTL.Duration(); retain > 0 {
		fmt.Fprintf(a.stdout, "  Registry retain TTL: %s\n", retain)
	}
	if cfg.Tracing.Enabled {
		fmt.Fprintf(a.stdout, "  Tracing: %s\n", cfg.Tracing.Exporter)
	}

	return nil
}

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/steploop/application"
	"github.com/felixgeelhaar/steploop/domain/config"
	cfgloader "github.com/felixgeelhaar/steploop/infrastructure/config"
	"github.com/felixgeelhaar/steploop/infrastructure/llm"
	"github.com/felixgeelhaar/steploop/infrastructure/logging"
	"github.com/felixgeelhaar/steploop/infrastructure/observability"
	"github.com/felixgeelhaar/steploop/infrastructure/resilience"
	"github.com/felixgeelhaar/steploop/infrastructure/storage"
	"github.com/felixgeelhaar/steploop/infrastructure/storage/memory"
	"github.com/felixgeelhaar/steploop/infrastructure/toolexec"
	"github.com/felixgeelhaar/steploop/infrastructure/tools"
)

// runtime is the wired object graph behind a command.
type runtime struct {
	cfg       config.AppConfig
	svc       *application.Service
	metrics   *observability.Metrics
	telemetry *observability.Provider
	closers   []func() error
}

// runtimeOptions tune how the graph is built for a command.
type runtimeOptions struct {
	// interactive offers the ask_human tool over stdin/stdout.
	interactive bool

	// override adjusts the loaded configuration.
	override func(*config.AppConfig)
}

// loadConfig loads the config file, or the defaults without one.
func (a *App) loadConfig() (config.AppConfig, error) {
	cfg, err := cfgloader.NewLoader().LoadOrDefault(a.configPath)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	return *cfg, nil
}

// setupLogging installs the process logger for cfg. Logs go to stderr so
// step output on stdout stays clean.
func (a *App) setupLogging(cfg config.AppConfig) {
	logging.Use(logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: a.stderr,
	}))
}

// bootstrap loads the configuration and builds the session service.
func (a *App) bootstrap(ctx context.Context, opts runtimeOptions) (*runtime, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	if opts.override != nil {
		opts.override(&cfg)
	}
	a.setupLogging(cfg)

	rt := &runtime{cfg: cfg, metrics: observability.NewMetrics()}

	telCfg := observability.ConfigFrom(cfg.Tracing)
	telCfg.ServiceVersion = Version
	if telCfg.Tracing.Exporter == observability.ExporterStdout {
		telCfg.Tracing.Writer = a.stderr
	}
	rt.telemetry, err = observability.NewWithConfig(telCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	tracer := rt.telemetry.Tracer()

	provider, err := llm.NewFromConfig(cfg.Model, cfg.Resilience, tracer)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to create model provider: %w", err)
	}

	var prompter tools.Prompter
	if opts.interactive {
		prompter = tools.NewLinePrompter(a.stdin, a.stdout)
	}
	registry, err := memory.NewToolRegistry(tools.Builtins(cfg, prompter, http.DefaultClient)...)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	runner := toolexec.New(registry,
		toolexec.WithRunner(resilience.NewExecutor(resilience.ConfigFrom(cfg.Resilience))),
		toolexec.WithTracer(tracer),
	)

	store, closeStore, err := storage.OpenHistory(ctx, cfg.History)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	rt.closers = append(rt.closers, closeStore)

	rt.svc, err = application.NewService(application.ServiceConfig{
		Config:   cfg,
		Provider: provider,
		Tools:    runner,
		History:  store,
		Limiter:  resilience.NewStartLimiter(cfg.RateLimit),
		Metrics:  rt.metrics,
		Tracer:   tracer,
	})
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	logging.Debug().
		Add(logging.Agent(cfg.Name)).
		Add(logging.Provider(provider.Name())).
		Add(logging.Model(cfg.Model.Model)).
		Add(logging.ToolCount(registry.Count())).
		Add(logging.Str("history", cfg.History.Backend)).
		Msg("runtime ready")
	return rt, nil
}

// Close releases stores and flushes telemetry.
func (r *runtime) Close(ctx context.Context) error {
	var errs []error
	for _, fn := range r.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.telemetry != nil {
		if err := r.telemetry.Shutdown(context.WithoutCancel(ctx)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// readPrompt returns the first argument, or stdin when absent.
func (a *App) readPrompt(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(bufio.NewReader(a.stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("no prompt specified (use an argument or stdin)")
	}
	return prompt, nil
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/steploop/domain/config"
	cfgloader "github.com/felixgeelhaar/steploop/infrastructure/config"
	"github.com/felixgeelhaar/steploop/infrastructure/logging"
	"github.com/felixgeelhaar/steploop/interfaces/httpapi"
)

// newServeCmd creates the serve command.
func (a *App) newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over HTTP",
		Long: `Start the HTTP server.

Endpoints:
  GET  /ai/chat/liteMind?message=&chatId=   think/act session as SSE
  GET  /ai/chat/simple?message=&chatId=     single-call chat as SSE
  POST /ai/chat/terminate?chatId=&final=    stop a session
  POST /ai/chat/run                         blocking run, JSON body
  GET  /healthz                             liveness and session count
  GET  /metrics                             Prometheus metrics

With -c, the file is watched and changes apply to new sessions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func (a *App) serve(ctx context.Context, addr string) error {
	rt, err := a.bootstrap(ctx, runtimeOptions{
		override: func(cfg *config.AppConfig) {
			if addr != "" {
				cfg.Server.Addr = addr
			}
		},
	})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(ctx) }()

	opts := []httpapi.Option{
		httpapi.WithMetrics(rt.metrics),
		httpapi.WithKeepalive(rt.cfg.Server.Keepalive.Duration()),
	}
	if rt.telemetry.Enabled() {
		opts = append(opts, httpapi.WithTracing())
	}
	server := httpapi.New(rt.svc, opts...)

	rt.svc.Registry().StartJanitor(ctx, rt.cfg.Registry.SweepInterval.Duration())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx, rt.cfg.Server.Addr)
	})

	if a.configPath != "" {
		watcher, err := cfgloader.NewWatcher(a.configPath, func(cfg *config.AppConfig) {
			if a.logLevel != "" {
				cfg.Logging.Level = a.logLevel
			}
			logging.SetLevel(cfg.Logging.Level)
			rt.svc.UpdateConfig(*cfg)
		})
		if err != nil {
			return fmt.Errorf("failed to watch configuration: %w", err)
		}
		defer func() { _ = watcher.Close() }()

		g.Go(func() error {
			if err := watcher.Watch(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

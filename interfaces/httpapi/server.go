// Package httpapi exposes the session service over HTTP with gin. Streaming
// endpoints use Server-Sent Events.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/felixgeelhaar/steploop/application"
	"github.com/felixgeelhaar/steploop/infrastructure/logging"
	"github.com/felixgeelhaar/steploop/infrastructure/observability"
)

// DefaultKeepalive is the SSE ping interval when none is configured.
const DefaultKeepalive = 15 * time.Second

// shutdownTimeout bounds the graceful drain of open connections.
const shutdownTimeout = 10 * time.Second

// Server is the HTTP surface of a session service.
type Server struct {
	svc       *application.Service
	metrics   *observability.Metrics
	keepalive time.Duration
	tracing   bool
	engine    *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves m on /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithKeepalive sets the SSE ping interval.
func WithKeepalive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepalive = d
		}
	}
}

// WithTracing instruments every request with an OpenTelemetry span.
func WithTracing() Option {
	return func(s *Server) {
		s.tracing = true
	}
}

// New creates a server and registers its routes.
func New(svc *application.Service, opts ...Option) *Server {
	s := &Server{
		svc:       svc,
		keepalive: DefaultKeepalive,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), requestLogger())
	if s.tracing {
		s.engine.Use(otelgin.Middleware("steploop"))
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	ai := s.engine.Group("/ai/chat")
	ai.GET("/liteMind", s.handleLiteMind)
	ai.GET("/simple", s.handleSimple)
	ai.POST("/terminate", s.handleTerminate)
	ai.POST("/run", s.handleRun)

	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Add(logging.Str("addr", addr)).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info().Msg("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// requestLogger logs each request at debug once it completes.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debug().
			Add(logging.Str("method", c.Request.Method)).
			Add(logging.Str("path", c.FullPath())).
			Add(logging.Int("status", c.Writer.Status())).
			Add(logging.Duration(time.Since(start))).
			Msg("http request")
	}
}

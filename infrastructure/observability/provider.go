package observability

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// TracerName is the instrumentation scope of every span.
const TracerName = "github.com/felixgeelhaar/steploop"

// ErrUnknownExporter indicates an unsupported exporter type.
var ErrUnknownExporter = errors.New("unknown trace exporter type")

// Provider manages the tracing infrastructure.
type Provider struct {
	config         Config
	tracerProvider trace.TracerProvider
	shutdownFuncs  []func(context.Context) error
}

// New creates a new observability provider.
func New(opts ...Option) (*Provider, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a provider from a complete configuration.
func NewWithConfig(cfg Config) (*Provider, error) {
	p := &Provider{
		config:         cfg,
		tracerProvider: noop.NewTracerProvider(),
	}

	if cfg.Tracing.Enabled {
		if err := p.setupTracing(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NewNoopProvider creates a provider whose tracer records nothing.
func NewNoopProvider() *Provider {
	return &Provider{config: DefaultConfig(), tracerProvider: noop.NewTracerProvider()}
}

func (p *Provider) setupTracing() error {
	ctx := context.Background()

	// Not merged with resource.Default() to avoid schema URL conflicts.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(p.config.ServiceName),
		semconv.ServiceVersion(p.config.ServiceVersion),
		semconv.DeploymentEnvironment(p.config.Environment),
	)

	var exporter sdktrace.SpanExporter

	switch p.config.Tracing.Exporter {
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(p.config.Tracing.Endpoint),
		}
		if p.config.Tracing.Insecure {
			opts = append(opts,
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
				otlptracegrpc.WithInsecure(),
			)
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("create otlp exporter: %w", err)
		}
		exporter = exp

	case ExporterStdout:
		w := p.config.Tracing.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("create stdout exporter: %w", err)
		}
		exporter = exp

	case ExporterNoop:
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnknownExporter, p.config.Tracing.Exporter)
	}

	var sampler sdktrace.Sampler
	switch rate := p.config.Tracing.SampleRate; {
	case rate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case rate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(rate)
	}

	batchOpts := []sdktrace.BatchSpanProcessorOption{}
	if p.config.Tracing.BatchTimeout > 0 {
		batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(p.config.Tracing.BatchTimeout))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, batchOpts...),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.tracerProvider = tp
	p.shutdownFuncs = append(p.shutdownFuncs, tp.Shutdown)
	return nil
}

// Tracer returns the tracer used for controller, model and tool spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracerProvider.Tracer(TracerName)
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return len(p.shutdownFuncs) > 0
}

// Shutdown flushes pending spans and stops the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package observability

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.ServiceName != "steploop" {
		t.Errorf("ServiceName = %s, want steploop", cfg.ServiceName)
	}
	if cfg.Tracing.Enabled {
		t.Error("tracing should be disabled by default")
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("SampleRate = %v, want 1.0", cfg.Tracing.SampleRate)
	}
}

func TestConfigFrom(t *testing.T) {
	t.Parallel()

	cfg := ConfigFrom(config.TracingConfig{
		Enabled:    true,
		Exporter:   config.ExporterOTLP,
		Endpoint:   "collector:4317",
		Insecure:   true,
		SampleRate: 0.5,
	})
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != ExporterOTLP {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.Tracing.Endpoint != "collector:4317" || !cfg.Tracing.Insecure || cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
}

func TestNoopProvider(t *testing.T) {
	t.Parallel()

	p := NewNoopProvider()
	if p.Enabled() {
		t.Error("noop provider should not be enabled")
	}
	_, span := p.Tracer().Start(context.Background(), "test")
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNew_Disabled(t *testing.T) {
	t.Parallel()

	p, err := New(WithServiceName("svc"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.Enabled() {
		t.Error("provider should not be enabled without tracing")
	}
}

func TestNew_UnknownExporter(t *testing.T) {
	t.Parallel()

	_, err := NewWithConfig(Config{Tracing: TracingConfig{Enabled: true, Exporter: "zipkin"}})
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("NewWithConfig() error = %v, want ErrUnknownExporter", err)
	}
}

// The stdout provider sets the global tracer provider, so this test is not parallel.
func TestNew_StdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(WithServiceName("steploop-test"), WithStdoutTracing(&buf))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !p.Enabled() {
		t.Fatal("stdout provider should be enabled")
	}

	_, span := p.Tracer().Start(context.Background(), "controller.run")
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), "controller.run") {
		t.Errorf("exported output does not contain span name: %s", buf.String())
	}
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveStep(agent.OutcomeContinue, 10*time.Millisecond)
	m.ObserveStep(agent.OutcomeContinue, 20*time.Millisecond)
	m.ObserveStep(agent.OutcomeDone, 5*time.Millisecond)
	m.StuckDetected()
	m.SetActiveSessions(3)
	m.Terminated(true)
	m.Terminated(false)
	m.Terminated(false)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"steps continue", testutil.ToFloat64(m.steps.WithLabelValues("continue")), 2},
		{"steps done", testutil.ToFloat64(m.steps.WithLabelValues("done")), 1},
		{"stuck", testutil.ToFloat64(m.stuck), 1},
		{"sessions", testutil.ToFloat64(m.sessions), 3},
		{"hard terminations", testutil.ToFloat64(m.terminations.WithLabelValues("hard")), 1},
		{"soft terminations", testutil.ToFloat64(m.terminations.WithLabelValues("soft")), 2},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.StuckDetected()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "steploop_stuck_detections_total 1") {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveStep(agent.OutcomeFailed, time.Second)
	m.StuckDetected()
	m.SetActiveSessions(1)
	m.Terminated(true)
	if m.Handler() == nil {
		t.Error("Handler() should never be nil")
	}
}

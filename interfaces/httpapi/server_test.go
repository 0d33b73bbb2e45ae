package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/steploop/application"
	"github.com/felixgeelhaar/steploop/domain/config"
	"github.com/felixgeelhaar/steploop/domain/session"
	"github.com/felixgeelhaar/steploop/infrastructure/llm"
	"github.com/felixgeelhaar/steploop/infrastructure/observability"
	"github.com/felixgeelhaar/steploop/infrastructure/resilience"
	"github.com/felixgeelhaar/steploop/infrastructure/storage/memory"
	"github.com/felixgeelhaar/steploop/infrastructure/toolexec"
	"github.com/felixgeelhaar/steploop/infrastructure/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, provider llm.Provider, mutate ...func(*config.AppConfig)) (*Server, *application.Service) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.RateLimit.Enabled = false
	for _, fn := range mutate {
		fn(&cfg)
	}

	reg, err := memory.NewToolRegistry(tools.Terminate())
	require.NoError(t, err)

	promReg := prometheus.NewRegistry()
	metrics := observability.NewMetricsWith(promReg, promReg)

	svc, err := application.NewService(application.ServiceConfig{
		Config:   cfg,
		Provider: provider,
		Tools:    toolexec.New(reg),
		History:  memory.NewHistoryStore(),
		Limiter:  resilience.NewStartLimiter(cfg.RateLimit),
		Metrics:  metrics,
	})
	require.NoError(t, err)

	return New(svc, WithMetrics(metrics)), svc
}

func get(t *testing.T, s *Server, path string, query url.Values) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path+"?"+query.Encode(), nil)
	s.Handler().ServeHTTP(w, req)
	return w
}

// dataLines returns the payload of every data field in an SSE body.
func dataLines(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			out = append(out, strings.TrimPrefix(line, "data: "))
		}
	}
	return out
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, llm.NewScriptedProvider())

	w := get(t, s, "/healthz", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["sessions"])
}

func TestLiteMind_Streams(t *testing.T) {
	s, _ := newTestServer(t, llm.NewScriptedProvider(llm.Reply("任务已完成")))

	w := get(t, s, "/ai/chat/liteMind", url.Values{"message": {"plan a trip"}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	data := dataLines(w.Body.String())
	require.GreaterOrEqual(t, len(data), 2)
	id, ok := session.ParseSentinel(data[0])
	assert.True(t, ok, "first event should be the sentinel, got %q", data[0])
	assert.True(t, session.IsValid(id))
	assert.Equal(t, "Step 1: Thinking complete, no action needed: 任务已完成", data[1])
	assert.True(t, strings.HasSuffix(w.Body.String(), "event: done\ndata: \n\n"))
}

func TestLiteMind_MultiLineItem(t *testing.T) {
	provider := llm.NewScriptedProvider(llm.Reply("wrapping up", llm.Call("terminate", "{}")))
	s, _ := newTestServer(t, provider)

	w := get(t, s, "/ai/chat/liteMind", url.Values{"message": {"go"}})

	data := dataLines(w.Body.String())
	require.Len(t, data, 5)
	assert.Equal(t, "Step 1: wrapping up", data[1])
	assert.Equal(t, "Tool terminate executed, result summary:", data[2])
	assert.Equal(t, tools.TerminateResult, data[3])
}

func TestLiteMind_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		query      url.Values
		wantStatus int
	}{
		{"blank message", url.Values{"message": {"  "}}, http.StatusBadRequest},
		{"missing message", url.Values{}, http.StatusBadRequest},
		{"bad chat id", url.Values{"message": {"hi"}, "chatId": {"not-hex"}}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, llm.NewScriptedProvider())

			w := get(t, s, "/ai/chat/liteMind", tt.query)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestLiteMind_RateLimited(t *testing.T) {
	provider := llm.NewScriptedProvider(llm.Reply("done")).RepeatLast()
	s, _ := newTestServer(t, provider, func(c *config.AppConfig) {
		c.RateLimit = config.RateLimitConfig{Enabled: true, Rate: 1, Burst: 1}
	})

	first := get(t, s, "/ai/chat/liteMind", url.Values{"message": {"one"}})
	assert.Equal(t, http.StatusOK, first.Code)

	second := get(t, s, "/ai/chat/liteMind", url.Values{"message": {"two"}})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestSimple_Streams(t *testing.T) {
	s, _ := newTestServer(t, llm.NewScriptedProvider(llm.Reply("hi there")))

	w := get(t, s, "/ai/chat/simple", url.Values{"message": {"hello"}})

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataLines(w.Body.String())
	require.Len(t, data, 5)
	_, ok := session.ParseSentinel(data[0])
	assert.True(t, ok)
	assert.Equal(t, []string{"hi ", "there", application.ChatDone}, data[1:4])
	assert.Equal(t, "", data[4])
}

func TestTerminate(t *testing.T) {
	s, svc := newTestServer(t, llm.NewScriptedProvider())
	id := session.Generate()
	svc.Registry().Register(id, nil, application.NewStream(1), func() {})

	post := func(query url.Values) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/ai/chat/terminate?"+query.Encode(), nil)
		s.Handler().ServeHTTP(w, req)
		return w
	}

	w := post(url.Values{"chatId": {id}, "final": {"true"}})
	assert.Equal(t, http.StatusOK, w.Code)
	var ok terminateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	assert.Equal(t, terminateResponse{ChatID: id, OK: true, Result: "terminated"}, ok)

	w = post(url.Values{"chatId": {id}, "final": {"true"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	var missing terminateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &missing))
	assert.Equal(t, terminateResponse{ChatID: id, OK: false, Result: "not_found"}, missing)

	w = post(url.Values{"chatId": {id}, "final": {"maybe"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(url.Values{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTerminate_SoftKeepsEntry(t *testing.T) {
	s, svc := newTestServer(t, llm.NewScriptedProvider())
	id := session.Generate()
	svc.Registry().Register(id, nil, application.NewStream(1), func() {})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/ai/chat/terminate?chatId="+id, nil)
		s.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 1, svc.Registry().Len())
}

func TestRun(t *testing.T) {
	s, _ := newTestServer(t, llm.NewScriptedProvider(llm.Reply("task finished")))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ai/chat/run", strings.NewReader(`{"message":"do it"}`))
	req.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body runResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, session.IsValid(body.ChatID))
	assert.Equal(t, "finished", body.State)
	assert.Equal(t, 1, body.Steps)
	assert.Equal(t, "Step 1: Thinking complete, no action needed: task finished", body.Result)
}

func TestRun_BadBody(t *testing.T) {
	s, _ := newTestServer(t, llm.NewScriptedProvider())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ai/chat/run", strings.NewReader(`{`))
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, llm.NewScriptedProvider(llm.Reply("done")))
	get(t, s, "/ai/chat/liteMind", url.Values{"message": {"count me"}})

	w := get(t, s, "/metrics", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "steploop_steps_total")
}

func TestSSEWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := newSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteData("one\ntwo"))
	require.NoError(t, w.WriteKeepAlive())
	require.NoError(t, w.WriteEvent("done", ""))

	assert.Equal(t, "data: one\ndata: two\n\n: ping\n\nevent: done\ndata: \n\n", rec.Body.String())
}

func TestStream_Keepalive(t *testing.T) {
	s, _ := newTestServer(t, llm.NewScriptedProvider())
	s.keepalive = 5 * time.Millisecond

	events := make(chan string)
	sess := &application.Session{ID: session.Generate(), Events: events}

	router := gin.New()
	router.GET("/stream", func(c *gin.Context) { s.stream(c, sess) })

	go func() {
		time.Sleep(30 * time.Millisecond)
		close(events)
	}()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.Contains(t, w.Body.String(), ": ping\n\n")
}

func TestListenAndServe_Shutdown(t *testing.T) {
	s, _ := newTestServer(t, llm.NewScriptedProvider())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

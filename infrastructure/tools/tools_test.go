package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/felixgeelhaar/steploop/domain/config"
)

func TestTerminate(t *testing.T) {
	t.Parallel()

	term := Terminate()
	if !term.Annotations().Terminal {
		t.Error("terminate should be annotated as terminal")
	}

	result, err := term.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Text() != TerminateResult {
		t.Errorf("Text() = %q, want %q", result.Text(), TerminateResult)
	}
}

func TestIsTerminate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"terminate", true},
		{"doTerminate", true},
		{"自行终止", true},
		{"web_scrape", false},
		{"Terminate", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsTerminate(tt.name); got != tt.want {
			t.Errorf("IsTerminate(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAskHuman(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	prompter := NewLinePrompter(strings.NewReader("  blue  \n"), &out)

	result, err := AskHuman(prompter).Execute(context.Background(), json.RawMessage(`{"inquire":"favourite colour?"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Text() != "blue" {
		t.Errorf("Text() = %q, want blue", result.Text())
	}
	if !strings.Contains(out.String(), "Bot: favourite colour?") {
		t.Errorf("prompt = %q, want question", out.String())
	}
}

func TestAskHuman_NoAnswer(t *testing.T) {
	t.Parallel()

	prompter := NewLinePrompter(strings.NewReader(""), io.Discard)
	_, err := AskHuman(prompter).Execute(context.Background(), json.RawMessage(`{"inquire":"?"}`))
	if !errors.Is(err, ErrNoAnswer) {
		t.Errorf("Execute() error = %v, want ErrNoAnswer", err)
	}
}

func TestWebScrape(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 200)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/short":
			_, _ = io.WriteString(w, `<html><head><title>Hello Page</title>
				<meta name="description" content="A greeting"></head>
				<body><h1>Hi</h1><script>var x = 1;</script><p>there</p></body></html>`)
		case "/long":
			_, _ = io.WriteString(w, "<html><head><title>Long</title></head><body><p>"+long+"</p></body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	scraper := WebScrape(server.Client())

	tests := []struct {
		name     string
		url      string
		contains []string
		excludes []string
	}{
		{
			name:     "short page",
			url:      server.URL + "/short",
			contains: []string{"Title: Hello Page\n", "Description: A greeting\n", "Body preview:\nHi there"},
			excludes: []string{"var x", BodyTruncatedMarker},
		},
		{
			name:     "long page",
			url:      server.URL + "/long",
			contains: []string{"Title: Long\n", BodyTruncatedMarker},
			excludes: []string{"Description:"},
		},
		{
			name:     "not found",
			url:      server.URL + "/missing",
			contains: []string{"web scrape failed: unexpected status 404"},
		},
		{
			name:     "blank url",
			url:      "",
			contains: []string{"web scrape failed:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			input, _ := json.Marshal(webScrapeInput{URL: tt.url})
			result, err := scraper.Execute(context.Background(), input)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			got := result.Text()
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("output = %q, want to contain %q", got, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("output = %q, should not contain %q", got, unwanted)
				}
			}
		})
	}
}

func TestBuiltins(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	names := func(cfg config.AppConfig, p Prompter) []string {
		var out []string
		for _, tl := range Builtins(cfg, p, nil) {
			out = append(out, tl.Name())
		}
		return out
	}

	got := names(cfg, nil)
	if strings.Join(got, ",") != "terminate,web_scrape" {
		t.Errorf("Builtins() = %v, want [terminate web_scrape]", got)
	}

	cfg.Tools.Enabled = append(cfg.Tools.Enabled, AskHumanName)
	if got := names(cfg, nil); len(got) != 2 {
		t.Errorf("Builtins() without prompter = %v, want ask_human omitted", got)
	}
	prompter := NewLinePrompter(strings.NewReader(""), io.Discard)
	if got := names(cfg, prompter); len(got) != 3 || got[2] != AskHumanName {
		t.Errorf("Builtins() with prompter = %v, want ask_human last", got)
	}
}

func TestBuiltins_WebSearchNeedsKey(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Tools.Enabled = []string{WebSearchName}
	if got := Builtins(cfg, nil, nil); len(got) != 0 {
		t.Errorf("Builtins() without api key = %d tools, want 0", len(got))
	}

	cfg.Tools.Search.APIKey = "secret"
	got := Builtins(cfg, nil, nil)
	if len(got) != 1 || got[0].Name() != WebSearchName {
		t.Errorf("Builtins() with api key = %v, want [web_search]", got)
	}
}

func TestWebSearch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "go channels" || q.Get("api_key") != "secret" || q.Get("engine") != "baidu" {
			http.Error(w, "unexpected query "+r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"organic_results": [
			{"title": "one", "link": "https://a.example"},
			{"title": "two", "link": "https://b.example"},
			{"title": "three", "link": "https://c.example"}
		]}`)
	}))
	t.Cleanup(server.Close)

	cfg := config.SearchConfig{URL: server.URL, APIKey: "secret", Engine: "baidu", Limit: 2}
	result, err := WebSearch(cfg, server.Client()).Execute(context.Background(), json.RawMessage(`{"query":"go channels"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := `{"title":"one","link":"https://a.example"},{"title":"two","link":"https://b.example"}`
	if result.Text() != want {
		t.Errorf("Text() = %q, want %q", result.Text(), want)
	}
}

func TestWebSearch_Failures(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "broken" {
			_, _ = io.WriteString(w, "not json")
			return
		}
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	search := WebSearch(config.SearchConfig{URL: server.URL, APIKey: "k"}, server.Client())

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"blank query", `{"query":"  "}`, "query is required"},
		{"bad input", `{"query":`, "web search failed"},
		{"status", `{"query":"go"}`, "unexpected status 429"},
		{"bad body", `{"query":"broken"}`, "decode response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result, err := search.Execute(context.Background(), json.RawMessage(tt.input))
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if !strings.HasPrefix(result.Text(), "web search failed: ") || !strings.Contains(result.Text(), tt.want) {
				t.Errorf("Text() = %q, want failure containing %q", result.Text(), tt.want)
			}
		})
	}
}

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/steploop/domain/config"
	"github.com/felixgeelhaar/steploop/domain/tool"
)

// DefaultSearchLimit is the number of results returned when none is configured.
const DefaultSearchLimit = 5

const maxSearchBytes = 1 << 20

type webSearchInput struct {
	Query string `json:"query"`
}

type searchResponse struct {
	OrganicResults []json.RawMessage `json:"organic_results"`
}

// WebSearch returns a tool that queries a SearchAPI-compatible endpoint and
// returns the top organic results as comma-joined JSON objects. A nil client
// uses a client with a 20 second timeout.
func WebSearch(cfg config.SearchConfig, client *http.Client) tool.Tool {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultSearchLimit
	}

	return tool.NewBuilder(WebSearchName).
		WithDescription("Search the web for information with a search engine").
		WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
			"query": tool.StringProperty("Search query keyword"),
		}, []string{"query"})).
		ReadOnly().
		WithTimeout(30).
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			var in webSearchInput
			if err := json.Unmarshal(input, &in); err != nil {
				return tool.NewTextResult("web search failed: " + err.Error()), nil
			}
			results, err := search(ctx, client, cfg, in.Query)
			if err != nil {
				return tool.NewTextResult("web search failed: " + err.Error()), nil
			}
			return tool.NewTextResult(results), nil
		}).
		MustBuild()
}

func search(ctx context.Context, client *http.Client, cfg config.SearchConfig, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: query is required", tool.ErrInvalidInput)
	}

	endpoint, err := url.Parse(cfg.URL)
	if err != nil {
		return "", err
	}
	params := endpoint.Query()
	params.Set("q", query)
	params.Set("api_key", cfg.APIKey)
	if cfg.Engine != "" {
		params.Set("engine", cfg.Engine)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSearchBytes)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	results := body.OrganicResults
	if len(results) > cfg.Limit {
		results = results[:cfg.Limit]
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		var compact bytes.Buffer
		if err := json.Compact(&compact, r); err != nil {
			continue
		}
		out = append(out, compact.String())
	}
	return strings.Join(out, ","), nil
}

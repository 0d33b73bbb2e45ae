package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/steploop/domain/tool"
	"github.com/felixgeelhaar/steploop/infrastructure/text"
)

// Scrape limits.
const (
	BodyPreviewLen = 400
	maxPageBytes   = 2 << 20
)

// BodyTruncatedMarker follows a shortened body preview.
const BodyTruncatedMarker = "... [content truncated, visit the page for full content]"

type webScrapeInput struct {
	URL string `json:"url"`
}

// WebScrape returns a tool that fetches a page and summarises it. A nil
// client uses a client with a 20 second timeout.
func WebScrape(client *http.Client) tool.Tool {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}

	return tool.NewBuilder(WebScrapeName).
		WithDescription("Scrape the content of a web page").
		WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
			"url": tool.StringProperty("URL of the web page to scrape"),
		}, []string{"url"})).
		ReadOnly().
		WithTimeout(30).
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			var in webScrapeInput
			if err := json.Unmarshal(input, &in); err != nil {
				return tool.NewTextResult("web scrape failed: " + err.Error()), nil
			}
			summary, err := scrape(ctx, client, in.URL)
			if err != nil {
				return tool.NewTextResult("web scrape failed: " + err.Error()), nil
			}
			return tool.NewTextResult(summary), nil
		}).
		MustBuild()
}

func scrape(ctx context.Context, client *http.Client, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("%w: url is required", tool.ErrInvalidInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "steploop/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := text.ParseHTML(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Title: ")
	sb.WriteString(doc.Title())
	sb.WriteString("\n")
	if desc := doc.Description(); desc != "" {
		sb.WriteString("Description: ")
		sb.WriteString(desc)
		sb.WriteString("\n")
	}
	sb.WriteString("Body preview:\n")
	sb.WriteString(text.TruncateWith(doc.BodyText(), BodyPreviewLen, BodyTruncatedMarker))
	return sb.String(), nil
}

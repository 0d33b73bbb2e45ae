package tools

import (
	"net/http"

	"github.com/felixgeelhaar/steploop/domain/config"
	"github.com/felixgeelhaar/steploop/domain/tool"
)

// Builtins returns the enabled built-in tools in a stable order. ask_human is
// only offered when a prompter is supplied, web_search only with an API key.
func Builtins(cfg config.AppConfig, prompter Prompter, client *http.Client) []tool.Tool {
	var out []tool.Tool
	if cfg.ToolEnabled(TerminateName) {
		out = append(out, Terminate())
	}
	if cfg.ToolEnabled(WebScrapeName) {
		out = append(out, WebScrape(client))
	}
	if cfg.ToolEnabled(WebSearchName) && cfg.Tools.Search.APIKey != "" {
		out = append(out, WebSearch(cfg.Tools.Search, client))
	}
	if prompter != nil && cfg.ToolEnabled(AskHumanName) {
		out = append(out, AskHuman(prompter))
	}
	return out
}

// Package tools provides the built-in tools offered to the model.
package tools

import (
	"context"
	"encoding/json"

	"github.com/felixgeelhaar/steploop/domain/tool"
)

// Tool names.
const (
	TerminateName = "terminate"
	AskHumanName  = "ask_human"
	WebScrapeName = "web_scrape"
	WebSearchName = "web_search"
)

// TerminateResult is the output of the terminate tool.
const TerminateResult = "The interaction has been completed"

// terminateNames are all names under which a terminate call is recognised.
var terminateNames = map[string]bool{
	TerminateName: true,
	"doTerminate": true,
	"自行终止":        true,
}

// IsTerminate reports whether a tool name designates the terminate tool.
func IsTerminate(name string) bool {
	return terminateNames[name]
}

// Terminate returns the tool the model calls to end the run.
func Terminate() tool.Tool {
	return tool.NewBuilder(TerminateName).
		WithDescription("Terminate the interaction when the request is met or the assistant cannot proceed further with the task. When you have finished all the tasks, call this tool to end the work.").
		Terminal().
		Idempotent().
		WithHandler(func(_ context.Context, _ json.RawMessage) (tool.Result, error) {
			return tool.NewTextResult(TerminateResult), nil
		}).
		MustBuild()
}

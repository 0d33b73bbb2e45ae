package history

import (
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/steploop/domain/agent"
)

// EncodeToolCalls returns the JSON column value for a message's tool calls,
// or an empty string when there are none.
func EncodeToolCalls(calls []agent.ToolCall) (string, error) {
	if len(calls) == 0 {
		return "", nil
	}
	data, err := json.Marshal(calls)
	if err != nil {
		return "", fmt.Errorf("encode tool calls: %w", err)
	}
	return string(data), nil
}

// DecodeToolCalls parses a value produced by EncodeToolCalls.
func DecodeToolCalls(raw string) ([]agent.ToolCall, error) {
	if raw == "" {
		return nil, nil
	}
	var calls []agent.ToolCall
	if err := json.Unmarshal([]byte(raw), &calls); err != nil {
		return nil, fmt.Errorf("decode tool calls: %w", err)
	}
	return calls, nil
}

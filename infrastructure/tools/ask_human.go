package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/felixgeelhaar/steploop/domain/tool"
)

// ErrNoAnswer indicates the human closed the input without answering.
var ErrNoAnswer = errors.New("no answer from human")

// Prompter asks a human a question and returns the answer.
type Prompter interface {
	Ask(ctx context.Context, question string) (string, error)
}

// LinePrompter asks on a writer and reads one line from a reader.
type LinePrompter struct {
	mu      sync.Mutex
	out     io.Writer
	scanner *bufio.Scanner
}

// NewLinePrompter creates a prompter over the given streams.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{out: out, scanner: bufio.NewScanner(in)}
}

// Ask prints the question and blocks until a line is read.
func (p *LinePrompter) Ask(ctx context.Context, question string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(p.out, "Bot: %s\n\nYou: ", question); err != nil {
		return "", err
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrNoAnswer
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

type askHumanInput struct {
	Inquire string `json:"inquire"`
}

// AskHuman returns a tool that forwards the model's question to a human.
func AskHuman(p Prompter) tool.Tool {
	return tool.NewBuilder(AskHumanName).
		WithDescription("Use this tool to ask human for help").
		WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
			"inquire": tool.StringProperty("The question you want to ask human"),
		}, []string{"inquire"})).
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			var in askHumanInput
			if err := json.Unmarshal(input, &in); err != nil {
				return tool.Result{}, fmt.Errorf("%w: %w", tool.ErrInvalidInput, err)
			}
			answer, err := p.Ask(ctx, in.Inquire)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.NewTextResult(strings.TrimSpace(answer)), nil
		}).
		MustBuild()
}

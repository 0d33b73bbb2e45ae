package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestBuilder_Build(t *testing.T) {
	t.Parallel()

	handler := func(_ context.Context, input json.RawMessage) (Result, error) {
		return NewResult(input), nil
	}

	tl, err := NewBuilder("echo").
		WithDescription("Echo the input").
		WithHandler(handler).
		ReadOnly().
		Idempotent().
		WithTimeout(5).
		WithTags("test").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if tl.Name() != "echo" {
		t.Errorf("Name() = %s, want echo", tl.Name())
	}
	if tl.Description() != "Echo the input" {
		t.Errorf("Description() = %s, want Echo the input", tl.Description())
	}
	ann := tl.Annotations()
	if !ann.ReadOnly || !ann.Idempotent {
		t.Errorf("Annotations() = %+v, want read-only idempotent", ann)
	}
	if ann.Timeout != 5 {
		t.Errorf("Timeout = %d, want 5", ann.Timeout)
	}
	if !ann.HasTag("test") {
		t.Error("HasTag(test) = false, want true")
	}
	if tl.InputSchema().IsEmpty() != true {
		t.Error("default input schema should be empty")
	}

	res, err := tl.Execute(context.Background(), json.RawMessage(`{"a":1}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if string(res.Output) != `{"a":1}` {
		t.Errorf("Output = %s, want {\"a\":1}", res.Output)
	}
}

func TestBuilder_Errors(t *testing.T) {
	t.Parallel()

	if _, err := NewBuilder("").WithHandler(func(context.Context, json.RawMessage) (Result, error) {
		return Result{}, nil
	}).Build(); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Build() with empty name = %v, want ErrEmptyName", err)
	}

	if _, err := NewBuilder("x").Build(); !errors.Is(err, ErrNoHandler) {
		t.Errorf("Build() without handler = %v, want ErrNoHandler", err)
	}
}

func TestBuilder_MustBuildPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("MustBuild() should panic on invalid tool")
		}
	}()
	NewBuilder("").MustBuild()
}

func TestDefinition_ExecuteWithoutHandler(t *testing.T) {
	t.Parallel()

	d := &Definition{name: "bare"}
	if _, err := d.Execute(context.Background(), nil); !errors.Is(err, ErrNoHandler) {
		t.Errorf("Execute() error = %v, want ErrNoHandler", err)
	}
}

func TestBuilder_Terminal(t *testing.T) {
	t.Parallel()

	tl := NewBuilder("terminate").
		WithHandler(func(context.Context, json.RawMessage) (Result, error) {
			return NewTextResult("bye"), nil
		}).
		Terminal().
		MustBuild()

	if !tl.Annotations().Terminal {
		t.Error("Terminal annotation not set")
	}
}

func TestAnnotations_CanRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ann  Annotations
		want bool
	}{
		{"default", DefaultAnnotations(), false},
		{"read only", ReadOnlyAnnotations(), true},
		{"idempotent", Annotations{Idempotent: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.ann.CanRetry(); got != tt.want {
				t.Errorf("CanRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResult_Text(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{"json string", NewTextResult("hello"), "hello"},
		{"json object", NewResult(json.RawMessage(`{"ok":true}`)), `{"ok":true}`},
		{"raw text", NewResult(json.RawMessage(`plain`)), "plain"},
		{"empty", Result{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.result.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResult_IsError(t *testing.T) {
	t.Parallel()

	if NewTextResult("x").IsError() {
		t.Error("text result should not be an error")
	}
	if !NewErrorResult(errors.New("boom")).IsError() {
		t.Error("error result should be an error")
	}
}

func TestSchema(t *testing.T) {
	t.Parallel()

	s := ObjectSchema(map[string]json.RawMessage{
		"url": StringProperty("page to fetch"),
	}, []string{"url"})

	if s.IsEmpty() {
		t.Error("object schema with properties should not be empty")
	}

	var decoded map[string]any
	if err := json.Unmarshal(s.Raw(), &decoded); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	if decoded["type"] != "object" {
		t.Errorf("type = %v, want object", decoded["type"])
	}

	if err := s.Validate(json.RawMessage(`{"url":"x"}`)); err != nil {
		t.Errorf("Validate(valid) error = %v", err)
	}
	if err := s.Validate(json.RawMessage(`{bad`)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Validate(invalid) = %v, want ErrInvalidInput", err)
	}
	if err := s.Validate(nil); err != nil {
		t.Errorf("Validate(nil) error = %v", err)
	}

	var empty Schema
	out, _ := empty.MarshalJSON()
	if string(out) != "{}" {
		t.Errorf("MarshalJSON(empty) = %s, want {}", out)
	}
}

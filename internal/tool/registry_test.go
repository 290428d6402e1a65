package tool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubTool is a configurable test tool that counts invocations.
type stubTool struct {
	name   string
	params map[string]any
	result string
	err    error
	panics bool
	calls  int
}

func (s *stubTool) Name() string               { return s.name }
func (s *stubTool) Description() string        { return "stub tool" }
func (s *stubTool) Parameters() map[string]any { return s.params }

func (s *stubTool) Execute(_ context.Context, _ map[string]any) (string, error) {
	s.calls++
	if s.panics {
		panic("stub blew up")
	}
	return s.result, s.err
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	reg := NewRegistry(testLogger())
	if err := reg.Register(&stubTool{name: "echo"}); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}

	err := reg.Register(&stubTool{name: "echo"})
	var dup *DuplicateToolError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateToolError, got %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("duplicate registration changed registry size: %d", reg.Len())
	}
}

func TestRegistry_Unregister(t *testing.T) {
	reg := NewRegistry(testLogger())
	if err := reg.Register(&stubTool{name: "echo"}); err != nil {
		t.Fatal(err)
	}
	reg.Unregister("echo")
	if reg.Get("echo") != nil {
		t.Fatal("tool still resolvable after Unregister")
	}
	// Unknown names are a no-op.
	reg.Unregister("never-existed")
}

func TestRegistry_DefinitionsSorted(t *testing.T) {
	reg := NewRegistry(testLogger())
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := reg.Register(&stubTool{name: name}); err != nil {
			t.Fatal(err)
		}
	}

	defs := reg.Definitions()
	want := []string{"alpha", "mid", "zeta"}
	if len(defs) != len(want) {
		t.Fatalf("expected %d definitions, got %d", len(want), len(defs))
	}
	for i, d := range defs {
		if d.Name != want[i] {
			t.Fatalf("definitions not sorted: got %q at %d, want %q", d.Name, i, want[i])
		}
	}
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	reg := NewRegistry(testLogger())
	out := reg.Execute(context.Background(), "missing", nil)
	if !strings.Contains(out, "missing") || !strings.Contains(out, "not found") {
		t.Fatalf("expected unknown-tool text naming the tool, got %q", out)
	}
}

func TestRegistry_ExecuteValidationFailureSkipsTool(t *testing.T) {
	stub := &stubTool{
		name: "search",
		params: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
			},
			"required": []string{"query"},
		},
	}
	reg := NewRegistry(testLogger())
	if err := reg.Register(stub); err != nil {
		t.Fatal(err)
	}

	out := reg.Execute(context.Background(), "search", map[string]any{})
	if !strings.Contains(out, "invalid arguments") {
		t.Fatalf("expected validation error text, got %q", out)
	}
	if stub.calls != 0 {
		t.Fatalf("tool ran despite failed validation: %d calls", stub.calls)
	}
}

func TestRegistry_ExecuteSuccess(t *testing.T) {
	stub := &stubTool{name: "echo", result: "hello"}
	reg := NewRegistry(testLogger())
	if err := reg.Register(stub); err != nil {
		t.Fatal(err)
	}

	out := reg.Execute(context.Background(), "echo", map[string]any{"x": 1})
	if out != "hello" {
		t.Fatalf("expected tool result, got %q", out)
	}
}

func TestRegistry_ExecuteErrorBecomesText(t *testing.T) {
	stub := &stubTool{name: "flaky", err: errors.New("network down")}
	reg := NewRegistry(testLogger())
	if err := reg.Register(stub); err != nil {
		t.Fatal(err)
	}

	out := reg.Execute(context.Background(), "flaky", nil)
	if !strings.Contains(out, "network down") {
		t.Fatalf("expected error text, got %q", out)
	}
}

func TestRegistry_ExecutePanicBecomesText(t *testing.T) {
	stub := &stubTool{name: "boom", panics: true}
	reg := NewRegistry(testLogger())
	if err := reg.Register(stub); err != nil {
		t.Fatal(err)
	}

	out := reg.Execute(context.Background(), "boom", nil)
	if !strings.Contains(out, "panic") || !strings.Contains(out, "stub blew up") {
		t.Fatalf("expected panic converted to text, got %q", out)
	}
}

func TestToolParameters(t *testing.T) {
	schema := ToolParameters(map[string]Param{
		"query": {Type: "string", Description: "search terms"},
	}, []string{"query"})

	if schema["type"] != "object" {
		t.Fatalf("expected object schema, got %v", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatal("missing properties")
	}
	q, ok := props["query"].(map[string]any)
	if !ok || q["type"] != "string" {
		t.Fatalf("query property malformed: %v", props["query"])
	}
}

func TestArgsString(t *testing.T) {
	args := map[string]any{"s": "plain", "n": float64(7)}
	if got := ArgsString(args, "s"); got != "plain" {
		t.Fatalf("string arg: got %q", got)
	}
	if got := ArgsString(args, "n"); got != "7" {
		t.Fatalf("non-string arg should marshal: got %q", got)
	}
	if got := ArgsString(args, "absent"); got != "" {
		t.Fatalf("absent key: got %q", got)
	}
	if got := ArgsString(nil, "s"); got != "" {
		t.Fatalf("nil args: got %q", got)
	}
}

package tools

import (
	"context"
	"strings"
	"testing"
)

func TestRegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(&EchoTool{}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, ok := registry.Get("echo"); !ok {
		t.Fatal("expected echo to be registered")
	}
	if err := registry.Register(&EchoTool{}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}

	if !registry.Unregister("echo") {
		t.Fatal("expected unregister to report removal")
	}
	if registry.Unregister("echo") {
		t.Fatal("expected second unregister to report false")
	}
}

func TestListSorted(t *testing.T) {
	registry := NewRegistryWithBuiltins()
	names := make([]string, 0)
	for _, tool := range registry.List() {
		names = append(names, tool.Name())
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("expected sorted names, got %v", names)
		}
	}
	if len(names) != 5 {
		t.Fatalf("expected 5 built-ins, got %d", len(names))
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	registry := NewRegistry()
	result := registry.Execute(context.Background(), "missing", nil)
	if result.Success {
		t.Fatal("expected failure for unknown tool")
	}
	if result.Error != "Tool not found: missing" {
		t.Errorf("unexpected error message: %q", result.Error)
	}
}

func TestExecuteValidation(t *testing.T) {
	registry := NewRegistryWithBuiltins()

	result := registry.Execute(context.Background(), "string_manipulation", map[string]any{
		"text": "hello",
	})
	if result.Success {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(result.Error, "missing required parameter: operation") {
		t.Errorf("unexpected validation message: %q", result.Error)
	}

	result = registry.Execute(context.Background(), "echo", map[string]any{
		"message": "hi",
		"extra":   true,
	})
	if result.Success {
		t.Fatal("expected unknown-key rejection")
	}
	if !strings.Contains(result.Error, "unknown parameter: extra") {
		t.Errorf("unexpected validation message: %q", result.Error)
	}
}

func TestExecuteJoinsValidationMessages(t *testing.T) {
	registry := NewRegistryWithBuiltins()
	result := registry.Execute(context.Background(), "string_manipulation", map[string]any{
		"bogus": 1,
	})
	if result.Success {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{
		"missing required parameter: text",
		"missing required parameter: operation",
		"unknown parameter: bogus",
	} {
		if !strings.Contains(result.Error, want) {
			t.Errorf("expected %q in %q", want, result.Error)
		}
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	registry := NewRegistry()
	panicking := &Func{
		ToolName:        "boom",
		ToolDescription: "always panics",
		ToolSchema:      Schema{Type: "object", Properties: map[string]Property{}},
		Fn: func(context.Context, map[string]any) Result {
			panic("executor exploded")
		},
	}
	if err := registry.Register(panicking); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	result := registry.Execute(context.Background(), "boom", map[string]any{})
	if result.Success {
		t.Fatal("expected failure result from panicking executor")
	}
	if !strings.Contains(result.Error, "executor exploded") {
		t.Errorf("expected panic message in result, got %q", result.Error)
	}
}

func TestDefinitions(t *testing.T) {
	defs := Definitions(Builtins())
	if len(defs) != 5 {
		t.Fatalf("expected 5 definitions, got %d", len(defs))
	}
	for _, def := range defs {
		if def.Function.Name == "" {
			t.Error("expected non-empty function name")
		}
		if def.Function.Parameters == nil {
			t.Errorf("expected parameters schema for %s", def.Function.Name)
		}
	}
}

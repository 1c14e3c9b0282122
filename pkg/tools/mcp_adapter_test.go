package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

type fakeCaller struct {
	result *mcp.CallToolResult
	err    error

	lastName string
	lastArgs map[string]interface{}
}

func (f *fakeCaller) CallTool(_ context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	f.lastName = name
	f.lastArgs = args
	return f.result, f.err
}

func mcpToolDef() mcp.Tool {
	return mcp.Tool{
		Name:        "remote_lookup",
		Description: "Looks up a record on a remote server.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"key": map[string]any{"type": "string", "description": "Record key"},
			},
			Required: []string{"key"},
		},
	}
}

func TestMCPToolSchemaConversion(t *testing.T) {
	adapted, err := NewMCPTool(mcpToolDef(), &fakeCaller{})
	if err != nil {
		t.Fatalf("adapter failed: %v", err)
	}
	schema := adapted.Schema()
	if schema.Type != "object" {
		t.Errorf("expected object schema, got %q", schema.Type)
	}
	prop, ok := schema.Properties["key"]
	if !ok {
		t.Fatal("expected key property")
	}
	if prop.Type != "string" || prop.Description != "Record key" {
		t.Errorf("unexpected property: %+v", prop)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "key" {
		t.Errorf("unexpected required list: %v", schema.Required)
	}
}

func TestMCPToolExecute(t *testing.T) {
	caller := &fakeCaller{
		result: &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "value-42"}},
		},
	}
	adapted, _ := NewMCPTool(mcpToolDef(), caller)

	result := adapted.Execute(context.Background(), map[string]any{"key": "42"})
	if !result.Success {
		t.Fatalf("unexpected failure: %s", result.Error)
	}
	if result.Output != "value-42" {
		t.Errorf("expected text output, got %v", result.Output)
	}
	if caller.lastName != "remote_lookup" {
		t.Errorf("expected remote_lookup call, got %s", caller.lastName)
	}
}

func TestMCPToolExecuteError(t *testing.T) {
	caller := &fakeCaller{
		result: &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "record missing"}},
		},
	}
	adapted, _ := NewMCPTool(mcpToolDef(), caller)

	result := adapted.Execute(context.Background(), map[string]any{"key": "42"})
	if result.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(result.Error, "record missing") {
		t.Errorf("unexpected error: %q", result.Error)
	}
}

func TestMCPToolTransportError(t *testing.T) {
	caller := &fakeCaller{err: errors.New("connection refused")}
	adapted, _ := NewMCPTool(mcpToolDef(), caller)

	result := adapted.Execute(context.Background(), map[string]any{"key": "42"})
	if result.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(result.Error, "connection refused") {
		t.Errorf("unexpected error: %q", result.Error)
	}
}

func TestRegisterMCPTools(t *testing.T) {
	registry := NewRegistry()
	if err := RegisterMCPTools(registry, &fakeCaller{}, []mcp.Tool{mcpToolDef()}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, ok := registry.Get("remote_lookup"); !ok {
		t.Fatal("expected adapted tool in registry")
	}
}

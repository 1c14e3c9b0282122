package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// MCPCaller abstracts MCP tool execution for adapters. External tool servers
// register into the same Registry the built-ins use.
type MCPCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
}

// MCPTool wraps an MCP tool definition so it satisfies the Tool interface.
type MCPTool struct {
	tool   mcp.Tool
	caller MCPCaller
}

// NewMCPTool builds a registry tool backed by an MCP tool definition and caller.
func NewMCPTool(tool mcp.Tool, caller MCPCaller) (*MCPTool, error) {
	if tool.Name == "" {
		return nil, errors.New("mcp tool name is required")
	}
	if caller == nil {
		return nil, errors.New("tool caller is required")
	}
	return &MCPTool{tool: tool, caller: caller}, nil
}

// RegisterMCPTools adapts and registers a set of MCP tools into a registry.
func RegisterMCPTools(registry *Registry, caller MCPCaller, defs []mcp.Tool) error {
	for _, def := range defs {
		adapted, err := NewMCPTool(def, caller)
		if err != nil {
			return err
		}
		if err := registry.Register(adapted); err != nil {
			return err
		}
	}
	return nil
}

func (t *MCPTool) Name() string        { return t.tool.Name }
func (t *MCPTool) Description() string { return t.tool.Description }

// Schema converts the MCP input schema into the registry schema form.
func (t *MCPTool) Schema() Schema {
	in := t.tool.InputSchema
	schema := Schema{
		Type:       "object",
		Properties: make(map[string]Property, len(in.Properties)),
		Required:   append([]string(nil), in.Required...),
	}
	if in.Type != "" {
		schema.Type = in.Type
	}
	for name, raw := range in.Properties {
		prop := Property{}
		if m, ok := raw.(map[string]any); ok {
			if v, ok := m["type"].(string); ok {
				prop.Type = v
			}
			if v, ok := m["description"].(string); ok {
				prop.Description = v
			}
		}
		schema.Properties[name] = prop
	}
	return schema
}

// Execute invokes the MCP tool. Transport and server-side errors are reported
// as tool failures, never as panics.
func (t *MCPTool) Execute(ctx context.Context, params map[string]any) Result {
	result, err := t.caller.CallTool(ctx, t.tool.Name, params)
	if err != nil {
		return Fail(fmt.Sprintf("mcp call failed: %v", err))
	}
	if result == nil {
		return Fail("mcp tool result is nil")
	}
	if result.IsError {
		return Fail("mcp tool returned error: " + extractTextContent(result.Content))
	}
	if result.StructuredContent != nil {
		return Succeed(result.StructuredContent)
	}
	if text := extractTextContent(result.Content); text != "" {
		return Succeed(text)
	}
	return Succeed(result)
}

func extractTextContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var _ Tool = (*MCPTool)(nil)

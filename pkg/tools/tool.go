// Package tools provides the tool contract, registry and built-in tools
// available to the agent loop.
package tools

import (
	"context"

	"github.com/loomlab/loom/pkg/llm"
)

// Property describes one parameter in a tool schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Schema is the structured parameter schema a tool announces.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Result is the discriminated outcome of a tool execution. Exactly one of
// Output or Error is meaningful, selected by Success.
type Result struct {
	Success bool   `json:"success"`
	Output  any    `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Succeed builds a successful Result carrying output.
func Succeed(output any) Result {
	return Result{Success: true, Output: output}
}

// Fail builds a failed Result carrying an error message.
func Fail(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Tool is an executable capability exposed to the model.
type Tool interface {
	Name() string
	Description() string
	Schema() Schema
	Execute(ctx context.Context, params map[string]any) Result
}

// Func adapts a plain function into a Tool. Used for tests and ad hoc tools.
type Func struct {
	ToolName        string
	ToolDescription string
	ToolSchema      Schema
	Fn              func(ctx context.Context, params map[string]any) Result
}

func (f *Func) Name() string        { return f.ToolName }
func (f *Func) Description() string { return f.ToolDescription }
func (f *Func) Schema() Schema      { return f.ToolSchema }

func (f *Func) Execute(ctx context.Context, params map[string]any) Result {
	return f.Fn(ctx, params)
}

// Definition projects a tool into an LLM function tool definition.
func Definition(tool Tool) llm.Tool {
	return llm.Tool{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Schema(),
		},
	}
}

// Definitions projects tools into LLM function tool definitions.
func Definitions(tools []Tool) []llm.Tool {
	defs := make([]llm.Tool, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, Definition(tool))
	}
	return defs
}

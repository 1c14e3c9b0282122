package openai

import (
	"testing"

	"github.com/loomlab/loom/pkg/llm"
)

func TestNewDefaults(t *testing.T) {
	p := New()
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
	if p.model != "gpt-4o-mini" {
		t.Errorf("unexpected default model %s", p.model)
	}
}

func TestWithModel(t *testing.T) {
	p := New(WithModel("gpt-4.1"))
	if p.model != "gpt-4.1" {
		t.Errorf("unexpected model %s", p.model)
	}
}

func TestBuildParamsModelFallback(t *testing.T) {
	p := New(WithModel("fallback-model"))

	params := p.buildParams(llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if params.Model != "fallback-model" {
		t.Errorf("expected provider default model, got %s", params.Model)
	}

	params = p.buildParams(llm.ChatRequest{Model: "explicit"})
	if params.Model != "explicit" {
		t.Errorf("expected request model to win, got %s", params.Model)
	}
}

func TestToMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  llm.Message
	}{
		{"system", llm.Message{Role: llm.RoleSystem, Content: "You are helpful"}},
		{"user", llm.Message{Role: llm.RoleUser, Content: "Hello"}},
		{"assistant", llm.Message{Role: llm.RoleAssistant, Content: "Hi there"}},
		{"assistant with tool calls", llm.Message{
			Role:    llm.RoleAssistant,
			Content: "checking",
			ToolCalls: []llm.ToolCall{{
				ID:       "call_1",
				Type:     llm.ToolTypeFunction,
				Function: llm.FunctionCall{Name: "echo", Arguments: `{"message":"hi"}`},
			}},
		}},
		{"tool result", llm.Message{Role: llm.RoleTool, Content: "result", ToolCallID: "call_1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Union construction must not panic for any role.
			_ = toMessage(tt.msg)
		})
	}
}

func TestToTool(t *testing.T) {
	tool := llm.Tool{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        "get_weather",
			Description: "Get weather for a location",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"location": map[string]interface{}{"type": "string"},
				},
				"required": []string{"location"},
			},
		},
	}

	converted := toTool(tool)
	if converted.Function.Name != "get_weather" {
		t.Errorf("unexpected tool name %s", converted.Function.Name)
	}
}

func TestToToolChoice(t *testing.T) {
	tests := []struct {
		choice llm.ToolChoice
		want   string
	}{
		{llm.ToolChoiceAuto, "auto"},
		{llm.ToolChoiceRequired, "required"},
		{llm.ToolChoiceNone, "none"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := toToolChoice(tt.choice); got != tt.want {
			t.Errorf("toToolChoice(%q) = %q, want %q", tt.choice, got, tt.want)
		}
	}
}

func TestToFinishReason(t *testing.T) {
	if got := toFinishReason("tool_calls"); got != llm.FinishReasonToolCalls {
		t.Errorf("unexpected finish reason %q", got)
	}
	if got := toFinishReason("stop"); got != llm.FinishReasonStop {
		t.Errorf("unexpected finish reason %q", got)
	}
}

// Package anthropic adapts the Anthropic Messages API to the Loom
// llm.Provider contract.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/loomlab/loom/pkg/llm"
)

// Provider implements llm.Provider for the Anthropic Messages API.
type Provider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the default model used when the request leaves it empty.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithMaxTokens sets the response token ceiling. The Messages API
// requires one on every request.
func WithMaxTokens(tokens int64) Option {
	return func(p *Provider) { p.maxTokens = tokens }
}

// WithBaseURL points the client at a custom endpoint.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.client = anthropic.NewClient(option.WithBaseURL(url))
	}
}

// WithAPIKey sets an explicit API key instead of ANTHROPIC_API_KEY.
func WithAPIKey(apiKey string) Option {
	return func(p *Provider) {
		p.client = anthropic.NewClient(option.WithAPIKey(apiKey))
	}
}

// New creates an Anthropic provider. The API key comes from the
// ANTHROPIC_API_KEY environment variable unless WithAPIKey is given.
func New(opts ...Option) *Provider {
	p := &Provider{
		client:    anthropic.NewClient(),
		model:     "claude-sonnet-4-20250514",
		maxTokens: 4096,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	message, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic message: %w", err)
	}
	return toResponse(message), nil
}

func (p *Provider) buildParams(req llm.ChatRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = p.model
	}

	// The Messages API takes the system prompt out of band.
	var system string
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Role == llm.RoleSystem {
			system = msg.Content
			continue
		}
		messages = append(messages, toMessage(msg))
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: p.maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, toTool(tool))
		}
		params.Tools = tools
	}
	return params
}

func toMessage(msg llm.Message) anthropic.MessageParam {
	switch msg.Role {
	case llm.RoleAssistant:
		if len(msg.ToolCalls) == 0 {
			return anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content))
		}
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)
		if msg.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		}
		for _, tc := range msg.ToolCalls {
			var input map[string]interface{}
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
			blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
		}
		return anthropic.MessageParam{Role: "assistant", Content: blocks}
	case llm.RoleTool:
		// Tool results travel back as user messages.
		return anthropic.NewUserMessage(
			anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
		)
	default:
		return anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content))
	}
}

func toTool(tool llm.Tool) anthropic.ToolUnionParam {
	raw, _ := json.Marshal(tool.Function.Parameters)
	var schema anthropic.ToolInputSchemaParam
	_ = json.Unmarshal(raw, &schema)

	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        tool.Function.Name,
			Description: anthropic.String(tool.Function.Description),
			InputSchema: schema,
		},
	}
}

func toResponse(message *anthropic.Message) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		Usage: llm.Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
		FinishReason: toFinishReason(string(message.StopReason)),
	}

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "tool_use":
			args, _ := json.Marshal(block.Input)
			resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
				ID:   block.ID,
				Type: llm.ToolTypeFunction,
				Function: llm.FunctionCall{
					Name:      block.Name,
					Arguments: string(args),
				},
			})
		}
	}
	return resp
}

func toFinishReason(stop string) llm.FinishReason {
	switch stop {
	case "end_turn", "stop_sequence":
		return llm.FinishReasonStop
	case "max_tokens":
		return llm.FinishReasonLength
	case "tool_use":
		return llm.FinishReasonToolCalls
	default:
		return llm.FinishReason(stop)
	}
}

var _ llm.Provider = (*Provider)(nil)

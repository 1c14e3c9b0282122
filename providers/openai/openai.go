// Package openai adapts the OpenAI chat completions API to the Loom
// llm.Provider contract. It also works against OpenAI-compatible
// endpoints (Azure OpenAI, DashScope, local gateways) via WithBaseURL.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loomlab/loom/pkg/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// Provider implements llm.Provider for the OpenAI API.
type Provider struct {
	client openai.Client
	model  string
}

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the default model used when the request leaves it empty.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.client = openai.NewClient(option.WithBaseURL(url))
	}
}

// WithAPIKey sets an explicit API key instead of OPENAI_API_KEY.
func WithAPIKey(apiKey string) Option {
	return func(p *Provider) {
		p.client = openai.NewClient(option.WithAPIKey(apiKey))
	}
}

// New creates an OpenAI provider. The API key comes from the
// OPENAI_API_KEY environment variable unless WithAPIKey is given.
func New(opts ...Option) *Provider {
	p := &Provider{
		client: openai.NewClient(),
		model:  "gpt-4o-mini",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	completion, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	return toResponse(completion), nil
}

func (p *Provider) buildParams(req llm.ChatRequest) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, toMessage(msg))
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, toTool(tool))
		}
		params.Tools = tools
	}
	if choice := toToolChoice(req.ToolChoice); choice != "" {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: param.NewOpt(choice),
		}
	}
	return params
}

func toMessage(msg llm.Message) openai.ChatCompletionMessageParamUnion {
	switch msg.Role {
	case llm.RoleSystem:
		return openai.SystemMessage(msg.Content)
	case llm.RoleAssistant:
		if len(msg.ToolCalls) == 0 {
			return openai.AssistantMessage(msg.Content)
		}
		calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			calls = append(calls, openai.ChatCompletionMessageToolCallParam{
				ID:   tc.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
		if msg.Content != "" {
			assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
				OfString: param.NewOpt(msg.Content),
			}
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
	case llm.RoleTool:
		return openai.ToolMessage(msg.Content, msg.ToolCallID)
	default:
		return openai.UserMessage(msg.Content)
	}
}

func toTool(tool llm.Tool) openai.ChatCompletionToolParam {
	raw, _ := json.Marshal(tool.Function.Parameters)
	var params openai.FunctionParameters
	_ = json.Unmarshal(raw, &params)

	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: openai.FunctionDefinitionParam{
			Name:        tool.Function.Name,
			Description: openai.String(tool.Function.Description),
			Parameters:  params,
		},
	}
}

func toToolChoice(choice llm.ToolChoice) string {
	switch choice {
	case llm.ToolChoiceAuto:
		return "auto"
	case llm.ToolChoiceRequired:
		return "required"
	case llm.ToolChoiceNone:
		return "none"
	default:
		return ""
	}
}

func toResponse(completion *openai.ChatCompletion) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		Usage: llm.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	if len(completion.Choices) == 0 {
		return resp
	}

	choice := completion.Choices[0]
	resp.Content = choice.Message.Content
	resp.FinishReason = toFinishReason(choice.FinishReason)
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
			ID:   tc.ID,
			Type: llm.ToolTypeFunction,
			Function: llm.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return resp
}

func toFinishReason(reason string) llm.FinishReason {
	switch reason {
	case "stop":
		return llm.FinishReasonStop
	case "length":
		return llm.FinishReasonLength
	case "tool_calls":
		return llm.FinishReasonToolCalls
	case "content_filter":
		return llm.FinishReasonContentFilter
	default:
		return llm.FinishReason(reason)
	}
}

// ChatStream implements llm.StreamingProvider.
func (p *Provider) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.buildParams(req))
	chunks := make(chan llm.StreamChunk, 16)

	go func() {
		defer close(chunks)

		// Tool call deltas arrive fragmented by index; arguments are
		// accumulated until the finish event.
		pending := make(map[int]*llm.ToolCall)

		for stream.Next() {
			event := stream.Current()
			chunk := llm.StreamChunk{}

			if len(event.Choices) > 0 {
				delta := event.Choices[0].Delta
				chunk.Content = delta.Content

				for _, tc := range delta.ToolCalls {
					idx := int(tc.Index)
					if pending[idx] == nil {
						pending[idx] = &llm.ToolCall{
							ID:       tc.ID,
							Type:     llm.ToolTypeFunction,
							Function: llm.FunctionCall{Name: tc.Function.Name},
						}
					}
					pending[idx].Function.Arguments += tc.Function.Arguments
				}

				if reason := event.Choices[0].FinishReason; reason != "" {
					chunk.Done = true
					chunk.FinishReason = toFinishReason(reason)
					for i := 0; i < len(pending); i++ {
						if tc := pending[i]; tc != nil {
							chunk.ToolCalls = append(chunk.ToolCalls, *tc)
						}
					}
				}
			}

			if event.Usage.TotalTokens > 0 {
				chunk.Usage = &llm.Usage{
					PromptTokens:     int(event.Usage.PromptTokens),
					CompletionTokens: int(event.Usage.CompletionTokens),
					TotalTokens:      int(event.Usage.TotalTokens),
				}
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				chunks <- llm.StreamChunk{Error: ctx.Err()}
				return
			}
		}
		if err := stream.Err(); err != nil {
			chunks <- llm.StreamChunk{Error: err}
		}
	}()

	return chunks, nil
}

var (
	_ llm.Provider          = (*Provider)(nil)
	_ llm.StreamingProvider = (*Provider)(nil)
)

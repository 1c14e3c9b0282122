// Package testing provides scripted providers, scenario runners and
// assertion helpers for testing Loom agents.
package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomlab/loom/pkg/llm"
)

// ScenarioProvider is a scripted llm.Provider with request capture.
type ScenarioProvider struct {
	mu           sync.Mutex
	responses    []ScriptedResponse
	currentIndex int
	requests     []llm.ChatRequest
	defaultError error
	onChat       func(req llm.ChatRequest) (*llm.ChatResponse, error)
}

// ScriptedResponse defines one queued response.
type ScriptedResponse struct {
	Content   string
	ToolCalls []llm.ToolCall
	Error     error
	Usage     llm.Usage
}

// NewScenarioProvider creates an empty scenario provider.
func NewScenarioProvider() *ScenarioProvider {
	return &ScenarioProvider{}
}

// AddResponse queues a plain text response.
func (p *ScenarioProvider) AddResponse(content string) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, ScriptedResponse{Content: content})
	return p
}

// AddToolCallResponse queues a response requesting the given tool calls.
func (p *ScenarioProvider) AddToolCallResponse(toolCalls ...llm.ToolCall) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, ScriptedResponse{ToolCalls: toolCalls})
	return p
}

// AddErrorResponse queues an error.
func (p *ScenarioProvider) AddErrorResponse(err error) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, ScriptedResponse{Error: err})
	return p
}

// WithDefaultError sets the error returned when the script runs out.
func (p *ScenarioProvider) WithDefaultError(err error) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultError = err
	return p
}

// WithChatFunc replaces scripted responses with a custom handler.
func (p *ScenarioProvider) WithChatFunc(fn func(req llm.ChatRequest) (*llm.ChatResponse, error)) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChat = fn
	return p
}

// Chat implements llm.Provider.
func (p *ScenarioProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)

	if p.onChat != nil {
		return p.onChat(req)
	}
	if p.currentIndex >= len(p.responses) {
		if p.defaultError != nil {
			return nil, p.defaultError
		}
		return nil, fmt.Errorf("no more scripted responses (call %d)", p.currentIndex+1)
	}

	resp := p.responses[p.currentIndex]
	p.currentIndex++

	if resp.Error != nil {
		return nil, resp.Error
	}
	finish := llm.FinishReasonStop
	if len(resp.ToolCalls) > 0 {
		finish = llm.FinishReasonToolCalls
	}
	return &llm.ChatResponse{
		Content:      resp.Content,
		ToolCalls:    resp.ToolCalls,
		Usage:        resp.Usage,
		FinishReason: finish,
	}, nil
}

// Requests returns a copy of every captured request.
func (p *ScenarioProvider) Requests() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.ChatRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// LastRequest returns the most recent request, or nil.
func (p *ScenarioProvider) LastRequest() *llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	req := p.requests[len(p.requests)-1]
	return &req
}

// CallCount returns the number of Chat calls received.
func (p *ScenarioProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// ToolCall builds an llm.ToolCall from a name and raw JSON arguments.
func ToolCall(name, arguments string) llm.ToolCall {
	return llm.ToolCall{
		ID:       "call-" + name,
		Type:     llm.ToolTypeFunction,
		Function: llm.FunctionCall{Name: name, Arguments: arguments},
	}
}

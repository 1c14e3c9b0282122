package llm

import (
	"context"
	"errors"
	"sync"
)

// ScriptedMockProvider is a mock provider that returns a pre-defined sequence of responses.
// Useful for testing multi-turn interactions (e.g. the agent loop).
type ScriptedMockProvider struct {
	mu        sync.Mutex
	Responses []ChatResponse
	Err       error
	// CallCount tracks how many times Chat has been called
	CallCount int
	// Requests records every request received, in order.
	Requests []ChatRequest
}

// NewScriptedMockProvider creates a provider that replays text responses in order.
func NewScriptedMockProvider(responses ...string) *ScriptedMockProvider {
	p := &ScriptedMockProvider{}
	for _, content := range responses {
		p.Responses = append(p.Responses, ChatResponse{
			Content:      content,
			FinishReason: FinishReasonStop,
		})
	}
	return p
}

// Chat pops the next scripted response or returns the configured error.
func (s *ScriptedMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCount++
	s.Requests = append(s.Requests, req)

	if s.Err != nil {
		return nil, s.Err
	}

	if len(s.Responses) == 0 {
		return nil, errors.New("scripted mock: no more responses available")
	}

	// Pop the first response
	resp := s.Responses[0]
	s.Responses = s.Responses[1:]

	if resp.Usage == (Usage{}) {
		resp.Usage = Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20}
	}
	return &resp, nil
}

// AddResponse appends a plain text response to the queue.
func (s *ScriptedMockProvider) AddResponse(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = append(s.Responses, ChatResponse{
		Content:      content,
		FinishReason: FinishReasonStop,
	})
}

// AddToolCallResponse appends a response that requests the given tool calls.
func (s *ScriptedMockProvider) AddToolCallResponse(rationale string, calls ...ToolCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = append(s.Responses, ChatResponse{
		Content:      rationale,
		ToolCalls:    calls,
		FinishReason: FinishReasonToolCalls,
	})
}

// PeekNext returns the next response to be returned, or nil.
func (s *ScriptedMockProvider) PeekNext() *ChatResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Responses) == 0 {
		return nil
	}
	resp := s.Responses[0]
	return &resp
}

package llm

import (
	"context"
	"fmt"
)

// MockProvider returns a canned response on every Chat call. Set
// ToolCalls to simulate a tool-calling turn, Err to simulate provider
// failure, or ChatFunc to take over the call entirely.
type MockProvider struct {
	Response  string
	ToolCalls []ToolCall
	Err       error
	ChatFunc  func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	switch {
	case m.ChatFunc != nil:
		return m.ChatFunc(ctx, req)
	case m.Err != nil:
		return nil, m.Err
	}
	resp := &ChatResponse{
		Content:      m.Response,
		ToolCalls:    m.ToolCalls,
		FinishReason: FinishReasonStop,
		Usage:        Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}
	if len(m.ToolCalls) > 0 {
		resp.FinishReason = FinishReasonToolCalls
	}
	return resp, nil
}

// FailingMockProvider fails every Chat call, with Err or a generic
// error when none is set.
type FailingMockProvider struct {
	Err error
}

func (f *FailingMockProvider) Chat(context.Context, ChatRequest) (*ChatResponse, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return nil, fmt.Errorf("mock error")
}

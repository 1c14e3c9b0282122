// SPDX-License-Identifier: Apache-2.0
package errors

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("network timeout")
	le := New(CodeTimeout, "tool execution timed out", cause)

	if le.Code != CodeTimeout {
		t.Errorf("expected CodeTimeout, got %v", le.Code)
	}
	if le.Message != "tool execution timed out" {
		t.Errorf("expected message 'tool execution timed out', got %q", le.Message)
	}
	if le.Err != cause {
		t.Errorf("expected cause to be preserved")
	}
	if !errors.Is(le, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
}

func TestWithContext(t *testing.T) {
	le := New(CodeToolFailure, "tool failed", nil)
	le.WithContext("tool", "calculator").
		WithContext("args", map[string]interface{}{"expression": "2 + 2"})

	if le.Context["tool"] != "calculator" {
		t.Errorf("expected context tool to be 'calculator'")
	}
	if le.Context["args"] == nil {
		t.Errorf("expected context args to be set")
	}
}

func TestWithAttribute(t *testing.T) {
	le := New(CodeToolFailure, "tool failed", nil)
	le.WithAttribute("tool_name", "calculator").
		WithAttribute("execution_id", "abc-123")

	if le.Attributes["tool_name"] != "calculator" {
		t.Errorf("expected attribute tool_name")
	}
	if le.Attributes["execution_id"] != "abc-123" {
		t.Errorf("expected attribute execution_id")
	}
}

func TestWithRecoverable(t *testing.T) {
	le := New(CodeToolFailure, "network error", nil)
	if le.Recoverable {
		t.Errorf("expected recoverable to be false by default")
	}

	le.WithRecoverable(true)
	if !le.Recoverable {
		t.Errorf("expected recoverable to be true after WithRecoverable")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		le       *LoomError
		expected string
	}{
		{
			name:     "with cause",
			le:       New(CodeTimeout, "operation timed out", errors.New("deadline exceeded")),
			expected: "[TIMEOUT] operation timed out: deadline exceeded",
		},
		{
			name:     "without cause",
			le:       New(CodeMaxIterations, "maximum iterations reached", nil),
			expected: "[MAX_ITERATIONS] maximum iterations reached",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.le.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestAsLoomError(t *testing.T) {
	if AsLoomError(nil) != nil {
		t.Errorf("expected nil for nil error")
	}

	le := New(CodeLLMError, "provider unreachable", nil)
	if AsLoomError(le) != le {
		t.Errorf("expected same error back")
	}

	plain := errors.New("boom")
	wrapped := AsLoomError(plain)
	if wrapped.Code != CodeInternal {
		t.Errorf("expected plain error wrapped as internal, got %v", wrapped.Code)
	}
	if !errors.Is(wrapped, plain) {
		t.Errorf("expected wrapped error chain to include cause")
	}
}

func TestMarshalJSON(t *testing.T) {
	le := New(CodeMemoryError, "index write failed", errors.New("disk full"))
	data, err := json.Marshal(le)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["code"] != "MEMORY_ERROR" {
		t.Errorf("expected code MEMORY_ERROR, got %v", decoded["code"])
	}
}

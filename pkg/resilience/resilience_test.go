package resilience

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loomlab/loom/pkg/errors"
	"github.com/loomlab/loom/pkg/llm"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry(attempts int) RetryConfig {
	return DefaultRetryConfig().
		WithMaxAttempts(attempts).
		WithInitialDelay(time.Millisecond).
		WithMaxDelay(5 * time.Millisecond)
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := fastRetry(3).Do(t.Context(), func() error {
		calls++
		if calls < 3 {
			return stderrors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := stderrors.New("still broken")
	err := fastRetry(3).Do(t.Context(), func() error {
		calls++
		return boom
	})
	if !stderrors.Is(err, boom) {
		t.Errorf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryStopsOnNonRecoverable(t *testing.T) {
	calls := 0
	err := fastRetry(5).Do(t.Context(), func() error {
		calls++
		return errors.New(errors.CodeInvalidInput, "bad parameters", nil)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("non-recoverable error should not be retried, got %d calls", calls)
	}
}

func TestRetryRecoverableCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"llm error", errors.New(errors.CodeLLMError, "backend", nil), true},
		{"timeout", errors.New(errors.CodeTimeout, "slow", nil), true},
		{"invalid input", errors.New(errors.CodeInvalidInput, "bad", nil), false},
		{"not found", errors.New(errors.CodeNotFound, "missing", nil), false},
		{"flagged recoverable", errors.New(errors.CodeInternal, "oops", nil).WithRecoverable(true), true},
		{"flagged permanent", errors.New(errors.CodeInternal, "oops", nil), false},
		{"plain error", stderrors.New("network"), true},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := recoverableByDefault(tt.err); got != tt.want {
				t.Errorf("recoverableByDefault() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	cfg := DefaultRetryConfig().
		WithMaxAttempts(5).
		WithInitialDelay(time.Second)

	err := cfg.Do(ctx, func() error {
		calls++
		cancel()
		return stderrors.New("transient")
	})
	var le *errors.LoomError
	if !stderrors.As(err, &le) || le.Code != errors.CodeTimeout {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestRetryDoWithResult(t *testing.T) {
	calls := 0
	result, err := fastRetry(3).DoWithResult(t.Context(), func() (any, error) {
		calls++
		if calls < 2 {
			return nil, stderrors.New("transient")
		}
		return "value", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "value" {
		t.Errorf("expected result to survive retry, got %v", result)
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour})
	boom := stderrors.New("backend down")

	for i := 0; i < 2; i++ {
		if err := cb.Call(t.Context(), func() error { return boom }); !stderrors.Is(err, boom) {
			t.Fatalf("call %d: unexpected error %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	called := false
	err := cb.Call(t.Context(), func() error { called = true; return nil })
	if called {
		t.Error("open breaker must not execute the call")
	}
	var le *errors.LoomError
	if !stderrors.As(err, &le) || le.Code != errors.CodeLLMError || !le.Recoverable {
		t.Errorf("expected recoverable LLM error from open breaker, got %v", err)
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Cooldown:         time.Millisecond,
	})

	_ = cb.Call(t.Context(), func() error { return stderrors.New("fail") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	time.Sleep(5 * time.Millisecond)

	if err := cb.Call(t.Context(), func() error { return nil }); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open after one success, got %s", cb.State())
	}
	if err := cb.Call(t.Context(), func() error { return nil }); err != nil {
		t.Fatalf("second probe failed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after success threshold, got %s", cb.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Millisecond})

	_ = cb.Call(t.Context(), func() error { return stderrors.New("fail") })
	time.Sleep(5 * time.Millisecond)

	_ = cb.Call(t.Context(), func() error { return stderrors.New("still failing") })
	if cb.State() != StateOpen {
		t.Errorf("expected reopened breaker, got %s", cb.State())
	}
}

func TestBreakerTripAndReset(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{})
	cb.Trip()
	if cb.State() != StateOpen {
		t.Fatalf("expected open after Trip, got %s", cb.State())
	}
	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("expected closed after Reset, got %s", cb.State())
	}
}

func TestResilientProviderRetries(t *testing.T) {
	calls := 0
	backend := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			calls++
			if calls < 3 {
				return nil, errors.New(errors.CodeLLMError, "backend flaking", nil)
			}
			return &llm.ChatResponse{Content: "ok", FinishReason: llm.FinishReasonStop}, nil
		},
	}

	p := NewResilientProvider(backend,
		WithRetry(fastRetry(3)),
		WithProviderLogger(quietLogger()))

	resp, err := p.Chat(t.Context(), llm.ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" || calls != 3 {
		t.Errorf("expected success on third call, got content=%q calls=%d", resp.Content, calls)
	}
}

func TestResilientProviderGivesUp(t *testing.T) {
	backend := &llm.FailingMockProvider{Err: errors.New(errors.CodeLLMError, "backend dead", nil)}
	p := NewResilientProvider(backend,
		WithRetry(fastRetry(2)),
		WithProviderLogger(quietLogger()))

	if _, err := p.Chat(t.Context(), llm.ChatRequest{}); err == nil {
		t.Error("expected error after retries exhausted")
	}
}

func TestResilientProviderBreakerShortCircuits(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	cb.Trip()

	calls := 0
	backend := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			calls++
			return &llm.ChatResponse{Content: "ok"}, nil
		},
	}
	p := NewResilientProvider(backend,
		WithRetry(fastRetry(2)),
		WithBreaker(cb),
		WithProviderLogger(quietLogger()))

	if _, err := p.Chat(t.Context(), llm.ChatRequest{}); err == nil {
		t.Error("expected error from open breaker")
	}
	if calls != 0 {
		t.Errorf("backend must not be called while breaker is open, got %d calls", calls)
	}
}

func TestProviderChainFallsBack(t *testing.T) {
	primary := &llm.FailingMockProvider{Err: stderrors.New("primary down")}
	secondary := &llm.MockProvider{Response: "from fallback"}

	chain := NewProviderChain(primary, secondary).WithChainLogger(quietLogger())
	resp, err := chain.Chat(t.Context(), llm.ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from fallback" {
		t.Errorf("expected fallback response, got %q", resp.Content)
	}
}

func TestProviderChainAllFail(t *testing.T) {
	chain := NewProviderChain(
		&llm.FailingMockProvider{Err: stderrors.New("one")},
		&llm.FailingMockProvider{Err: stderrors.New("two")},
	).WithChainLogger(quietLogger())

	_, err := chain.Chat(t.Context(), llm.ChatRequest{})
	var le *errors.LoomError
	if !stderrors.As(err, &le) || le.Code != errors.CodeLLMError {
		t.Fatalf("expected LLM error, got %v", err)
	}
	if !stderrors.Is(err, le.Err) || le.Err.Error() != "two" {
		t.Errorf("expected last error preserved, got %v", le.Err)
	}
}

func TestProviderChainEmpty(t *testing.T) {
	if _, err := NewProviderChain().Chat(t.Context(), llm.ChatRequest{}); err == nil {
		t.Error("expected error from empty chain")
	}
}

package resilience

import (
	"context"
	"log/slog"

	"github.com/loomlab/loom/pkg/errors"
	"github.com/loomlab/loom/pkg/llm"
	"github.com/loomlab/loom/pkg/telemetry"
)

// ResilientProvider wraps an llm.Provider with retry and an optional
// circuit breaker. It implements llm.Provider, so it can be handed to
// the executor in place of the raw backend.
type ResilientProvider struct {
	backend llm.Provider
	retry   RetryConfig
	breaker *CircuitBreaker
	logger  *slog.Logger
	metrics *telemetry.ErrorMetrics
}

// ProviderOption customizes a ResilientProvider.
type ProviderOption func(*ResilientProvider)

// WithRetry sets the retry configuration.
func WithRetry(rc RetryConfig) ProviderOption {
	return func(p *ResilientProvider) { p.retry = rc }
}

// WithBreaker sets the circuit breaker guarding the backend.
func WithBreaker(cb *CircuitBreaker) ProviderOption {
	return func(p *ResilientProvider) { p.breaker = cb }
}

// WithProviderLogger sets the logger for attempt diagnostics.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *ResilientProvider) { p.logger = logger }
}

// WithErrorMetrics sets the metrics sink for failures and recoveries.
func WithErrorMetrics(em *telemetry.ErrorMetrics) ProviderOption {
	return func(p *ResilientProvider) { p.metrics = em }
}

// NewResilientProvider wraps backend with the default retry policy.
func NewResilientProvider(backend llm.Provider, opts ...ProviderOption) *ResilientProvider {
	p := &ResilientProvider{
		backend: backend,
		retry:   DefaultRetryConfig(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Chat sends the request through the breaker and retry layers.
func (p *ResilientProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	var resp *llm.ChatResponse
	attempts := 0

	err := p.retry.Do(ctx, func() error {
		attempts++
		call := func() error {
			var chatErr error
			resp, chatErr = p.backend.Chat(ctx, req)
			return chatErr
		}

		var err error
		if p.breaker != nil {
			err = p.breaker.Call(ctx, call)
		} else {
			err = call()
		}
		if err != nil {
			p.logger.WarnContext(ctx, "model call failed",
				"attempt", attempts,
				"max_attempts", p.retry.MaxAttempts,
				"error", err)
			p.metrics.RecordError(ctx, err, "llm")
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if attempts > 1 {
		p.metrics.RecordRecovery(ctx, errors.CodeLLMError, "llm")
	}
	return resp, nil
}

// ProviderChain tries each provider in order until one succeeds.
// It is the degraded-mode path for running a cheaper or local fallback
// model when the primary backend is down.
type ProviderChain struct {
	providers []llm.Provider
	logger    *slog.Logger
}

// NewProviderChain builds a chain from primary to last resort.
func NewProviderChain(providers ...llm.Provider) *ProviderChain {
	return &ProviderChain{providers: providers, logger: slog.Default()}
}

// WithChainLogger sets the logger used when falling through the chain.
func (c *ProviderChain) WithChainLogger(logger *slog.Logger) *ProviderChain {
	c.logger = logger
	return c
}

// Chat tries each provider in order, returning the first success.
// The last error is returned when every provider fails.
func (c *ProviderChain) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if len(c.providers) == 0 {
		return nil, errors.New(errors.CodeLLMError, "provider chain is empty", nil)
	}

	var lastErr error
	for i, provider := range c.providers {
		resp, err := provider.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if i < len(c.providers)-1 {
			c.logger.WarnContext(ctx, "provider failed, falling back",
				"position", i,
				"error", err)
		}
	}

	return nil, errors.New(errors.CodeLLMError, "all providers in chain failed", lastErr)
}

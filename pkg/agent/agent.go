package agent

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Capability is a coarse-grained tag describing something an agent may do.
// Capabilities gate nothing by themselves; callers and prompts use them
// to describe the agent.
type Capability string

const (
	CapabilityToolUse       Capability = "tool_use"
	CapabilityMemory        Capability = "memory"
	CapabilityCodeExecution Capability = "code_execution"
	CapabilityWebSearch     Capability = "web_search"
)

// Config holds the execution defaults for an agent.
type Config struct {
	Model         string
	Temperature   float64
	MaxIterations int
	Timeout       time.Duration
	SystemPrompt  string
}

// DefaultConfig returns the config used when options set nothing.
func DefaultConfig() Config {
	return Config{
		Model:         "llama3.2",
		Temperature:   0.7,
		MaxIterations: 10,
		Timeout:       2 * time.Minute,
	}
}

// Agent is an in-process agent definition. It carries identity and
// configuration only; execution lives in pkg/runtime.
type Agent struct {
	id           string
	name         string
	description  string
	capabilities map[Capability]struct{}
	config       Config
}

var ErrMissingName = errors.New("agent name is required")

// Option configures an Agent instance.
type Option func(*Agent) error

// New creates a new Agent with a generated id, a required name and options.
func New(name string, opts ...Option) (*Agent, error) {
	a := &Agent{
		id:           uuid.NewString(),
		name:         name,
		capabilities: make(map[Capability]struct{}),
		config:       DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.name == "" {
		return nil, ErrMissingName
	}
	if a.config.MaxIterations <= 0 {
		return nil, errors.New("agent max iterations must be positive")
	}
	return a, nil
}

// WithDescription sets the human-readable description.
func WithDescription(description string) Option {
	return func(a *Agent) error {
		a.description = description
		return nil
	}
}

// WithCapabilities declares the agent's capability set.
func WithCapabilities(caps ...Capability) Option {
	return func(a *Agent) error {
		for _, c := range caps {
			a.capabilities[c] = struct{}{}
		}
		return nil
	}
}

// WithModel sets the default model name.
func WithModel(model string) Option {
	return func(a *Agent) error {
		a.config.Model = model
		return nil
	}
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Agent) error {
		if t < 0 || t > 2 {
			return errors.New("agent temperature must be in [0, 2]")
		}
		a.config.Temperature = t
		return nil
	}
}

// WithMaxIterations sets the default iteration bound for the execution loop.
func WithMaxIterations(n int) Option {
	return func(a *Agent) error {
		a.config.MaxIterations = n
		return nil
	}
}

// WithTimeout sets the default execution timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Agent) error {
		a.config.Timeout = d
		return nil
	}
}

// WithSystemPrompt overrides the generated system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) error {
		a.config.SystemPrompt = prompt
		return nil
	}
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Description returns the human-readable description.
func (a *Agent) Description() string { return a.description }

// Config returns the agent's execution defaults.
func (a *Agent) Config() Config { return a.config }

// AddCapability declares an additional capability.
func (a *Agent) AddCapability(c Capability) {
	a.capabilities[c] = struct{}{}
}

// RemoveCapability withdraws a capability.
func (a *Agent) RemoveCapability(c Capability) {
	delete(a.capabilities, c)
}

// HasCapability reports whether the agent declares c.
func (a *Agent) HasCapability(c Capability) bool {
	_, ok := a.capabilities[c]
	return ok
}

// Capabilities returns the declared capability set, sorted for stable output.
func (a *Agent) Capabilities() []Capability {
	caps := make([]Capability, 0, len(a.capabilities))
	for c := range a.capabilities {
		caps = append(caps, c)
	}
	slices.Sort(caps)
	return caps
}

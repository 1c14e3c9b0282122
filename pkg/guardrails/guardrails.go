// Package guardrails provides content checks for agent input and output.
//
// A Pipeline runs two kinds of guards: input guards, which can block a
// task before it reaches the model, and output guards, which rewrite the
// final answer (masking PII and similar) before it is returned. Guards
// inspect message content; they do not gate tool calls, which the runtime
// handles through its allowed-tool list.
package guardrails

import (
	"context"
	"fmt"
	"strings"
)

// Verdict is the outcome of an input check.
type Verdict struct {
	// Allowed is false when the input must not proceed.
	Allowed bool
	// Reason explains a block; empty when allowed.
	Reason string
	// Guard names the guard that blocked, for logs.
	Guard string
}

// Redaction records one substitution made by an output guard.
type Redaction struct {
	// Kind categorizes what was masked, e.g. "email" or "ssn".
	Kind string
	// Replacement is the text the match was replaced with.
	Replacement string
	// Position is the byte offset of the match in the pre-filter text.
	Position int
}

// InputGuard inspects task input before the first model call.
type InputGuard interface {
	Name() string
	Check(ctx context.Context, input string) Verdict
}

// OutputGuard rewrites model output before it is returned to the caller.
type OutputGuard interface {
	Name() string
	Filter(ctx context.Context, output string) (string, []Redaction)
}

// Pipeline chains input guards and output guards in registration order.
// The zero value passes everything through; a nil *Pipeline is safe to
// call.
type Pipeline struct {
	inputs  []InputGuard
	outputs []OutputGuard
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithInputGuard appends a custom input guard.
func WithInputGuard(g InputGuard) Option {
	return func(p *Pipeline) { p.inputs = append(p.inputs, g) }
}

// WithOutputGuard appends a custom output guard.
func WithOutputGuard(g OutputGuard) Option {
	return func(p *Pipeline) { p.outputs = append(p.outputs, g) }
}

// WithInjectionGuard blocks common prompt-injection phrasings on input.
func WithInjectionGuard(opts ...InjectionOption) Option {
	return WithInputGuard(NewInjectionGuard(opts...))
}

// WithRedactor masks PII in output. With no kinds every known kind is
// masked.
func WithRedactor(kinds ...PIIKind) Option {
	return WithOutputGuard(NewRedactor(kinds...))
}

// WithDenyPhrases blocks input containing any of the given phrases,
// case-insensitively.
func WithDenyPhrases(phrases ...string) Option {
	return WithInputGuard(NewPhraseGuard(phrases...))
}

// New creates a Pipeline from the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckInput runs every input guard in order and returns the first
// blocking verdict, or an allowing one.
func (p *Pipeline) CheckInput(ctx context.Context, input string) Verdict {
	if p == nil {
		return Verdict{Allowed: true}
	}
	for _, g := range p.inputs {
		if ctx.Err() != nil {
			return Verdict{Allowed: true}
		}
		if v := g.Check(ctx, input); !v.Allowed {
			if v.Guard == "" {
				v.Guard = g.Name()
			}
			return v
		}
	}
	return Verdict{Allowed: true}
}

// FilterOutput runs every output guard in order, feeding each guard the
// previous guard's result, and returns the final text with all
// redactions made along the way.
func (p *Pipeline) FilterOutput(ctx context.Context, output string) (string, []Redaction) {
	if p == nil {
		return output, nil
	}
	var all []Redaction
	for _, g := range p.outputs {
		if ctx.Err() != nil {
			break
		}
		var reds []Redaction
		output, reds = g.Filter(ctx, output)
		all = append(all, reds...)
	}
	return output, all
}

// PhraseGuard blocks input containing any configured phrase. Matching is
// case-insensitive substring search.
type PhraseGuard struct {
	phrases []string
}

// NewPhraseGuard creates a PhraseGuard. Empty phrases are dropped.
func NewPhraseGuard(phrases ...string) *PhraseGuard {
	g := &PhraseGuard{}
	for _, ph := range phrases {
		ph = strings.TrimSpace(strings.ToLower(ph))
		if ph != "" {
			g.phrases = append(g.phrases, ph)
		}
	}
	return g
}

func (g *PhraseGuard) Name() string { return "deny-phrases" }

func (g *PhraseGuard) Check(_ context.Context, input string) Verdict {
	lowered := strings.ToLower(input)
	for _, ph := range g.phrases {
		if strings.Contains(lowered, ph) {
			return Verdict{
				Reason: fmt.Sprintf("input contains denied phrase %q", ph),
				Guard:  g.Name(),
			}
		}
	}
	return Verdict{Allowed: true}
}

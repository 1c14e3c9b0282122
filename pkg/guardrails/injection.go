package guardrails

import (
	"context"
	"regexp"
)

// InjectionGuard blocks inputs that match known prompt-injection
// phrasings. Detection is pattern-based: a single match blocks. The
// default set targets instruction override, persona switching, system
// prompt extraction, and template delimiter smuggling.
type InjectionGuard struct {
	patterns []*regexp.Regexp
}

// InjectionOption configures an InjectionGuard.
type InjectionOption func(*InjectionGuard)

var injectionPatterns = []*regexp.Regexp{
	// Instruction override.
	regexp.MustCompile(`(?i)\b(ignore|disregard|forget|override)\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?|messages?)`),
	// Persona switching.
	regexp.MustCompile(`(?i)\byou\s+are\s+now\s+(a|an|in)\b`),
	regexp.MustCompile(`(?i)\bpretend\s+(you\s+are|to\s+be)\b`),
	regexp.MustCompile(`(?i)\b(enter|switch\s+to|enable)\s+\w+\s+mode\b`),
	// System prompt extraction.
	regexp.MustCompile(`(?i)\b(show|reveal|print|display|repeat)\s+(me\s+)?your\s+(system\s+)?(prompt|instructions?)`),
	// Jailbreak markers.
	regexp.MustCompile(`(?i)\b(jailbreak|do\s+anything\s+now|bypass\s+(safety|content|filter))\b`),
	// Template delimiter smuggling.
	regexp.MustCompile(`(?i)(<\|[^|]*\|>|\[/?INST\]|<</?SYS>>|\]\]\s*system\s*:)`),
}

// WithInjectionPatterns appends custom patterns. Invalid expressions
// return an error rather than being dropped silently.
func WithInjectionPatterns(exprs ...string) (InjectionOption, error) {
	compiled := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return func(g *InjectionGuard) {
		g.patterns = append(g.patterns, compiled...)
	}, nil
}

// NewInjectionGuard creates an InjectionGuard with the default pattern
// set plus any options.
func NewInjectionGuard(opts ...InjectionOption) *InjectionGuard {
	g := &InjectionGuard{patterns: injectionPatterns}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *InjectionGuard) Name() string { return "prompt-injection" }

func (g *InjectionGuard) Check(ctx context.Context, input string) Verdict {
	if input == "" {
		return Verdict{Allowed: true}
	}
	for _, re := range g.patterns {
		if ctx.Err() != nil {
			return Verdict{Allowed: true}
		}
		if re.MatchString(input) {
			return Verdict{
				Reason: "input matches a prompt injection pattern",
				Guard:  g.Name(),
			}
		}
	}
	return Verdict{Allowed: true}
}

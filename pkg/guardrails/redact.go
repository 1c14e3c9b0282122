package guardrails

import (
	"context"
	"regexp"
	"strings"
)

// PIIKind names a category of personally identifiable information the
// Redactor can mask.
type PIIKind string

const (
	PIIEmail      PIIKind = "email"
	PIIPhone      PIIKind = "phone"
	PIISSN        PIIKind = "ssn"
	PIICreditCard PIIKind = "credit_card"
	PIIIPAddress  PIIKind = "ip_address"
)

type piiRule struct {
	kind    PIIKind
	pattern *regexp.Regexp
	mask    string
}

// Rule order matters: card numbers and SSNs must run before the phone
// pattern, which would otherwise claim their digit groups.
var piiRules = []piiRule{
	{PIICreditCard, regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`), "[CREDIT_CARD]"},
	{PIISSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN]"},
	{PIIEmail, regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`), "[EMAIL]"},
	{PIIPhone, regexp.MustCompile(`\+?1?[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`), "[PHONE]"},
	{PIIIPAddress, regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|[01]?\d\d?)\.){3}(?:25[0-5]|2[0-4]\d|[01]?\d\d?)\b`), "[IP_ADDRESS]"},
}

// Redactor masks PII in output text. It is an OutputGuard; the masked
// categories are fixed at construction.
type Redactor struct {
	enabled map[PIIKind]bool
}

// NewRedactor creates a Redactor masking the given kinds. With no
// arguments every known kind is masked.
func NewRedactor(kinds ...PIIKind) *Redactor {
	r := &Redactor{enabled: make(map[PIIKind]bool, len(piiRules))}
	if len(kinds) == 0 {
		for _, rule := range piiRules {
			r.enabled[rule.kind] = true
		}
		return r
	}
	for _, k := range kinds {
		r.enabled[k] = true
	}
	return r
}

func (r *Redactor) Name() string { return "pii-redactor" }

// Filter replaces every enabled PII match with its mask token. The
// redaction log never carries the original text.
func (r *Redactor) Filter(ctx context.Context, output string) (string, []Redaction) {
	if output == "" {
		return output, nil
	}
	var reds []Redaction
	for _, rule := range piiRules {
		if !r.enabled[rule.kind] {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		matches := rule.pattern.FindAllStringIndex(output, -1)
		// Replace back to front so earlier offsets stay valid.
		for i := len(matches) - 1; i >= 0; i-- {
			m := matches[i]
			reds = append(reds, Redaction{
				Kind:        string(rule.kind),
				Replacement: rule.mask,
				Position:    m[0],
			})
			var b strings.Builder
			b.Grow(len(output) - (m[1] - m[0]) + len(rule.mask))
			b.WriteString(output[:m[0]])
			b.WriteString(rule.mask)
			b.WriteString(output[m[1]:])
			output = b.String()
		}
	}
	return output, reds
}

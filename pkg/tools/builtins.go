package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Builtins returns the built-in tool set.
func Builtins() []Tool {
	return []Tool{
		&CalculatorTool{},
		&EchoTool{},
		&CurrentTimeTool{},
		&ParseJSONTool{},
		&StringManipulationTool{},
	}
}

// CalculatorTool evaluates basic arithmetic expressions. The expression is
// rejected before evaluation unless it consists solely of digits, operators,
// parentheses, decimal points and whitespace.
type CalculatorTool struct{}

func (c *CalculatorTool) Name() string { return "calculator" }

func (c *CalculatorTool) Description() string {
	return "Evaluates a basic arithmetic expression (+, -, *, /, parentheses)."
}

func (c *CalculatorTool) Schema() Schema {
	return Schema{
		Type: "object",
		Properties: map[string]Property{
			"expression": {
				Type:        "string",
				Description: "Arithmetic expression to evaluate, e.g. \"2 + 2\"",
			},
		},
		Required: []string{"expression"},
	}
}

func (c *CalculatorTool) Execute(_ context.Context, params map[string]any) Result {
	expr, ok := params["expression"].(string)
	if !ok {
		return Fail("expression must be a string")
	}
	if !validExpression(expr) {
		return Fail("Invalid expression: only digits, operators, parentheses and whitespace are allowed")
	}
	value, err := evalExpression(expr)
	if err != nil {
		return Fail(err.Error())
	}
	return Succeed(value)
}

func validExpression(expr string) bool {
	if strings.TrimSpace(expr) == "" {
		return false
	}
	for _, r := range expr {
		switch {
		case r >= '0' && r <= '9':
		case r == '+' || r == '-' || r == '*' || r == '/':
		case r == '(' || r == ')' || r == '.':
		case r == ' ' || r == '\t':
		default:
			return false
		}
	}
	return true
}

// evalExpression is a small recursive descent evaluator:
//
//	expr   = term (('+'|'-') term)*
//	term   = factor (('*'|'/') factor)*
//	factor = '-'* (number | '(' expr ')')
func evalExpression(expr string) (float64, error) {
	p := &exprParser{input: strings.ReplaceAll(strings.ReplaceAll(expr, " ", ""), "\t", "")}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("unexpected character at position %d", p.pos)
	}
	return value, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) parseExpr() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			value += rhs
		case '-':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			value -= rhs
		default:
			return value, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	value, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			value *= rhs
		case '/':
			p.pos++
			rhs, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			value /= rhs
		default:
			return value, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	if p.peek() == '-' {
		p.pos++
		value, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -value, nil
	}
	if p.peek() == '(' {
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return value, nil
	}
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected number at position %d", start)
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return value, nil
}

// EchoTool returns its input unchanged.
type EchoTool struct{}

func (e *EchoTool) Name() string        { return "echo" }
func (e *EchoTool) Description() string { return "Returns the provided message unchanged." }

func (e *EchoTool) Schema() Schema {
	return Schema{
		Type: "object",
		Properties: map[string]Property{
			"message": {Type: "string", Description: "Message to echo back"},
		},
		Required: []string{"message"},
	}
}

func (e *EchoTool) Execute(_ context.Context, params map[string]any) Result {
	return Succeed(params["message"])
}

// CurrentTimeTool reports the current time in several representations.
type CurrentTimeTool struct{}

func (c *CurrentTimeTool) Name() string        { return "current_time" }
func (c *CurrentTimeTool) Description() string { return "Returns the current date and time." }

func (c *CurrentTimeTool) Schema() Schema {
	return Schema{
		Type:       "object",
		Properties: map[string]Property{},
	}
}

func (c *CurrentTimeTool) Execute(_ context.Context, _ map[string]any) Result {
	now := time.Now()
	return Succeed(map[string]any{
		"iso":          now.UTC().Format(time.RFC3339),
		"epoch_millis": now.UnixMilli(),
		"locale":       now.Location().String(),
	})
}

// ParseJSONTool parses a JSON document. Parse errors are tool failures, never
// panics.
type ParseJSONTool struct{}

func (p *ParseJSONTool) Name() string        { return "parse_json" }
func (p *ParseJSONTool) Description() string { return "Parses a JSON string into structured data." }

func (p *ParseJSONTool) Schema() Schema {
	return Schema{
		Type: "object",
		Properties: map[string]Property{
			"json": {Type: "string", Description: "JSON document to parse"},
		},
		Required: []string{"json"},
	}
}

func (p *ParseJSONTool) Execute(_ context.Context, params map[string]any) Result {
	raw, ok := params["json"].(string)
	if !ok {
		return Fail("json must be a string")
	}
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Fail("Invalid JSON: " + err.Error())
	}
	return Succeed(parsed)
}

// StringManipulationTool applies a named transform to a text value.
type StringManipulationTool struct{}

func (s *StringManipulationTool) Name() string { return "string_manipulation" }

func (s *StringManipulationTool) Description() string {
	return "Applies uppercase, lowercase, reverse, length or trim to a text value."
}

func (s *StringManipulationTool) Schema() Schema {
	return Schema{
		Type: "object",
		Properties: map[string]Property{
			"text": {Type: "string", Description: "Text to transform"},
			"operation": {
				Type:        "string",
				Description: "Transform to apply",
				Enum:        []string{"uppercase", "lowercase", "reverse", "length", "trim"},
			},
		},
		Required: []string{"text", "operation"},
	}
}

func (s *StringManipulationTool) Execute(_ context.Context, params map[string]any) Result {
	text, ok := params["text"].(string)
	if !ok {
		return Fail("text must be a string")
	}
	op, ok := params["operation"].(string)
	if !ok {
		return Fail("operation must be a string")
	}
	switch op {
	case "uppercase":
		return Succeed(strings.ToUpper(text))
	case "lowercase":
		return Succeed(strings.ToLower(text))
	case "reverse":
		return Succeed(reverseString(text))
	case "length":
		return Succeed(utf8.RuneCountInString(text))
	case "trim":
		return Succeed(strings.TrimSpace(text))
	default:
		return Fail("Unknown operation: " + op)
	}
}

func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

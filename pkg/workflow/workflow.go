// Package workflow runs declarative multi-step pipelines over the agent
// runtime. Steps are a closed set of kinds rather than pluggable
// handlers; adding a kind means touching this package.
package workflow

import (
	"fmt"
	"strings"
)

// StepKind identifies one of the supported step variants.
type StepKind string

const (
	StepFixed       StepKind = "fixed"
	StepAgent       StepKind = "agent"
	StepConditional StepKind = "conditional"
	StepParallel    StepKind = "parallel"
)

// Transform names one of the pure functions a fixed step can apply.
type Transform string

const (
	TransformEcho      Transform = "echo"
	TransformUppercase Transform = "uppercase"
	TransformLowercase Transform = "lowercase"
	TransformReverse   Transform = "reverse"
	// TransformMerge joins every previous step output, in step order.
	TransformMerge Transform = "merge"
)

// FixedConfig configures a fixed step.
type FixedConfig struct {
	Transform Transform `json:"transform" yaml:"transform"`
}

// AgentConfig configures an agent step. Agent names reference agents
// registered on the Engine. The task string may contain the {{input}}
// placeholder, replaced with the step input at run time; an empty task
// uses the step input directly.
type AgentConfig struct {
	Agent         string   `json:"agent" yaml:"agent"`
	Task          string   `json:"task,omitempty" yaml:"task,omitempty"`
	Tools         []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	MaxIterations int      `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
}

// Condition is a predicate over the step input. Zero-valued fields are
// not checked; a zero condition always matches.
type Condition struct {
	Contains string `json:"contains,omitempty" yaml:"contains,omitempty"`
	Equals   string `json:"equals,omitempty" yaml:"equals,omitempty"`
}

// Evaluate applies the condition to the given input.
func (c Condition) Evaluate(input string) bool {
	if c.Contains != "" && !strings.Contains(input, c.Contains) {
		return false
	}
	if c.Equals != "" && input != c.Equals {
		return false
	}
	return true
}

// ConditionalConfig configures a conditional step. Else may be nil, in
// which case a non-matching condition passes the input through.
type ConditionalConfig struct {
	If   Condition `json:"if" yaml:"if"`
	Then *Step     `json:"then" yaml:"then"`
	Else *Step     `json:"else,omitempty" yaml:"else,omitempty"`
}

// ParallelConfig configures a parallel step. Sub-step outputs are
// collected in declaration order and joined with newlines.
type ParallelConfig struct {
	Steps []Step `json:"steps" yaml:"steps"`
}

// Step is the tagged variant for one pipeline stage. Exactly the config
// matching Kind must be set.
type Step struct {
	Name        string             `json:"name" yaml:"name"`
	Kind        StepKind           `json:"kind" yaml:"kind"`
	Fixed       *FixedConfig       `json:"fixed,omitempty" yaml:"fixed,omitempty"`
	Agent       *AgentConfig       `json:"agent,omitempty" yaml:"agent,omitempty"`
	Conditional *ConditionalConfig `json:"conditional,omitempty" yaml:"conditional,omitempty"`
	Parallel    *ParallelConfig    `json:"parallel,omitempty" yaml:"parallel,omitempty"`
}

// Workflow is an ordered list of steps executed sequentially, each
// step's output feeding the next.
type Workflow struct {
	ID    string `json:"id" yaml:"id"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Validate ensures the workflow is well-formed for execution.
func (w *Workflow) Validate() error {
	if w == nil {
		return fmt.Errorf("workflow is nil")
	}
	if w.ID == "" {
		return fmt.Errorf("workflow id is required")
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow has no steps")
	}
	seen := make(map[string]bool, len(w.Steps))
	for i := range w.Steps {
		step := &w.Steps[i]
		if step.Name == "" {
			return fmt.Errorf("step %d missing name", i)
		}
		if seen[step.Name] {
			return fmt.Errorf("duplicate step name %q", step.Name)
		}
		seen[step.Name] = true
		if err := validateStep(step); err != nil {
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
	}
	return nil
}

func validateStep(step *Step) error {
	switch step.Kind {
	case StepFixed:
		if step.Fixed == nil {
			return fmt.Errorf("fixed config is required")
		}
		switch step.Fixed.Transform {
		case TransformEcho, TransformUppercase, TransformLowercase, TransformReverse, TransformMerge:
		default:
			return fmt.Errorf("unknown transform %q", step.Fixed.Transform)
		}
	case StepAgent:
		if step.Agent == nil || step.Agent.Agent == "" {
			return fmt.Errorf("agent name is required")
		}
	case StepConditional:
		if step.Conditional == nil || step.Conditional.Then == nil {
			return fmt.Errorf("conditional requires a then step")
		}
		if err := validateStep(step.Conditional.Then); err != nil {
			return err
		}
		if step.Conditional.Else != nil {
			if err := validateStep(step.Conditional.Else); err != nil {
				return err
			}
		}
	case StepParallel:
		if step.Parallel == nil || len(step.Parallel.Steps) == 0 {
			return fmt.Errorf("parallel requires sub-steps")
		}
		for i := range step.Parallel.Steps {
			sub := &step.Parallel.Steps[i]
			if sub.Kind == StepParallel {
				return fmt.Errorf("nested parallel steps are not supported")
			}
			if err := validateStep(sub); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
	return nil
}

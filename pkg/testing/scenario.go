package testing

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/loomlab/loom/pkg/agent"
	"github.com/loomlab/loom/pkg/runtime"
)

// Scenario is a declarative test for one agent execution.
//
//	scenario := NewScenario("greeting").
//	    WithTask("say hello").
//	    ExpectSuccess().
//	    ExpectOutputContains("hello")
//	scenario.Run(t, executor, ag)
type Scenario struct {
	name         string
	task         string
	options      runtime.Options
	timeout      time.Duration
	expectations []Expectation
}

// Expectation verifies one condition against an execution result.
type Expectation interface {
	Check(result *runtime.ExecutionResult, err error) error
	Description() string
}

// NewScenario creates a scenario with the given name.
func NewScenario(name string) *Scenario {
	return &Scenario{name: name, timeout: 30 * time.Second}
}

// WithTask sets the task description.
func (s *Scenario) WithTask(task string) *Scenario {
	s.task = task
	return s
}

// WithOptions sets the execution options.
func (s *Scenario) WithOptions(opts runtime.Options) *Scenario {
	s.options = opts
	return s
}

// WithTimeout bounds the scenario run.
func (s *Scenario) WithTimeout(d time.Duration) *Scenario {
	s.timeout = d
	return s
}

// Expect appends a custom expectation.
func (s *Scenario) Expect(e Expectation) *Scenario {
	s.expectations = append(s.expectations, e)
	return s
}

// ExpectSuccess expects the execution to complete.
func (s *Scenario) ExpectSuccess() *Scenario {
	return s.Expect(expectation{
		desc: "execution succeeds",
		check: func(result *runtime.ExecutionResult, err error) error {
			if err != nil {
				return fmt.Errorf("execution failed: %w", err)
			}
			if result == nil || !result.Success {
				return fmt.Errorf("expected success, got %+v", result)
			}
			return nil
		},
	})
}

// ExpectFailureContaining expects a failed execution whose error
// message contains substr.
func (s *Scenario) ExpectFailureContaining(substr string) *Scenario {
	return s.Expect(expectation{
		desc: fmt.Sprintf("execution fails with %q", substr),
		check: func(result *runtime.ExecutionResult, err error) error {
			if err == nil {
				return fmt.Errorf("expected failure, execution succeeded")
			}
			if !strings.Contains(err.Error(), substr) {
				return fmt.Errorf("error %q does not contain %q", err.Error(), substr)
			}
			return nil
		},
	})
}

// ExpectOutputContains expects the final output to contain substr.
func (s *Scenario) ExpectOutputContains(substr string) *Scenario {
	return s.Expect(expectation{
		desc: fmt.Sprintf("output contains %q", substr),
		check: func(result *runtime.ExecutionResult, err error) error {
			if result == nil {
				return fmt.Errorf("no result")
			}
			if !strings.Contains(result.Output, substr) {
				return fmt.Errorf("output %q does not contain %q", result.Output, substr)
			}
			return nil
		},
	})
}

// ExpectIterations expects an exact iteration count.
func (s *Scenario) ExpectIterations(n int) *Scenario {
	return s.Expect(expectation{
		desc: fmt.Sprintf("%d iterations", n),
		check: func(result *runtime.ExecutionResult, err error) error {
			if result == nil {
				return fmt.Errorf("no result")
			}
			if len(result.Iterations) != n {
				return fmt.Errorf("expected %d iterations, got %d", n, len(result.Iterations))
			}
			return nil
		},
	})
}

// ExpectToolUsed expects at least one iteration to have invoked name.
func (s *Scenario) ExpectToolUsed(name string) *Scenario {
	return s.Expect(expectation{
		desc: fmt.Sprintf("tool %q used", name),
		check: func(result *runtime.ExecutionResult, err error) error {
			if result == nil {
				return fmt.Errorf("no result")
			}
			for _, iter := range result.Iterations {
				if iter.Action == name {
					return nil
				}
			}
			return fmt.Errorf("tool %q was never invoked", name)
		},
	})
}

// ExpectNoToolCalls expects the agent to have answered directly.
func (s *Scenario) ExpectNoToolCalls() *Scenario {
	return s.Expect(expectation{
		desc: "no tool calls",
		check: func(result *runtime.ExecutionResult, err error) error {
			if result == nil {
				return fmt.Errorf("no result")
			}
			for _, iter := range result.Iterations {
				if iter.Action != runtime.FinalAnswerAction {
					return fmt.Errorf("unexpected tool call %q", iter.Action)
				}
			}
			return nil
		},
	})
}

// Run executes the scenario and reports every unmet expectation as a
// test error. It returns the execution result for further checks.
func (s *Scenario) Run(t *testing.T, exec *runtime.Executor, ag *agent.Agent) *runtime.ExecutionResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := exec.Execute(ctx, ag, s.task, s.options)
	for _, e := range s.expectations {
		if checkErr := e.Check(result, err); checkErr != nil {
			t.Errorf("scenario %q: %s: %v", s.name, e.Description(), checkErr)
		}
	}
	return result
}

type expectation struct {
	desc  string
	check func(result *runtime.ExecutionResult, err error) error
}

func (e expectation) Check(result *runtime.ExecutionResult, err error) error {
	return e.check(result, err)
}

func (e expectation) Description() string { return e.desc }

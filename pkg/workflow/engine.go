package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/loomlab/loom/pkg/agent"
	"github.com/loomlab/loom/pkg/errors"
	"github.com/loomlab/loom/pkg/runtime"
	"github.com/loomlab/loom/pkg/telemetry"
)

// StepStatus is the terminal status of one step run.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepResult records the outcome of one top-level step.
type StepResult struct {
	Name       string
	Kind       StepKind
	Status     StepStatus
	Output     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunResult is the outcome of one workflow run. StepResults holds every
// step attempted before success or failure.
type RunResult struct {
	WorkflowID  string
	RunID       string
	Success     bool
	Output      string
	StepResults []StepResult
}

// state carries outputs accumulated across steps in a single run.
type state struct {
	last    string
	order   []string
	outputs map[string]string
}

func newState(input string) *state {
	return &state{last: input, outputs: make(map[string]string)}
}

func (s *state) record(name, output string) {
	s.last = output
	if name != "" {
		s.order = append(s.order, name)
		s.outputs[name] = output
	}
}

// Engine runs workflows sequentially against registered agents.
type Engine struct {
	executor *runtime.Executor
	agents   map[string]*agent.Agent
	audit    AuditStore
	logger   *slog.Logger
	tracer   trace.Tracer
	// parallelism bounds concurrent sub-steps of one parallel step.
	parallelism int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithAuditStore records every step run into the given store.
func WithAuditStore(store AuditStore) EngineOption {
	return func(e *Engine) { e.audit = store }
}

// WithEngineLogger sets the structured logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithParallelism bounds concurrent sub-steps in parallel steps.
func WithParallelism(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// NewEngine creates a workflow engine delegating agent steps to exec.
func NewEngine(exec *runtime.Executor, opts ...EngineOption) *Engine {
	e := &Engine{
		executor:    exec,
		agents:      make(map[string]*agent.Agent),
		logger:      slog.Default(),
		tracer:      otel.Tracer("loom/workflow"),
		parallelism: 4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterAgent makes an agent addressable from agent steps by name.
func (e *Engine) RegisterAgent(ag *agent.Agent) error {
	if ag == nil {
		return fmt.Errorf("agent is nil")
	}
	if _, exists := e.agents[ag.Name()]; exists {
		return fmt.Errorf("agent %q already registered", ag.Name())
	}
	e.agents[ag.Name()] = ag
	return nil
}

// Run executes the workflow steps in order, feeding each step's output
// into the next. A failed step stops the run; the returned result
// carries every step result accumulated so far.
func (e *Engine) Run(ctx context.Context, wf *Workflow, input string) (*RunResult, error) {
	if err := wf.Validate(); err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "invalid workflow", err)
	}

	runID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "Workflow.Run", trace.WithAttributes(
		attribute.String(telemetry.AttrWorkflowID, wf.ID),
		attribute.String(telemetry.AttrRunID, runID),
	))
	defer span.End()
	log := e.logger.With(slog.String("workflow", wf.ID), slog.String("run_id", runID))
	log.Info("workflow.start", slog.Int("steps", len(wf.Steps)))

	result := &RunResult{WorkflowID: wf.ID, RunID: runID}
	st := newState(input)

	for i := range wf.Steps {
		step := &wf.Steps[i]
		stepResult := e.runStep(ctx, wf, runID, step, st)
		result.StepResults = append(result.StepResults, stepResult)
		e.recordAudit(ctx, wf.ID, runID, stepResult)
		log.Info("workflow.step",
			slog.String("step", step.Name),
			slog.String("kind", string(step.Kind)),
			slog.String("status", string(stepResult.Status)),
		)

		if stepResult.Status == StepFailed {
			loomErr := errors.New(errors.CodeWorkflowError,
				fmt.Sprintf("step %q failed: %s", step.Name, stepResult.Error), nil)
			span.RecordError(loomErr)
			return result, loomErr
		}
		st.record(step.Name, stepResult.Output)
	}

	result.Success = true
	result.Output = st.last
	log.Info("workflow.complete")
	return result, nil
}

func (e *Engine) runStep(ctx context.Context, wf *Workflow, runID string, step *Step, st *state) StepResult {
	res := StepResult{Name: step.Name, Kind: step.Kind, StartedAt: time.Now().UTC()}
	ctx, span := e.tracer.Start(ctx, "Workflow.Step", trace.WithAttributes(
		attribute.String(telemetry.AttrStepName, step.Name),
		attribute.String(telemetry.AttrStepKind, string(step.Kind)),
	))
	defer span.End()

	output, err := e.execStep(ctx, step, st)
	res.FinishedAt = time.Now().UTC()
	if err != nil {
		res.Status = StepFailed
		res.Error = err.Error()
		span.RecordError(err)
		return res
	}
	res.Status = StepCompleted
	res.Output = output
	return res
}

func (e *Engine) execStep(ctx context.Context, step *Step, st *state) (string, error) {
	switch step.Kind {
	case StepFixed:
		return applyTransform(step.Fixed.Transform, st)
	case StepAgent:
		return e.execAgentStep(ctx, step.Agent, st.last)
	case StepConditional:
		inner := step.Conditional.Then
		if !step.Conditional.If.Evaluate(st.last) {
			inner = step.Conditional.Else
		}
		if inner == nil {
			// No branch matched: pass the input through.
			return st.last, nil
		}
		return e.execStep(ctx, inner, st)
	case StepParallel:
		return e.execParallelStep(ctx, step.Parallel, st)
	default:
		return "", fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func (e *Engine) execAgentStep(ctx context.Context, cfg *AgentConfig, input string) (string, error) {
	ag, ok := e.agents[cfg.Agent]
	if !ok {
		return "", fmt.Errorf("agent %q not registered", cfg.Agent)
	}
	task := cfg.Task
	if task == "" {
		task = input
	} else {
		task = strings.ReplaceAll(task, "{{input}}", input)
	}
	execResult, err := e.executor.Execute(ctx, ag, task, runtime.Options{
		MaxIterations: cfg.MaxIterations,
		AllowedTools:  cfg.Tools,
	})
	if err != nil {
		return "", err
	}
	return execResult.Output, nil
}

// execParallelStep runs sub-steps concurrently and joins their outputs
// in declaration order.
func (e *Engine) execParallelStep(ctx context.Context, cfg *ParallelConfig, st *state) (string, error) {
	outputs := make([]string, len(cfg.Steps))
	errs := make([]error, len(cfg.Steps))

	p := pool.New().WithMaxGoroutines(e.parallelism)
	for i := range cfg.Steps {
		i := i
		sub := &cfg.Steps[i]
		// Sub-steps see the same input snapshot; they must not share
		// mutable state.
		subState := &state{last: st.last, order: st.order, outputs: st.outputs}
		p.Go(func() {
			outputs[i], errs[i] = e.execStep(ctx, sub, subState)
		})
	}
	p.Wait()

	for i, err := range errs {
		if err != nil {
			return "", fmt.Errorf("sub-step %d: %w", i, err)
		}
	}
	return strings.Join(outputs, "\n"), nil
}

// applyTransform runs one fixed transform over the current state.
func applyTransform(transform Transform, st *state) (string, error) {
	switch transform {
	case TransformEcho:
		return st.last, nil
	case TransformUppercase:
		return strings.ToUpper(st.last), nil
	case TransformLowercase:
		return strings.ToLower(st.last), nil
	case TransformReverse:
		runes := []rune(st.last)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes), nil
	case TransformMerge:
		parts := make([]string, 0, len(st.order))
		for _, name := range st.order {
			parts = append(parts, st.outputs[name])
		}
		return strings.Join(parts, "\n"), nil
	default:
		return "", fmt.Errorf("unknown transform %q", transform)
	}
}

func (e *Engine) recordAudit(ctx context.Context, workflowID, runID string, res StepResult) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		WorkflowID: workflowID,
		RunID:      runID,
		StepName:   res.Name,
		StepKind:   string(res.Kind),
		Status:     string(res.Status),
		Output:     res.Output,
		Error:      res.Error,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	if err := e.audit.Record(ctx, event); err != nil {
		e.logger.Warn("workflow.audit_failed",
			slog.String("step", res.Name),
			slog.String("error", err.Error()),
		)
	}
}

// Package runtime provides the agent execution loop.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/loomlab/loom/pkg/agent"
	"github.com/loomlab/loom/pkg/core"
	"github.com/loomlab/loom/pkg/errors"
	"github.com/loomlab/loom/pkg/guardrails"
	"github.com/loomlab/loom/pkg/llm"
	"github.com/loomlab/loom/pkg/memory"
	"github.com/loomlab/loom/pkg/telemetry"
	"github.com/loomlab/loom/pkg/tools"
)

// FinalAnswerAction is the reserved action name recorded when the model
// answers without calling a tool.
const FinalAnswerAction = "final_answer"

const memoryContextLimit = 5

// Options override the agent's execution defaults for a single call.
type Options struct {
	// MaxIterations bounds the loop; zero uses the agent default.
	MaxIterations int
	// Timeout bounds wall-clock duration; zero uses the agent default.
	// It is checked before each iteration and applied to the request
	// context, so a slow model call past the deadline is cancelled
	// rather than merely observed late.
	Timeout time.Duration
	// AllowedTools restricts the tool subset by name. Nil means every
	// registered tool. Names that resolve to nothing are skipped.
	AllowedTools []string
	// Temperature overrides the agent's default when non-nil.
	Temperature *float64
	// Model overrides the agent's default model when non-empty.
	Model string
}

// Iteration is one append-only audit record for a single loop pass.
type Iteration struct {
	Seq         int            `json:"seq"`
	Rationale   string         `json:"rationale"`
	Action      string         `json:"action"`
	Input       map[string]any `json:"input,omitempty"`
	Observation string         `json:"observation,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ExecutionResult is the outcome of one Execute call. Iterations holds
// every record accumulated before success or failure, so callers can
// inspect partial progress either way.
type ExecutionResult struct {
	ExecutionID string
	Task        *core.Task
	Success     bool
	Output      string
	Iterations  []Iteration
	Err         *errors.LoomError
	Usage       llm.Usage
	Duration    time.Duration
}

// Executor runs the iterative model/tool loop for an agent.
type Executor struct {
	provider llm.Provider
	registry *tools.Registry
	memory   Memory
	guards   *guardrails.Pipeline
	logger   *slog.Logger
	tracer   trace.Tracer

	executions metric.Int64Counter
	iterations metric.Int64Histogram
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// Memory is the subset of the memory API the loop needs. Both a single
// tier store and a memory.Manager satisfy it.
type Memory interface {
	Store(ctx context.Context, t memory.Type, content any, importance memory.Importance, tags []string) (*memory.Entry, error)
	Query(ctx context.Context, filter memory.Filter) ([]*memory.Entry, error)
}

// WithMemory attaches a memory store used for episodic context and
// per-tool-call writes. Without it the loop runs memoryless.
func WithMemory(store Memory) ExecutorOption {
	return func(e *Executor) { e.memory = store }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// WithGuardrails attaches a content pipeline. Input guards run once
// before the first model call; output guards rewrite the final answer.
func WithGuardrails(p *guardrails.Pipeline) ExecutorOption {
	return func(e *Executor) { e.guards = p }
}

// NewExecutor creates an Executor bound to a model provider and a tool
// registry.
func NewExecutor(provider llm.Provider, registry *tools.Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		provider: provider,
		registry: registry,
		logger:   slog.Default(),
		tracer:   otel.Tracer("loom/runtime"),
	}
	for _, opt := range opts {
		opt(e)
	}
	meter := otel.Meter("loom/runtime")
	e.executions, _ = meter.Int64Counter("loom.executions",
		metric.WithDescription("Completed agent executions, by outcome."))
	e.iterations, _ = meter.Int64Histogram("loom.execution.iterations",
		metric.WithDescription("Loop iterations per execution."))
	return e
}

// Execute runs the agent loop for one task description. The returned
// result is non-nil whenever the loop started, including failed
// executions; the error mirrors result.Err in those cases.
func (e *Executor) Execute(ctx context.Context, ag *agent.Agent, taskDescription string, opts Options) (*ExecutionResult, error) {
	if ag == nil {
		return nil, errors.New(errors.CodeInvalidInput, "agent is required", nil)
	}
	if strings.TrimSpace(taskDescription) == "" {
		return nil, errors.New(errors.CodeInvalidInput, "task description is required", nil)
	}
	if v := e.guards.CheckInput(ctx, taskDescription); !v.Allowed {
		return nil, errors.New(errors.CodeInvalidInput, "task blocked by guardrail: "+v.Reason, nil).
			WithAttribute("guardrail", v.Guard)
	}

	cfg := ag.Config()
	maxIterations := cfg.MaxIterations
	if opts.MaxIterations > 0 {
		maxIterations = opts.MaxIterations
	}
	timeout := cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	temperature := cfg.Temperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	model := cfg.Model
	if opts.Model != "" {
		model = opts.Model
	}

	executionID := uuid.NewString()
	task := core.NewTask(taskDescription)
	task.WithConstraint(core.Constraint{Kind: core.ConstraintMaxIterations, Value: maxIterations})
	if timeout > 0 {
		task.WithConstraint(core.Constraint{Kind: core.ConstraintTimeout, Value: timeout.String()})
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, runID := core.EnsureRunID(ctx)
	ctx, span := e.tracer.Start(ctx, "Executor.Execute", trace.WithAttributes(
		attribute.String(telemetry.AttrAgentID, ag.ID()),
		attribute.String(telemetry.AttrAgentName, ag.Name()),
		attribute.String(telemetry.AttrExecutionID, executionID),
		attribute.Int(telemetry.AttrExecutionMaxIters, maxIterations),
		attribute.String(telemetry.AttrLLMModel, model),
	))
	defer span.End()

	log := e.logger.With(
		slog.String("agent", ag.Name()),
		slog.String("execution_id", executionID),
		slog.String("run_id", runID),
	)
	log.Info("execution.start", slog.String("task", taskDescription))

	toolset := e.resolveTools(opts.AllowedTools)
	defs := tools.Definitions(toolset)

	result := &ExecutionResult{ExecutionID: executionID, Task: task}
	start := time.Now()
	_ = task.Start()

	fail := func(loomErr *errors.LoomError) (*ExecutionResult, error) {
		_ = task.Fail(loomErr.Message)
		result.Err = loomErr
		result.Duration = time.Since(start)
		span.RecordError(loomErr)
		log.Error("execution.failed",
			slog.Int("iterations", len(result.Iterations)),
			slog.String("error", loomErr.Error()),
		)
		e.record(ctx, result, "failed")
		return result, loomErr
	}

	for len(result.Iterations) < maxIterations {
		if err := ctx.Err(); err != nil {
			return fail(errors.New(errors.CodeTimeout, "execution deadline exceeded", err))
		}

		seq := len(result.Iterations) + 1
		messages, err := e.buildMessages(ctx, ag, taskDescription, result.Iterations)
		if err != nil {
			return fail(errors.New(errors.CodeMemoryError, "building memory context failed", err))
		}

		req := llm.ChatRequest{
			Model:       model,
			Messages:    messages,
			Temperature: temperature,
		}
		if len(defs) > 0 {
			req.Tools = defs
			req.ToolChoice = llm.ToolChoiceAuto
		}

		iterCtx, iterSpan := e.tracer.Start(ctx, "Executor.Iteration",
			trace.WithAttributes(attribute.Int(telemetry.AttrIterationSeq, seq)))
		resp, err := e.provider.Chat(iterCtx, req)
		if err != nil {
			iterSpan.RecordError(err)
			iterSpan.End()
			return fail(errors.New(errors.CodeLLMError, "model call failed", err).
				WithContext("iteration", seq))
		}
		result.Usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			// Final answer. The model's text is the execution output.
			result.Iterations = append(result.Iterations, Iteration{
				Seq:       seq,
				Rationale: resp.Content,
				Action:    FinalAnswerAction,
				Timestamp: time.Now().UTC(),
			})
			iterSpan.SetAttributes(attribute.String(telemetry.AttrIterationAction, FinalAnswerAction))
			iterSpan.End()
			output, redactions := e.guards.FilterOutput(ctx, resp.Content)
			if len(redactions) > 0 {
				log.Warn("execution.output_redacted", slog.Int("redactions", len(redactions)))
			}
			result.Success = true
			result.Output = output
			result.Duration = time.Since(start)
			span.SetAttributes(telemetry.UsageAttrs(
				result.Usage.PromptTokens, result.Usage.CompletionTokens, result.Usage.TotalTokens)...)
			_ = task.Complete(output)
			log.Info("execution.complete",
				slog.Int("iterations", len(result.Iterations)),
				slog.Int("tokens", result.Usage.TotalTokens),
			)
			e.record(ctx, result, "completed")
			return result, nil
		}

		// Only the first tool call in a turn is honored; the rest are
		// dropped. See the registry docs before relying on parallel
		// tool calls.
		call := resp.ToolCalls[0]
		name := call.Function.Name
		input := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				iterSpan.RecordError(err)
				iterSpan.End()
				return fail(errors.New(errors.CodeInvalidInput, "malformed tool arguments", err).
					WithAttribute("tool", name))
			}
		}

		toolResult := e.registry.Execute(iterCtx, name, input)
		observation := observe(toolResult)

		result.Iterations = append(result.Iterations, Iteration{
			Seq:         seq,
			Rationale:   resp.Content,
			Action:      name,
			Input:       input,
			Observation: observation,
			Timestamp:   time.Now().UTC(),
		})
		iterSpan.SetAttributes(attribute.String(telemetry.AttrIterationAction, name))
		iterSpan.SetAttributes(telemetry.ToolAttrs(name, toolResult.Success)...)
		iterSpan.End()
		log.Debug("execution.tool",
			slog.Int("iteration", seq),
			slog.String("tool", name),
			slog.Bool("success", toolResult.Success),
		)

		if err := e.recordToolMemory(ctx, executionID, name, toolResult, observation); err != nil {
			return fail(errors.New(errors.CodeMemoryError, "episodic memory write failed", err).
				WithAttribute("tool", name))
		}
	}

	return fail(errors.New(errors.CodeMaxIterations, "maximum iterations reached", nil).
		WithContext("max_iterations", maxIterations))
}

// resolveTools picks the tool subset for one execution. A nil allowlist
// means every registered tool; names that do not resolve are skipped
// without error, so the model may see fewer tools than requested.
func (e *Executor) resolveTools(allowed []string) []tools.Tool {
	if allowed == nil {
		return e.registry.List()
	}
	subset := make([]tools.Tool, 0, len(allowed))
	for _, name := range allowed {
		if tool, ok := e.registry.Get(name); ok {
			subset = append(subset, tool)
		}
	}
	return subset
}

// buildMessages assembles the model request: system prompt, task turn,
// episodic memory context, then prior iterations replayed as
// assistant/user pairs.
func (e *Executor) buildMessages(ctx context.Context, ag *agent.Agent, taskDescription string, iterations []Iteration) ([]llm.Message, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(ag)},
		{Role: llm.RoleUser, Content: taskDescription},
	}

	if e.memory != nil {
		entries, err := e.memory.Query(ctx, memory.Filter{
			Type:          memory.TypeEpisodic,
			MinImportance: memory.ImportanceMedium,
			Limit:         memoryContextLimit,
		})
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			var sb strings.Builder
			sb.WriteString("Relevant past experience:\n")
			for _, entry := range entries {
				sb.WriteString("- ")
				sb.WriteString(memoryLine(entry))
				sb.WriteString("\n")
			}
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: sb.String()})
		}
	}

	for _, iter := range iterations {
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: iter.Rationale})
		if iter.Action != FinalAnswerAction {
			messages = append(messages, llm.Message{
				Role:    llm.RoleUser,
				Content: "Tool result: " + iter.Observation,
			})
		}
	}
	return messages, nil
}

// recordToolMemory writes the episodic record for one tool execution.
func (e *Executor) recordToolMemory(ctx context.Context, executionID, toolName string, res tools.Result, observation string) error {
	if e.memory == nil {
		return nil
	}
	importance := memory.ImportanceMedium
	if !res.Success {
		importance = memory.ImportanceLow
	}
	content := map[string]any{
		"tool":        toolName,
		"success":     res.Success,
		"observation": truncate(observation, 240),
	}
	_, err := e.memory.Store(ctx, memory.TypeEpisodic, content, importance,
		[]string{"tool", toolName, executionID})
	return err
}

func (e *Executor) record(ctx context.Context, result *ExecutionResult, outcome string) {
	attrs := metric.WithAttributes(attribute.String(telemetry.AttrExecutionOutcome, outcome))
	e.executions.Add(ctx, 1, attrs)
	e.iterations.Record(ctx, int64(len(result.Iterations)), attrs)
}

// systemPrompt returns the agent's configured prompt or a generated
// default naming the agent, its description and capabilities.
func systemPrompt(ag *agent.Agent) string {
	if prompt := ag.Config().SystemPrompt; prompt != "" {
		return prompt
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s", ag.Name())
	if desc := ag.Description(); desc != "" {
		fmt.Fprintf(&sb, ", %s", desc)
	}
	sb.WriteString(".")
	if caps := ag.Capabilities(); len(caps) > 0 {
		sb.WriteString(" Your capabilities: ")
		for i, c := range caps {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(string(c))
		}
		sb.WriteString(".")
	}
	sb.WriteString(" Use the available tools when they help. " +
		"When you have the answer, reply with it directly instead of calling a tool.")
	return sb.String()
}

// observe serializes a tool result into the observation text recorded
// for the iteration and replayed to the model.
func observe(res tools.Result) string {
	if !res.Success {
		return "Error: " + res.Error
	}
	switch out := res.Output.(type) {
	case nil:
		return ""
	case string:
		return out
	default:
		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Sprintf("%v", out)
		}
		return string(data)
	}
}

// memoryLine renders one episodic entry as a terse context line.
func memoryLine(entry *memory.Entry) string {
	if content, ok := entry.Content.(map[string]any); ok {
		if tool, ok := content["tool"].(string); ok {
			outcome := "ok"
			if success, ok := content["success"].(bool); ok && !success {
				outcome = "failed"
			}
			if obs, ok := content["observation"].(string); ok && obs != "" {
				return fmt.Sprintf("used tool %s (%s): %s", tool, outcome, obs)
			}
			return fmt.Sprintf("used tool %s (%s)", tool, outcome)
		}
	}
	return truncate(entry.ContentText(), 240)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

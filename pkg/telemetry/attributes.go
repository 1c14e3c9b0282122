package telemetry

import "go.opentelemetry.io/otel/attribute"

// Semantic conventions for Loom telemetry. LLM attributes follow the
// OpenTelemetry gen_ai conventions; the rest are Loom-specific.
const (
	AttrAgentID   = "loom.agent.id"
	AttrAgentName = "loom.agent.name"
	AttrRunID     = "loom.run_id"

	AttrExecutionID       = "loom.execution.id"
	AttrExecutionOutcome  = "loom.execution.outcome"
	AttrIterationSeq      = "loom.iteration.seq"
	AttrIterationAction   = "loom.iteration.action"
	AttrExecutionMaxIters = "loom.execution.max_iterations"

	AttrToolName    = "loom.tool.name"
	AttrToolSuccess = "loom.tool.success"

	AttrMemoryType       = "loom.memory.type"
	AttrMemoryTier       = "loom.memory.tier"
	AttrMemoryImportance = "loom.memory.importance"

	AttrWorkflowID = "loom.workflow.id"
	AttrStepName   = "loom.workflow.step"
	AttrStepKind   = "loom.workflow.step_kind"
	AttrStepStatus = "loom.workflow.step_status"

	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
	AttrLLMFinishReason = "gen_ai.finish_reason"
)

// AgentAttrs builds the standard attribute set for agent-scoped spans.
func AgentAttrs(agentID, agentName string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrAgentName, agentName),
	}
}

// ToolAttrs builds the standard attribute set for tool executions.
func ToolAttrs(name string, success bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.Bool(AttrToolSuccess, success),
	}
}

// UsageAttrs builds gen_ai token usage attributes.
func UsageAttrs(prompt, completion, total int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrLLMTokensInput, prompt),
		attribute.Int(AttrLLMTokensOutput, completion),
		attribute.Int(AttrLLMTokensTotal, total),
	}
}

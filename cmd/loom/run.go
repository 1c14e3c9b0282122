package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/loomlab/loom/pkg/agent"
	"github.com/loomlab/loom/pkg/config"
	"github.com/loomlab/loom/pkg/llm"
	"github.com/loomlab/loom/pkg/memory"
	"github.com/loomlab/loom/pkg/resilience"
	"github.com/loomlab/loom/pkg/runtime"
	"github.com/loomlab/loom/pkg/tools"
)

type runResult struct {
	ExecutionID string              `json:"execution_id"`
	Success     bool                `json:"success"`
	Output      string              `json:"output"`
	Iterations  []runtime.Iteration `json:"iterations"`
	Duration    string              `json:"duration"`
	TotalTokens int                 `json:"total_tokens"`
}

func runTask(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	agentName := cmd.String("agent", "loom", "agent name")
	toolList := cmd.String("tools", "", "comma-separated tool allow-list (default: all)")
	maxIterations := cmd.Int("max-iterations", 0, "override agent.max_iterations")
	model := cmd.String("model", "", "override llm.model")
	if err := cmd.Parse(args); err != nil {
		fatal(err, global.JSON)
	}
	if cmd.NArg() != 1 {
		fatal(fmt.Errorf("usage: loom run [flags] <task>"), global.JSON)
	}
	task := cmd.Arg(0)

	provider, err := buildProvider(cfg)
	if err != nil {
		fatal(err, global.JSON)
	}

	manager, err := buildMemory(cfg)
	if err != nil {
		fatal(err, global.JSON)
	}
	defer manager.Close()

	registry := tools.NewRegistryWithBuiltins()
	executor := runtime.NewExecutor(provider, registry, runtime.WithMemory(manager))

	ag, err := agent.New(*agentName,
		agent.WithCapabilities(agent.CapabilityToolUse, agent.CapabilityMemory),
		agent.WithModel(cfg.LLM.Model),
		agent.WithTemperature(cfg.Agent.Temperature),
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithTimeout(cfg.Agent.Timeout),
	)
	if err != nil {
		fatal(err, global.JSON)
	}

	ctx, cancel := context.WithTimeout(ctx, global.Timeout)
	defer cancel()

	opts := runtime.Options{
		MaxIterations: *maxIterations,
		Model:         *model,
		AllowedTools:  splitList(*toolList),
	}
	result, err := executor.Execute(ctx, ag, task, opts)
	if err != nil && result == nil {
		fatal(err, global.JSON)
	}

	if global.JSON {
		out := runResult{
			ExecutionID: result.ExecutionID,
			Success:     result.Success,
			Output:      result.Output,
			Iterations:  result.Iterations,
			Duration:    result.Duration.String(),
			TotalTokens: result.Usage.TotalTokens,
		}
		printJSON(out)
	} else {
		for _, iter := range result.Iterations {
			if iter.Action == runtime.FinalAnswerAction {
				continue
			}
			fmt.Fprintf(os.Stderr, "[%d] %s -> %s\n", iter.Seq, iter.Action, iter.Observation)
		}
		if result.Success {
			fmt.Println(result.Output)
		}
	}

	if err != nil {
		fatal(err, global.JSON)
	}
}

// buildProvider assembles the configured backend wrapped with retry and
// a circuit breaker. OpenAI and Anthropic adapters ship as submodules
// under providers/ and are wired in application code, not here.
func buildProvider(cfg *config.Config) (llm.Provider, error) {
	var backend llm.Provider
	switch cfg.LLM.Provider {
	case "ollama", "":
		backend = llm.NewOllama(cfg.LLM.BaseURL)
	default:
		return nil, newProviderError(cfg.LLM.Provider)
	}

	breaker := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name:     cfg.LLM.Provider,
		Cooldown: 15 * time.Second,
	})
	return resilience.NewResilientProvider(backend, resilience.WithBreaker(breaker)), nil
}

// buildMemory assembles the two-tier manager from config. Without a
// data_dir the durable tier is in-memory too, so nothing survives the
// process either way.
func buildMemory(cfg *config.Config) (*memory.Manager, error) {
	var durable memory.Store = memory.NewInMemoryStore()
	if cfg.Memory.DataDir != "" {
		fs, err := memory.NewFileStore(cfg.Memory.DataDir)
		if err != nil {
			return nil, err
		}
		durable = fs
	}

	opts := []memory.ManagerOption{}
	if cfg.Memory.ConsolidationThreshold > 0 {
		opts = append(opts, memory.WithConsolidationThreshold(cfg.Memory.ConsolidationThreshold))
	}
	if floor, ok := memory.ParseImportance(cfg.Memory.ConsolidationFloor); ok {
		opts = append(opts, memory.WithConsolidationFloor(floor))
	}
	if cfg.Memory.PruneInterval > 0 {
		opts = append(opts, memory.WithAutoPrune(cfg.Memory.PruneInterval, cfg.Memory.PruneMaxAge))
	}
	return memory.NewManager(memory.NewInMemoryStore(), durable, opts...), nil
}

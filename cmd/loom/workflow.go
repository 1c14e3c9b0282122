package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/loomlab/loom/pkg/agent"
	"github.com/loomlab/loom/pkg/config"
	"github.com/loomlab/loom/pkg/runtime"
	"github.com/loomlab/loom/pkg/tools"
	"github.com/loomlab/loom/pkg/workflow"
)

func runWorkflow(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	if len(args) == 0 {
		fatal(fmt.Errorf("usage: loom workflow <run|validate> <file>"), global.JSON)
	}

	switch args[0] {
	case "validate":
		validateWorkflow(global, args[1:])
	case "run":
		execWorkflow(ctx, global, cfg, args[1:])
	default:
		fatal(fmt.Errorf("unknown workflow subcommand %q", args[0]), global.JSON)
	}
}

func validateWorkflow(global globalFlags, args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: loom workflow validate <file>"), global.JSON)
	}

	wf, err := workflow.Load(args[0])
	if err != nil {
		fatal(err, global.JSON)
	}

	if global.JSON {
		printJSON(map[string]any{"workflow_id": wf.ID, "steps": len(wf.Steps), "valid": true})
		return
	}
	fmt.Printf("%s: valid (%d steps)\n", wf.ID, len(wf.Steps))
}

func execWorkflow(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("workflow run", flag.ContinueOnError)
	input := cmd.String("input", "", "initial input handed to the first step")
	agentName := cmd.String("agent", "loom", "agent registered for agent steps")
	auditPath := cmd.String("audit", "", "SQLite audit database path")
	if err := cmd.Parse(args); err != nil {
		fatal(err, global.JSON)
	}
	if cmd.NArg() != 1 {
		fatal(fmt.Errorf("usage: loom workflow run [flags] <file>"), global.JSON)
	}

	wf, err := workflow.Load(cmd.Arg(0))
	if err != nil {
		fatal(err, global.JSON)
	}

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

	engineOpts := []workflow.EngineOption{}
	if *auditPath != "" {
		audit, err := workflow.OpenSQLiteAuditStore(*auditPath)
		if err != nil {
			fatal(err, global.JSON)
		}
		defer audit.Close()
		engineOpts = append(engineOpts, workflow.WithAuditStore(audit))
	}
	engine := workflow.NewEngine(executor, engineOpts...)

	ag, err := agent.New(*agentName,
		agent.WithCapabilities(agent.CapabilityToolUse, agent.CapabilityMemory),
		agent.WithModel(cfg.LLM.Model),
		agent.WithTemperature(cfg.Agent.Temperature),
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
	)
	if err != nil {
		fatal(err, global.JSON)
	}
	if err := engine.RegisterAgent(ag); err != nil {
		fatal(err, global.JSON)
	}

	ctx, cancel := context.WithTimeout(ctx, global.Timeout)
	defer cancel()

	result, err := engine.Run(ctx, wf, *input)
	if err != nil && result == nil {
		fatal(err, global.JSON)
	}

	if global.JSON {
		printJSON(result)
	} else {
		w := tabwriter.NewWriter(os.Stderr, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STEP\tSTATUS\tOUTPUT")
		for _, step := range result.StepResults {
			fmt.Fprintf(w, "%s\t%s\t%s\n", step.Name, step.Status, truncate(step.Output, 60))
		}
		w.Flush()
		if result.Success {
			fmt.Println(result.Output)
		}
	}

	if err != nil {
		fatal(err, global.JSON)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

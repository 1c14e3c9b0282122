// Package main implements the loom CLI: run agent tasks, execute
// workflow definitions, and inspect tools and memory from a terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/loomlab/loom/pkg/config"
	"github.com/loomlab/loom/pkg/telemetry"
	"github.com/loomlab/loom/pkg/tools"
)

const version = "dev"

type globalFlags struct {
	ConfigPath string
	Timeout    time.Duration
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err, global.JSON)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.Load(configPath(global))
	if err != nil {
		fatal(newConfigError(err, configPath(global)), global.JSON)
	}
	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	shutdown := initTelemetry(cfg, global.JSON)
	defer shutdown(context.Background())

	switch args[0] {
	case "run":
		runTask(ctx, global, cfg, args[1:])
	case "workflow":
		runWorkflow(ctx, global, cfg, args[1:])
	case "tools":
		runTools(global, args[1:])
	case "memory":
		runMemory(ctx, global, cfg, args[1:])
	case "version":
		printVersion(global)
	case "help":
		printUsage()
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]), global.JSON)
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	flags := globalFlags{
		ConfigPath: os.Getenv("LOOM_CONFIG"),
		Timeout:    5 * time.Minute,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--timeout":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --timeout")
			}
			value, err := time.ParseDuration(args[i+1])
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
			i++
		case strings.HasPrefix(arg, "--timeout="):
			value, err := time.ParseDuration(strings.TrimPrefix(arg, "--timeout="))
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func configPath(global globalFlags) string {
	return global.ConfigPath
}

func initTelemetry(cfg *config.Config, jsonOut bool) telemetry.ShutdownFunc {
	if !cfg.Telemetry.Enabled {
		return func(context.Context) error { return nil }
	}
	shutdown, err := telemetry.InitWithConfig("loom", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.Endpoint,
		OTLPInsecure: true,
	})
	if err != nil {
		fatal(err, jsonOut)
	}
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return shutdown(ctx)
	}
}

func runTools(global globalFlags, args []string) {
	if len(args) == 0 || args[0] != "list" {
		fatal(fmt.Errorf("usage: loom tools list"), global.JSON)
	}

	registry := tools.NewRegistryWithBuiltins()
	list := registry.List()

	if global.JSON {
		out := make([]map[string]string, 0, len(list))
		for _, tool := range list {
			out = append(out, map[string]string{
				"name":        tool.Name(),
				"description": tool.Description(),
			})
		}
		printJSON(out)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, tool := range list {
		fmt.Fprintf(w, "%s\t%s\n", tool.Name(), tool.Description())
	}
	w.Flush()
}

func printVersion(global globalFlags) {
	if global.JSON {
		printJSON(map[string]string{"version": version})
		return
	}
	fmt.Printf("loom %s\n", version)
}

func printUsage() {
	fmt.Print(`loom - agent orchestration CLI

Usage:
  loom [global flags] <command> [args]

Commands:
  run <task>                     execute a task with an agent
  workflow run <file>            run a workflow definition
  workflow validate <file>       validate a workflow definition
  tools list                     list registered tools
  memory stats                   show memory store statistics
  version                        print version
  help                           print this help

Global flags:
  --config <path>    configuration file (or LOOM_CONFIG)
  --timeout <dur>    overall command timeout (default 5m)
  --json             machine-readable output
`)
}

func printJSON(value any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
		os.Exit(1)
	}
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	sort.Strings(out)
	return out
}

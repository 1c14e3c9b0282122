package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/loomlab/loom/pkg/config"
	"github.com/loomlab/loom/pkg/memory"
)

func runMemory(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	if len(args) == 0 || args[0] != "stats" {
		fatal(fmt.Errorf("usage: loom memory stats"), global.JSON)
	}
	if cfg.Memory.DataDir == "" {
		fatal(&cliError{
			err:  fmt.Errorf("no durable memory configured"),
			hint: "set memory.data_dir in the config file",
		}, global.JSON)
	}

	store, err := memory.NewFileStore(cfg.Memory.DataDir)
	if err != nil {
		fatal(err, global.JSON)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		fatal(err, global.JSON)
	}

	if global.JSON {
		printJSON(stats)
		return
	}

	fmt.Printf("entries: %d\n", stats.TotalEntries)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for t, count := range stats.ByType {
		fmt.Fprintf(w, "type %s\t%d\n", t, count)
	}
	for imp, count := range stats.ByImportance {
		fmt.Fprintf(w, "importance %s\t%d\n", imp, count)
	}
	w.Flush()
}

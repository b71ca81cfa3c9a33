// Command stmd is a thin CLI wrapper around the short-term-memory
// core: it exists to exercise Storage, the activation index, the
// consolidation agents, and unified search end to end from a
// terminal, not to define a wire protocol for an external RPC layer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	app, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "stmd:", err)
		os.Exit(1)
	}
	defer app.Close()

	root := &cobra.Command{
		Use:   "stmd",
		Short: "Short-term-memory store CLI",
		Long: `stmd drives the short-term-memory core directly from the
command line: save and recall memories, run garbage collection and
promotion, detect clusters, and tick the consolidation pipeline.`,
	}

	root.AddCommand(
		app.saveCmd(),
		app.searchCmd(),
		app.touchCmd(),
		app.gcCmd(),
		app.promoteCmd(),
		app.clusterCmd(),
		app.tickCmd(),
		app.statsCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

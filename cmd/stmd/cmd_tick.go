package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) tickCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one consolidation pass: decay, cluster, promote, relations",
		RunE: func(cmd *cobra.Command, args []string) error {
			report := a.newScheduler().Tick(dryRun)
			for _, step := range report.Ticks {
				fmt.Printf("== %s (%d items) ==\n", step.Agent, len(step.Results))
				for _, r := range step.Results {
					fmt.Printf("  %s: %s\n", r.ItemID, r.Action)
				}
			}
			if report.Aborted {
				return fmt.Errorf("tick aborted at %s: %w", report.AbortAt, report.Err)
			}
			a.rebuildGraph()
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "predict without mutating storage")
	return cmd
}

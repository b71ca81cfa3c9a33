package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orneryd/stm/pkg/agents"
)

func (a *app) gcCmd() *cobra.Command {
	var dryRun, archiveInstead bool
	var limit int

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Apply the forget policy to decayed memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			da := agents.NewDecayAnalyzer(a.store, a.retention, a.clock, a.cfg.DecayParams(), a.cfg.Thresholds(), archiveInstead, a.log)
			results := da.Run(dryRun)
			processed := len(results)
			if limit > 0 && limit < len(results) {
				results = results[:limit]
			}
			for _, r := range results {
				fmt.Printf("%s: %s\n", r.ItemID, r.Action)
			}
			fmt.Printf("%d memories processed\n", processed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "predict without mutating storage")
	cmd.Flags().BoolVar(&archiveInstead, "archive-instead", false, "archive rather than delete")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the number of results printed (0 = no cap)")
	return cmd
}

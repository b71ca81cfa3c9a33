package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orneryd/stm/pkg/agents"
	"github.com/orneryd/stm/pkg/errs"
)

func (a *app) promoteCmd() *cobra.Command {
	var id string
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote memories to the long-term vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.vault == nil {
				return errs.Dependency("vault not configured (set STM_VAULT_ENABLED=true and STM_VAULT_PATH)")
			}
			lp := agents.NewLTMPromoter(a.store, a.vault, a.clock, a.cfg.DecayParams(), a.cfg.Thresholds(), a.log)

			if id != "" {
				r := lp.PromoteExplicit(id, dryRun, force)
				fmt.Printf("%s: %s\n", r.ItemID, r.Action)
				return r.Err
			}

			results := lp.Run(dryRun)
			for _, r := range results {
				fmt.Printf("%s: %s\n", r.ItemID, r.Action)
			}
			fmt.Printf("%d memories processed\n", len(results))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "promote a specific memory id (default: auto-detect eligible memories)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "predict without mutating storage")
	cmd.Flags().BoolVar(&force, "force", false, "bypass eligibility checks (only with --id)")
	return cmd
}

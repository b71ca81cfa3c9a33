package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orneryd/stm/pkg/memory"
	"github.com/orneryd/stm/pkg/search"
)

func (a *app) searchCmd() *cobra.Command {
	var tags []string
	var limit int
	var stmWeight, ltmWeight, minScore float64
	var windowDays int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Unified search across STM and the vault index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]
			if limit > 0 {
				if err := memory.ValidateTopK(limit); err != nil {
					return err
				}
			}

			var vault search.VaultIndex
			if a.vault != nil {
				vault = a.vault
			}
			hits, err := search.Unified(a.store, vault, search.Options{
				Query:      query,
				Tags:       tags,
				Limit:      limit,
				STMWeight:  stmWeight,
				LTMWeight:  ltmWeight,
				MinScore:   minScore,
				WindowDays: windowDays,
				Now:        a.clock.Now(),
			}, a.cfg.DecayParams())
			if err != nil {
				return err
			}

			for _, h := range hits {
				fmt.Printf("[%s] %.4f %s\n", h.Source, h.Score, truncate(h.Content, 80))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "filter by tags")
	cmd.Flags().IntVar(&limit, "limit", 10, "max results")
	cmd.Flags().Float64Var(&stmWeight, "stm-weight", 1.0, "weight applied to STM-side scores")
	cmd.Flags().Float64Var(&ltmWeight, "ltm-weight", 0.7, "weight applied to vault-side scores")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "drop results scoring below this")
	cmd.Flags().IntVar(&windowDays, "window-days", 0, "restrict to memories used within N days")
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

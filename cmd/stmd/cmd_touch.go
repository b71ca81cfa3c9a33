package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orneryd/stm/pkg/errs"
	"github.com/orneryd/stm/pkg/storage"
)

func (a *app) touchCmd() *cobra.Command {
	var boost bool

	cmd := &cobra.Command{
		Use:   "touch <id>",
		Short: "Record a use of a memory, refreshing its recency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			m := a.store.GetMemory(id)
			if m == nil {
				return errs.NotFound("memory", id)
			}
			now := a.clock.Now()
			useCount := m.UseCount + 1
			patch := storage.MemoryPatch{LastUsed: &now, UseCount: &useCount}
			if boost {
				strength := m.Strength + 0.1
				if strength > 2.0 {
					strength = 2.0
				}
				patch.Strength = &strength
			}
			if _, err := a.store.UpdateMemory(id, patch); err != nil {
				return err
			}
			fmt.Printf("touched %s (use_count=%d)\n", id, useCount)
			return nil
		},
	}
	cmd.Flags().BoolVar(&boost, "boost-strength", false, "also bump strength toward its cap")
	return cmd
}

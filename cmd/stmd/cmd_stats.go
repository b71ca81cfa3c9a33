package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print storage and consolidation statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.store.StorageStats()
			fmt.Printf("active memories:   %d\n", s.ActiveMemories)
			fmt.Printf("active relations:  %d\n", s.ActiveRelations)
			fmt.Printf("memory lines:      %d (compaction would reclaim %d)\n", s.MemoryLines, s.MemorySavings)
			fmt.Printf("relation lines:    %d (compaction would reclaim %d)\n", s.RelationLines, s.RelationSavings)
			if s.ShouldCompact {
				fmt.Println("recommend: run compaction")
			}
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orneryd/stm/pkg/agents"
)

func (a *app) clusterCmd() *cobra.Command {
	var threshold, duplicateThreshold float64
	var maxClusterSize int
	var findDuplicates bool

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Detect clusters of similar memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := agents.ClusterConfig{
				LinkThreshold: a.cfg.Clustering.LinkThreshold,
				MinSize:       a.cfg.Clustering.MinSize,
				MaxSize:       a.cfg.Clustering.MaxSize,
				SemanticHi:    a.cfg.Clustering.SemanticHi,
			}
			if threshold > 0 {
				cfg.LinkThreshold = threshold
			}
			if maxClusterSize > 0 {
				cfg.MaxSize = maxClusterSize
			}
			if duplicateThreshold > 0 {
				cfg.SemanticHi = duplicateThreshold
			}
			cd := agents.NewClusterDetector(a.store, cfg, a.log)

			if findDuplicates {
				for _, d := range cd.FindDuplicates() {
					fmt.Printf("duplicate %.4f: %s <-> %s\n", d.Similarity, d.AID, d.BID)
				}
				return nil
			}
			for _, c := range cd.DetectClusters() {
				fmt.Printf("%s cohesion=%.4f members=%v\n", c.Suggestion, c.Cohesion, c.MemoryIDs)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "override the single-linkage threshold")
	cmd.Flags().IntVar(&maxClusterSize, "max-cluster-size", 0, "override the max cluster size")
	cmd.Flags().BoolVar(&findDuplicates, "find-duplicates", false, "report near-duplicate pairs instead of clusters")
	cmd.Flags().Float64Var(&duplicateThreshold, "duplicate-threshold", 0, "override the duplicate similarity threshold")
	return cmd
}

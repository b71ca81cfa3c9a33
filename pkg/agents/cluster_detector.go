package agents

import (
	"sort"
	"strconv"

	"github.com/orneryd/stm/pkg/logging"
	"github.com/orneryd/stm/pkg/math/vector"
	"github.com/orneryd/stm/pkg/memory"
	"github.com/orneryd/stm/pkg/similarity"
	"github.com/orneryd/stm/pkg/storage"
)

// ClusterConfig parameterizes the cluster detector.
type ClusterConfig struct {
	LinkThreshold float64
	MinSize       int
	MaxSize       int
	SemanticHi    float64
}

// DefaultClusterConfig matches the spec's stated defaults.
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{LinkThreshold: 0.83, MinSize: 2, MaxSize: 12, SemanticHi: 0.88}
}

// Cluster is one group of similar memories with its cohesion and
// suggested disposition.
type Cluster struct {
	MemoryIDs  []string
	Cohesion   float64
	Suggestion string // "auto-merge" | "llm-review" | "keep-separate"
}

// ClusterDetector groups active memories by single-linkage similarity
// over embeddings (falling back to Jaccard over content tokens when no
// embedding is present).
type ClusterDetector struct {
	store  *storage.Store
	config ClusterConfig
	log    *logging.Logger

	// lastClusters is populated by Run/ProcessItem via Scan; ProcessItem
	// looks up a cluster by its synthetic item id (the index into this
	// slice as a string) rather than re-clustering per item.
	lastClusters []Cluster
}

// NewClusterDetector builds a ClusterDetector.
func NewClusterDetector(store *storage.Store, config ClusterConfig, log *logging.Logger) *ClusterDetector {
	if log == nil {
		log = logging.Nop()
	}
	return &ClusterDetector{store: store, config: config, log: log}
}

func pairSimilarity(a, b memory.Memory) float64 {
	if len(a.Embed) > 0 && len(b.Embed) > 0 && len(a.Embed) == len(b.Embed) {
		return vector.CosineSimilarity(a.Embed, b.Embed)
	}
	return similarity.TextSimilarity(a.Content, b.Content)
}

// cluster performs single-linkage clustering: start each memory in its
// own cluster, repeatedly merge the pair of clusters whose closest
// members are most similar, as long as that similarity is at least
// linkThreshold and the merged size stays within maxSize.
func cluster(mems []memory.Memory, linkThreshold float64, maxSize int) [][]int {
	n := len(mems)
	groups := make([][]int, n)
	for i := range groups {
		groups[i] = []int{i}
	}
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
		for j := range sim[i] {
			if i != j {
				sim[i][j] = pairSimilarity(mems[i], mems[j])
			}
		}
	}

	linkSim := func(a, b []int) float64 {
		best := -1.0
		for _, i := range a {
			for _, j := range b {
				if sim[i][j] > best {
					best = sim[i][j]
				}
			}
		}
		return best
	}

	for {
		bestI, bestJ, best := -1, -1, linkThreshold
		for i := 0; i < len(groups); i++ {
			for j := i + 1; j < len(groups); j++ {
				if len(groups[i])+len(groups[j]) > maxSize {
					continue
				}
				s := linkSim(groups[i], groups[j])
				if s >= best {
					best, bestI, bestJ = s, i, j
				}
			}
		}
		if bestI < 0 {
			break
		}
		merged := append(append([]int{}, groups[bestI]...), groups[bestJ]...)
		newGroups := make([][]int, 0, len(groups)-1)
		for k, g := range groups {
			if k != bestI && k != bestJ {
				newGroups = append(newGroups, g)
			}
		}
		newGroups = append(newGroups, merged)
		groups = newGroups
	}
	return groups
}

func cohesion(mems []memory.Memory, idxs []int) float64 {
	if len(idxs) < 2 {
		return 1.0
	}
	total, count := 0.0, 0
	for i := 0; i < len(idxs); i++ {
		for j := i + 1; j < len(idxs); j++ {
			total += pairSimilarity(mems[idxs[i]], mems[idxs[j]])
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func suggestionFor(cohesionScore float64) string {
	switch {
	case cohesionScore >= 0.90:
		return "auto-merge"
	case cohesionScore >= 0.75:
		return "llm-review"
	default:
		return "keep-separate"
	}
}

// DetectClusters runs clustering over every active memory and returns
// groups of size >= config.MinSize with their cohesion/suggestion.
func (d *ClusterDetector) DetectClusters() []Cluster {
	active := memory.StatusActive
	mems := d.store.ListMemories(&active, 0, 0)
	groups := cluster(mems, d.config.LinkThreshold, d.config.MaxSize)

	var out []Cluster
	for _, g := range groups {
		if len(g) < d.config.MinSize {
			continue
		}
		ids := make([]string, len(g))
		for i, idx := range g {
			ids[i] = mems[idx].ID
		}
		coh := cohesion(mems, g)
		out = append(out, Cluster{MemoryIDs: ids, Cohesion: coh, Suggestion: suggestionFor(coh)})
	}
	return out
}

// DuplicatePair is one candidate duplicate found by FindDuplicates.
type DuplicatePair struct {
	AID, BID   string
	Similarity float64
}

// FindDuplicates returns all active-memory pairs with similarity at or
// above config.SemanticHi, sorted descending.
func (d *ClusterDetector) FindDuplicates() []DuplicatePair {
	active := memory.StatusActive
	mems := d.store.ListMemories(&active, 0, 0)
	var out []DuplicatePair
	for i := 0; i < len(mems); i++ {
		for j := i + 1; j < len(mems); j++ {
			s := pairSimilarity(mems[i], mems[j])
			if s >= d.config.SemanticHi {
				out = append(out, DuplicatePair{AID: mems[i].ID, BID: mems[j].ID, Similarity: s})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out
}

// Scan runs clustering and returns synthetic item ids (cluster
// indices, as strings) for ProcessItem to report on.
func (d *ClusterDetector) Scan() ([]string, error) {
	d.lastClusters = d.DetectClusters()
	ids := make([]string, len(d.lastClusters))
	for i := range d.lastClusters {
		ids[i] = strconv.Itoa(i)
	}
	return ids, nil
}

// ProcessItem reports the cluster found at Scan-time index itemID.
// dryRun has no effect: cluster detection never mutates storage.
func (d *ClusterDetector) ProcessItem(itemID string, dryRun bool) Result {
	idx, err := strconv.Atoi(itemID)
	if err != nil || idx < 0 || idx >= len(d.lastClusters) {
		return Result{ItemID: itemID, Action: "skipped"}
	}
	c := d.lastClusters[idx]
	return Result{ItemID: itemID, Action: c.Suggestion, Detail: map[string]any{
		"memory_ids": c.MemoryIDs,
		"cohesion":   c.Cohesion,
	}}
}

// Run scans and reports every detected cluster.
func (d *ClusterDetector) Run(dryRun bool) []Result {
	return RunAll(d, d.log, "cluster_detector", dryRun)
}

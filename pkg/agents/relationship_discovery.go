package agents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orneryd/stm/pkg/clock"
	"github.com/orneryd/stm/pkg/logging"
	"github.com/orneryd/stm/pkg/memory"
	"github.com/orneryd/stm/pkg/similarity"
	"github.com/orneryd/stm/pkg/storage"
)

// RelationshipDiscoveryConfig parameterizes the agent.
type RelationshipDiscoveryConfig struct {
	MinSharedEntities int
	MinConfidence     float64
}

// DefaultRelationshipDiscoveryConfig matches the spec's stated defaults.
func DefaultRelationshipDiscoveryConfig() RelationshipDiscoveryConfig {
	return RelationshipDiscoveryConfig{MinSharedEntities: 2, MinConfidence: 0.5}
}

// RelationshipDiscovery scans pairs of active memories sharing enough
// entities and, above a confidence bar, creates a "related" relation.
type RelationshipDiscovery struct {
	store  *storage.Store
	clock  clock.Clock
	config RelationshipDiscoveryConfig
	log    *logging.Logger

	pairs map[string][2]memory.Memory
}

// NewRelationshipDiscovery builds a RelationshipDiscovery.
func NewRelationshipDiscovery(store *storage.Store, c clock.Clock, config RelationshipDiscoveryConfig, log *logging.Logger) *RelationshipDiscovery {
	if log == nil {
		log = logging.Nop()
	}
	return &RelationshipDiscovery{store: store, clock: c, config: config, log: log, pairs: map[string][2]memory.Memory{}}
}

func sharedEntities(a, b memory.Memory) []string {
	setB := map[string]bool{}
	for _, e := range b.Entities {
		setB[e] = true
	}
	var shared []string
	for _, e := range a.Entities {
		if setB[e] {
			shared = append(shared, e)
		}
	}
	return shared
}

func tagOverlap(a, b memory.Memory) float64 {
	return similarity.Jaccard(a.Metadata.Tags, b.Metadata.Tags)
}

func confidence(sharedCount int, tagOverlap float64, contentSim float64) float64 {
	// weighted blend: shared entities dominate, tag overlap and content
	// similarity refine it. Clamped to [0,1].
	c := 0.5*minf(float64(sharedCount)/4.0, 1.0) + 0.3*tagOverlap + 0.2*contentSim
	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Scan finds candidate pairs sharing >= MinSharedEntities entities
// that don't already have any relation, returning synthetic pair ids.
func (r *RelationshipDiscovery) Scan() ([]string, error) {
	active := memory.StatusActive
	mems := r.store.ListMemories(&active, 0, 0)
	existing := r.store.GetAllRelations()
	hasRelation := map[[2]string]bool{}
	for _, rel := range existing {
		hasRelation[[2]string{rel.FromMemoryID, rel.ToMemoryID}] = true
		hasRelation[[2]string{rel.ToMemoryID, rel.FromMemoryID}] = true
	}

	r.pairs = map[string][2]memory.Memory{}
	var ids []string
	for i := 0; i < len(mems); i++ {
		for j := i + 1; j < len(mems); j++ {
			a, b := mems[i], mems[j]
			if hasRelation[[2]string{a.ID, b.ID}] {
				continue
			}
			shared := sharedEntities(a, b)
			if len(shared) < r.config.MinSharedEntities {
				continue
			}
			id := a.ID + "|" + b.ID
			r.pairs[id] = [2]memory.Memory{a, b}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ProcessItem scores one candidate pair and, if confidence clears the
// bar, creates a "related" relation recording discovery metadata.
func (r *RelationshipDiscovery) ProcessItem(itemID string, dryRun bool) Result {
	pair, ok := r.pairs[itemID]
	if !ok {
		return Result{ItemID: itemID, Action: "skipped"}
	}
	a, b := pair[0], pair[1]
	shared := sharedEntities(a, b)
	overlap := tagOverlap(a, b)
	contentSim := similarity.TextSimilarity(a.Content, b.Content)
	conf := confidence(len(shared), overlap, contentSim)

	if conf < r.config.MinConfidence {
		return Result{ItemID: itemID, Action: "below_confidence", Detail: map[string]any{"confidence": conf}}
	}

	reasoning := fmt.Sprintf("shared entities: %s; tag overlap: %.2f; content similarity: %.2f", strings.Join(shared, ", "), overlap, contentSim)
	meta := map[string]any{
		"discovered_by":    "relationship_discovery",
		"shared_entities":  shared,
		"confidence":       conf,
		"reasoning":        reasoning,
	}

	if dryRun {
		return Result{ItemID: itemID, Action: "would_relate", Detail: meta}
	}

	rel := memory.Relation{
		ID:           clock.NewID(),
		FromMemoryID: a.ID,
		ToMemoryID:   b.ID,
		RelationType: "related",
		Strength:     conf,
		CreatedAt:    r.clock.Now(),
		Metadata:     meta,
	}
	if err := r.store.CreateRelation(rel); err != nil {
		return Result{ItemID: itemID, Action: "relate", Err: err}
	}
	return Result{ItemID: itemID, Action: "related", Detail: meta}
}

// Run scans and scores every candidate pair.
func (r *RelationshipDiscovery) Run(dryRun bool) []Result {
	return RunAll(r, r.log, "relationship_discovery", dryRun)
}

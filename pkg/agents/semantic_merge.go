package agents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orneryd/stm/pkg/clock"
	"github.com/orneryd/stm/pkg/logging"
	"github.com/orneryd/stm/pkg/memory"
	"github.com/orneryd/stm/pkg/storage"
)

// MergeItem is one pending merge request, either synthesized by the
// cluster detector or supplied by an external issue queue.
type MergeItem struct {
	ID              string
	SourceIDs       []string
	ExternalIssueID string
}

// MergeResult records what a completed (or dry-run predicted) merge
// produced.
type MergeResult struct {
	MergedMemoryID   string
	SourceIDs        []string
	PreservedEntities int
	ContentDiff      string
	ExternalIssueID  string
}

// SemanticMerge consumes MergeItems and produces one merged memory per
// item, summarizing and tombstoning the sources.
type SemanticMerge struct {
	store *storage.Store
	clock clock.Clock
	items map[string]MergeItem
	log   *logging.Logger
}

// NewSemanticMerge builds a SemanticMerge bound to a fixed batch of
// pending items (from the cluster detector or an external queue).
func NewSemanticMerge(store *storage.Store, c clock.Clock, items []MergeItem, log *logging.Logger) *SemanticMerge {
	if log == nil {
		log = logging.Nop()
	}
	m := make(map[string]MergeItem, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return &SemanticMerge{store: store, clock: c, items: m, log: log}
}

// Scan returns the pending merge item ids.
func (s *SemanticMerge) Scan() ([]string, error) {
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ProcessItem merges the sources named by itemID. In dry-run mode it
// predicts the merge without mutating storage.
func (s *SemanticMerge) ProcessItem(itemID string, dryRun bool) Result {
	item, ok := s.items[itemID]
	if !ok {
		return Result{ItemID: itemID, Action: "skipped"}
	}

	var sources []memory.Memory
	for _, id := range item.SourceIDs {
		m := s.store.GetMemory(id)
		if m != nil {
			sources = append(sources, *m)
		}
	}
	if len(sources) < 2 {
		return Result{ItemID: itemID, Action: "skipped_insufficient_sources"}
	}

	mergedContent, entities, diff := buildMerge(sources)
	now := s.clock.Now()
	merged := memory.Memory{
		ID:        clock.NewID(),
		Content:   mergedContent,
		Entities:  entities,
		CreatedAt: now,
		LastUsed:  now,
		UseCount:  sumUseCounts(sources),
		Strength:  1.0,
		Status:    memory.StatusActive,
	}

	result := MergeResult{
		MergedMemoryID:    merged.ID,
		SourceIDs:         item.SourceIDs,
		PreservedEntities: len(entities),
		ContentDiff:       diff,
		ExternalIssueID:   item.ExternalIssueID,
	}

	if dryRun {
		return Result{ItemID: itemID, Action: "would_merge", Detail: map[string]any{"result": result}}
	}

	if err := s.store.SaveMemory(merged); err != nil {
		return Result{ItemID: itemID, Action: "merge", Err: err}
	}
	for _, src := range sources {
		if _, err := s.store.DeleteMemory(src.ID); err != nil {
			s.log.Warn("failed to tombstone merge source", map[string]any{"source": src.ID, "error": err.Error()})
		}
	}
	return Result{ItemID: itemID, Action: "merged", Detail: map[string]any{"result": result}}
}

// Run scans and merges every pending item.
func (s *SemanticMerge) Run(dryRun bool) []Result {
	return RunAll(s, s.log, "semantic_merge", dryRun)
}

func buildMerge(sources []memory.Memory) (content string, entities []string, diff string) {
	var lines []string
	entitySet := map[string]bool{}
	for _, m := range sources {
		lines = append(lines, "- "+m.Content)
		for _, e := range m.Entities {
			entitySet[e] = true
		}
	}
	for e := range entitySet {
		entities = append(entities, e)
	}
	sort.Strings(entities)
	content = fmt.Sprintf("Merged from %d memories:\n%s", len(sources), strings.Join(lines, "\n"))
	diff = strings.Join(lines, "\n")
	return content, entities, diff
}

func sumUseCounts(sources []memory.Memory) int {
	total := 0
	for _, m := range sources {
		total += m.UseCount
	}
	return total
}

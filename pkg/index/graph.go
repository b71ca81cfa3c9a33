// Package index builds and queries the process-wide ActivationGraph:
// inverted keyword/entity/tag postings plus outgoing-relation
// adjacency, rebuilt from a Storage snapshot. Rebuilds produce a new
// immutable Graph value; callers publish it with an atomic pointer
// swap rather than mutating a shared graph in place.
package index

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/orneryd/stm/pkg/memory"
	"github.com/orneryd/stm/pkg/nlp"
)

// postingsPerMemory is how many top keyword phrases are indexed per
// memory's content.
const postingsPerMemory = 10

// Graph is an immutable snapshot of the inverted indexes. Once built
// it is never mutated; a rebuild produces a new Graph.
type Graph struct {
	Keywords    map[string]map[string]bool // keyword -> memory ids
	Entities    map[string]map[string]bool // lowercased entity -> memory ids
	Tags        map[string]map[string]bool // lowercased tag -> memory ids
	Outgoing    map[string][]string        // from_id -> [to_id...]
	Embeddings  map[string][]float32       // memory id -> embedding, optional
	LastUpdated int64
	MemoryCount int
}

// Build constructs a Graph from a storage snapshot of memories and
// relations. O(Σ memories · tokens + Σ relations).
func Build(memories []memory.Memory, relations []memory.Relation, extractor *nlp.Extractor) *Graph {
	if extractor == nil {
		extractor = nlp.NewExtractor()
	}
	g := &Graph{
		Keywords:    make(map[string]map[string]bool),
		Entities:    make(map[string]map[string]bool),
		Tags:        make(map[string]map[string]bool),
		Outgoing:    make(map[string][]string),
		Embeddings:  make(map[string][]float32),
		LastUpdated: time.Now().Unix(),
		MemoryCount: len(memories),
	}

	for _, m := range memories {
		for _, kw := range extractor.Extract(m.Content, postingsPerMemory) {
			addPosting(g.Keywords, kw, m.ID)
		}
		for _, e := range m.Entities {
			addPosting(g.Entities, strings.ToLower(e), m.ID)
		}
		for _, t := range m.Metadata.Tags {
			addPosting(g.Tags, strings.ToLower(t), m.ID)
		}
		if len(m.Embed) > 0 {
			g.Embeddings[m.ID] = m.Embed
		}
	}

	for _, r := range relations {
		g.Outgoing[r.FromMemoryID] = append(g.Outgoing[r.FromMemoryID], r.ToMemoryID)
	}

	return g
}

func addPosting(index map[string]map[string]bool, key, id string) {
	if key == "" {
		return
	}
	set, ok := index[key]
	if !ok {
		set = make(map[string]bool)
		index[key] = set
	}
	set[id] = true
}

// FindByKeywords returns the union of memory ids posted under any of
// the given (already-lowercased) phrases.
func (g *Graph) FindByKeywords(phrases []string) map[string]bool {
	return union(g.Keywords, phrases)
}

// FindByEntities returns the union of memory ids posted under any of
// the given (already-lowercased) entity terms.
func (g *Graph) FindByEntities(terms []string) map[string]bool {
	return union(g.Entities, terms)
}

// FindByTags returns the union of memory ids posted under any of the
// given (already-lowercased) tags.
func (g *Graph) FindByTags(terms []string) map[string]bool {
	return union(g.Tags, terms)
}

func union(index map[string]map[string]bool, keys []string) map[string]bool {
	out := make(map[string]bool)
	for _, k := range keys {
		for id := range index[k] {
			out[id] = true
		}
	}
	return out
}

// GetRelatedMemories returns the direct outgoing relation targets of id.
func (g *Graph) GetRelatedMemories(id string) []string {
	return g.Outgoing[id]
}

// AtomicGraph holds a rebuildable Graph behind an atomic pointer so
// readers can capture a consistent reference at call start while a
// background rebuild publishes a new Graph without blocking them.
type AtomicGraph struct {
	ptr atomic.Pointer[Graph]
}

// NewAtomicGraph wraps an initial Graph (possibly empty) for atomic
// publication.
func NewAtomicGraph(initial *Graph) *AtomicGraph {
	a := &AtomicGraph{}
	if initial == nil {
		initial = &Graph{
			Keywords: map[string]map[string]bool{},
			Entities: map[string]map[string]bool{},
			Tags:     map[string]map[string]bool{},
			Outgoing: map[string][]string{},
		}
	}
	a.ptr.Store(initial)
	return a
}

// Load returns the current Graph snapshot.
func (a *AtomicGraph) Load() *Graph {
	return a.ptr.Load()
}

// Store publishes a newly built Graph, replacing the previous one.
func (a *AtomicGraph) Store(g *Graph) {
	a.ptr.Store(g)
}

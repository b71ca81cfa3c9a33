package index

import (
	"testing"

	"github.com/orneryd/stm/pkg/memory"
)

func TestBuildAndFindByTags(t *testing.T) {
	mems := []memory.Memory{
		{ID: "a", Content: "I prefer TypeScript over JavaScript", Metadata: memory.Metadata{Tags: []string{"TypeScript"}}},
		{ID: "b", Content: "React is my preferred framework"},
	}
	g := Build(mems, nil, nil)
	ids := g.FindByTags([]string{"typescript"})
	if !ids["a"] || ids["b"] {
		t.Fatalf("expected only a, got %v", ids)
	}
}

func TestGetRelatedMemories(t *testing.T) {
	rels := []memory.Relation{{FromMemoryID: "a", ToMemoryID: "b", RelationType: "related"}}
	g := Build(nil, rels, nil)
	got := g.GetRelatedMemories("a")
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected [b], got %v", got)
	}
	if len(g.GetRelatedMemories("nope")) != 0 {
		t.Fatal("expected no relations for unknown id")
	}
}

func TestAtomicGraphSwap(t *testing.T) {
	ag := NewAtomicGraph(nil)
	first := ag.Load()
	g2 := Build([]memory.Memory{{ID: "x", Metadata: memory.Metadata{Tags: []string{"go"}}}}, nil, nil)
	ag.Store(g2)
	if ag.Load() == first {
		t.Fatal("expected new graph after store")
	}
	if !ag.Load().FindByTags([]string{"go"})["x"] {
		t.Fatal("expected published graph to be queryable")
	}
}

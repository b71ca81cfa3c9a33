package activation

import (
	"testing"

	"github.com/orneryd/stm/pkg/clock"
	"github.com/orneryd/stm/pkg/decay"
	"github.com/orneryd/stm/pkg/index"
	"github.com/orneryd/stm/pkg/memory"
)

type fakeFetcher map[string]*memory.Memory

func (f fakeFetcher) GetMemory(id string) *memory.Memory { return f[id] }

func fixtureMemories(now int64) (fakeFetcher, []memory.Memory) {
	a := memory.Memory{ID: "a", Content: "I prefer TypeScript over JavaScript", Metadata: memory.Metadata{Tags: []string{"typescript"}}, UseCount: 3, LastUsed: now, Strength: 1.0, Status: memory.StatusActive}
	b := memory.Memory{ID: "b", Content: "React is my preferred framework", UseCount: 2, LastUsed: now, Strength: 1.0, Status: memory.StatusActive}
	c := memory.Memory{ID: "c", Content: "PostgreSQL database", UseCount: 1, LastUsed: now, Strength: 1.0, Status: memory.StatusActive}
	return fakeFetcher{"a": &a, "b": &b, "c": &c}, []memory.Memory{a, b, c}
}

func testParams() decay.Params {
	return decay.Params{Model: decay.ModelExponential, Beta: 0.6, Lambda: decay.LambdaFromHalfLife(3)}
}

func TestActivateDirectMatch(t *testing.T) {
	now := int64(1_000_000)
	fetcher, mems := fixtureMemories(now)
	graph := index.Build(mems, nil, nil)
	svc := NewService(fetcher, nil, clock.NewFake(now), testParams(), nil)

	ctx := Context{Message: "help me set up a new web project with TypeScript", MaxMemories: 10, ActivationThreshold: 0.0}
	res := svc.Activate(ctx, graph)

	found := false
	for _, id := range res.ActivatedMemories {
		if id == "a" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a activated, got %v", res.ActivatedMemories)
	}
	if res.Scores["a"].Source != SourceDirect {
		t.Fatalf("expected direct source, got %v", res.Scores["a"].Source)
	}
	if res.Scores["a"].FinalScore < 0.5 {
		t.Fatalf("expected final score >= 0.5, got %v", res.Scores["a"].FinalScore)
	}
}

func TestActivateSpreading(t *testing.T) {
	now := int64(1_000_000)
	fetcher, mems := fixtureMemories(now)
	rels := []memory.Relation{{FromMemoryID: "a", ToMemoryID: "b", RelationType: "related"}}
	graph := index.Build(mems, rels, nil)
	svc := NewService(fetcher, nil, clock.NewFake(now), testParams(), nil)

	ctx := Context{Message: "help me set up a new web project with TypeScript", MaxMemories: 10, ActivationThreshold: 0.0, EnableSpreading: true}
	res := svc.Activate(ctx, graph)

	bScore, ok := res.Scores["b"]
	if !ok {
		t.Fatalf("expected b to be spread-activated, got %+v", res.Scores)
	}
	if bScore.Source != SourceSpread1 {
		t.Fatalf("expected spread_1hop, got %v", bScore.Source)
	}
	if _, ok := res.Scores["c"]; ok {
		t.Fatal("expected c to remain unreached")
	}
}

func TestActivationBounds(t *testing.T) {
	now := int64(1_000_000)
	fetcher, mems := fixtureMemories(now)
	graph := index.Build(mems, nil, nil)
	svc := NewService(fetcher, nil, clock.NewFake(now), testParams(), nil)

	ctx := Context{Message: "TypeScript React PostgreSQL", MaxMemories: 1, ActivationThreshold: 0.0}
	res := svc.Activate(ctx, graph)
	if len(res.ActivatedMemories) > 1 {
		t.Fatalf("expected at most 1 activated memory, got %d", len(res.ActivatedMemories))
	}
	for _, sc := range res.Scores {
		if sc.FinalScore < 0 || sc.FinalScore > 1 {
			t.Fatalf("final score out of bounds: %v", sc.FinalScore)
		}
	}
}

func TestActivateEmptyGraphNeverPanics(t *testing.T) {
	svc := NewService(fakeFetcher{}, nil, clock.NewFake(0), testParams(), nil)
	graph := index.Build(nil, nil, nil)
	res := svc.Activate(Context{Message: "anything"}, graph)
	if res.FallbackTier != TierFull {
		t.Fatalf("expected full tier on empty graph, got %v", res.FallbackTier)
	}
	if len(res.ActivatedMemories) != 0 {
		t.Fatal("expected no activations on empty graph")
	}
}

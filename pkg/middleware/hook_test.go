package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/orneryd/stm/pkg/activation"
	"github.com/orneryd/stm/pkg/clock"
	"github.com/orneryd/stm/pkg/decay"
	"github.com/orneryd/stm/pkg/index"
	"github.com/orneryd/stm/pkg/memory"
)

type fakeFetcher map[string]*memory.Memory

func (f fakeFetcher) GetMemory(id string) *memory.Memory { return f[id] }

func TestExtractQueryKnownTool(t *testing.T) {
	q, ok := ExtractQuery("search_memory", map[string]any{"query": "typescript"})
	if !ok || q != "typescript" {
		t.Fatalf("expected query extraction, got %q %v", q, ok)
	}
}

func TestExtractQueryUnknownTool(t *testing.T) {
	_, ok := ExtractQuery("unknown_tool", map[string]any{"query": "x"})
	if ok {
		t.Fatal("expected no extraction for unknown tool")
	}
}

func TestOnCallToolNeverMutatesArgs(t *testing.T) {
	m := memory.Memory{ID: "a", Content: "TypeScript notes", UseCount: 1, Strength: 1, Status: memory.StatusActive}
	graph := index.Build([]memory.Memory{m}, nil, nil)
	svc := activation.NewService(fakeFetcher{"a": &m}, nil, clock.NewFake(0), decay.Params{Model: decay.ModelExponential, Beta: 0.6, Lambda: decay.LambdaFromHalfLife(3)}, nil)
	hook := NewHook(svc, index.NewAtomicGraph(graph), 50*time.Millisecond, nil)

	args := map[string]any{"query": "TypeScript"}
	called := false
	next := func(ctx context.Context, a map[string]any) (any, error) {
		called = true
		if a["query"] != "TypeScript" {
			t.Fatal("args mutated")
		}
		return nil, nil
	}
	_, err := hook.OnCallTool(context.Background(), "search_memory", args, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected next to always run")
	}
	if args["query"] != "TypeScript" {
		t.Fatal("original args map mutated")
	}
}

func TestOnCallToolAlwaysRunsNextOnNoQuery(t *testing.T) {
	graph := index.Build(nil, nil, nil)
	svc := activation.NewService(fakeFetcher{}, nil, clock.NewFake(0), decay.Params{}, nil)
	hook := NewHook(svc, index.NewAtomicGraph(graph), 50*time.Millisecond, nil)

	called := false
	next := func(ctx context.Context, a map[string]any) (any, error) {
		called = true
		return nil, nil
	}
	hook.OnCallTool(context.Background(), "gc", map[string]any{}, next)
	if !called {
		t.Fatal("expected next to run even for tools without a query field")
	}
}

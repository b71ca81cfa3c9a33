package storage

import (
	"testing"

	"github.com/orneryd/stm/pkg/memory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	m := memory.Memory{ID: "m1", Content: "hello", Status: memory.StatusActive, CreatedAt: 1, LastUsed: 1, UseCount: 1, Strength: 1}
	if err := s.SaveMemory(m); err != nil {
		t.Fatalf("save: %v", err)
	}
	got := s.GetMemory("m1")
	if got == nil || got.Content != "hello" {
		t.Fatalf("expected round trip, got %+v", got)
	}
}

func TestGetMemoryMissing(t *testing.T) {
	s := newTestStore(t)
	if s.GetMemory("nope") != nil {
		t.Fatal("expected nil for missing id")
	}
}

func TestDeleteMemoryTombstone(t *testing.T) {
	s := newTestStore(t)
	s.SaveMemory(memory.Memory{ID: "m1", Status: memory.StatusActive})
	ok, err := s.DeleteMemory("m1")
	if err != nil || !ok {
		t.Fatalf("expected delete success, err=%v ok=%v", err, ok)
	}
	if s.GetMemory("m1") != nil {
		t.Fatal("expected memory gone after delete")
	}
	ok2, _ := s.DeleteMemory("m1")
	if ok2 {
		t.Fatal("expected false deleting already-deleted id")
	}
}

func TestUpdateMemoryPatch(t *testing.T) {
	s := newTestStore(t)
	s.SaveMemory(memory.Memory{ID: "m1", UseCount: 1, Strength: 1.0, Status: memory.StatusActive})
	uc := 2
	updated, err := s.UpdateMemory("m1", MemoryPatch{UseCount: &uc})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.UseCount != 2 {
		t.Fatalf("expected use_count=2, got %d", updated.UseCount)
	}
}

func TestCompactRemovesTombstonesAndDupes(t *testing.T) {
	s := newTestStore(t)
	s.SaveMemory(memory.Memory{ID: "m1", Status: memory.StatusActive})
	s.SaveMemory(memory.Memory{ID: "m2", Status: memory.StatusActive})
	s.SaveMemory(memory.Memory{ID: "m3", Status: memory.StatusActive})
	s.DeleteMemory("m2")

	res, err := s.Compact()
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if res.MemoriesAfter != 2 {
		t.Fatalf("expected 2 live memories after compact, got %d", res.MemoriesAfter)
	}
	stats := s.StorageStats()
	if stats.ShouldCompact {
		t.Fatal("expected should_compact=false immediately after compaction")
	}
	if s.GetMemory("m2") != nil {
		t.Fatal("expected m2 gone")
	}
}

func TestRelationDuplicateConflict(t *testing.T) {
	s := newTestStore(t)
	r := memory.Relation{ID: "r1", FromMemoryID: "a", ToMemoryID: "b", RelationType: "related"}
	if err := s.CreateRelation(r); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := memory.Relation{ID: "r2", FromMemoryID: "a", ToMemoryID: "b", RelationType: "related"}
	if err := s.CreateRelation(dup); err == nil {
		t.Fatal("expected conflict for duplicate (from,to,type)")
	}
	if len(s.GetAllRelations()) != 1 {
		t.Fatal("expected duplicate not appended")
	}
}

func TestSearchMemoriesTagOverlapAndWindow(t *testing.T) {
	s := newTestStore(t)
	s.SaveMemory(memory.Memory{ID: "m1", Status: memory.StatusActive, LastUsed: 100, Metadata: memory.Metadata{Tags: []string{"go", "infra"}}})
	s.SaveMemory(memory.Memory{ID: "m2", Status: memory.StatusActive, LastUsed: 1, Metadata: memory.Metadata{Tags: []string{"python"}}})

	results := s.SearchMemories(SearchOptions{Tags: []string{"go"}, Status: memory.StatusActive, WindowDays: 1, Now: 100 + 86400})
	if len(results) != 1 || results[0].ID != "m1" {
		t.Fatalf("expected only m1, got %+v", results)
	}
}

func TestListMemoriesSortedAndPaginated(t *testing.T) {
	s := newTestStore(t)
	s.SaveMemory(memory.Memory{ID: "m1", LastUsed: 10, Status: memory.StatusActive})
	s.SaveMemory(memory.Memory{ID: "m2", LastUsed: 30, Status: memory.StatusActive})
	s.SaveMemory(memory.Memory{ID: "m3", LastUsed: 20, Status: memory.StatusActive})

	all := s.ListMemories(nil, 0, 0)
	if all[0].ID != "m2" || all[1].ID != "m3" || all[2].ID != "m1" {
		t.Fatalf("expected descending last_used order, got %+v", all)
	}

	page := s.ListMemories(nil, 1, 1)
	if len(page) != 1 || page[0].ID != "m3" {
		t.Fatalf("expected offset 1 limit 1 -> m3, got %+v", page)
	}
}

func TestReconnectReconstructsState(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s1.SaveMemory(memory.Memory{ID: "m1", Content: "persisted", Status: memory.StatusActive})
	s1.Close()

	s2, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got := s2.GetMemory("m1")
	if got == nil || got.Content != "persisted" {
		t.Fatalf("expected reconstructed state, got %+v", got)
	}
}

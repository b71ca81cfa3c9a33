package vaultindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/stm/pkg/memory"
)

func newIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(Options{DBPath: filepath.Join(t.TempDir(), "db"), NotesDir: filepath.Join(t.TempDir(), "notes")})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestWriteNoteRendersMarkdown(t *testing.T) {
	idx := newIndex(t)
	m := memory.Memory{ID: "m1", Content: "Go channels are great for pipelines", Metadata: memory.Metadata{Tags: []string{"go"}}, Entities: []string{"Go"}}

	path, err := idx.WriteNote(m)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Go channels are great for pipelines")
}

func TestSearchRanksByTokenOverlap(t *testing.T) {
	idx := newIndex(t)
	idx.WriteNote(memory.Memory{ID: "m1", Content: "channels and goroutines for concurrency"})
	idx.WriteNote(memory.Memory{ID: "m2", Content: "channels are useful"})
	idx.WriteNote(memory.Memory{ID: "m3", Content: "completely unrelated content about cooking"})

	hits, err := idx.Search("channels goroutines concurrency", 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(hits), 2)
	assert.Equal(t, "m1", hits[0].MemoryID)
}

func TestSearchLimit(t *testing.T) {
	idx := newIndex(t)
	idx.WriteNote(memory.Memory{ID: "m1", Content: "alpha token"})
	idx.WriteNote(memory.Memory{ID: "m2", Content: "alpha token too"})

	hits, err := idx.Search("alpha token", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearchEmptyQuery(t *testing.T) {
	idx := newIndex(t)
	hits, err := idx.Search("", 10)
	require.NoError(t, err)
	assert.Nil(t, hits)
}

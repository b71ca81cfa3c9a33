// Package vaultindex is a reference, swappable implementation of the
// external VaultIndex/VaultWriter contract the core's LTM promoter and
// unified search depend on, backed by github.com/dgraph-io/badger/v4.
//
// Promoted memories are written as markdown notes under a configured
// vault directory; each note's content tokens, tags and entities are
// additionally indexed as keyword postings (key kw:<token>:<memory id>,
// value the note path) so that
// Search has something real to query without standing up an external
// full-text service.
package vaultindex

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/stm/pkg/errs"
	"github.com/orneryd/stm/pkg/memory"
)

const kwPrefix = "kw:"

// Index is a badger-backed VaultIndex and VaultWriter. A single Index
// owns both the keyword postings database and the directory notes are
// rendered into.
type Index struct {
	db    *badger.DB
	notes string
}

// Options configures Open.
type Options struct {
	// DBPath is the directory Badger stores its postings in.
	DBPath string
	// NotesDir is the directory markdown notes are rendered into.
	NotesDir string
	// InMemory runs Badger without touching disk, for tests.
	InMemory bool
}

// Open creates or reopens a vault index at the configured paths.
//
// ELI12: think of DBPath as a card catalog and NotesDir as the shelf
// of actual books. WriteNote puts a book on the shelf and adds cards
// to the catalog for every word in it; Search only ever looks at the
// catalog, never reads the shelf directly.
func Open(opts Options) (*Index, error) {
	if !opts.InMemory {
		if err := os.MkdirAll(opts.NotesDir, 0o755); err != nil {
			return nil, errs.Internal(fmt.Errorf("create vault notes dir: %w", err))
		}
	}
	badgerOpts := badger.DefaultOptions(opts.DBPath).WithLogger(nil)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("open vault index: %w", err))
	}
	return &Index{db: db, notes: opts.NotesDir}, nil
}

// Close releases the underlying Badger handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

func keywordKey(token, memoryID string) []byte {
	return []byte(kwPrefix + token + ":" + memoryID)
}

func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]{}")
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func notePath(notesDir, memoryID string) string {
	return filepath.Join(notesDir, memoryID+".md")
}

func renderNote(m memory.Memory) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", m.ID)
	b.WriteString(m.Content)
	b.WriteString("\n")
	if len(m.Metadata.Tags) > 0 {
		fmt.Fprintf(&b, "\ntags: %s\n", strings.Join(m.Metadata.Tags, ", "))
	}
	if len(m.Entities) > 0 {
		fmt.Fprintf(&b, "entities: %s\n", strings.Join(m.Entities, ", "))
	}
	return b.Bytes()
}

// WriteNote renders m as a markdown file under the vault directory and
// indexes its content, tags and entities as keyword postings. Returns the note's
// path, which callers persist as Memory.PromotedTo.
func (idx *Index) WriteNote(m memory.Memory) (string, error) {
	path := notePath(idx.notes, m.ID)
	if idx.notes != "" {
		if err := os.WriteFile(path, renderNote(m), 0o644); err != nil {
			return "", errs.Internal(fmt.Errorf("write vault note: %w", err))
		}
	}

	tokens := tokenize(m.Content)
	tokens = append(tokens, m.Metadata.Tags...)
	tokens = append(tokens, m.Entities...)
	err := idx.db.Update(func(txn *badger.Txn) error {
		for _, tok := range tokens {
			if err := txn.Set(keywordKey(strings.ToLower(tok), m.ID), []byte(path)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", errs.Internal(fmt.Errorf("index vault note: %w", err))
	}
	return path, nil
}

// VaultHit is one ranked search result from the vault index.
type VaultHit struct {
	MemoryID string
	Path     string
	Score    float64
}

// Search ranks memory ids by the fraction of the query's tokens whose
// keyword posting includes that id, returning the top limit hits
// sorted descending.
func (idx *Index) Search(query string, limit int) ([]VaultHit, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	hits := map[string]int{}
	paths := map[string]string{}

	err := idx.db.View(func(txn *badger.Txn) error {
		for _, tok := range tokens {
			prefix := []byte(kwPrefix + tok + ":")
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				key := string(item.Key())
				memoryID := strings.TrimPrefix(key, string(prefix))
				hits[memoryID]++
				if _, ok := paths[memoryID]; !ok {
					item.Value(func(v []byte) error {
						paths[memoryID] = string(v)
						return nil
					})
				}
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("search vault index: %w", err))
	}

	out := make([]VaultHit, 0, len(hits))
	for id, count := range hits {
		out = append(out, VaultHit{MemoryID: id, Path: paths[id], Score: float64(count) / float64(len(tokens))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].MemoryID < out[j].MemoryID
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

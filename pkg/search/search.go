// Package search merges this process's own scored recall (Storage +
// decay) with an external vault index's full-text recall into one
// ranked, deduplicated result list.
package search

import (
	"os"
	"sort"
	"strings"

	"github.com/orneryd/stm/pkg/decay"
	"github.com/orneryd/stm/pkg/memory"
	"github.com/orneryd/stm/pkg/similarity"
	"github.com/orneryd/stm/pkg/storage"
	"github.com/orneryd/stm/pkg/vaultindex"
)

// SourceSTM and SourceLTM tag where a Hit came from.
const (
	SourceSTM = "stm"
	SourceLTM = "ltm"
)

// VaultIndex is the external full-text contract unified search queries
// for long-term-memory matches. vaultindex.Index is the reference
// implementation; any type satisfying this works.
type VaultIndex interface {
	Search(query string, limit int) ([]vaultindex.VaultHit, error)
}

// Hit is one ranked, sourced result from Unified.
type Hit struct {
	MemoryID string
	Content  string
	Score    float64
	Source   string
}

// Options configures a Unified search call.
type Options struct {
	Query      string
	Tags       []string
	Limit      int
	STMWeight  float64
	LTMWeight  float64
	WindowDays int
	MinScore   float64
	Now        int64
}

// WithDefaults fills the spec's stated defaults for any zero-valued
// weight/limit field.
func (o Options) WithDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = 10
	}
	if o.STMWeight == 0 {
		o.STMWeight = 1.0
	}
	if o.LTMWeight == 0 {
		o.LTMWeight = 0.7
	}
	return o
}

// Unified queries Storage and, if vault is non-nil, the external vault
// index, scores each side, merges, deduplicates by the first 100
// characters of content (case-insensitive, trimmed, keeping the
// higher-scored occurrence), sorts descending, and returns up to
// opts.Limit hits.
func Unified(store *storage.Store, vault VaultIndex, opts Options, params decay.Params) ([]Hit, error) {
	opts = opts.WithDefaults()

	stmHits := stmCandidates(store, opts, params)
	var ltmHits []Hit
	if vault != nil {
		var err error
		ltmHits, err = ltmCandidates(vault, opts)
		if err != nil {
			return nil, err
		}
	}

	all := append(stmHits, ltmHits...)
	all = dedupeByContentPrefix(all)

	var filtered []Hit
	for _, h := range all {
		if h.Score >= opts.MinScore {
			filtered = append(filtered, h)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Score > filtered[j].Score })
	if opts.Limit > 0 && opts.Limit < len(filtered) {
		filtered = filtered[:opts.Limit]
	}
	return filtered, nil
}

func stmCandidates(store *storage.Store, opts Options, params decay.Params) []Hit {
	mems := store.SearchMemories(storage.SearchOptions{
		Tags:       opts.Tags,
		Status:     memory.StatusActive,
		WindowDays: opts.WindowDays,
		Now:        opts.Now,
	})

	var hits []Hit
	for _, m := range mems {
		relevance := similarity.TextSimilarity(opts.Query, m.Content)
		if opts.Query != "" && relevance <= 0 {
			continue
		}
		temporal := decay.TemporalFactor(decay.Calculate(m.UseCount, m.LastUsed, opts.Now, m.Strength, params))
		score := (0.5*relevance + 0.5*temporal) * opts.STMWeight
		hits = append(hits, Hit{MemoryID: m.ID, Content: m.Content, Score: score, Source: SourceSTM})
	}
	return hits
}

func ltmCandidates(vault VaultIndex, opts Options) ([]Hit, error) {
	vhits, err := vault.Search(opts.Query, opts.Limit*2)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(vhits))
	for _, v := range vhits {
		content := readNoteContent(v.Path)
		hits = append(hits, Hit{MemoryID: v.MemoryID, Content: content, Score: v.Score * opts.LTMWeight, Source: SourceLTM})
	}
	return hits, nil
}

func readNoteContent(path string) string {
	if path == "" {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	// Drop the "# <id>" heading the vault renders above the note body,
	// so the content-prefix dedup compares bodies.
	content := string(b)
	if strings.HasPrefix(content, "# ") {
		if i := strings.Index(content, "\n"); i >= 0 {
			content = strings.TrimLeft(content[i+1:], "\n")
		}
	}
	return content
}

func contentKey(content string) string {
	c := strings.ToLower(strings.TrimSpace(content))
	if len(c) > 100 {
		c = c[:100]
	}
	return c
}

// dedupeByContentPrefix keeps, for each first-100-char content key,
// only the highest-scored hit.
func dedupeByContentPrefix(hits []Hit) []Hit {
	best := map[string]Hit{}
	order := []string{}
	for _, h := range hits {
		key := contentKey(h.Content)
		existing, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = h
			continue
		}
		if h.Score > existing.Score {
			best[key] = h
		}
	}
	out := make([]Hit, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

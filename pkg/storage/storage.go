// Package storage is the durability layer: two append-only JSONL
// files (memories.jsonl, relations.jsonl) backed by in-memory maps for
// point lookup, plus compaction to reclaim space from tombstones and
// superseded versions.
//
// A Store is owned by a single writer at a time; readers may share the
// instance provided all mutation goes through that owner.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/orneryd/stm/pkg/errs"
	"github.com/orneryd/stm/pkg/logging"
	"github.com/orneryd/stm/pkg/memory"
)

const (
	memoriesFile  = "memories.jsonl"
	relationsFile = "relations.jsonl"
)

// tombstone is the on-disk shape of a deletion marker.
type tombstone struct {
	ID       string `json:"id"`
	Deleted  bool   `json:"_deleted"`
}

// Store is the append-only JSONL storage engine.
type Store struct {
	root string
	log  *logging.Logger

	mu         sync.RWMutex
	memories   map[string]memory.Memory
	relations  map[string]memory.Relation
	tombMem    map[string]bool
	tombRel    map[string]bool
	memLines   int // total lines ever appended, live or not
	relLines   int

	memFile *os.File
	relFile *os.File
}

// Open connects to (creating if absent) the storage directory at root,
// loading both JSONL files into memory. Connect is idempotent: calling
// Open twice on the same root from two Store values is safe for
// reading, but only one should write.
func Open(root string, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Nop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errs.Internal(fmt.Errorf("create storage root: %w", err))
	}
	s := &Store{
		root:      root,
		log:       log,
		memories:  make(map[string]memory.Memory),
		relations: make(map[string]memory.Relation),
		tombMem:   make(map[string]bool),
		tombRel:   make(map[string]bool),
	}
	if err := s.loadMemories(); err != nil {
		return nil, err
	}
	if err := s.loadRelations(); err != nil {
		return nil, err
	}
	memFile, err := os.OpenFile(filepath.Join(root, memoriesFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errs.Internal(err)
	}
	relFile, err := os.OpenFile(filepath.Join(root, relationsFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		memFile.Close()
		return nil, errs.Internal(err)
	}
	s.memFile = memFile
	s.relFile = relFile
	return s, nil
}

// Close releases the underlying file handles.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if e := s.memFile.Close(); e != nil {
		err = e
	}
	if e := s.relFile.Close(); e != nil {
		err = e
	}
	return err
}

func (s *Store) loadMemories() error {
	path := filepath.Join(s.root, memoriesFile)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errs.Internal(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	lineNo := 0
	var lines []string
	for scanner.Scan() {
		lineNo++
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return errs.Internal(fmt.Errorf("read %s: %w", memoriesFile, err))
	}
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		isLast := i == len(lines)-1
		if err := s.applyMemoryLine(line); err != nil {
			if isLast {
				s.log.Warn("skipping truncated last line", map[string]any{"file": memoriesFile, "line": i + 1})
				continue
			}
			return errs.Internal(fmt.Errorf("malformed json at %s:%d: %w", memoriesFile, i+1, err))
		}
		s.memLines++
	}
	return nil
}

func (s *Store) applyMemoryLine(line string) error {
	var tomb tombstone
	if err := json.Unmarshal([]byte(line), &tomb); err == nil && tomb.Deleted {
		delete(s.memories, tomb.ID)
		s.tombMem[tomb.ID] = true
		return nil
	}
	var m memory.Memory
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		return err
	}
	s.memories[m.ID] = m
	delete(s.tombMem, m.ID)
	return nil
}

func (s *Store) loadRelations() error {
	path := filepath.Join(s.root, relationsFile)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errs.Internal(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return errs.Internal(fmt.Errorf("read %s: %w", relationsFile, err))
	}
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		isLast := i == len(lines)-1
		if err := s.applyRelationLine(line); err != nil {
			if isLast {
				s.log.Warn("skipping truncated last line", map[string]any{"file": relationsFile, "line": i + 1})
				continue
			}
			return errs.Internal(fmt.Errorf("malformed json at %s:%d: %w", relationsFile, i+1, err))
		}
		s.relLines++
	}
	return nil
}

func (s *Store) applyRelationLine(line string) error {
	var tomb tombstone
	if err := json.Unmarshal([]byte(line), &tomb); err == nil && tomb.Deleted {
		delete(s.relations, tomb.ID)
		s.tombRel[tomb.ID] = true
		return nil
	}
	var r memory.Relation
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return err
	}
	s.relations[r.ID] = r
	delete(s.tombRel, r.ID)
	return nil
}

func appendLine(f *os.File, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errs.Internal(err)
	}
	b = append(b, '\n')
	if _, err := f.Write(b); err != nil {
		return errs.Internal(err)
	}
	return f.Sync()
}

// SaveMemory appends m (upserting by id) and updates the in-memory map.
func (s *Store) SaveMemory(m memory.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := appendLine(s.memFile, m); err != nil {
		return err
	}
	s.memories[m.ID] = m
	delete(s.tombMem, m.ID)
	s.memLines++
	return nil
}

// GetMemory returns the memory for id, or nil if not present.
func (s *Store) GetMemory(id string) *memory.Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memories[id]
	if !ok {
		return nil
	}
	cp := m.Clone()
	return &cp
}

// MemoryPatch carries the partial fields update_memory may change.
type MemoryPatch struct {
	LastUsed   *int64
	UseCount   *int
	Strength   *float64
	Status     *memory.Status
	PromotedAt *int64
	PromotedTo *string
}

// UpdateMemory reads m, applies patch, and appends the merged record.
func (s *Store) UpdateMemory(id string, patch MemoryPatch) (*memory.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	if !ok {
		return nil, errs.NotFound("memory", id)
	}
	if patch.LastUsed != nil {
		m.LastUsed = *patch.LastUsed
	}
	if patch.UseCount != nil {
		m.UseCount = *patch.UseCount
	}
	if patch.Strength != nil {
		m.Strength = *patch.Strength
	}
	if patch.Status != nil {
		m.Status = *patch.Status
	}
	if patch.PromotedAt != nil {
		m.PromotedAt = *patch.PromotedAt
	}
	if patch.PromotedTo != nil {
		m.PromotedTo = *patch.PromotedTo
	}
	if err := appendLine(s.memFile, m); err != nil {
		return nil, err
	}
	s.memories[id] = m
	s.memLines++
	out := m.Clone()
	return &out, nil
}

// DeleteMemory appends a tombstone and removes id from the map.
// Returns false if id was not present.
func (s *Store) DeleteMemory(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memories[id]; !ok {
		return false, nil
	}
	if err := appendLine(s.memFile, tombstone{ID: id, Deleted: true}); err != nil {
		return false, err
	}
	delete(s.memories, id)
	s.tombMem[id] = true
	s.memLines++
	return true, nil
}

// ListMemories returns memories (optionally filtered by status) sorted
// by LastUsed descending, paginated by limit/offset. limit<=0 means no
// limit.
func (s *Store) ListMemories(status *memory.Status, limit, offset int) []memory.Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]memory.Memory, 0, len(s.memories))
	for _, m := range s.memories {
		if status != nil && m.Status != *status {
			continue
		}
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].LastUsed > all[j].LastUsed })
	if offset > 0 {
		if offset >= len(all) {
			return []memory.Memory{}
		}
		all = all[offset:]
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

// SearchOptions configures SearchMemories.
type SearchOptions struct {
	Tags       []string
	Status     memory.Status
	WindowDays int // 0 means no window filter
	Now        int64
	Limit      int
}

// SearchMemories filters memories by opts.Status (every status when
// empty), "any overlap" tag match, and a recency window.
func (s *Store) SearchMemories(opts SearchOptions) []memory.Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wantTags := toSet(opts.Tags)
	var windowStart int64 = -1
	if opts.WindowDays > 0 {
		windowStart = opts.Now - int64(opts.WindowDays)*86400
	}

	var out []memory.Memory
	for _, m := range s.memories {
		if opts.Status != "" && m.Status != opts.Status {
			continue
		}
		if len(wantTags) > 0 && !anyOverlap(wantTags, m.Metadata.Tags) {
			continue
		}
		if windowStart >= 0 && m.LastUsed < windowStart {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUsed > out[j].LastUsed })
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out
}

func toSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

func anyOverlap(want map[string]bool, have []string) bool {
	for _, h := range have {
		if want[h] {
			return true
		}
	}
	return false
}

// CountMemories returns the number of memories, optionally filtered by status.
func (s *Store) CountMemories(status *memory.Status) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if status == nil {
		return len(s.memories)
	}
	n := 0
	for _, m := range s.memories {
		if m.Status == *status {
			n++
		}
	}
	return n
}

// AllMemories returns a snapshot copy of every live memory, for
// components (activation index, consolidation agents) that need the
// full set.
func (s *Store) AllMemories() []memory.Memory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]memory.Memory, 0, len(s.memories))
	for _, m := range s.memories {
		out = append(out, m)
	}
	return out
}

// CreateRelation appends a new relation, failing with Conflict if
// (from,to,type) already exists.
func (s *Store) CreateRelation(r memory.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.Key()
	for _, existing := range s.relations {
		if existing.Key() == key {
			return errs.Conflict(fmt.Sprintf("relation %s->%s[%s] already exists", key[0], key[1], key[2]))
		}
	}
	if err := appendLine(s.relFile, r); err != nil {
		return err
	}
	s.relations[r.ID] = r
	s.relLines++
	return nil
}

// RelationFilter narrows GetRelations.
type RelationFilter struct {
	FromMemoryID string
	ToMemoryID   string
	RelationType string
}

// GetRelations returns relations matching the non-empty fields of f.
func (s *Store) GetRelations(f RelationFilter) []memory.Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []memory.Relation
	for _, r := range s.relations {
		if f.FromMemoryID != "" && r.FromMemoryID != f.FromMemoryID {
			continue
		}
		if f.ToMemoryID != "" && r.ToMemoryID != f.ToMemoryID {
			continue
		}
		if f.RelationType != "" && r.RelationType != f.RelationType {
			continue
		}
		out = append(out, r)
	}
	return out
}

// GetAllRelations returns every live relation.
func (s *Store) GetAllRelations() []memory.Relation {
	return s.GetRelations(RelationFilter{})
}

// DeleteRelation appends a tombstone for id. Returns false if absent.
func (s *Store) DeleteRelation(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.relations[id]; !ok {
		return false, nil
	}
	if err := appendLine(s.relFile, tombstone{ID: id, Deleted: true}); err != nil {
		return false, err
	}
	delete(s.relations, id)
	s.tombRel[id] = true
	s.relLines++
	return true, nil
}

// CompactResult reports before/after line counts for both files.
type CompactResult struct {
	MemoriesBefore, MemoriesAfter   int
	RelationsBefore, RelationsAfter int
}

// Compact rewrites each file to contain exactly one line per live
// record and zero tombstones, atomically replacing the original.
func (s *Store) Compact() (CompactResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := CompactResult{
		MemoriesBefore:  s.memLines,
		RelationsBefore: s.relLines,
	}

	if err := s.memFile.Close(); err != nil {
		return result, errs.Internal(err)
	}
	if err := rewriteFile(s.root, memoriesFile, s.sortedMemories()); err != nil {
		return result, err
	}
	memFile, err := os.OpenFile(filepath.Join(s.root, memoriesFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return result, errs.Internal(err)
	}
	s.memFile = memFile

	if err := s.relFile.Close(); err != nil {
		return result, errs.Internal(err)
	}
	if err := rewriteFile(s.root, relationsFile, s.sortedRelations()); err != nil {
		return result, err
	}
	relFile, err := os.OpenFile(filepath.Join(s.root, relationsFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return result, errs.Internal(err)
	}
	s.relFile = relFile

	s.tombMem = make(map[string]bool)
	s.tombRel = make(map[string]bool)
	s.memLines = len(s.memories)
	s.relLines = len(s.relations)
	result.MemoriesAfter = s.memLines
	result.RelationsAfter = s.relLines
	return result, nil
}

func (s *Store) sortedMemories() []any {
	out := make([]any, 0, len(s.memories))
	ids := make([]string, 0, len(s.memories))
	for id := range s.memories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, s.memories[id])
	}
	return out
}

func (s *Store) sortedRelations() []any {
	out := make([]any, 0, len(s.relations))
	ids := make([]string, 0, len(s.relations))
	for id := range s.relations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, s.relations[id])
	}
	return out
}

func rewriteFile(root, name string, records []any) error {
	tmpPath := filepath.Join(root, name+".tmp")
	finalPath := filepath.Join(root, name)
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.Internal(err)
	}
	w := bufio.NewWriter(f)
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			f.Close()
			return errs.Internal(err)
		}
		w.Write(b)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errs.Internal(err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errs.Internal(err)
	}
	if err := f.Close(); err != nil {
		return errs.Internal(err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return errs.Internal(err)
	}
	return nil
}

// Stats reports storage-wide bookkeeping for operators.
type Stats struct {
	ActiveMemories   int
	ActiveRelations  int
	MemoryLines      int
	RelationLines    int
	MemorySavings    int
	RelationSavings  int
	ShouldCompact    bool
}

// StorageStats reports active record counts, raw line counts, and
// whether compaction would reclaim a meaningful number of lines.
func (s *Store) StorageStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	memSavings := s.memLines - len(s.memories)
	relSavings := s.relLines - len(s.relations)
	return Stats{
		ActiveMemories:  len(s.memories),
		ActiveRelations: len(s.relations),
		MemoryLines:     s.memLines,
		RelationLines:   s.relLines,
		MemorySavings:   memSavings,
		RelationSavings: relSavings,
		ShouldCompact:   memSavings > 100 || relSavings > 100,
	}
}

// Package scheduler runs the consolidation agents in a fixed pipeline
// order and exposes the post-save urgent-decay check the write path
// calls right after a memory is persisted.
package scheduler

import (
	"fmt"

	"github.com/orneryd/stm/pkg/agents"
	"github.com/orneryd/stm/pkg/clock"
	"github.com/orneryd/stm/pkg/decay"
	"github.com/orneryd/stm/pkg/logging"
	"github.com/orneryd/stm/pkg/memory"
	"github.com/orneryd/stm/pkg/storage"
)

// TickResult is one agent's contribution to a completed (or aborted)
// tick.
type TickResult struct {
	Agent   string
	Results []agents.Result
}

// TickReport is the outcome of one full Tick call.
type TickReport struct {
	Ticks   []TickResult
	Aborted bool
	AbortAt string // agent name the abort happened at, if Aborted
	Err     error
}

// Scheduler owns the five consolidation agents and runs them in the
// fixed order the store's consolidation model requires: decay, then
// cluster detection, then merge, then LTM promotion, then relationship
// discovery. Any agent panicking aborts the remainder of the tick;
// an agent's own per-item failures never do (see agents.RunAll).
type Scheduler struct {
	decay        *agents.DecayAnalyzer
	cluster      *agents.ClusterDetector
	merge        *agents.SemanticMerge
	promote      *agents.LTMPromoter
	relationship *agents.RelationshipDiscovery

	store  *storage.Store
	clock  clock.Clock
	params decay.Params
	thr    decay.Thresholds
	log    *logging.Logger
}

// New builds a Scheduler. merge may be nil when no merge items are
// pending for this tick (the cluster detector's output is consumed by
// a caller that constructs the next tick's SemanticMerge, rather than
// the scheduler itself owning that loop).
func New(store *storage.Store, da *agents.DecayAnalyzer, cd *agents.ClusterDetector, sm *agents.SemanticMerge, lp *agents.LTMPromoter, rd *agents.RelationshipDiscovery, c clock.Clock, params decay.Params, thr decay.Thresholds, log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Nop()
	}
	return &Scheduler{
		decay: da, cluster: cd, merge: sm, promote: lp, relationship: rd,
		store: store, clock: c, params: params, thr: thr, log: log,
	}
}

// Tick runs every configured agent in the fixed order, aborting the
// remainder of the tick if an agent itself panics (as opposed to one
// of its items merely failing, which RunAll already isolates).
func (s *Scheduler) Tick(dryRun bool) (report TickReport) {
	// present is checked on the concrete pointers: a nil *T stored in
	// the agents.Agent interface would not compare equal to nil.
	order := []struct {
		name    string
		agent   agents.Agent
		present bool
	}{
		{"decay_analyzer", s.decay, s.decay != nil},
		{"cluster_detector", s.cluster, s.cluster != nil},
		{"semantic_merge", s.merge, s.merge != nil},
		{"ltm_promoter", s.promote, s.promote != nil},
		{"relationship_discovery", s.relationship, s.relationship != nil},
	}

	for _, step := range order {
		if !step.present {
			continue
		}
		results, err := s.runStep(step.name, step.agent, dryRun)
		if err != nil {
			report.Aborted = true
			report.AbortAt = step.name
			report.Err = err
			s.log.Warn("scheduler tick aborted", map[string]any{"agent": step.name, "error": err.Error()})
			return report
		}
		report.Ticks = append(report.Ticks, TickResult{Agent: step.name, Results: results})
	}
	return report
}

// runStep recovers a panicking agent into an error so one agent's bug
// cannot take down the process running the tick.
func (s *Scheduler) runStep(name string, a agents.Agent, dryRun bool) (results []agents.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent %s panicked: %v", name, r)
		}
	}()
	results = a.Run(dryRun)
	return results, nil
}

// PostSaveAction describes what the post-save urgent check decided.
type PostSaveAction struct {
	MemoryID string
	Score    float64
	Action   string // "none" | "would_flag_urgent" | "flagged_urgent"
}

// PostSaveCheck computes the just-saved memory's score and, if it is
// already below the urgent threshold, flags it (or, in dry-run,
// predicts the flag) for immediate operator attention.
func (s *Scheduler) PostSaveCheck(memoryID string, dryRun bool) PostSaveAction {
	m := s.store.GetMemory(memoryID)
	if m == nil {
		return PostSaveAction{MemoryID: memoryID, Action: "none"}
	}
	now := s.clock.Now()
	score := decay.Calculate(m.UseCount, m.LastUsed, now, m.Strength, s.params)
	if !s.thr.IsUrgent(score) {
		return PostSaveAction{MemoryID: memoryID, Score: score, Action: "none"}
	}
	if dryRun {
		return PostSaveAction{MemoryID: memoryID, Score: score, Action: "would_flag_urgent"}
	}
	s.flagUrgent(*m, now)
	return PostSaveAction{MemoryID: memoryID, Score: score, Action: "flagged_urgent"}
}

// flagUrgent bumps the memory's review bookkeeping so operator-facing
// listings can surface it; failures here are logged, not propagated,
// since the urgent flag is advisory.
func (s *Scheduler) flagUrgent(m memory.Memory, now int64) {
	m.ReviewPriority = 1.0
	m.LastReviewAt = now
	m.ReviewCount++
	if err := s.store.SaveMemory(m); err != nil {
		s.log.Warn("flag urgent save failed", map[string]any{"memory_id": m.ID, "error": err.Error()})
	}
}

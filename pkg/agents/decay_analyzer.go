package agents

import (
	"github.com/orneryd/stm/pkg/clock"
	"github.com/orneryd/stm/pkg/decay"
	"github.com/orneryd/stm/pkg/logging"
	"github.com/orneryd/stm/pkg/memory"
	"github.com/orneryd/stm/pkg/retention"
	"github.com/orneryd/stm/pkg/storage"
)

// DecayAnalyzer scans active memories for ones whose score has fallen
// below the forget threshold, recommending archive or delete.
type DecayAnalyzer struct {
	store         *storage.Store
	retentionMgr  *retention.Manager
	clock         clock.Clock
	params        decay.Params
	thresholds    decay.Thresholds
	archiveInstead bool
	log           *logging.Logger
}

// NewDecayAnalyzer builds a DecayAnalyzer. archiveInstead selects
// archive-then-skip-delete semantics for the GC path.
func NewDecayAnalyzer(store *storage.Store, mgr *retention.Manager, c clock.Clock, params decay.Params, thresholds decay.Thresholds, archiveInstead bool, log *logging.Logger) *DecayAnalyzer {
	if log == nil {
		log = logging.Nop()
	}
	return &DecayAnalyzer{store: store, retentionMgr: mgr, clock: c, params: params, thresholds: thresholds, archiveInstead: archiveInstead, log: log}
}

// Scan returns the ids of active memories below the forget threshold.
func (d *DecayAnalyzer) Scan() ([]string, error) {
	now := d.clock.Now()
	active := memory.StatusActive
	var ids []string
	for _, m := range d.store.ListMemories(&active, 0, 0) {
		score := decay.Calculate(m.UseCount, m.LastUsed, now, m.Strength, d.params)
		if d.thresholds.ShouldForget(score) {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// ProcessItem archives or deletes one item, honoring legal holds.
func (d *DecayAnalyzer) ProcessItem(itemID string, dryRun bool) Result {
	now := d.clock.Now()
	if d.retentionMgr != nil && d.retentionMgr.IsHeld(itemID) {
		d.retentionMgr.Record(retention.Action{MemoryID: itemID, Kind: "skipped_hold", At: now})
		return Result{ItemID: itemID, Action: "skipped_legal_hold"}
	}

	action := "delete"
	if d.archiveInstead {
		action = "archive"
	}
	if dryRun {
		return Result{ItemID: itemID, Action: "would_" + action}
	}

	if d.archiveInstead {
		status := memory.StatusArchived
		if _, err := d.store.UpdateMemory(itemID, storage.MemoryPatch{Status: &status}); err != nil {
			return Result{ItemID: itemID, Action: action, Err: err}
		}
		if d.retentionMgr != nil {
			d.retentionMgr.Record(retention.Action{MemoryID: itemID, Kind: "archived", At: now})
		}
		return Result{ItemID: itemID, Action: "archived"}
	}
	if _, err := d.store.DeleteMemory(itemID); err != nil {
		return Result{ItemID: itemID, Action: action, Err: err}
	}
	if d.retentionMgr != nil {
		d.retentionMgr.Record(retention.Action{MemoryID: itemID, Kind: "deleted", At: now})
	}
	return Result{ItemID: itemID, Action: "deleted"}
}

// Run scans and processes every eligible memory.
func (d *DecayAnalyzer) Run(dryRun bool) []Result {
	return RunAll(d, d.log, "decay_analyzer", dryRun)
}

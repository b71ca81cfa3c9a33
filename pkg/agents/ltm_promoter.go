package agents

import (
	"github.com/orneryd/stm/pkg/clock"
	"github.com/orneryd/stm/pkg/decay"
	"github.com/orneryd/stm/pkg/errs"
	"github.com/orneryd/stm/pkg/logging"
	"github.com/orneryd/stm/pkg/memory"
	"github.com/orneryd/stm/pkg/storage"
)

// VaultWriter is the external sink a promoted memory's markdown note
// is written to. A concrete implementation lives outside the core
// (see the reference Badger-backed binding in pkg/vaultindex, which
// cmd/stmd wires in).
type VaultWriter interface {
	WriteNote(m memory.Memory) (path string, err error)
}

// LTMPromoter iterates active memories, applies the promotion policy,
// and on success writes a vault note and transitions the memory to
// promoted.
type LTMPromoter struct {
	store      *storage.Store
	vault      VaultWriter
	clock      clock.Clock
	params     decay.Params
	thresholds decay.Thresholds
	log        *logging.Logger
}

// NewLTMPromoter builds an LTMPromoter.
func NewLTMPromoter(store *storage.Store, vault VaultWriter, c clock.Clock, params decay.Params, thresholds decay.Thresholds, log *logging.Logger) *LTMPromoter {
	if log == nil {
		log = logging.Nop()
	}
	return &LTMPromoter{store: store, vault: vault, clock: c, params: params, thresholds: thresholds, log: log}
}

// ShouldPromote reports whether m currently qualifies for promotion.
func (p *LTMPromoter) ShouldPromote(m memory.Memory) bool {
	now := p.clock.Now()
	score := decay.Calculate(m.UseCount, m.LastUsed, now, m.Strength, p.params)
	return p.thresholds.ShouldPromote(score, m.UseCount, m.LastUsed, now)
}

// Scan returns the ids of active memories eligible for promotion.
func (p *LTMPromoter) Scan() ([]string, error) {
	active := memory.StatusActive
	var ids []string
	for _, m := range p.store.ListMemories(&active, 0, 0) {
		if p.ShouldPromote(m) {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// processItem promotes one memory: writes a vault note, then
// transitions status to promoted. force bypasses ShouldPromote (used
// for the explicit-id tool path); dryRun predicts without mutating.
func (p *LTMPromoter) processItem(itemID string, dryRun, force bool) Result {
	m := p.store.GetMemory(itemID)
	if m == nil {
		return Result{ItemID: itemID, Action: "not_found"}
	}
	if m.Status == memory.StatusPromoted {
		return Result{ItemID: itemID, Action: "already_promoted", Detail: map[string]any{"promoted_to": m.PromotedTo}}
	}
	if !force && !p.ShouldPromote(*m) {
		return Result{ItemID: itemID, Action: "not_eligible"}
	}
	if dryRun {
		return Result{ItemID: itemID, Action: "would_promote"}
	}
	if p.vault == nil {
		return Result{ItemID: itemID, Action: "promote", Err: errs.Dependency("vault not configured")}
	}
	path, err := p.vault.WriteNote(*m)
	if err != nil {
		return Result{ItemID: itemID, Action: "promote", Err: err}
	}
	now := p.clock.Now()
	status := memory.StatusPromoted
	if _, err := p.store.UpdateMemory(itemID, storage.MemoryPatch{Status: &status, PromotedAt: &now, PromotedTo: &path}); err != nil {
		return Result{ItemID: itemID, Action: "promote", Err: err}
	}
	return Result{ItemID: itemID, Action: "promoted", Detail: map[string]any{"promoted_to": path}}
}

// ProcessItem implements Agent using the automatic (non-forced) path.
func (p *LTMPromoter) ProcessItem(itemID string, dryRun bool) Result {
	return p.processItem(itemID, dryRun, false)
}

// PromoteExplicit promotes a specific id, honoring force.
func (p *LTMPromoter) PromoteExplicit(itemID string, dryRun, force bool) Result {
	return p.processItem(itemID, dryRun, force)
}

// Run scans and promotes every eligible memory.
func (p *LTMPromoter) Run(dryRun bool) []Result {
	return RunAll(p, p.log, "ltm_promoter", dryRun)
}

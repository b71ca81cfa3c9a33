// Package agents implements the five consolidation agents that keep
// the store healthy over time: decay analysis, cluster detection,
// semantic merge, LTM promotion, and relationship discovery. Every
// agent shares one capability set — scan, process one item, run the
// whole batch — so the scheduler can treat them uniformly.
package agents

import "github.com/orneryd/stm/pkg/logging"

// Result is one agent's outcome for a single scanned item. Fields not
// relevant to a given agent/action are left zero.
type Result struct {
	ItemID string
	Action string
	Detail map[string]any
	Err    error
}

// Agent is the shared contract every consolidation agent implements.
type Agent interface {
	// Scan returns the ids of items this agent wants to consider.
	Scan() ([]string, error)
	// ProcessItem applies (or, if dryRun, predicts) the agent's action
	// to one item.
	ProcessItem(itemID string, dryRun bool) Result
	// Run scans then processes every item, isolating per-item
	// failures: one item's error does not stop the others.
	Run(dryRun bool) []Result
}

// RunAll is the shared Run() implementation: scan, then process every
// item independently, logging (not propagating) per-item failures.
func RunAll(a Agent, log *logging.Logger, agentName string, dryRun bool) []Result {
	if log == nil {
		log = logging.Nop()
	}
	ids, err := a.Scan()
	if err != nil {
		log.Warn("agent scan failed", map[string]any{"agent": agentName, "error": err.Error()})
		return nil
	}
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		r := a.ProcessItem(id, dryRun)
		if r.Err != nil {
			log.Warn("agent item failed", map[string]any{"agent": agentName, "item": id, "error": r.Err.Error()})
		}
		results = append(results, r)
	}
	return results
}

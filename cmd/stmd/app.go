package main

import (
	"fmt"
	"path/filepath"

	"github.com/orneryd/stm/pkg/agents"
	"github.com/orneryd/stm/pkg/clock"
	"github.com/orneryd/stm/pkg/config"
	"github.com/orneryd/stm/pkg/index"
	"github.com/orneryd/stm/pkg/logging"
	"github.com/orneryd/stm/pkg/nlp"
	"github.com/orneryd/stm/pkg/retention"
	"github.com/orneryd/stm/pkg/scheduler"
	"github.com/orneryd/stm/pkg/storage"
	"github.com/orneryd/stm/pkg/vaultindex"
)

// app bundles every long-lived dependency a subcommand needs. It is
// built once in main and closed on exit.
type app struct {
	cfg       config.Config
	store     *storage.Store
	graph     *index.AtomicGraph
	extractor *nlp.Extractor
	clock     clock.Clock
	log       *logging.Logger
	retention *retention.Manager
	vault     *vaultindex.Index // nil when the vault is disabled
}

func newApp() (*app, error) {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logging.New(logging.LevelInfo)
	store, err := storage.Open(cfg.Storage.Root, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	g := index.Build(store.AllMemories(), store.GetAllRelations(), nil)
	a := &app{
		cfg:       cfg,
		store:     store,
		graph:     index.NewAtomicGraph(g),
		extractor: nlp.NewExtractor(),
		clock:     clock.Real{},
		log:       log,
		retention: retention.NewManager(),
	}

	if cfg.Vault.Enabled && cfg.Vault.Path != "" {
		vault, err := vaultindex.Open(vaultindex.Options{
			DBPath:   filepath.Join(cfg.Vault.Path, "index"),
			NotesDir: filepath.Join(cfg.Vault.Path, "notes"),
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("open vault: %w", err)
		}
		a.vault = vault
	}

	return a, nil
}

func (a *app) Close() {
	if a.vault != nil {
		a.vault.Close()
	}
	a.store.Close()
}

// rebuildGraph refreshes the activation index from the current storage
// contents and atomically publishes it.
func (a *app) rebuildGraph() {
	g := index.Build(a.store.AllMemories(), a.store.GetAllRelations(), a.extractor)
	a.graph.Store(g)
}

// newScheduler builds a fresh Scheduler bound to the current config
// and, if promotion needs one, this app's vault. Cheap enough to
// construct per command invocation.
func (a *app) newScheduler() *scheduler.Scheduler {
	da := agents.NewDecayAnalyzer(a.store, a.retention, a.clock, a.cfg.DecayParams(), a.cfg.Thresholds(), false, a.log)
	cd := agents.NewClusterDetector(a.store, agents.ClusterConfig{
		LinkThreshold: a.cfg.Clustering.LinkThreshold,
		MinSize:       a.cfg.Clustering.MinSize,
		MaxSize:       a.cfg.Clustering.MaxSize,
		SemanticHi:    a.cfg.Clustering.SemanticHi,
	}, a.log)
	rd := agents.NewRelationshipDiscovery(a.store, a.clock, agents.DefaultRelationshipDiscoveryConfig(), a.log)

	var lp *agents.LTMPromoter
	if a.vault != nil {
		lp = agents.NewLTMPromoter(a.store, a.vault, a.clock, a.cfg.DecayParams(), a.cfg.Thresholds(), a.log)
	}

	return scheduler.New(a.store, da, cd, nil, lp, rd, a.clock, a.cfg.DecayParams(), a.cfg.Thresholds(), a.log)
}

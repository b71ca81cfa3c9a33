package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/stm/pkg/agents"
	"github.com/orneryd/stm/pkg/clock"
	"github.com/orneryd/stm/pkg/decay"
	"github.com/orneryd/stm/pkg/memory"
	"github.com/orneryd/stm/pkg/retention"
	"github.com/orneryd/stm/pkg/storage"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTickRunsInFixedOrder(t *testing.T) {
	s := newStore(t)
	s.SaveMemory(memory.Memory{ID: "m1", UseCount: 10, Strength: 1.0, LastUsed: 0, Status: memory.StatusActive})
	c := clock.NewFake(0)
	params := decay.Params{Model: decay.ModelExponential, Beta: 0.6, Lambda: decay.LambdaFromHalfLife(3)}
	th := decay.Thresholds{Forget: 0.001, Promote: 0.1, Urgent: 0.05}

	da := agents.NewDecayAnalyzer(s, retention.NewManager(), c, params, th, false, nil)
	cd := agents.NewClusterDetector(s, agents.DefaultClusterConfig(), nil)
	rd := agents.NewRelationshipDiscovery(s, c, agents.DefaultRelationshipDiscoveryConfig(), nil)

	sched := New(s, da, cd, nil, nil, rd, c, params, th, nil)
	report := sched.Tick(true)

	require.False(t, report.Aborted, "%+v", report)
	wantOrder := []string{"decay_analyzer", "cluster_detector", "relationship_discovery"}
	require.Len(t, report.Ticks, len(wantOrder))
	for i, name := range wantOrder {
		assert.Equal(t, name, report.Ticks[i].Agent, "step %d", i)
	}
}

func TestPostSaveCheckFlagsUrgent(t *testing.T) {
	s := newStore(t)
	s.SaveMemory(memory.Memory{ID: "m1", UseCount: 1, Strength: 1.0, LastUsed: 0, Status: memory.StatusActive})
	c := clock.NewFake(1000000000)
	params := decay.Params{Model: decay.ModelExponential, Beta: 0.6, Lambda: decay.LambdaFromHalfLife(3)}
	th := decay.Thresholds{Urgent: 0.10}

	sched := New(s, nil, nil, nil, nil, nil, c, params, th, nil)

	dry := sched.PostSaveCheck("m1", true)
	assert.Equal(t, "would_flag_urgent", dry.Action)
	got := s.GetMemory("m1")
	require.NotNil(t, got)
	assert.Equal(t, 0, got.ReviewCount, "dry run must not mutate")

	live := sched.PostSaveCheck("m1", false)
	assert.Equal(t, "flagged_urgent", live.Action)
	got = s.GetMemory("m1")
	require.NotNil(t, got)
	assert.Equal(t, 1, got.ReviewCount)
	assert.Equal(t, 1.0, got.ReviewPriority)
}

func TestPostSaveCheckNoneWhenFresh(t *testing.T) {
	s := newStore(t)
	s.SaveMemory(memory.Memory{ID: "m1", UseCount: 10, Strength: 1.0, LastUsed: 0, Status: memory.StatusActive})
	c := clock.NewFake(0)
	params := decay.Params{Model: decay.ModelExponential, Beta: 0.6, Lambda: decay.LambdaFromHalfLife(3)}
	th := decay.Thresholds{Urgent: 0.10}

	sched := New(s, nil, nil, nil, nil, nil, c, params, th, nil)
	result := sched.PostSaveCheck("m1", false)
	assert.Equal(t, "none", result.Action)
}

package activation

import (
	"sort"
	"strings"
	"time"

	"github.com/orneryd/stm/pkg/clock"
	"github.com/orneryd/stm/pkg/decay"
	"github.com/orneryd/stm/pkg/index"
	"github.com/orneryd/stm/pkg/logging"
	"github.com/orneryd/stm/pkg/memory"
	"github.com/orneryd/stm/pkg/nlp"
)

const maxSpreadHops = 3

var hopDecay = [maxSpreadHops + 1]float64{0: 1.0, 1: 0.5, 2: 0.25, 3: 0.125}
var hopSource = [maxSpreadHops + 1]Source{1: SourceSpread1, 2: SourceSpread2, 3: SourceSpread3}

// MemoryFetcher resolves candidate ids to Memory records, matching
// Storage's GetMemory contract without importing the storage package
// directly (keeps activation's dependency surface to core + index).
type MemoryFetcher interface {
	GetMemory(id string) *memory.Memory
}

// Service is the activation hot path bound to a clock, a keyword
// extractor, decay parameters, and a memory fetcher. The ActivationGraph
// it reads is supplied per call so a rebuild (atomic pointer swap) is
// immediately visible to the next call.
type Service struct {
	fetcher   MemoryFetcher
	extractor *nlp.Extractor
	clock     clock.Clock
	params    decay.Params
	log       *logging.Logger
}

// NewService constructs a Service.
func NewService(fetcher MemoryFetcher, extractor *nlp.Extractor, c clock.Clock, params decay.Params, log *logging.Logger) *Service {
	if extractor == nil {
		extractor = nlp.NewExtractor()
	}
	if c == nil {
		c = clock.Real{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Service{fetcher: fetcher, extractor: extractor, clock: c, params: params, log: log}
}

// Activate runs the full pipeline against graph for ctx. It never
// panics out to the caller: any unexpected failure downgrades the
// result to FallbackTier = TierError instead of propagating.
func (s *Service) Activate(ctx Context, graph *index.Graph) (result Result) {
	start := time.Now()
	ctx = ctx.WithDefaults()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("activation panic recovered", map[string]any{"panic": r})
			result = Result{FallbackTier: TierError, Scores: map[string]Score{}}
		}
		result.LatencyMillis = float64(time.Since(start).Microseconds()) / 1000.0
	}()

	keywords := ctx.Keywords
	if len(keywords) == 0 {
		keywords = s.extractor.Extract(ctx.Message, 20)
	}
	lowerKeywords := make([]string, len(keywords))
	for i, k := range keywords {
		lowerKeywords[i] = strings.ToLower(k)
	}

	candidates := map[string]bool{}
	for id := range graph.FindByKeywords(lowerKeywords) {
		candidates[id] = true
	}
	for id := range graph.FindByEntities(lowerKeywords) {
		candidates[id] = true
	}
	for id := range graph.FindByTags(lowerKeywords) {
		candidates[id] = true
	}
	for id := range ctx.AlreadyActivated {
		delete(candidates, id)
	}

	totalCandidates := len(candidates)
	scores := make(map[string]Score, len(candidates))
	visited := map[string]bool{}
	var directIDs []string

	now := s.clock.Now()
	for id := range candidates {
		m := s.fetcher.GetMemory(id)
		if m == nil {
			continue
		}
		sc := s.directScore(m, lowerKeywords, now)
		scores[id] = sc
		visited[id] = true
		directIDs = append(directIDs, id)
	}
	for id := range ctx.AlreadyActivated {
		visited[id] = true
	}

	tier := TierFull
	var spreadIDs []string
	if ctx.EnableSpreading {
		spread, spreadTier := s.spread(graph, directIDs, scores, visited, now)
		spreadIDs = spread
		tier = spreadTier
	}

	type ranked struct {
		id    string
		score Score
	}
	all := make([]ranked, 0, len(scores))
	for id, sc := range scores {
		all = append(all, ranked{id, sc})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].score.FinalScore > all[j].score.FinalScore })

	activated := make([]string, 0, ctx.MaxMemories)
	finalScores := make(map[string]Score, len(scores))
	directSet := map[string]bool{}
	for _, id := range directIDs {
		directSet[id] = true
	}
	var direct, spread []string
	for _, r := range all {
		if r.score.FinalScore < ctx.ActivationThreshold {
			continue
		}
		if len(activated) >= ctx.MaxMemories {
			break
		}
		activated = append(activated, r.id)
		finalScores[r.id] = r.score
		if directSet[r.id] {
			direct = append(direct, r.id)
		} else {
			spread = append(spread, r.id)
		}
	}
	_ = spreadIDs

	return Result{
		ActivatedMemories: activated,
		Scores:            finalScores,
		DirectMatches:     direct,
		SpreadMatches:     spread,
		TotalCandidates:   totalCandidates,
		FallbackTier:       tier,
	}
}

func (s *Service) directScore(m *memory.Memory, queryKeywords []string, now int64) Score {
	matchable := matchableTerms(m, s.extractor)
	matched := matchedKeywords(queryKeywords, matchable)
	base := 0.0
	if len(queryKeywords) > 0 {
		base = float64(len(matched)) / float64(len(queryKeywords))
		if base > 1 {
			base = 1
		}
	}
	raw := decay.Calculate(m.UseCount, m.LastUsed, now, m.Strength, s.params)
	temporal := decay.TemporalFactor(raw)
	final := 0.5*base + 0.3*temporal + 0.2*0.0
	if final > 1 {
		final = 1
	}
	return Score{
		MemoryID:        m.ID,
		BaseRelevance:   base,
		TemporalScore:   temporal,
		SpreadingScore:  0,
		FinalScore:      final,
		Source:          SourceDirect,
		MatchedKeywords: matched,
	}
}

func matchableTerms(m *memory.Memory, extractor *nlp.Extractor) map[string]bool {
	terms := map[string]bool{}
	for _, t := range m.Metadata.Tags {
		terms[strings.ToLower(t)] = true
	}
	for _, e := range m.Entities {
		terms[strings.ToLower(e)] = true
	}
	for _, kw := range extractor.Extract(m.Content, 20) {
		terms[kw] = true
	}
	return terms
}

func matchedKeywords(queryKeywords []string, matchable map[string]bool) []string {
	var out []string
	for _, k := range queryKeywords {
		if matchable[k] {
			out = append(out, k)
		}
	}
	return out
}

// spread performs BFS spreading activation from the direct-match set
// up to maxSpreadHops, decaying the parent's final score by hopDecay
// at each hop. It never revisits a node in visited.
func (s *Service) spread(graph *index.Graph, directIDs []string, scores map[string]Score, visited map[string]bool, now int64) (spreadIDs []string, tier Tier) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("spreading activation raised, falling back to keyword_only", map[string]any{"panic": r})
			tier = TierKeywordOnly
			for _, id := range spreadIDs {
				delete(scores, id)
			}
			spreadIDs = nil
		}
	}()
	tier = TierFull

	type queued struct {
		id          string
		hop         int
		sourceScore float64
	}
	var queue []queued
	for _, id := range directIDs {
		queue = append(queue, queued{id: id, hop: 0, sourceScore: scores[id].FinalScore})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.hop >= maxSpreadHops {
			continue
		}
		nextHop := item.hop + 1
		for _, toID := range graph.GetRelatedMemories(item.id) {
			if visited[toID] {
				continue
			}
			visited[toID] = true
			m := s.fetcher.GetMemory(toID)
			if m == nil {
				continue
			}
			spreadingScore := item.sourceScore * hopDecay[nextHop]
			raw := decay.Calculate(m.UseCount, m.LastUsed, now, m.Strength, s.params)
			temporal := decay.TemporalFactor(raw)
			final := 0.5*0.0 + 0.3*temporal + 0.2*spreadingScore
			if final > 1 {
				final = 1
			}
			sc := Score{
				MemoryID:       toID,
				BaseRelevance:  0,
				TemporalScore:  temporal,
				SpreadingScore: spreadingScore,
				FinalScore:     final,
				Source:         hopSource[nextHop],
			}
			scores[toID] = sc
			spreadIDs = append(spreadIDs, toID)
			queue = append(queue, queued{id: toID, hop: nextHop, sourceScore: final})
		}
	}
	return spreadIDs, tier
}

package rank

import (
	"context"
	"fmt"
	"sort"

	"github.com/codescope/codescope/domain/retrieval"
	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/domain/unit"
)

// maxDiversityPenalty caps how hard a crowded (namespace, type) bucket is
// suppressed; diversityStep is the per-repeat increment.
const (
	maxDiversityPenalty = 0.5
	diversityStep       = 0.15
)

// Ranked is a ranker output: the deduplicated candidate with its final
// weighted score, the materialized unit record, and the signals that
// produced the score.
type Ranked struct {
	Candidate retrieval.Candidate
	Unit      unit.ExtractedUnit
	Found     bool
	Signals   Signals
}

// Ranker fuses multi-source candidates and re-scores them. It performs one
// MetadataStore.FindBatch over the surviving identifiers to materialize
// the scoring signals.
type Ranker struct {
	fusion   Fusion
	metadata store.MetadataStore
}

// NewRanker creates a Ranker over the given metadata store.
func NewRanker(metadata store.MetadataStore) Ranker {
	return Ranker{fusion: NewFusion(), metadata: metadata}
}

// Rank merges, scores, and sorts the candidates. The result has unique
// identifiers, sorted by weighted score descending with identifier
// ascending as the tie break.
func (r Ranker) Rank(ctx context.Context, candidates []retrieval.Candidate, classification retrieval.Classification) ([]Ranked, error) {
	fused := r.fusion.Fuse(candidates)
	if len(fused) == 0 {
		return nil, nil
	}

	ids := make([]string, len(fused))
	for i, c := range fused {
		ids[i] = c.Identifier
	}
	records, err := r.metadata.FindBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("materialize signals: %w", err)
	}

	ranked := make([]Ranked, len(fused))
	for i, c := range fused {
		u, found := records[c.Identifier]
		ranked[i] = Ranked{
			Candidate: c,
			Unit:      u,
			Found:     found,
			Signals:   computeSignals(c, u, found, classification),
		}
		ranked[i].Candidate.Score = ranked[i].Signals.Weighted()
	}

	applyDiversity(ranked)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Candidate.Score != ranked[j].Candidate.Score {
			return ranked[i].Candidate.Score > ranked[j].Candidate.Score
		}
		return ranked[i].Candidate.Identifier < ranked[j].Candidate.Identifier
	})
	return ranked, nil
}

// applyDiversity walks candidates in descending pre-penalty score order
// and charges each (namespace, type) bucket a growing penalty, suppressing
// whole-namespace floods without dropping them.
func applyDiversity(ranked []Ranked) {
	order := make([]int, len(ranked))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if ranked[order[a]].Candidate.Score != ranked[order[b]].Candidate.Score {
			return ranked[order[a]].Candidate.Score > ranked[order[b]].Candidate.Score
		}
		return ranked[order[a]].Candidate.Identifier < ranked[order[b]].Candidate.Identifier
	})

	seen := make(map[string]int)
	for _, idx := range order {
		entry := &ranked[idx]
		key := entry.Unit.Namespace + "/" + string(entry.Unit.Type)
		penalty := diversityStep * float64(seen[key])
		if penalty > maxDiversityPenalty {
			penalty = maxDiversityPenalty
		}
		seen[key]++

		entry.Signals.Diversity = 1.0 - penalty
		entry.Candidate.Score = entry.Signals.Weighted()
	}
}

// Package rank merges multi-source candidates via Reciprocal Rank Fusion
// and re-scores them with weighted signals and a diversity penalty.
package rank

import (
	"sort"

	"github.com/codescope/codescope/domain/retrieval"
)

// DefaultRRFK is the standard RRF constant.
const DefaultRRFK = 60.0

// Fusion combines per-source ranked candidate lists using Reciprocal Rank
// Fusion: each identifier's fused score is the sum over sources of
// 1/(k + rank), with 1-based per-source ranks.
type Fusion struct {
	k float64
}

// NewFusion creates a Fusion with the default RRF constant.
func NewFusion() Fusion {
	return Fusion{k: DefaultRRFK}
}

// NewFusionWithK creates a Fusion with a custom RRF constant. Values <= 0
// fall back to the default.
func NewFusionWithK(k float64) Fusion {
	if k <= 0 {
		k = DefaultRRFK
	}
	return Fusion{k: k}
}

// K returns the RRF constant.
func (f Fusion) K() float64 { return f.k }

// Fuse merges a flat candidate list that may contain duplicate identifiers
// across sources. When the list spans at least two distinct sources, every
// identifier is re-scored by RRF over its per-source ranks; with a single
// source the candidates pass through with their original scores. The
// output has one candidate per identifier, tagged with its strongest
// original source, metadata merged (last-write-wins scalars, concatenated
// lists), sorted by score descending with identifier ascending as the tie
// break.
func (f Fusion) Fuse(candidates []retrieval.Candidate) []retrieval.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	bySource := make(map[retrieval.Source][]retrieval.Candidate)
	var sourceOrder []retrieval.Source
	for _, c := range candidates {
		if _, seen := bySource[c.Source]; !seen {
			sourceOrder = append(sourceOrder, c.Source)
		}
		bySource[c.Source] = append(bySource[c.Source], c)
	}

	if len(bySource) < 2 {
		return dedupeSingleSource(candidates)
	}

	type merged struct {
		candidate retrieval.Candidate
		fused     float64
		bestScore float64
	}
	byID := make(map[string]*merged)
	var order []string

	for _, source := range sourceOrder {
		list := bySource[source]
		// Per-source rank order: score descending, identifier ascending.
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Score != list[j].Score {
				return list[i].Score > list[j].Score
			}
			return list[i].Identifier < list[j].Identifier
		})

		for rank, c := range list {
			rrf := 1.0 / (f.k + float64(rank+1))
			entry, seen := byID[c.Identifier]
			if !seen {
				entry = &merged{candidate: c, bestScore: c.Score}
				byID[c.Identifier] = entry
				order = append(order, c.Identifier)
			} else {
				entry.candidate.Metadata = mergeMetadata(entry.candidate.Metadata, c.Metadata)
				if c.Score > entry.bestScore {
					entry.bestScore = c.Score
					entry.candidate.Source = c.Source
				}
			}
			entry.fused += rrf
		}
	}

	out := make([]retrieval.Candidate, 0, len(order))
	for _, id := range order {
		entry := byID[id]
		entry.candidate.Score = entry.fused
		out = append(out, entry.candidate)
	}
	sortCandidates(out)
	return out
}

// dedupeSingleSource collapses duplicate identifiers within one source,
// keeping the highest-scored occurrence; scores pass through unchanged.
func dedupeSingleSource(candidates []retrieval.Candidate) []retrieval.Candidate {
	best := make(map[string]retrieval.Candidate, len(candidates))
	var order []string
	for _, c := range candidates {
		prev, seen := best[c.Identifier]
		if !seen {
			order = append(order, c.Identifier)
			best[c.Identifier] = c
			continue
		}
		prev.Metadata = mergeMetadata(prev.Metadata, c.Metadata)
		if c.Score > prev.Score {
			prev.Score = c.Score
		}
		best[c.Identifier] = prev
	}
	out := make([]retrieval.Candidate, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	sortCandidates(out)
	return out
}

// mergeMetadata applies last-write-wins for scalar values and
// concatenation for list values.
func mergeMetadata(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if existing, ok := dst[k]; ok {
			if existingList, okA := existing.([]any); okA {
				if newList, okB := v.([]any); okB {
					dst[k] = append(existingList, newList...)
					continue
				}
			}
		}
		dst[k] = v
	}
	return dst
}

func sortCandidates(list []retrieval.Candidate) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].Identifier < list[j].Identifier
	})
}

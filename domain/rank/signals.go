package rank

import (
	"github.com/codescope/codescope/domain/retrieval"
	"github.com/codescope/codescope/domain/unit"
)

// Signal weights; they sum to 1.0.
const (
	WeightSemantic   = 0.40
	WeightKeyword    = 0.10
	WeightRecency    = 0.10
	WeightImportance = 0.15
	WeightTypeMatch  = 0.15
	WeightDiversity  = 0.10
)

// keywordBase is the keyword signal for candidates that did not come from
// keyword search.
const keywordBase = 0.3

// Signals holds the six per-candidate scoring signals, each in [0,1].
type Signals struct {
	Semantic   float64 `json:"semantic"`
	Keyword    float64 `json:"keyword"`
	Recency    float64 `json:"recency"`
	Importance float64 `json:"importance"`
	TypeMatch  float64 `json:"type_match"`
	Diversity  float64 `json:"diversity"`
}

// Weighted returns the weighted sum of the signals.
func (s Signals) Weighted() float64 {
	return WeightSemantic*s.Semantic +
		WeightKeyword*s.Keyword +
		WeightRecency*s.Recency +
		WeightImportance*s.Importance +
		WeightTypeMatch*s.TypeMatch +
		WeightDiversity*s.Diversity
}

// computeSignals derives the order-independent signals for one candidate.
// Diversity starts at 1.0 and is adjusted by the ranker's diversity pass.
func computeSignals(c retrieval.Candidate, u unit.ExtractedUnit, found bool, classification retrieval.Classification) Signals {
	s := Signals{
		Semantic:  clamp01(c.Score),
		Keyword:   keywordBase,
		Diversity: 1.0,
	}
	if c.Source == retrieval.SourceKeyword {
		s.Keyword = s.Semantic
	}

	s.Recency = tierScore(metadataGitString(u.Metadata, "change_frequency"), map[string]float64{
		"hot":     1.0,
		"warm":    0.7,
		"dormant": 0.3,
	}, 0.5)
	s.Importance = tierScore(metadataString(u.Metadata, "importance"), map[string]float64{
		"high":   1.0,
		"medium": 0.7,
		"low":    0.5,
	}, 0.3)

	switch {
	case classification.TargetType == "":
		s.TypeMatch = 0.5
	case found && classification.TargetType == u.Type:
		s.TypeMatch = 1.0
	default:
		s.TypeMatch = 0.0
	}
	return s
}

// tierScore maps a tag to its tier value; unknown tags take the fallback.
func tierScore(tag string, tiers map[string]float64, fallback float64) float64 {
	if v, ok := tiers[tag]; ok {
		return v
	}
	return fallback
}

func metadataString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}

// metadataGitString reads metadata.git.<key>.
func metadataGitString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	git, ok := metadata["git"].(map[string]any)
	if !ok {
		return ""
	}
	if v, ok := git[key].(string); ok {
		return v
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package retrieval

// Source tags which search strategy produced a candidate.
type Source string

// Source values.
const (
	SourceVector         Source = "vector"
	SourceKeyword        Source = "keyword"
	SourceGraph          Source = "graph"
	SourceGraphExpansion Source = "graph_expansion"
	SourceDirect         Source = "direct"
)

// Candidate is a unit proposed by a search strategy, carrying a provisional
// score in [0,1] and the source that proposed it. The same identifier may
// appear several times across sources before rank fusion.
type Candidate struct {
	Identifier string         `json:"identifier"`
	Score      float64        `json:"score"`
	Source     Source         `json:"source"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Strategy is the pipeline a classification selects.
type Strategy string

// Strategy values.
const (
	StrategyDirect  Strategy = "direct"
	StrategyKeyword Strategy = "keyword"
	StrategyVector  Strategy = "vector"
	StrategyGraph   Strategy = "graph"
	StrategyHybrid  Strategy = "hybrid"
)

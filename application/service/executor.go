// Package service provides application layer services that orchestrate the
// retrieval pipeline and the operator tool surface.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/codescope/codescope/domain/retrieval"
	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/domain/unit"
)

// Strategy execution limits, fixed by the selection table.
const (
	defaultCandidateLimit = 20
	hybridVectorLimit     = 15
	hybridKeywordLimit    = 10
	hybridGraphSeeds      = 3
	expansionScore        = 0.75
)

// Embedder is the provider contract the executor needs for vector search.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// ExecutionResult is what one strategy run produced.
type ExecutionResult struct {
	Candidates []retrieval.Candidate
	Strategy   retrieval.Strategy
	Query      string
}

// SearchExecutor selects and runs one of the five search strategies for a
// classified query.
type SearchExecutor struct {
	vectors  store.VectorStore
	metadata store.MetadataStore
	graph    store.GraphStore
	embedder Embedder
	limit    int
}

// ExecutorOption is a functional option for NewSearchExecutor.
type ExecutorOption func(*SearchExecutor)

// WithCandidateLimit sets the per-strategy candidate limit.
func WithCandidateLimit(n int) ExecutorOption {
	return func(e *SearchExecutor) {
		if n > 0 {
			e.limit = n
		}
	}
}

// NewSearchExecutor creates a SearchExecutor over the stores.
func NewSearchExecutor(vectors store.VectorStore, metadata store.MetadataStore, graph store.GraphStore, embedder Embedder, opts ...ExecutorOption) *SearchExecutor {
	e := &SearchExecutor{
		vectors:  vectors,
		metadata: metadata,
		graph:    graph,
		embedder: embedder,
		limit:    defaultCandidateLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SelectStrategy maps a classification to a strategy. Pinpoint lookups go
// direct; broad scopes force the hybrid union; otherwise intent decides.
func SelectStrategy(c retrieval.Classification) retrieval.Strategy {
	if c.Intent == retrieval.IntentLocate && c.Scope == retrieval.ScopePinpoint {
		return retrieval.StrategyDirect
	}
	if c.Scope == retrieval.ScopeComprehensive || c.Scope == retrieval.ScopeExploratory {
		return retrieval.StrategyHybrid
	}
	switch c.Intent {
	case retrieval.IntentTrace:
		return retrieval.StrategyGraph
	case retrieval.IntentUnderstand, retrieval.IntentDebug, retrieval.IntentImplement, retrieval.IntentCompare:
		return retrieval.StrategyVector
	default:
		return retrieval.StrategyKeyword
	}
}

// Execute runs the selected strategy and returns its candidates, untrimmed
// beyond the per-strategy limits.
func (e *SearchExecutor) Execute(ctx context.Context, query string, c retrieval.Classification) (ExecutionResult, error) {
	strategy := SelectStrategy(c)
	candidates, err := e.ExecuteStrategy(ctx, strategy, query, c)
	if err != nil {
		return ExecutionResult{}, err
	}
	return ExecutionResult{Candidates: candidates, Strategy: strategy, Query: query}, nil
}

// ExecuteStrategy runs one named strategy. The Retriever calls this
// directly when degrading to a lower tier.
func (e *SearchExecutor) ExecuteStrategy(ctx context.Context, strategy retrieval.Strategy, query string, c retrieval.Classification) ([]retrieval.Candidate, error) {
	switch strategy {
	case retrieval.StrategyDirect:
		return e.direct(ctx, query, c)
	case retrieval.StrategyKeyword:
		return e.Keyword(ctx, query, c, e.limit)
	case retrieval.StrategyVector:
		return e.Vector(ctx, query, c, e.limit)
	case retrieval.StrategyGraph:
		return e.Graph(ctx, c)
	case retrieval.StrategyHybrid:
		return e.hybrid(ctx, query, c)
	default:
		return nil, fmt.Errorf("unknown strategy: %s", strategy)
	}
}

// direct resolves a single identifier from the keywords; when nothing
// matches exactly it falls through to the keyword strategy.
func (e *SearchExecutor) direct(ctx context.Context, query string, c retrieval.Classification) ([]retrieval.Candidate, error) {
	if u, ok := e.resolveIdentifier(ctx, c.Keywords); ok {
		return []retrieval.Candidate{{
			Identifier: u.Identifier,
			Score:      1.0,
			Source:     retrieval.SourceDirect,
		}}, nil
	}
	return e.Keyword(ctx, query, c, e.limit)
}

// Keyword searches the metadata store across identifier, file path, source
// and metadata, filtered by the classified target type. Scores are
// rank-derived: the store orders deterministically but carries no
// similarity.
func (e *SearchExecutor) Keyword(ctx context.Context, query string, c retrieval.Classification, limit int) ([]retrieval.Candidate, error) {
	fields := []store.SearchField{
		store.FieldIdentifier, store.FieldFilePath,
		store.FieldSourceCode, store.FieldMetadata,
	}

	var units []unit.ExtractedUnit
	seen := make(map[string]bool)
	terms := c.Keywords
	if len(terms) == 0 {
		terms = []string{query}
	}
	for _, term := range terms {
		matches, err := e.metadata.Search(ctx, term, fields, limit)
		if err != nil {
			return nil, fmt.Errorf("keyword search: %w", err)
		}
		for _, u := range matches {
			if seen[u.Identifier] {
				continue
			}
			seen[u.Identifier] = true
			units = append(units, u)
		}
		if len(units) >= limit {
			units = units[:limit]
			break
		}
	}

	var candidates []retrieval.Candidate
	rank := 0
	for _, u := range units {
		if c.TargetType != "" && u.Type != c.TargetType {
			continue
		}
		candidates = append(candidates, retrieval.Candidate{
			Identifier: u.Identifier,
			Score:      rankScore(rank),
			Source:     retrieval.SourceKeyword,
		})
		rank++
	}
	return candidates, nil
}

// Vector embeds the query and searches the vector store. Chunk hits
// resolve to their parent unit.
func (e *SearchExecutor) Vector(ctx context.Context, query string, c retrieval.Classification, limit int) ([]retrieval.Candidate, error) {
	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var filters map[string]any
	if c.TargetType != "" {
		filters = map[string]any{"type": string(c.TargetType)}
	}
	hits, err := e.vectors.Search(ctx, vectors[0], limit, filters)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	var candidates []retrieval.Candidate
	seen := make(map[string]bool)
	for _, hit := range hits {
		id := parentIdentifier(hit)
		if seen[id] {
			continue
		}
		seen[id] = true
		candidates = append(candidates, retrieval.Candidate{
			Identifier: id,
			Score:      hit.Score,
			Source:     retrieval.SourceVector,
			Metadata:   hit.Metadata,
		})
	}
	return candidates, nil
}

// Graph resolves seed identifiers from the keywords and expands one hop in
// both directions. Seeds score 1.0; expansions 0.75 under the
// graph_expansion source so the assembler files them as supporting
// context.
func (e *SearchExecutor) Graph(ctx context.Context, c retrieval.Classification) ([]retrieval.Candidate, error) {
	seeds := e.resolveSeeds(ctx, c.Keywords)
	var candidates []retrieval.Candidate
	seen := make(map[string]bool)

	for _, seed := range seeds {
		if !seen[seed] {
			seen[seed] = true
			candidates = append(candidates, retrieval.Candidate{
				Identifier: seed,
				Score:      1.0,
				Source:     retrieval.SourceGraph,
			})
		}
		expanded, err := e.Expand(ctx, seed)
		if err != nil {
			return nil, err
		}
		for _, c := range expanded {
			if !seen[c.Identifier] {
				seen[c.Identifier] = true
				candidates = append(candidates, c)
			}
		}
	}
	return candidates, nil
}

// Expand returns one hop of dependencies and dependents of id as
// graph-expansion candidates.
func (e *SearchExecutor) Expand(ctx context.Context, id string) ([]retrieval.Candidate, error) {
	deps, err := e.graph.DependenciesOf(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("dependencies of %s: %w", id, err)
	}
	dependents, err := e.graph.DependentsOf(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("dependents of %s: %w", id, err)
	}

	var out []retrieval.Candidate
	for _, edge := range append(deps, dependents...) {
		out = append(out, retrieval.Candidate{
			Identifier: edge.Target,
			Score:      expansionScore,
			Source:     retrieval.SourceGraphExpansion,
			Metadata:   map[string]any{"via": string(edge.Via), "relationship": edge.Type},
		})
	}
	return out, nil
}

// hybrid unions vector, keyword, and graph expansion from the top vector
// hits. Duplicate identifiers across sources survive; the ranker fuses
// them.
func (e *SearchExecutor) hybrid(ctx context.Context, query string, c retrieval.Classification) ([]retrieval.Candidate, error) {
	vector, err := e.Vector(ctx, query, c, hybridVectorLimit)
	if err != nil {
		return nil, err
	}
	keyword, err := e.Keyword(ctx, query, c, hybridKeywordLimit)
	if err != nil {
		return nil, err
	}

	candidates := append(vector, keyword...)
	top := len(vector)
	if top > hybridGraphSeeds {
		top = hybridGraphSeeds
	}
	for _, seed := range vector[:top] {
		expanded, err := e.Expand(ctx, seed.Identifier)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, expanded...)
	}
	return candidates, nil
}

// Direct looks up ids in the metadata store, the tier-4 fallback when
// every search backend is down. Classifier keywords arrive lowercased
// while identifiers are CamelCase, so a missed exact find retries as a
// case-insensitive identifier match.
func (e *SearchExecutor) Direct(ctx context.Context, ids []string) []retrieval.Candidate {
	var candidates []retrieval.Candidate
	seen := make(map[string]bool)
	add := func(u unit.ExtractedUnit) {
		if seen[u.Identifier] {
			return
		}
		seen[u.Identifier] = true
		candidates = append(candidates, retrieval.Candidate{
			Identifier: u.Identifier,
			Score:      1.0,
			Source:     retrieval.SourceDirect,
		})
	}

	for _, id := range ids {
		if u, err := e.metadata.Find(ctx, id); err == nil {
			add(u)
			continue
		}
		if u, ok := e.resolveIdentifier(ctx, []string{id}); ok {
			add(u)
		}
	}
	return candidates
}

// resolveIdentifier finds a unit whose identifier case-insensitively
// equals one of the keywords.
func (e *SearchExecutor) resolveIdentifier(ctx context.Context, keywords []string) (unit.ExtractedUnit, bool) {
	for _, keyword := range keywords {
		matches, err := e.metadata.Search(ctx, keyword, []store.SearchField{store.FieldIdentifier}, 5)
		if err != nil {
			return unit.ExtractedUnit{}, false
		}
		for _, u := range matches {
			if strings.EqualFold(u.Identifier, keyword) {
				return u, true
			}
		}
	}
	return unit.ExtractedUnit{}, false
}

// resolveSeeds maps keywords to known identifiers: exact matches first,
// then identifier-substring matches.
func (e *SearchExecutor) resolveSeeds(ctx context.Context, keywords []string) []string {
	var seeds []string
	seen := make(map[string]bool)
	for _, keyword := range keywords {
		matches, err := e.metadata.Search(ctx, keyword, []store.SearchField{store.FieldIdentifier}, 3)
		if err != nil {
			continue
		}
		for _, u := range matches {
			if !seen[u.Identifier] {
				seen[u.Identifier] = true
				seeds = append(seeds, u.Identifier)
			}
		}
	}
	return seeds
}

// rankScore converts a 0-based result rank into a descending score.
func rankScore(rank int) float64 {
	score := 1.0 - 0.04*float64(rank)
	if score < 0.05 {
		score = 0.05
	}
	return score
}

// parentIdentifier maps a chunk hit back to its unit.
func parentIdentifier(hit store.VectorHit) string {
	if id, _, found := strings.Cut(hit.ID, "#chunk:"); found {
		return id
	}
	return hit.ID
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/codescope/codescope/domain/assembly"
	"github.com/codescope/codescope/domain/rank"
	"github.com/codescope/codescope/domain/retrieval"
	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/domain/unit"
	"github.com/codescope/codescope/internal/log"
)

// RetrievalResult is the full outcome of one retrieval: the assembled
// context, its source attribution, and the diagnostic trace.
type RetrievalResult struct {
	Query             string                    `json:"query"`
	Classification    retrieval.Classification  `json:"classification"`
	Strategy          retrieval.Strategy        `json:"strategy"`
	Context           assembly.AssembledContext `json:"context"`
	Trace             retrieval.Snapshot        `json:"trace"`
	Degraded          bool                      `json:"degraded"`
	DegradationReason string                    `json:"degradation_reason,omitempty"`
}

// Retriever is the read-side facade: classify, search, rank, assemble.
// It is reentrant; concurrent callers share the store handles.
type Retriever struct {
	classifier retrieval.Classifier
	executor   *SearchExecutor
	ranker     rank.Ranker
	budget     int
	indexDir   string
	logger     *log.Logger
}

// RetrieverOption is a functional option for NewRetriever.
type RetrieverOption func(*Retriever)

// WithBudget sets the default token budget.
func WithBudget(n int) RetrieverOption {
	return func(r *Retriever) {
		if n > 0 {
			r.budget = n
		}
	}
}

// WithIndexDir points the retriever at the manifest used for structural
// context.
func WithIndexDir(dir string) RetrieverOption {
	return func(r *Retriever) { r.indexDir = dir }
}

// WithRetrieverLogger sets the logger.
func WithRetrieverLogger(logger *log.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = logger }
}

// NewRetriever creates a Retriever.
func NewRetriever(executor *SearchExecutor, ranker rank.Ranker, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		classifier: retrieval.NewClassifier(),
		executor:   executor,
		ranker:     ranker,
		budget:     assembly.DefaultBudget,
		logger:     log.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve runs the full pipeline for query. budget <= 0 uses the
// configured default. Backend failures degrade tier by tier instead of
// failing the call; only a fully dead store stack returns an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, budget int) (RetrievalResult, error) {
	if budget <= 0 {
		budget = r.budget
	}
	trace := retrieval.NewTrace()

	classification := r.classifier.Classify(query)
	trace.Record("classify", retrieval.StageOK, nil, map[string]any{
		"intent": string(classification.Intent),
		"scope":  string(classification.Scope),
	})

	strategy := SelectStrategy(classification)
	candidates, strategy, err := r.executeWithDegradation(ctx, query, classification, strategy, trace)
	if err != nil {
		return RetrievalResult{}, err
	}
	trace.Record("search", stageStatus(trace), map[string]int{"candidates": len(candidates)}, map[string]any{
		"strategy": string(strategy),
	})

	ranked, err := r.ranker.Rank(ctx, candidates, classification)
	if err != nil {
		// Ranking needs the metadata store; if it just died, fall back to
		// the raw candidate order without signals.
		trace.MarkDegraded("rank: " + err.Error())
		ranked = r.rawRanked(ctx, candidates)
	}
	trace.Record("rank", stageStatus(trace), map[string]int{"ranked": len(ranked)}, similarityRange(ranked))

	inputs := make([]assembly.Input, 0, len(ranked))
	for _, entry := range ranked {
		if !entry.Found {
			continue
		}
		inputs = append(inputs, assembly.Input{Candidate: entry.Candidate, Unit: entry.Unit})
	}

	assembled := assembly.NewAssembler(budget).Assemble(inputs, classification, r.structural())
	trace.Record("assemble", retrieval.StageOK, map[string]int{
		"sources": len(assembled.Sources),
		"tokens":  assembled.TokensUsed,
	}, nil)

	return RetrievalResult{
		Query:             query,
		Classification:    classification,
		Strategy:          strategy,
		Context:           assembled,
		Trace:             trace.Snapshot(),
		Degraded:          trace.Degraded(),
		DegradationReason: trace.Reason(),
	}, nil
}

// executeWithDegradation runs the chosen strategy and walks down the tier
// ladder on backend failure: vector loss drops to keyword+graph, metadata
// loss to graph only, graph loss to direct lookups.
func (r *Retriever) executeWithDegradation(ctx context.Context, query string, c retrieval.Classification, strategy retrieval.Strategy, trace *retrieval.Trace) ([]retrieval.Candidate, retrieval.Strategy, error) {
	candidates, err := r.executor.ExecuteStrategy(ctx, strategy, query, c)
	if err == nil {
		return candidates, strategy, nil
	}
	r.logger.Warn("search strategy failed", "strategy", string(strategy), "error", err)

	// Tier 2: no vectors. Keyword and graph still work.
	if isVectorFailure(err) {
		trace.MarkDegraded("vector backend unavailable: " + err.Error())
		keyword, kerr := r.executor.Keyword(ctx, query, c, defaultCandidateLimit)
		graph, gerr := r.executor.Graph(ctx, c)
		if kerr == nil && gerr == nil {
			return append(keyword, graph...), retrieval.StrategyKeyword, nil
		}
		if kerr != nil {
			err = kerr
		} else {
			err = gerr
		}
	}

	// Tier 3: metadata gone too. Graph only.
	if backend, ok := store.BackendOf(err); ok && backend == store.BackendMetadata {
		trace.MarkDegraded("metadata backend unavailable: " + err.Error())
		graph, gerr := r.executor.Graph(ctx, c)
		if gerr == nil {
			return graph, retrieval.StrategyGraph, nil
		}
		err = gerr
	}

	// Tier 4: graph gone. Direct finds of keyword-derived ids.
	if backend, ok := store.BackendOf(err); ok && backend == store.BackendGraph {
		trace.MarkDegraded("graph backend unavailable: " + err.Error())
		return r.executor.Direct(ctx, c.Keywords), retrieval.StrategyDirect, nil
	}

	return nil, strategy, fmt.Errorf("search failed: %w", err)
}

// isVectorFailure covers both the vector store and the embedding path in
// front of it.
func isVectorFailure(err error) bool {
	if backend, ok := store.BackendOf(err); ok {
		return backend == store.BackendVector
	}
	// Embedding failures (provider errors, open circuit) surface before
	// the vector store is reached; they cost us the same tier.
	return strings.Contains(err.Error(), "embed")
}

// structural renders the overview line from the manifest, e.g.
// "Codebase: 993 units (480 models, 213 controllers, ...)".
func (r *Retriever) structural() string {
	if r.indexDir == "" {
		return ""
	}
	manifest, err := unit.ReadManifest(r.indexDir)
	if err != nil {
		return ""
	}

	type typeCount struct {
		name  string
		count int
	}
	counts := make([]typeCount, 0, len(manifest.Counts))
	for name, count := range manifest.Counts {
		counts = append(counts, typeCount{name: name, count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].name < counts[j].name
	})

	parts := make([]string, len(counts))
	for i, tc := range counts {
		parts[i] = fmt.Sprintf("%d %ss", tc.count, tc.name)
	}
	return fmt.Sprintf("Codebase: %d units (%s)", manifest.TotalUnits, strings.Join(parts, ", "))
}

// rawRanked wraps candidates in search order when the ranker fails. It
// still tries to materialize the units so a successful search assembles a
// context even without signals; only candidates whose unit cannot be
// fetched at all are left unusable.
func (r *Retriever) rawRanked(ctx context.Context, candidates []retrieval.Candidate) []rank.Ranked {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Identifier
	}
	units, err := r.executor.metadata.FindBatch(ctx, ids)
	if err != nil {
		units = nil
	}

	out := make([]rank.Ranked, len(candidates))
	for i, c := range candidates {
		u, ok := units[c.Identifier]
		out[i] = rank.Ranked{Candidate: c, Unit: u, Found: ok}
	}
	return out
}

func stageStatus(trace *retrieval.Trace) retrieval.StageStatus {
	if trace.Degraded() {
		return retrieval.StageDegraded
	}
	return retrieval.StageOK
}

// similarityRange reports the min and max post-rank scores for the trace.
func similarityRange(ranked []rank.Ranked) map[string]any {
	if len(ranked) == 0 {
		return nil
	}
	minScore, maxScore := ranked[0].Candidate.Score, ranked[0].Candidate.Score
	for _, entry := range ranked[1:] {
		if entry.Candidate.Score < minScore {
			minScore = entry.Candidate.Score
		}
		if entry.Candidate.Score > maxScore {
			maxScore = entry.Candidate.Score
		}
	}
	return map[string]any{"min_score": minScore, "max_score": maxScore}
}

package service

import (
	"context"
	"errors"
	"sort"

	"github.com/codescope/codescope/domain/feedback"
	"github.com/codescope/codescope/domain/retrieval"
	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/domain/unit"
	"github.com/codescope/codescope/infrastructure/pipeline"
	"github.com/codescope/codescope/infrastructure/toolserver"
	"github.com/codescope/codescope/internal/log"
)

// pagerankDefaultLimit bounds the pagerank tool's result list.
const pagerankDefaultLimit = 10

// ToolService registers the read-side tool surface over the retrieval
// pipeline and the pipeline-control collaborators.
type ToolService struct {
	retriever *Retriever
	executor  *SearchExecutor
	metadata  store.MetadataStore
	graph     store.GraphStore
	formatter Formatter
	renderer  *Renderer
	indexDir  string

	// Optional collaborators; their tools register only when present.
	guard       *pipeline.Guard
	indexer     *pipeline.IncrementalIndexer
	reporter    *pipeline.StatusReporter
	invalidator *pipeline.Invalidator
	feedback    *feedback.Store
	gaps        feedback.GapDetector

	logger *log.Logger
}

// ToolServiceOption is a functional option for NewToolService.
type ToolServiceOption func(*ToolService)

// WithPipelineControl enables the pipeline_* tools.
func WithPipelineControl(guard *pipeline.Guard, indexer *pipeline.IncrementalIndexer, reporter *pipeline.StatusReporter) ToolServiceOption {
	return func(s *ToolService) {
		s.guard = guard
		s.indexer = indexer
		s.reporter = reporter
		s.invalidator = pipeline.NewInvalidator()
	}
}

// WithFeedback enables the retrieval_rate, report_gap and retrieval_suggest
// tools.
func WithFeedback(store *feedback.Store, gaps feedback.GapDetector) ToolServiceOption {
	return func(s *ToolService) {
		s.feedback = store
		s.gaps = gaps
	}
}

// WithToolLogger sets the logger.
func WithToolLogger(logger *log.Logger) ToolServiceOption {
	return func(s *ToolService) { s.logger = logger }
}

// NewToolService creates a ToolService.
func NewToolService(retriever *Retriever, executor *SearchExecutor, metadata store.MetadataStore, graph store.GraphStore, formatter Formatter, indexDir string, opts ...ToolServiceOption) *ToolService {
	s := &ToolService{
		retriever: retriever,
		executor:  executor,
		metadata:  metadata,
		graph:     graph,
		formatter: formatter,
		renderer:  NewRenderer(),
		indexDir:  indexDir,
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds every applicable tool to the registry.
func (s *ToolService) Register(registry *toolserver.Registry) {
	s.registerCore(registry)
	if s.guard != nil {
		s.registerPipeline(registry)
	}
	if s.feedback != nil {
		s.registerFeedback(registry)
	}
}

func (s *ToolService) registerCore(registry *toolserver.Registry) {
	identifierProp := toolserver.Property{Type: "string", Description: "Unit identifier, e.g. User or Admin::AuditLog"}

	registry.Register(toolserver.Tool{
		Name:        "lookup",
		Description: "Fetch one unit by identifier",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{"identifier": identifierProp},
			Required:   []string{"identifier"},
		},
		Handler: s.handleLookup,
	})

	registry.Register(toolserver.Tool{
		Name:        "search",
		Description: "Keyword search across the index",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"query": {Type: "string"},
				"type":  {Type: "string", Description: "Restrict to one unit type"},
				"limit": {Type: "integer"},
			},
			Required: []string{"query"},
		},
		Handler: s.handleSearch,
	})

	registry.Register(toolserver.Tool{
		Name:        "dependencies",
		Description: "Forward dependency edges of a unit",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{"identifier": identifierProp},
			Required:   []string{"identifier"},
		},
		Handler: s.edgeHandler("dependencies", s.graph.DependenciesOf),
	})

	registry.Register(toolserver.Tool{
		Name:        "dependents",
		Description: "Reverse dependency edges of a unit",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{"identifier": identifierProp},
			Required:   []string{"identifier"},
		},
		Handler: s.edgeHandler("dependents", s.graph.DependentsOf),
	})

	registry.Register(toolserver.Tool{
		Name:        "structure",
		Description: "Unit counts by type and extraction provenance",
		Schema:      toolserver.Schema{},
		Handler:     s.handleStructure,
	})

	registry.Register(toolserver.Tool{
		Name:        "graph_analysis",
		Description: "Connectivity summary for one unit or the whole graph",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{"identifier": identifierProp},
		},
		Handler: s.handleGraphAnalysis,
	})

	registry.Register(toolserver.Tool{
		Name:        "pagerank",
		Description: "Most central units by PageRank",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"limit": {Type: "integer"},
			},
		},
		Handler: s.handlePageRank,
	})

	registry.Register(toolserver.Tool{
		Name:        "framework",
		Description: "Search bundled framework sources",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"query": {Type: "string"},
				"limit": {Type: "integer"},
			},
			Required: []string{"query"},
		},
		Handler: s.handleFramework,
	})

	registry.Register(toolserver.Tool{
		Name:        "recent_changes",
		Description: "Summary of the last extraction diff",
		Schema:      toolserver.Schema{},
		Handler:     s.handleRecentChanges,
	})

	registry.Register(toolserver.Tool{
		Name:        "reload",
		Description: "Re-read the manifest and report index freshness",
		Schema:      toolserver.Schema{},
		Handler:     s.handleReload,
	})

	registry.Register(toolserver.Tool{
		Name:        "codebase_retrieve",
		Description: "Assemble token-budgeted context for a query",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"query":  {Type: "string"},
				"budget": {Type: "integer", Description: "Token budget (default 8000)"},
			},
			Required: []string{"query"},
		},
		Handler: s.handleRetrieve,
	})

	registry.Register(toolserver.Tool{
		Name:        "trace_flow",
		Description: "Run a retrieval and return only its diagnostic trace",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"query": {Type: "string"},
			},
			Required: []string{"query"},
		},
		Handler: s.handleTraceFlow,
	})

	registry.Register(toolserver.Tool{
		Name:        "retrieval_explain",
		Description: "Classification and strategy selection for a query, without running it",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"query": {Type: "string"},
			},
			Required: []string{"query"},
		},
		Handler: s.handleExplain,
	})
}

func (s *ToolService) registerPipeline(registry *toolserver.Registry) {
	registry.Register(toolserver.Tool{
		Name:        "pipeline_status",
		Description: "Index freshness and store health",
		Schema:      toolserver.Schema{},
		Handler: func(ctx context.Context, _ map[string]any) (any, error) {
			return s.reporter.Report(ctx), nil
		},
	})

	registry.Register(toolserver.Tool{
		Name:        "pipeline_extract",
		Description: "Recompute the change manifest from the index directory",
		Schema:      toolserver.Schema{},
		Handler:     s.guarded(pipeline.KindExtraction, s.runExtraction),
	})

	registry.Register(toolserver.Tool{
		Name:        "pipeline_embed",
		Description: "Run the incremental indexer over the change manifest",
		Schema:      toolserver.Schema{},
		Handler:     s.guarded(pipeline.KindEmbedding, s.runEmbedding),
	})

	registry.Register(toolserver.Tool{
		Name:        "pipeline_diagnose",
		Description: "Cross-check disk, metadata and vector stores",
		Schema:      toolserver.Schema{},
		Handler: func(ctx context.Context, _ map[string]any) (any, error) {
			return s.reporter.Diagnose(ctx)
		},
	})

	registry.Register(toolserver.Tool{
		Name:        "pipeline_repair",
		Description: "Remove orphan vectors and restore missing units, then re-diagnose",
		Schema:      toolserver.Schema{},
		Handler: func(ctx context.Context, _ map[string]any) (any, error) {
			return s.reporter.Repair(ctx)
		},
	})
}

func (s *ToolService) registerFeedback(registry *toolserver.Registry) {
	registry.Register(toolserver.Tool{
		Name:        "retrieval_rate",
		Description: "Rate the usefulness of a retrieval, 1 to 5",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"query":   {Type: "string"},
				"score":   {Type: "integer", Description: "1 (useless) to 5 (exactly right)"},
				"comment": {Type: "string"},
			},
			Required: []string{"query", "score"},
		},
		Handler: s.handleRate,
	})

	registry.Register(toolserver.Tool{
		Name:        "report_gap",
		Description: "Report a unit a retrieval should have included",
		Schema: toolserver.Schema{
			Properties: map[string]toolserver.Property{
				"query":        {Type: "string"},
				"missing_unit": {Type: "string"},
				"unit_type":    {Type: "string"},
			},
			Required: []string{"query", "missing_unit"},
		},
		Handler: s.handleReportGap,
	})

	registry.Register(toolserver.Tool{
		Name:        "retrieval_suggest",
		Description: "Recurring retrieval problems mined from the feedback log",
		Schema:      toolserver.Schema{},
		Handler:     s.handleSuggest,
	})
}

func (s *ToolService) handleLookup(ctx context.Context, params map[string]any) (any, error) {
	identifier, _ := params["identifier"].(string)
	u, err := s.metadata.Find(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, toolserver.Errorf(toolserver.KindValidation, "unknown unit: %s", identifier)
		}
		return nil, err
	}
	return map[string]any{
		"unit":     u,
		"rendered": s.renderer.Unit(u),
	}, nil
}

func (s *ToolService) handleSearch(ctx context.Context, params map[string]any) (any, error) {
	query, _ := params["query"].(string)
	limit := intParam(params, "limit", defaultCandidateLimit)

	classification := retrieval.Classification{Keywords: []string{query}}
	if t, ok := params["type"].(string); ok && t != "" {
		if !unit.Type(t).IsValid() {
			return nil, toolserver.Errorf(toolserver.KindValidation, "unknown unit type: %s", t)
		}
		classification.TargetType = unit.Type(t)
	}

	candidates, err := s.executor.Keyword(ctx, query, classification, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Identifier
	}
	units, err := s.metadata.FindBatch(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		entry := SearchResult{Identifier: c.Identifier, Score: c.Score}
		if u, ok := units[c.Identifier]; ok {
			entry.Type = string(u.Type)
			entry.FilePath = u.FilePath
		}
		results = append(results, entry)
	}
	return map[string]any{
		"query":    query,
		"results":  results,
		"rendered": s.renderer.SearchResults(query, results),
	}, nil
}

func (s *ToolService) edgeHandler(direction string, fetch func(context.Context, string) ([]unit.Dependency, error)) toolserver.Handler {
	return func(ctx context.Context, params map[string]any) (any, error) {
		identifier, _ := params["identifier"].(string)
		edges, err := fetch(ctx, identifier)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"identifier": identifier,
			direction:    edges,
			"count":      len(edges),
			"rendered":   s.renderer.Edges(identifier, direction, edges),
		}, nil
	}
}

func (s *ToolService) handleStructure(ctx context.Context, _ map[string]any) (any, error) {
	manifest, err := unit.ReadManifest(s.indexDir)
	if err != nil {
		return nil, toolserver.Errorf(toolserver.KindExecution, "no manifest: %v", err)
	}
	return map[string]any{
		"total_units":    manifest.TotalUnits,
		"counts_by_type": manifest.Counts,
		"git_sha":        manifest.GitSHA,
		"git_branch":     manifest.GitBranch,
		"extracted_at":   manifest.ExtractedAt,
	}, nil
}

func (s *ToolService) handleGraphAnalysis(ctx context.Context, params map[string]any) (any, error) {
	if identifier, ok := params["identifier"].(string); ok && identifier != "" {
		deps, err := s.graph.DependenciesOf(ctx, identifier)
		if err != nil {
			return nil, err
		}
		dependents, err := s.graph.DependentsOf(ctx, identifier)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"identifier":       identifier,
			"dependency_count": len(deps),
			"dependent_count":  len(dependents),
			"dependencies":     deps,
			"dependents":       dependents,
		}, nil
	}

	ranks, err := s.graph.PageRank(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"unit_count": len(ranks),
		"top":        topRanks(ranks, pagerankDefaultLimit),
	}, nil
}

func (s *ToolService) handlePageRank(ctx context.Context, params map[string]any) (any, error) {
	limit := intParam(params, "limit", pagerankDefaultLimit)
	ranks, err := s.graph.PageRank(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"ranks": topRanks(ranks, limit)}, nil
}

func (s *ToolService) handleFramework(ctx context.Context, params map[string]any) (any, error) {
	query, _ := params["query"].(string)
	limit := intParam(params, "limit", defaultCandidateLimit)

	classification := retrieval.Classification{
		Keywords:   []string{query},
		TargetType: unit.TypeRailsSrc,
	}
	candidates, err := s.executor.Keyword(ctx, query, classification, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"query": query, "results": candidates}, nil
}

func (s *ToolService) handleRecentChanges(ctx context.Context, _ map[string]any) (any, error) {
	manifest, err := unit.ReadChangeManifest(s.indexDir)
	if err != nil {
		return nil, toolserver.Errorf(toolserver.KindExecution, "no change manifest: %v", err)
	}
	return map[string]any{
		"generated_at": manifest.GeneratedAt,
		"git_sha":      manifest.GitSHA,
		"summary":      manifest.Summary,
		"added":        manifest.Changes.Added,
		"modified":     manifest.Changes.Modified,
		"deleted":      manifest.Changes.Deleted,
	}, nil
}

func (s *ToolService) handleReload(ctx context.Context, _ map[string]any) (any, error) {
	manifest, err := unit.ReadManifest(s.indexDir)
	if err != nil {
		return nil, toolserver.Errorf(toolserver.KindExecution, "no manifest: %v", err)
	}
	count, err := s.metadata.Count(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"reloaded":     true,
		"total_units":  manifest.TotalUnits,
		"stored_units": count,
		"git_sha":      manifest.GitSHA,
	}, nil
}

func (s *ToolService) handleRetrieve(ctx context.Context, params map[string]any) (any, error) {
	query, _ := params["query"].(string)
	budget := intParam(params, "budget", 0)

	result, err := s.retriever.Retrieve(ctx, query, budget)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"context":            string(s.formatter.Format(result.Context)),
		"format":             s.formatter.Name(),
		"strategy":           result.Strategy,
		"classification":     result.Classification,
		"sources":            result.Context.Sources,
		"tokens_used":        result.Context.TokensUsed,
		"budget":             result.Context.Budget,
		"degraded":           result.Degraded,
		"degradation_reason": result.DegradationReason,
		"trace":              result.Trace,
	}, nil
}

func (s *ToolService) handleTraceFlow(ctx context.Context, params map[string]any) (any, error) {
	query, _ := params["query"].(string)
	result, err := s.retriever.Retrieve(ctx, query, 0)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"query":          query,
		"classification": result.Classification,
		"strategy":       result.Strategy,
		"trace":          result.Trace,
	}, nil
}

func (s *ToolService) handleExplain(ctx context.Context, params map[string]any) (any, error) {
	query, _ := params["query"].(string)
	classification := retrieval.NewClassifier().Classify(query)
	return map[string]any{
		"query":          query,
		"classification": classification,
		"strategy":       SelectStrategy(classification),
	}, nil
}

// guarded wraps a pipeline run behind the cooldown guard. An allowed call
// records the run, fires it in the background, and answers started; a call
// inside the cooldown answers rate-limited without running anything.
func (s *ToolService) guarded(kind pipeline.Kind, run func(context.Context) error) toolserver.Handler {
	return func(ctx context.Context, _ map[string]any) (any, error) {
		if !s.guard.Allow(kind) {
			return map[string]any{
				"status":             "rate-limited",
				"retry_after_secs":   int(s.guard.Remaining(kind).Seconds()) + 1,
				"cooldown_secs":      int(s.guard.Cooldown().Seconds()),
				"pipeline_operation": string(kind),
			}, nil
		}
		if err := s.guard.Record(kind); err != nil {
			return nil, toolserver.WrapError(toolserver.KindExecution, err)
		}
		go func() {
			// Detached from the request deadline; the run outlives the call.
			if err := run(context.Background()); err != nil {
				s.logger.Error("pipeline run failed", "kind", string(kind), "error", err)
			}
		}()
		return map[string]any{
			"status":             "started",
			"pipeline_operation": string(kind),
		}, nil
	}
}

// runExtraction rebuilds the change manifest by diffing the current unit
// files against the hashes recorded in the previous change manifest.
func (s *ToolService) runExtraction(ctx context.Context) error {
	units, err := pipeline.LoadUnits(s.indexDir)
	if err != nil {
		return err
	}

	var previous map[string]string
	var previousSHA string
	if prior, err := unit.ReadChangeManifest(s.indexDir); err == nil {
		previous = prior.Hashes
		previousSHA = prior.GitSHA
	}
	gitSHA := previousSHA
	if manifest, err := unit.ReadManifest(s.indexDir); err == nil {
		gitSHA = manifest.GitSHA
	}

	manifest := s.invalidator.Diff(previous, units, gitSHA, previousSHA)
	return unit.WriteChangeManifest(s.indexDir, manifest)
}

func (s *ToolService) runEmbedding(ctx context.Context) error {
	result, err := s.indexer.Run(ctx, s.indexDir)
	if err != nil {
		return err
	}
	s.logger.Info("embedding run finished",
		"embedded", result.Embedded, "deleted", result.Deleted, "skipped", result.Skipped)
	return nil
}

func (s *ToolService) handleRate(ctx context.Context, params map[string]any) (any, error) {
	query, _ := params["query"].(string)
	comment, _ := params["comment"].(string)
	score := intParam(params, "score", 0)

	if err := s.feedback.AddRating(query, score, comment); err != nil {
		return nil, toolserver.WrapError(toolserver.KindValidation, err)
	}
	average, ok, err := s.feedback.AverageScore()
	if err != nil {
		return nil, err
	}
	result := map[string]any{"recorded": true}
	if ok {
		result["average_score"] = average
	}
	return result, nil
}

func (s *ToolService) handleReportGap(ctx context.Context, params map[string]any) (any, error) {
	query, _ := params["query"].(string)
	missingUnit, _ := params["missing_unit"].(string)
	unitType, _ := params["unit_type"].(string)

	if err := s.feedback.AddGap(query, missingUnit, unitType); err != nil {
		return nil, err
	}
	return map[string]any{"recorded": true, "missing_unit": missingUnit}, nil
}

func (s *ToolService) handleSuggest(ctx context.Context, _ map[string]any) (any, error) {
	records, err := s.feedback.All()
	if err != nil {
		return nil, err
	}
	issues := s.gaps.Detect(records)

	result := map[string]any{
		"issues":  issues,
		"records": len(records),
	}
	if average, ok, err := s.feedback.AverageScore(); err == nil && ok {
		result["average_score"] = average
	}
	return result, nil
}

// topRanks returns the n highest-ranked identifiers, score descending with
// identifier as the tie break.
func topRanks(ranks map[string]float64, n int) []map[string]any {
	type pair struct {
		id    string
		score float64
	}
	pairs := make([]pair, 0, len(ranks))
	for id, score := range ranks {
		pairs = append(pairs, pair{id: id, score: score})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		return pairs[i].id < pairs[j].id
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]map[string]any, len(pairs))
	for i, p := range pairs {
		out[i] = map[string]any{"identifier": p.id, "score": p.score}
	}
	return out
}

// intParam reads an integer parameter, tolerating the float64 that
// encoding/json produces.
func intParam(params map[string]any, name string, fallback int) int {
	switch v := params[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/domain/unit"
	"github.com/codescope/codescope/infrastructure/provider"
	"github.com/codescope/codescope/internal/log"
)

// defaultWorkers bounds concurrent embedding batches.
const defaultWorkers = 4

// Result summarizes one indexing run.
type Result struct {
	Embedded int `json:"embedded"`
	Deleted  int `json:"deleted"`
	Skipped  int `json:"skipped"`
}

// Embedder is the provider contract the indexer needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// IncrementalIndexer consumes a change manifest and brings the stores in
// line with it: re-embeds added and modified units, deletes what is gone.
// Without a manifest it re-embeds everything.
type IncrementalIndexer struct {
	embedder Embedder
	vectors  store.VectorStore
	metadata store.MetadataStore
	graph    store.GraphStore
	budget   provider.CharBudget
	workers  int
	logger   *log.Logger
}

// IndexerOption is a functional option for NewIncrementalIndexer.
type IndexerOption func(*IncrementalIndexer)

// WithWorkers sets the number of concurrent embedding batches.
func WithWorkers(n int) IndexerOption {
	return func(ix *IncrementalIndexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithCharBudget sets the embedding batch budget.
func WithCharBudget(b provider.CharBudget) IndexerOption {
	return func(ix *IncrementalIndexer) { ix.budget = b }
}

// WithIndexerLogger sets the logger.
func WithIndexerLogger(logger *log.Logger) IndexerOption {
	return func(ix *IncrementalIndexer) { ix.logger = logger }
}

// NewIncrementalIndexer creates an IncrementalIndexer over the stores.
func NewIncrementalIndexer(embedder Embedder, vectors store.VectorStore, metadata store.MetadataStore, graph store.GraphStore, opts ...IndexerOption) *IncrementalIndexer {
	ix := &IncrementalIndexer{
		embedder: embedder,
		vectors:  vectors,
		metadata: metadata,
		graph:    graph,
		budget:   provider.DefaultCharBudget().WithMaxBatchSize(10),
		workers:  defaultWorkers,
		logger:   log.Discard(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Run loads the extracted units under indexDir, consults the change
// manifest, and updates the stores. A missing manifest forces a full
// re-embed.
func (ix *IncrementalIndexer) Run(ctx context.Context, indexDir string) (Result, error) {
	units, err := LoadUnits(indexDir)
	if err != nil {
		return Result{}, err
	}
	byID := make(map[string]unit.ExtractedUnit, len(units))
	for _, u := range units {
		byID[u.Identifier] = u
	}

	var toEmbed, toDelete []string
	var skipped int

	manifest, err := unit.ReadChangeManifest(indexDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		ix.logger.Info("no change manifest, full re-embed", "units", len(units))
		for _, u := range units {
			toEmbed = append(toEmbed, u.Identifier)
		}
	case err != nil:
		return Result{}, err
	default:
		toEmbed = append(toEmbed, manifest.Changes.Added...)
		toEmbed = append(toEmbed, manifest.Changes.Modified...)
		toDelete = manifest.Changes.Deleted
		skipped = len(manifest.Changes.Unchanged)

		// Modified units may have a different chunk set now; their old
		// chunk vectors go first so none survive as orphans.
		for _, id := range manifest.Changes.Modified {
			if err := ix.vectors.DeleteByFilter(ctx, map[string]any{"unit_id": id}); err != nil {
				return Result{}, fmt.Errorf("clear chunk vectors for %s: %w", id, err)
			}
		}
	}

	for _, id := range toDelete {
		if err := ix.vectors.DeleteByFilter(ctx, map[string]any{"unit_id": id}); err != nil {
			return Result{}, fmt.Errorf("delete vectors for %s: %w", id, err)
		}
		if err := ix.vectors.Delete(ctx, id); err != nil {
			return Result{}, fmt.Errorf("delete vector for %s: %w", id, err)
		}
		if err := ix.metadata.Delete(ctx, id); err != nil {
			return Result{}, fmt.Errorf("delete metadata for %s: %w", id, err)
		}
	}

	embedded, err := ix.embedUnits(ctx, toEmbed, byID)
	if err != nil {
		return Result{}, err
	}

	return Result{Embedded: embedded, Deleted: len(toDelete), Skipped: skipped}, nil
}

// embedUnits stores metadata and edges for each unit, then embeds the unit
// body and its chunks in parallel batches. A failed batch is retried once
// item by item so one poisoned text cannot sink its batchmates.
func (ix *IncrementalIndexer) embedUnits(ctx context.Context, ids []string, byID map[string]unit.ExtractedUnit) (int, error) {
	type doc struct {
		id       string
		text     string
		metadata map[string]any
	}
	var docs []doc

	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			continue
		}
		if err := ix.metadata.Store(ctx, id, u); err != nil {
			return 0, fmt.Errorf("store metadata for %s: %w", id, err)
		}
		if err := ix.graph.Register(ctx, u); err != nil {
			return 0, fmt.Errorf("register edges for %s: %w", id, err)
		}

		docs = append(docs, doc{
			id:   id,
			text: embeddingText(u),
			metadata: map[string]any{
				"unit_id":   id,
				"type":      string(u.Type),
				"namespace": u.Namespace,
			},
		})
		for _, chunk := range u.Chunks {
			docs = append(docs, doc{
				id:   chunk.ID(),
				text: chunk.Content,
				metadata: map[string]any{
					"unit_id":    id,
					"type":       string(u.Type),
					"namespace":  u.Namespace,
					"chunk_type": string(chunk.Type),
				},
			})
		}
	}
	if len(docs) == 0 {
		return 0, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = ix.budget.Truncate(d.text)
	}

	var (
		mu       sync.Mutex
		embedded = make(map[string]bool, len(ids))
	)
	storeVector := func(ctx context.Context, d doc, vector []float64) error {
		if err := ix.vectors.Store(ctx, d.id, vector, d.metadata); err != nil {
			return fmt.Errorf("store vector for %s: %w", d.id, err)
		}
		mu.Lock()
		embedded[d.metadata["unit_id"].(string)] = true
		mu.Unlock()
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(ix.workers)
	for _, batch := range ix.budget.Batches(texts) {
		group.Go(func() error {
			batchTexts := make([]string, len(batch))
			for i, idx := range batch {
				batchTexts[i] = texts[idx]
			}
			vectors, err := ix.embedder.Embed(groupCtx, batchTexts)
			if err == nil {
				for i, idx := range batch {
					if err := storeVector(groupCtx, docs[idx], vectors[i]); err != nil {
						return err
					}
				}
				return nil
			}

			// Retry each member alone before giving up on the batch.
			ix.logger.Warn("embedding batch failed, retrying individually",
				"size", len(batch), "error", err)
			for _, idx := range batch {
				vectors, retryErr := ix.embedder.Embed(groupCtx, []string{texts[idx]})
				if retryErr != nil {
					return fmt.Errorf("embed %s: %w", docs[idx].id, retryErr)
				}
				if err := storeVector(groupCtx, docs[idx], vectors[0]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}
	return len(embedded), nil
}

// embeddingText renders the text embedded for a whole unit: identifier and
// type for anchoring, then the source.
func embeddingText(u unit.ExtractedUnit) string {
	var b strings.Builder
	b.WriteString(u.Identifier)
	b.WriteString(" (")
	b.WriteString(string(u.Type))
	b.WriteString(")\n")
	b.WriteString(u.SourceCode)
	return b.String()
}

// LoadUnits reads every per-unit JSON file under indexDir. Units live in
// per-type subdirectories ("models/", "controllers/", ...); the top level
// holds only the manifests and the graph, which are skipped along with any
// underscore-prefixed control file.
func LoadUnits(indexDir string) ([]unit.ExtractedUnit, error) {
	entries, err := os.ReadDir(indexDir)
	if err != nil {
		return nil, fmt.Errorf("read index dir: %w", err)
	}
	var units []unit.ExtractedUnit
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), "_") {
			continue
		}
		loaded, err := loadUnitDir(filepath.Join(indexDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		units = append(units, loaded...)
	}
	return units, nil
}

func loadUnitDir(dir string) ([]unit.ExtractedUnit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read unit dir: %w", err)
	}
	var units []unit.ExtractedUnit
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, "_") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var u unit.ExtractedUnit
		if err := json.Unmarshal(data, &u); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if err := u.Validate(); err != nil {
			return nil, fmt.Errorf("invalid unit in %s: %w", name, err)
		}
		units = append(units, u)
	}
	return units, nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/domain/unit"
)

// Status is the operator-facing snapshot of the index.
type Status struct {
	Status           string            `json:"status"`
	ExtractedAt      time.Time         `json:"extracted_at"`
	TotalUnits       int               `json:"total_units"`
	CountsByType     map[string]int    `json:"counts_by_type"`
	GitSHA           string            `json:"git_sha"`
	GitBranch        string            `json:"git_branch"`
	StalenessSeconds int64             `json:"staleness_seconds"`
	Stores           map[string]string `json:"stores,omitempty"`
}

// Diagnosis is the outcome of a consistency check between the manifest and
// the stores.
type Diagnosis struct {
	Healthy       bool     `json:"healthy"`
	ManifestUnits int      `json:"manifest_units"`
	MetadataUnits int      `json:"metadata_units"`
	VectorCount   int      `json:"vector_count"`
	MissingUnits  []string `json:"missing_units,omitempty"`
	OrphanVectors []string `json:"orphan_vectors,omitempty"`
	Problems      []string `json:"problems,omitempty"`
}

// StatusReporter reads the manifest and pings each store.
type StatusReporter struct {
	indexDir string
	vectors  store.VectorStore
	metadata store.MetadataStore
	now      func() time.Time
}

// NewStatusReporter creates a StatusReporter.
func NewStatusReporter(indexDir string, vectors store.VectorStore, metadata store.MetadataStore) *StatusReporter {
	return &StatusReporter{
		indexDir: indexDir,
		vectors:  vectors,
		metadata: metadata,
		now:      time.Now,
	}
}

// Report builds the status snapshot. A missing manifest yields status
// "no_index"; store failures are reported per store without failing the
// whole snapshot.
func (r *StatusReporter) Report(ctx context.Context) Status {
	stores := map[string]string{
		"vector":   storeHealth(r.vectors.Count(ctx)),
		"metadata": storeHealth(r.metadata.Count(ctx)),
	}

	manifest, err := unit.ReadManifest(r.indexDir)
	if err != nil {
		status := "no_index"
		if !errors.Is(err, os.ErrNotExist) {
			status = "unreadable_manifest"
		}
		return Status{Status: status, Stores: stores}
	}

	status := "ok"
	for _, health := range stores {
		if health != "ok" {
			status = "degraded"
		}
	}

	return Status{
		Status:           status,
		ExtractedAt:      manifest.ExtractedAt,
		TotalUnits:       manifest.TotalUnits,
		CountsByType:     manifest.Counts,
		GitSHA:           manifest.GitSHA,
		GitBranch:        manifest.GitBranch,
		StalenessSeconds: int64(r.now().Sub(manifest.ExtractedAt).Seconds()),
		Stores:           stores,
	}
}

func storeHealth(_ int, err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}

// Diagnose cross-checks the index directory against the stores: units on
// disk must exist in the metadata store, and every vector's unit must still
// exist on disk.
func (r *StatusReporter) Diagnose(ctx context.Context) (Diagnosis, error) {
	units, err := LoadUnits(r.indexDir)
	if err != nil {
		return Diagnosis{}, err
	}
	onDisk := make(map[string]bool, len(units))
	ids := make([]string, 0, len(units))
	for _, u := range units {
		onDisk[u.Identifier] = true
		ids = append(ids, u.Identifier)
	}

	stored, err := r.metadata.FindBatch(ctx, ids)
	if err != nil {
		return Diagnosis{}, fmt.Errorf("check metadata store: %w", err)
	}
	var missing []string
	for _, id := range ids {
		if _, ok := stored[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)

	metadataCount, err := r.metadata.Count(ctx)
	if err != nil {
		return Diagnosis{}, fmt.Errorf("count metadata store: %w", err)
	}
	vectorCount, err := r.vectors.Count(ctx)
	if err != nil {
		return Diagnosis{}, fmt.Errorf("count vector store: %w", err)
	}

	orphans, err := r.orphanVectors(ctx, onDisk)
	if err != nil {
		return Diagnosis{}, err
	}

	d := Diagnosis{
		ManifestUnits: len(units),
		MetadataUnits: metadataCount,
		VectorCount:   vectorCount,
		MissingUnits:  missing,
		OrphanVectors: orphans,
	}
	if len(missing) > 0 {
		d.Problems = append(d.Problems, fmt.Sprintf("%d units on disk missing from metadata store", len(missing)))
	}
	if len(orphans) > 0 {
		d.Problems = append(d.Problems, fmt.Sprintf("%d vectors reference deleted units", len(orphans)))
	}
	d.Healthy = len(d.Problems) == 0
	return d, nil
}

// Repair fixes what Diagnose found: orphan vectors are deleted, and units
// missing from the metadata store are re-stored from disk. Re-embedding is
// left to the indexer.
func (r *StatusReporter) Repair(ctx context.Context) (Diagnosis, error) {
	d, err := r.Diagnose(ctx)
	if err != nil {
		return Diagnosis{}, err
	}
	if d.Healthy {
		return d, nil
	}

	for _, id := range d.OrphanVectors {
		if err := r.vectors.Delete(ctx, id); err != nil {
			return d, fmt.Errorf("delete orphan vector %s: %w", id, err)
		}
	}
	if len(d.MissingUnits) > 0 {
		units, err := LoadUnits(r.indexDir)
		if err != nil {
			return d, err
		}
		missing := make(map[string]bool, len(d.MissingUnits))
		for _, id := range d.MissingUnits {
			missing[id] = true
		}
		for _, u := range units {
			if missing[u.Identifier] {
				if err := r.metadata.Store(ctx, u.Identifier, u); err != nil {
					return d, fmt.Errorf("restore %s: %w", u.Identifier, err)
				}
			}
		}
	}
	return r.Diagnose(ctx)
}

// orphanVectors finds stored vector ids whose owning unit no longer exists
// on disk. Chunk ids map back to their parent unit.
func (r *StatusReporter) orphanVectors(ctx context.Context, onDisk map[string]bool) ([]string, error) {
	// The vector contract has no listing call; search with an empty query
	// vector returns every row at score zero, which is enough for an id
	// sweep.
	count, err := r.vectors.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count vectors: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	hits, err := r.vectors.Search(ctx, nil, count, nil)
	if err != nil {
		return nil, fmt.Errorf("sweep vectors: %w", err)
	}
	var orphans []string
	for _, hit := range hits {
		owner, _ := hit.Metadata["unit_id"].(string)
		if owner == "" {
			owner = hit.ID
		}
		if !onDisk[owner] {
			orphans = append(orphans, hit.ID)
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}

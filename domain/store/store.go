// Package store defines the persistence contracts the retrieval pipeline is
// built against. Any backend that honors these interfaces composes into the
// pipeline: in-memory, embedded SQL via gorm, or an external vector
// database.
package store

import (
	"context"

	"github.com/codescope/codescope/domain/unit"
)

// VectorHit is one result of a vector similarity search.
type VectorHit struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// VectorStore persists embedding vectors keyed by id and searches them by
// cosine similarity. Writes are idempotent by id (upsert); at most one
// vector is stored per id.
type VectorStore interface {
	// Store upserts a vector with a small metadata copy used for filtering.
	Store(ctx context.Context, id string, vector []float64, metadata map[string]any) error

	// Search returns up to limit hits ranked by cosine similarity,
	// restricted to rows whose metadata equals every filter entry.
	Search(ctx context.Context, query []float64, limit int, filters map[string]any) ([]VectorHit, error)

	// Delete removes the vector for id, if present.
	Delete(ctx context.Context, id string) error

	// DeleteByFilter removes every vector whose metadata matches filters.
	DeleteByFilter(ctx context.Context, filters map[string]any) error

	// Count returns the number of stored vectors.
	Count(ctx context.Context) (int, error)
}

// SearchField selects which unit attributes a metadata search scans.
type SearchField string

// SearchField values.
const (
	FieldIdentifier SearchField = "identifier"
	FieldSourceCode SearchField = "source_code"
	FieldFilePath   SearchField = "file_path"
	FieldMetadata   SearchField = "metadata"
)

// MetadataStore exclusively owns unit records.
type MetadataStore interface {
	// Store upserts a unit record keyed by its identifier.
	Store(ctx context.Context, id string, record unit.ExtractedUnit) error

	// Find returns the record for id. A missing id yields ErrNotFound.
	Find(ctx context.Context, id string) (unit.ExtractedUnit, error)

	// FindBatch returns the records for the given ids; missing ids are
	// simply absent from the result map.
	FindBatch(ctx context.Context, ids []string) (map[string]unit.ExtractedUnit, error)

	// FindByType returns every record of the given unit type.
	FindByType(ctx context.Context, t unit.Type) ([]unit.ExtractedUnit, error)

	// Search performs a case-insensitive substring match across the chosen
	// fields and returns up to limit records.
	Search(ctx context.Context, query string, fields []SearchField, limit int) ([]unit.ExtractedUnit, error)

	// Delete removes the record for id.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// GraphStore owns dependency edges between units.
type GraphStore interface {
	// Register records a unit and both directions of its edges.
	Register(ctx context.Context, u unit.ExtractedUnit) error

	// DependenciesOf returns the forward edges of id.
	DependenciesOf(ctx context.Context, id string) ([]unit.Dependency, error)

	// DependentsOf returns the reverse edges of id.
	DependentsOf(ctx context.Context, id string) ([]unit.Dependency, error)

	// ByType returns the identifiers registered under t.
	ByType(ctx context.Context, t unit.Type) ([]string, error)

	// AffectedBy returns the units whose file matches one of the paths,
	// plus their direct dependents.
	AffectedBy(ctx context.Context, paths []string) ([]string, error)

	// PageRank scores every identifier (damping 0.85, 30 iterations or
	// 1e-6 fixed point, whichever first).
	PageRank(ctx context.Context) (map[string]float64, error)
}

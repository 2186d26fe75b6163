package persistence

import (
	"context"
	"sort"

	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/infrastructure/memstore"
	"github.com/codescope/codescope/internal/database"
	"gorm.io/gorm/clause"
)

// VectorStore is the gorm-backed vector store. Embeddings are stored as
// JSON columns and similarity is computed in process over the candidate
// rows, which is exact and fast enough at codebase scale.
type VectorStore struct {
	db database.Database
}

// NewVectorStore creates a VectorStore over db.
func NewVectorStore(db database.Database) *VectorStore {
	return &VectorStore{db: db}
}

// Store upserts the vector and its metadata copy, keyed by id.
func (s *VectorStore) Store(ctx context.Context, id string, vector []float64, metadata map[string]any) error {
	entity := EmbeddingEntity{
		ID:        id,
		Embedding: Float64Slice(append([]float64(nil), vector...)),
		Metadata:  JSONMap(metadata),
	}
	result := s.db.Session(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&entity)
	if result.Error != nil {
		return store.NewError(store.BackendVector, result.Error)
	}
	return nil
}

// Search ranks stored vectors by cosine similarity against query,
// restricted by equality filters over the metadata copy.
func (s *VectorStore) Search(ctx context.Context, query []float64, limit int, filters map[string]any) ([]store.VectorHit, error) {
	if limit <= 0 {
		limit = 20
	}
	var entities []EmbeddingEntity
	result := s.db.Session(ctx).Find(&entities)
	if result.Error != nil {
		return nil, store.NewError(store.BackendVector, result.Error)
	}

	hits := make([]store.VectorHit, 0, len(entities))
	for _, e := range entities {
		if !metadataMatches(e.Metadata, filters) {
			continue
		}
		score := memstore.CosineSimilarity(query, []float64(e.Embedding))
		if score < 0 {
			score = 0
		}
		hits = append(hits, store.VectorHit{
			ID:       e.ID,
			Score:    score,
			Metadata: map[string]any(e.Metadata),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Delete removes the vector for id.
func (s *VectorStore) Delete(ctx context.Context, id string) error {
	result := s.db.Session(ctx).Delete(&EmbeddingEntity{}, "id = ?", id)
	if result.Error != nil {
		return store.NewError(store.BackendVector, result.Error)
	}
	return nil
}

// DeleteByFilter removes every vector whose metadata matches filters.
func (s *VectorStore) DeleteByFilter(ctx context.Context, filters map[string]any) error {
	var entities []EmbeddingEntity
	result := s.db.Session(ctx).Find(&entities)
	if result.Error != nil {
		return store.NewError(store.BackendVector, result.Error)
	}
	for _, e := range entities {
		if metadataMatches(e.Metadata, filters) {
			if err := s.Delete(ctx, e.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// Count returns the number of stored vectors.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var count int64
	result := s.db.Session(ctx).Model(&EmbeddingEntity{}).Count(&count)
	if result.Error != nil {
		return 0, store.NewError(store.BackendVector, result.Error)
	}
	return int(count), nil
}

func metadataMatches(metadata JSONMap, filters map[string]any) bool {
	for k, want := range filters {
		if metadata == nil || metadata[k] != want {
			return false
		}
	}
	return true
}

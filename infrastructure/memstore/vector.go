// Package memstore provides in-memory store backends for tests, small
// repositories, and degraded operation.
package memstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/codescope/codescope/domain/store"
)

// VectorStore is an in-memory cosine-similarity vector store. Writes are
// idempotent by id; at most one vector is kept per id.
type VectorStore struct {
	mu      sync.RWMutex
	vectors map[string][]float64
	meta    map[string]map[string]any
}

// NewVectorStore creates an empty VectorStore.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		vectors: make(map[string][]float64),
		meta:    make(map[string]map[string]any),
	}
}

// Store upserts the vector and its metadata copy.
func (s *VectorStore) Store(_ context.Context, id string, vector []float64, metadata map[string]any) error {
	cp := make([]float64, len(vector))
	copy(cp, vector)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[id] = cp
	s.meta[id] = copyMetadata(metadata)
	return nil
}

// Search ranks stored vectors by cosine similarity against query,
// restricted to rows matching every filter entry, and returns up to limit
// hits with scores clamped to [0,1].
func (s *VectorStore) Search(_ context.Context, query []float64, limit int, filters map[string]any) ([]store.VectorHit, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]store.VectorHit, 0, len(s.vectors))
	for id, vec := range s.vectors {
		if !matchesFilters(s.meta[id], filters) {
			continue
		}
		score := CosineSimilarity(query, vec)
		if score < 0 {
			score = 0
		}
		hits = append(hits, store.VectorHit{
			ID:       id,
			Score:    score,
			Metadata: copyMetadata(s.meta[id]),
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
func (s *VectorStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vectors, id)
	delete(s.meta, id)
	return nil
}

// DeleteByFilter removes every vector whose metadata matches filters.
func (s *VectorStore) DeleteByFilter(_ context.Context, filters map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.vectors {
		if matchesFilters(s.meta[id], filters) {
			delete(s.vectors, id)
			delete(s.meta, id)
		}
	}
	return nil
}

// Count returns the number of stored vectors.
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero-magnitude inputs.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// matchesFilters applies an equality-only AND over metadata keys.
func matchesFilters(metadata, filters map[string]any) bool {
	for k, want := range filters {
		if metadata == nil || metadata[k] != want {
			return false
		}
	}
	return true
}

func copyMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	cp := make(map[string]any, len(metadata))
	for k, v := range metadata {
		cp[k] = v
	}
	return cp
}

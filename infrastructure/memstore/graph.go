package memstore

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/domain/unit"
)

// GraphStore is an in-memory dependency graph store backed by
// unit.DependencyGraph, with optional JSON persistence.
type GraphStore struct {
	mu    sync.RWMutex
	graph *unit.DependencyGraph
}

// NewGraphStore creates an empty GraphStore.
func NewGraphStore() *GraphStore {
	return &GraphStore{graph: unit.NewDependencyGraph()}
}

// LoadGraphStore reads a dependency_graph.json written by Save.
func LoadGraphStore(path string) (*GraphStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, store.NewError(store.BackendGraph, err)
	}
	g := unit.NewDependencyGraph()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, store.NewError(store.BackendGraph, err)
	}
	return &GraphStore{graph: g}, nil
}

// Register records the unit and both directions of its edges.
func (s *GraphStore) Register(_ context.Context, u unit.ExtractedUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph.Register(u)
	return nil
}

// Remove deletes the unit and its edges.
func (s *GraphStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph.Remove(id)
	return nil
}

// DependenciesOf returns the forward edges of id.
func (s *GraphStore) DependenciesOf(_ context.Context, id string) ([]unit.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.DependenciesOf(id), nil
}

// DependentsOf returns the reverse edges of id.
func (s *GraphStore) DependentsOf(_ context.Context, id string) ([]unit.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.DependentsOf(id), nil
}

// ByType returns the identifiers registered under t.
func (s *GraphStore) ByType(_ context.Context, t unit.Type) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.ByType(t), nil
}

// AffectedBy returns units on the given paths plus their dependents.
func (s *GraphStore) AffectedBy(_ context.Context, paths []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.AffectedBy(paths), nil
}

// PageRank scores every registered identifier.
func (s *GraphStore) PageRank(_ context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.PageRank(), nil
}

// Graph returns the underlying graph for read-only inspection.
func (s *GraphStore) Graph() *unit.DependencyGraph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// Save writes the graph to path atomically.
func (s *GraphStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := unit.WriteJSONAtomic(path, s.graph); err != nil {
		return store.NewError(store.BackendGraph, err)
	}
	return nil
}

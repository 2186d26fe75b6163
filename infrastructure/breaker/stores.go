package breaker

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"

	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/domain/unit"
)

// The store wrappers run every backend call through a per-store circuit
// breaker. An open circuit returns the backend-tagged ErrOpen so the
// retriever still picks the right degradation tier while the trace reason
// distinguishes an open circuit from the underlying store fault.

// run executes fn through cb, mapping open-circuit errors to a
// backend-tagged ErrOpen.
func run(cb *gobreaker.CircuitBreaker, backend store.Backend, fn func() (any, error)) (any, error) {
	result, err := cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, store.NewError(backend, ErrOpen)
		}
		return nil, err
	}
	return result, nil
}

// notFoundIsSuccess keeps lookups of absent records from tripping the
// breaker; a miss is an answer, not a backend fault.
func notFoundIsSuccess(err error) bool {
	return err == nil || errors.Is(err, store.ErrNotFound)
}

// GuardedVectorStore wraps a VectorStore behind a circuit breaker.
type GuardedVectorStore struct {
	inner   store.VectorStore
	breaker *gobreaker.CircuitBreaker
}

// NewGuardedVectorStore wraps inner with a circuit breaker.
func NewGuardedVectorStore(inner store.VectorStore, opts ...Option) *GuardedVectorStore {
	return &GuardedVectorStore{inner: inner, breaker: newBreaker("vector-store", nil, opts)}
}

// State reports the current breaker state as a string.
func (g *GuardedVectorStore) State() string { return g.breaker.State().String() }

func (g *GuardedVectorStore) Store(ctx context.Context, id string, vector []float64, metadata map[string]any) error {
	_, err := run(g.breaker, store.BackendVector, func() (any, error) {
		return nil, g.inner.Store(ctx, id, vector, metadata)
	})
	return err
}

func (g *GuardedVectorStore) Search(ctx context.Context, query []float64, limit int, filters map[string]any) ([]store.VectorHit, error) {
	result, err := run(g.breaker, store.BackendVector, func() (any, error) {
		return g.inner.Search(ctx, query, limit, filters)
	})
	if err != nil {
		return nil, err
	}
	return result.([]store.VectorHit), nil
}

func (g *GuardedVectorStore) Delete(ctx context.Context, id string) error {
	_, err := run(g.breaker, store.BackendVector, func() (any, error) {
		return nil, g.inner.Delete(ctx, id)
	})
	return err
}

func (g *GuardedVectorStore) DeleteByFilter(ctx context.Context, filters map[string]any) error {
	_, err := run(g.breaker, store.BackendVector, func() (any, error) {
		return nil, g.inner.DeleteByFilter(ctx, filters)
	})
	return err
}

func (g *GuardedVectorStore) Count(ctx context.Context) (int, error) {
	result, err := run(g.breaker, store.BackendVector, func() (any, error) {
		return g.inner.Count(ctx)
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// GuardedMetadataStore wraps a MetadataStore behind a circuit breaker.
type GuardedMetadataStore struct {
	inner   store.MetadataStore
	breaker *gobreaker.CircuitBreaker
}

// NewGuardedMetadataStore wraps inner with a circuit breaker. Not-found
// lookups do not count as failures.
func NewGuardedMetadataStore(inner store.MetadataStore, opts ...Option) *GuardedMetadataStore {
	return &GuardedMetadataStore{
		inner:   inner,
		breaker: newBreaker("metadata-store", notFoundIsSuccess, opts),
	}
}

// State reports the current breaker state as a string.
func (g *GuardedMetadataStore) State() string { return g.breaker.State().String() }

func (g *GuardedMetadataStore) Store(ctx context.Context, id string, record unit.ExtractedUnit) error {
	_, err := run(g.breaker, store.BackendMetadata, func() (any, error) {
		return nil, g.inner.Store(ctx, id, record)
	})
	return err
}

func (g *GuardedMetadataStore) Find(ctx context.Context, id string) (unit.ExtractedUnit, error) {
	result, err := run(g.breaker, store.BackendMetadata, func() (any, error) {
		return g.inner.Find(ctx, id)
	})
	if err != nil {
		return unit.ExtractedUnit{}, err
	}
	return result.(unit.ExtractedUnit), nil
}

func (g *GuardedMetadataStore) FindBatch(ctx context.Context, ids []string) (map[string]unit.ExtractedUnit, error) {
	result, err := run(g.breaker, store.BackendMetadata, func() (any, error) {
		return g.inner.FindBatch(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]unit.ExtractedUnit), nil
}

func (g *GuardedMetadataStore) FindByType(ctx context.Context, t unit.Type) ([]unit.ExtractedUnit, error) {
	result, err := run(g.breaker, store.BackendMetadata, func() (any, error) {
		return g.inner.FindByType(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return result.([]unit.ExtractedUnit), nil
}

func (g *GuardedMetadataStore) Search(ctx context.Context, query string, fields []store.SearchField, limit int) ([]unit.ExtractedUnit, error) {
	result, err := run(g.breaker, store.BackendMetadata, func() (any, error) {
		return g.inner.Search(ctx, query, fields, limit)
	})
	if err != nil {
		return nil, err
	}
	return result.([]unit.ExtractedUnit), nil
}

func (g *GuardedMetadataStore) Delete(ctx context.Context, id string) error {
	_, err := run(g.breaker, store.BackendMetadata, func() (any, error) {
		return nil, g.inner.Delete(ctx, id)
	})
	return err
}

func (g *GuardedMetadataStore) Count(ctx context.Context) (int, error) {
	result, err := run(g.breaker, store.BackendMetadata, func() (any, error) {
		return g.inner.Count(ctx)
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// GuardedGraphStore wraps a GraphStore behind a circuit breaker.
type GuardedGraphStore struct {
	inner   store.GraphStore
	breaker *gobreaker.CircuitBreaker
}

// NewGuardedGraphStore wraps inner with a circuit breaker.
func NewGuardedGraphStore(inner store.GraphStore, opts ...Option) *GuardedGraphStore {
	return &GuardedGraphStore{inner: inner, breaker: newBreaker("graph-store", nil, opts)}
}

// State reports the current breaker state as a string.
func (g *GuardedGraphStore) State() string { return g.breaker.State().String() }

func (g *GuardedGraphStore) Register(ctx context.Context, u unit.ExtractedUnit) error {
	_, err := run(g.breaker, store.BackendGraph, func() (any, error) {
		return nil, g.inner.Register(ctx, u)
	})
	return err
}

func (g *GuardedGraphStore) DependenciesOf(ctx context.Context, id string) ([]unit.Dependency, error) {
	result, err := run(g.breaker, store.BackendGraph, func() (any, error) {
		return g.inner.DependenciesOf(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.([]unit.Dependency), nil
}

func (g *GuardedGraphStore) DependentsOf(ctx context.Context, id string) ([]unit.Dependency, error) {
	result, err := run(g.breaker, store.BackendGraph, func() (any, error) {
		return g.inner.DependentsOf(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.([]unit.Dependency), nil
}

func (g *GuardedGraphStore) ByType(ctx context.Context, t unit.Type) ([]string, error) {
	result, err := run(g.breaker, store.BackendGraph, func() (any, error) {
		return g.inner.ByType(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (g *GuardedGraphStore) AffectedBy(ctx context.Context, paths []string) ([]string, error) {
	result, err := run(g.breaker, store.BackendGraph, func() (any, error) {
		return g.inner.AffectedBy(ctx, paths)
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (g *GuardedGraphStore) PageRank(ctx context.Context) (map[string]float64, error) {
	result, err := run(g.breaker, store.BackendGraph, func() (any, error) {
		return g.inner.PageRank(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]float64), nil
}

var (
	_ store.VectorStore   = (*GuardedVectorStore)(nil)
	_ store.MetadataStore = (*GuardedMetadataStore)(nil)
	_ store.GraphStore    = (*GuardedGraphStore)(nil)
)

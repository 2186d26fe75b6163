package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/domain/unit"
	"github.com/codescope/codescope/infrastructure/memstore"
)

type failingMetadata struct {
	store.MetadataStore
	err   error
	calls int
}

func (f *failingMetadata) Find(ctx context.Context, id string) (unit.ExtractedUnit, error) {
	f.calls++
	if f.err != nil {
		return unit.ExtractedUnit{}, f.err
	}
	return f.MetadataStore.Find(ctx, id)
}

type failingGraph struct {
	store.GraphStore
	err   error
	calls int
}

func (f *failingGraph) DependenciesOf(ctx context.Context, id string) ([]unit.Dependency, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.GraphStore.DependenciesOf(ctx, id)
}

func TestGuardedVectorStore_PassesThrough(t *testing.T) {
	ctx := context.Background()
	guarded := NewGuardedVectorStore(memstore.NewVectorStore(), WithLogger(quietLogger()))

	if err := guarded.Store(ctx, "User", []float64{1, 0}, map[string]any{"unit_id": "User"}); err != nil {
		t.Fatal(err)
	}
	hits, err := guarded.Search(ctx, []float64{1, 0}, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "User" {
		t.Errorf("unexpected hits %+v", hits)
	}
	if n, _ := guarded.Count(ctx); n != 1 {
		t.Errorf("expected 1 vector, got %d", n)
	}
	if guarded.State() != "closed" {
		t.Errorf("expected a closed circuit, got %s", guarded.State())
	}
}

func TestGuardedMetadataStore_OpenCircuitKeepsBackendTag(t *testing.T) {
	ctx := context.Background()
	inner := &failingMetadata{MetadataStore: memstore.NewMetadataStore(), err: errors.New("db down")}
	guarded := NewGuardedMetadataStore(inner,
		WithThreshold(3),
		WithReset(time.Hour),
		WithLogger(quietLogger()),
	)

	for range 3 {
		guarded.Find(ctx, "User")
	}
	if guarded.State() != "open" {
		t.Fatalf("expected an open circuit after 3 failures, got %s", guarded.State())
	}

	callsBefore := inner.calls
	_, err := guarded.Find(ctx, "User")
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
	// The backend tag must survive so the retriever picks the right
	// degradation tier for an open circuit.
	if got, _ := store.BackendOf(err); got != store.BackendMetadata {
		t.Errorf("expected the metadata backend tag, got %q", got)
	}
	if inner.calls != callsBefore {
		t.Error("open circuit must not reach the inner store")
	}
}

func TestGuardedMetadataStore_NotFoundDoesNotTrip(t *testing.T) {
	ctx := context.Background()
	guarded := NewGuardedMetadataStore(memstore.NewMetadataStore(),
		WithThreshold(2),
		WithLogger(quietLogger()),
	)

	// Misses are answers, not backend failures.
	for range 5 {
		if _, err := guarded.Find(ctx, "Ghost"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if guarded.State() != "closed" {
		t.Errorf("expected the circuit still closed after misses, got %s", guarded.State())
	}
}

func TestGuardedGraphStore_OpensAndRecovers(t *testing.T) {
	ctx := context.Background()
	inner := &failingGraph{GraphStore: memstore.NewGraphStore(), err: errors.New("graph down")}
	guarded := NewGuardedGraphStore(inner,
		WithThreshold(2),
		WithReset(10*time.Millisecond),
		WithLogger(quietLogger()),
	)

	for range 2 {
		guarded.DependenciesOf(ctx, "User")
	}
	_, err := guarded.DependenciesOf(ctx, "User")
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if got, _ := store.BackendOf(err); got != store.BackendGraph {
		t.Errorf("expected the graph backend tag, got %q", got)
	}

	// After the reset window a probe goes through and closes the circuit.
	inner.err = nil
	time.Sleep(20 * time.Millisecond)
	if _, err := guarded.DependenciesOf(ctx, "User"); err != nil {
		t.Fatalf("expected recovery after reset, got %v", err)
	}
}

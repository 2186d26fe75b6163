package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/codescope/codescope/domain/unit"
	"github.com/codescope/codescope/infrastructure/memstore"
	"github.com/codescope/codescope/infrastructure/pipeline"
	"github.com/codescope/codescope/infrastructure/provider"
)

func writeUnit(t *testing.T, dir string, u unit.ExtractedUnit) {
	t.Helper()
	path := unit.FilePathFor(dir, u.Type, u.Identifier)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := unit.WriteJSONAtomic(path, u); err != nil {
		t.Fatal(err)
	}
}

func indexUnit(id string, deps ...unit.Dependency) unit.ExtractedUnit {
	return unit.ExtractedUnit{
		Type:         unit.TypeModel,
		Identifier:   id,
		FilePath:     "app/models/" + id + ".rb",
		SourceCode:   "class " + id + " < ApplicationRecord\nend\n",
		Dependencies: deps,
	}
}

func newIndexerFixture(t *testing.T) (*pipeline.IncrementalIndexer, *memstore.VectorStore, *memstore.MetadataStore, *memstore.GraphStore) {
	t.Helper()
	vectors := memstore.NewVectorStore()
	metadata := memstore.NewMetadataStore()
	graph := memstore.NewGraphStore()
	indexer := pipeline.NewIncrementalIndexer(provider.NewHashProvider(16), vectors, metadata, graph)
	return indexer, vectors, metadata, graph
}

func TestIndexer_FullReembedWithoutManifest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeUnit(t, dir, indexUnit("User"))
	writeUnit(t, dir, indexUnit("Post"))

	indexer, vectors, metadata, _ := newIndexerFixture(t)
	result, err := indexer.Run(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}

	if result.Embedded != 2 || result.Deleted != 0 || result.Skipped != 0 {
		t.Errorf("unexpected result %+v", result)
	}
	if n, _ := vectors.Count(ctx); n != 2 {
		t.Errorf("expected 2 vectors, got %d", n)
	}
	if n, _ := metadata.Count(ctx); n != 2 {
		t.Errorf("expected 2 records, got %d", n)
	}
}

func TestIndexer_EmbedsChunksUnderParentFilter(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	u := indexUnit("User")
	u.Chunks = []unit.Chunk{
		{UnitID: "User", Type: unit.ChunkValidations, Content: "validates :email, presence: true"},
		{UnitID: "User", Type: unit.ChunkMethods, Content: "def full_name\nend"},
	}
	writeUnit(t, dir, u)

	indexer, vectors, _, _ := newIndexerFixture(t)
	result, err := indexer.Run(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if result.Embedded != 1 {
		t.Errorf("chunks count toward their unit, expected 1, got %d", result.Embedded)
	}
	// One vector for the unit body plus one per chunk.
	if n, _ := vectors.Count(ctx); n != 3 {
		t.Errorf("expected 3 vectors, got %d", n)
	}
	if err := vectors.DeleteByFilter(ctx, map[string]any{"unit_id": "User"}); err != nil {
		t.Fatal(err)
	}
	if n, _ := vectors.Count(ctx); n != 0 {
		t.Errorf("expected chunk vectors tagged with the parent unit_id, %d left", n)
	}
}

func TestIndexer_AppliesChangeManifest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeUnit(t, dir, indexUnit("Added"))
	writeUnit(t, dir, indexUnit("Modified"))
	writeUnit(t, dir, indexUnit("Unchanged"))

	err := unit.WriteChangeManifest(dir, unit.ChangeManifest{
		Changes: unit.ChangeSet{
			Added:     []string{"Added"},
			Modified:  []string{"Modified"},
			Deleted:   []string{"Retired"},
			Unchanged: []string{"Unchanged"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	indexer, vectors, metadata, _ := newIndexerFixture(t)

	// Pre-seed the deleted unit and a stale chunk of the modified one.
	if err := metadata.Store(ctx, "Retired", indexUnit("Retired")); err != nil {
		t.Fatal(err)
	}
	if err := vectors.Store(ctx, "Retired", []float64{1}, map[string]any{"unit_id": "Retired"}); err != nil {
		t.Fatal(err)
	}
	if err := vectors.Store(ctx, "Modified#chunk:scopes", []float64{1}, map[string]any{"unit_id": "Modified"}); err != nil {
		t.Fatal(err)
	}

	result, err := indexer.Run(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if result.Embedded != 2 || result.Deleted != 1 || result.Skipped != 1 {
		t.Errorf("unexpected result %+v", result)
	}

	if _, err := metadata.Find(ctx, "Retired"); err == nil {
		t.Error("expected the deleted unit gone from metadata")
	}
	hits, err := vectors.Search(ctx, []float64{1}, 50, map[string]any{"unit_id": "Retired"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("expected the deleted unit's vectors gone, got %+v", hits)
	}

	if _, err := metadata.Find(ctx, "Added"); err != nil {
		t.Errorf("expected the added unit stored: %v", err)
	}

	// The stale chunk of the modified unit must not survive re-embedding.
	hits, err = vectors.Search(ctx, []float64{1}, 50, map[string]any{"unit_id": "Modified"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "Modified" {
		t.Errorf("expected only the fresh unit vector for Modified, got %+v", hits)
	}
}

func TestLoadUnits_TypeSubdirectoryLayout(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, indexUnit("User"))

	controller := unit.ExtractedUnit{
		Type:       unit.TypeController,
		Identifier: "UsersController",
		FilePath:   "app/controllers/users_controller.rb",
		SourceCode: "class UsersController < ApplicationController\nend\n",
	}
	writeUnit(t, dir, controller)

	// Top-level control files and underscore-prefixed entries are not units.
	if err := unit.WriteManifest(dir, unit.Manifest{TotalUnits: 2}); err != nil {
		t.Fatal(err)
	}
	if err := unit.WriteChangeManifest(dir, unit.ChangeManifest{}); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "_staging"), 0o755); err != nil {
		t.Fatal(err)
	}

	units, err := pipeline.LoadUnits(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units from the type subdirectories, got %d", len(units))
	}

	ids := make(map[string]bool)
	for _, u := range units {
		ids[u.Identifier] = true
	}
	if !ids["User"] || !ids["UsersController"] {
		t.Errorf("unexpected identifiers %v", ids)
	}
}

func TestFilePathFor_PlacesUnitsUnderTypeDir(t *testing.T) {
	got := unit.FilePathFor("/idx", unit.TypeModel, "Admin::AuditLog")
	want := filepath.Join("/idx", "models", unit.FileName("Admin::AuditLog"))
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestIndexer_MissingDirFails(t *testing.T) {
	indexer, _, _, _ := newIndexerFixture(t)
	if _, err := indexer.Run(context.Background(), "/nonexistent/index"); err == nil {
		t.Error("expected an error for a missing index dir")
	}
}

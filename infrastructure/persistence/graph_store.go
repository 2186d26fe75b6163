package persistence

import (
	"context"

	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/domain/unit"
	"github.com/codescope/codescope/internal/database"
)

// GraphStore answers dependency queries from the codebase_edges table.
// Simple lookups go straight to SQL; whole-graph computations (PageRank,
// change impact) rebuild a unit.DependencyGraph from the rows.
type GraphStore struct {
	db database.Database
}

// NewGraphStore creates a GraphStore over db.
func NewGraphStore(db database.Database) *GraphStore {
	return &GraphStore{db: db}
}

// Register replaces the forward edges of u with its current dependency
// list. The unit row itself is owned by the metadata store.
func (s *GraphStore) Register(ctx context.Context, u unit.ExtractedUnit) error {
	session := s.db.Session(ctx)
	if err := session.Delete(&EdgeEntity{}, "source_id = ?", u.Identifier).Error; err != nil {
		return store.NewError(store.BackendGraph, err)
	}
	if len(u.Dependencies) == 0 {
		return nil
	}
	entities := make([]EdgeEntity, 0, len(u.Dependencies))
	for _, dep := range u.Dependencies {
		entities = append(entities, EdgeEntity{
			SourceID:     u.Identifier,
			TargetID:     dep.Target,
			Relationship: dep.Type,
			Via:          string(dep.Via),
		})
	}
	if err := session.Create(&entities).Error; err != nil {
		return store.NewError(store.BackendGraph, err)
	}
	return nil
}

// Remove deletes every edge that touches id.
func (s *GraphStore) Remove(ctx context.Context, id string) error {
	result := s.db.Session(ctx).Delete(&EdgeEntity{}, "source_id = ? OR target_id = ?", id, id)
	if result.Error != nil {
		return store.NewError(store.BackendGraph, result.Error)
	}
	return nil
}

// DependenciesOf returns the forward edges of id.
func (s *GraphStore) DependenciesOf(ctx context.Context, id string) ([]unit.Dependency, error) {
	var entities []EdgeEntity
	result := s.db.Session(ctx).
		Where("source_id = ?", id).
		Order("target_id ASC").
		Find(&entities)
	if result.Error != nil {
		return nil, store.NewError(store.BackendGraph, result.Error)
	}
	deps := make([]unit.Dependency, 0, len(entities))
	for _, e := range entities {
		deps = append(deps, unit.Dependency{
			Target: e.TargetID,
			Type:   e.Relationship,
			Via:    unit.DependencyVia(e.Via),
		})
	}
	return deps, nil
}

// DependentsOf returns the reverse edges of id, reconstructed from the
// forward rows.
func (s *GraphStore) DependentsOf(ctx context.Context, id string) ([]unit.Dependency, error) {
	var entities []EdgeEntity
	result := s.db.Session(ctx).
		Where("target_id = ?", id).
		Order("source_id ASC").
		Find(&entities)
	if result.Error != nil {
		return nil, store.NewError(store.BackendGraph, result.Error)
	}
	deps := make([]unit.Dependency, 0, len(entities))
	for _, e := range entities {
		deps = append(deps, unit.Dependency{
			Target: e.SourceID,
			Type:   e.Relationship,
			Via:    unit.DependencyVia(e.Via),
		})
	}
	return deps, nil
}

// ByType returns the identifiers of every unit of the given type.
func (s *GraphStore) ByType(ctx context.Context, t unit.Type) ([]string, error) {
	var ids []string
	result := s.db.Session(ctx).Model(&UnitEntity{}).
		Where("unit_type = ?", string(t)).
		Order("id ASC").
		Pluck("id", &ids)
	if result.Error != nil {
		return nil, store.NewError(store.BackendGraph, result.Error)
	}
	return ids, nil
}

// AffectedBy returns the units whose file matches one of the paths, plus
// their direct dependents.
func (s *GraphStore) AffectedBy(ctx context.Context, paths []string) ([]string, error) {
	g, err := s.loadGraph(ctx)
	if err != nil {
		return nil, err
	}
	return g.AffectedBy(paths), nil
}

// PageRank scores every registered identifier.
func (s *GraphStore) PageRank(ctx context.Context) (map[string]float64, error) {
	g, err := s.loadGraph(ctx)
	if err != nil {
		return nil, err
	}
	return g.PageRank(), nil
}

func (s *GraphStore) loadGraph(ctx context.Context) (*unit.DependencyGraph, error) {
	session := s.db.Session(ctx)

	var units []UnitEntity
	if err := session.Select("id", "unit_type", "file_path").Find(&units).Error; err != nil {
		return nil, store.NewError(store.BackendGraph, err)
	}
	var edges []EdgeEntity
	if err := session.Find(&edges).Error; err != nil {
		return nil, store.NewError(store.BackendGraph, err)
	}

	bySource := make(map[string][]unit.Dependency, len(units))
	for _, e := range edges {
		bySource[e.SourceID] = append(bySource[e.SourceID], unit.Dependency{
			Target: e.TargetID,
			Type:   e.Relationship,
			Via:    unit.DependencyVia(e.Via),
		})
	}

	g := unit.NewDependencyGraph()
	for _, u := range units {
		g.Register(unit.ExtractedUnit{
			Type:         unit.Type(u.UnitType),
			Identifier:   u.ID,
			FilePath:     u.FilePath,
			Dependencies: bySource[u.ID],
		})
	}
	return g, nil
}

package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/domain/unit"
	"github.com/codescope/codescope/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MetadataStore is the gorm-backed unit record store.
type MetadataStore struct {
	db database.Database
}

// NewMetadataStore creates a MetadataStore over db.
func NewMetadataStore(db database.Database) *MetadataStore {
	return &MetadataStore{db: db}
}

// Store upserts the record keyed by id.
func (s *MetadataStore) Store(ctx context.Context, id string, record unit.ExtractedUnit) error {
	entity, err := toEntity(id, record)
	if err != nil {
		return store.NewError(store.BackendMetadata, err)
	}
	result := s.db.Session(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&entity)
	if result.Error != nil {
		return store.NewError(store.BackendMetadata, result.Error)
	}
	return nil
}

// Find returns the record for id or store.ErrNotFound.
func (s *MetadataStore) Find(ctx context.Context, id string) (unit.ExtractedUnit, error) {
	var entity UnitEntity
	result := s.db.Session(ctx).First(&entity, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return unit.ExtractedUnit{}, store.NewError(store.BackendMetadata, store.ErrNotFound)
		}
		return unit.ExtractedUnit{}, store.NewError(store.BackendMetadata, result.Error)
	}
	return toDomain(entity)
}

// FindBatch returns the records present for the given ids.
func (s *MetadataStore) FindBatch(ctx context.Context, ids []string) (map[string]unit.ExtractedUnit, error) {
	if len(ids) == 0 {
		return map[string]unit.ExtractedUnit{}, nil
	}
	var entities []UnitEntity
	result := s.db.Session(ctx).Where("id IN ?", ids).Find(&entities)
	if result.Error != nil {
		return nil, store.NewError(store.BackendMetadata, result.Error)
	}
	out := make(map[string]unit.ExtractedUnit, len(entities))
	for _, e := range entities {
		u, err := toDomain(e)
		if err != nil {
			return nil, err
		}
		out[e.ID] = u
	}
	return out, nil
}

// FindByType returns every record of the given type.
func (s *MetadataStore) FindByType(ctx context.Context, t unit.Type) ([]unit.ExtractedUnit, error) {
	var entities []UnitEntity
	result := s.db.Session(ctx).
		Where("unit_type = ?", string(t)).
		Order("id ASC").
		Find(&entities)
	if result.Error != nil {
		return nil, store.NewError(store.BackendMetadata, result.Error)
	}
	return toDomainSlice(entities)
}

// Search performs a case-insensitive substring match across the chosen
// fields using LIKE on lowered columns, identifier matches first.
func (s *MetadataStore) Search(ctx context.Context, query string, fields []store.SearchField, limit int) ([]unit.ExtractedUnit, error) {
	if limit <= 0 {
		limit = 20
	}
	if query == "" {
		return nil, nil
	}
	pattern := "%" + escapeLike(query) + "%"

	db := s.db.Session(ctx)
	var conditions []string
	var args []any
	for _, field := range fields {
		switch field {
		case store.FieldIdentifier:
			conditions = append(conditions, "LOWER(id) LIKE LOWER(?)")
		case store.FieldSourceCode:
			conditions = append(conditions, "LOWER(source_code) LIKE LOWER(?)")
		case store.FieldFilePath:
			conditions = append(conditions, "LOWER(file_path) LIKE LOWER(?)")
		case store.FieldMetadata:
			conditions = append(conditions, "LOWER(CAST(metadata AS TEXT)) LIKE LOWER(?)")
		default:
			continue
		}
		args = append(args, pattern)
	}
	if len(conditions) == 0 {
		return nil, nil
	}

	where := conditions[0]
	for _, c := range conditions[1:] {
		where += " OR " + c
	}

	var entities []UnitEntity
	result := db.Where(where, args...).
		Order("id ASC").
		Limit(limit).
		Find(&entities)
	if result.Error != nil {
		return nil, store.NewError(store.BackendMetadata, result.Error)
	}
	return toDomainSlice(entities)
}

// Delete removes the record for id.
func (s *MetadataStore) Delete(ctx context.Context, id string) error {
	result := s.db.Session(ctx).Delete(&UnitEntity{}, "id = ?", id)
	if result.Error != nil {
		return store.NewError(store.BackendMetadata, result.Error)
	}
	return nil
}

// Count returns the number of stored records.
func (s *MetadataStore) Count(ctx context.Context) (int, error) {
	var count int64
	result := s.db.Session(ctx).Model(&UnitEntity{}).Count(&count)
	if result.Error != nil {
		return 0, store.NewError(store.BackendMetadata, result.Error)
	}
	return int(count), nil
}

// CountsByType returns the record count per unit type.
func (s *MetadataStore) CountsByType(ctx context.Context) (map[string]int, error) {
	type row struct {
		UnitType string
		N        int
	}
	var rows []row
	result := s.db.Session(ctx).Model(&UnitEntity{}).
		Select("unit_type, COUNT(*) AS n").
		Group("unit_type").
		Scan(&rows)
	if result.Error != nil {
		return nil, store.NewError(store.BackendMetadata, result.Error)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.UnitType] = r.N
	}
	return counts, nil
}

func toEntity(id string, u unit.ExtractedUnit) (UnitEntity, error) {
	deps := JSONMap{}
	if len(u.Dependencies) > 0 {
		data, err := json.Marshal(u.Dependencies)
		if err != nil {
			return UnitEntity{}, fmt.Errorf("marshal dependencies: %w", err)
		}
		var list []any
		if err := json.Unmarshal(data, &list); err != nil {
			return UnitEntity{}, err
		}
		deps["list"] = list
	}
	return UnitEntity{
		ID:         id,
		UnitType:   string(u.Type),
		Namespace:  u.Namespace,
		FilePath:   u.FilePath,
		SourceCode: u.SourceCode,
		Metadata:   JSONMap(u.Metadata),
		Deps:       deps,
	}, nil
}

func toDomain(e UnitEntity) (unit.ExtractedUnit, error) {
	u := unit.ExtractedUnit{
		Type:       unit.Type(e.UnitType),
		Identifier: e.ID,
		Namespace:  e.Namespace,
		FilePath:   e.FilePath,
		SourceCode: e.SourceCode,
		Metadata:   map[string]any(e.Metadata),
	}
	if list, ok := e.Deps["list"]; ok {
		data, err := json.Marshal(list)
		if err != nil {
			return u, store.NewError(store.BackendMetadata, err)
		}
		if err := json.Unmarshal(data, &u.Dependencies); err != nil {
			return u, store.NewError(store.BackendMetadata, err)
		}
	}
	return u, nil
}

func toDomainSlice(entities []UnitEntity) ([]unit.ExtractedUnit, error) {
	out := make([]unit.ExtractedUnit, 0, len(entities))
	for _, e := range entities {
		u, err := toDomain(e)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

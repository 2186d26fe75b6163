// Package persistence provides gorm-backed store implementations over the
// codebase_* tables.
package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONMap stores a metadata map as a JSON column.
type JSONMap map[string]any

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	data, err := rawBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, m)
}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Float64Slice stores an embedding vector as a JSON column.
type Float64Slice []float64

// Scan implements sql.Scanner.
func (f *Float64Slice) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}
	data, err := rawBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, f)
}

// Value implements driver.Valuer.
func (f Float64Slice) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

func rawBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot scan %T as JSON column", value)
	}
}

// UnitEntity is a row of codebase_units. The metadata store exclusively
// owns these records; dependents are never stored, only reconstructed
// from the edge table.
type UnitEntity struct {
	ID         string  `gorm:"column:id;primaryKey"`
	UnitType   string  `gorm:"column:unit_type;index"`
	Namespace  string  `gorm:"column:namespace"`
	FilePath   string  `gorm:"column:file_path;index"`
	SourceCode string  `gorm:"column:source_code"`
	Metadata   JSONMap `gorm:"column:metadata;type:json"`
	Deps       JSONMap `gorm:"column:deps;type:json"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName routes the entity to codebase_units.
func (UnitEntity) TableName() string { return "codebase_units" }

// EdgeEntity is a row of codebase_edges. Reverse edges are never stored;
// dependents are answered by querying on target_id.
type EdgeEntity struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	SourceID     string `gorm:"column:source_id;index;uniqueIndex:ux_codebase_edges"`
	TargetID     string `gorm:"column:target_id;index;uniqueIndex:ux_codebase_edges"`
	Relationship string `gorm:"column:relationship;uniqueIndex:ux_codebase_edges"`
	Via          string `gorm:"column:via"`
}

// TableName routes the entity to codebase_edges.
func (EdgeEntity) TableName() string { return "codebase_edges" }

// EmbeddingEntity is a row of codebase_embeddings.
type EmbeddingEntity struct {
	ID        string       `gorm:"column:id;primaryKey"`
	Embedding Float64Slice `gorm:"column:embedding;type:json"`
	Metadata  JSONMap      `gorm:"column:metadata;type:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName routes the entity to codebase_embeddings.
func (EmbeddingEntity) TableName() string { return "codebase_embeddings" }

// MigrationEntity tracks applied forward-only migrations.
type MigrationEntity struct {
	Version   int `gorm:"column:version;primaryKey"`
	AppliedAt time.Time
}

// TableName routes the entity to codebase_index_schema_migrations.
func (MigrationEntity) TableName() string { return "codebase_index_schema_migrations" }

package persistence

import (
	"fmt"
	"time"

	"github.com/codescope/codescope/internal/database"
	"gorm.io/gorm"
)

// migration is one forward-only schema step. Migrations may add tables,
// columns, and indexes; they never drop data.
type migration struct {
	version int
	name    string
	apply   func(db *gorm.DB) error
}

var migrations = []migration{
	{
		version: 1,
		name:    "create core tables",
		apply: func(db *gorm.DB) error {
			return db.AutoMigrate(&UnitEntity{}, &EdgeEntity{}, &EmbeddingEntity{})
		},
	},
	{
		version: 2,
		name:    "index unit namespace",
		apply: func(db *gorm.DB) error {
			return db.Exec(`CREATE INDEX IF NOT EXISTS ix_codebase_units_namespace ON codebase_units(namespace)`).Error
		},
	},
}

// Migrate applies pending migrations in version order, recording each in
// codebase_index_schema_migrations.
func Migrate(db database.Database) error {
	gdb := db.GORM()
	if err := gdb.AutoMigrate(&MigrationEntity{}); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var applied []MigrationEntity
	if err := gdb.Find(&applied).Error; err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, m := range applied {
		done[m.Version] = true
	}

	for _, m := range migrations {
		if done[m.version] {
			continue
		}
		if err := m.apply(gdb); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		record := MigrationEntity{Version: m.version, AppliedAt: time.Now().UTC()}
		if err := gdb.Create(&record).Error; err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

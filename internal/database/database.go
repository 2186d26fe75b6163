// Package database provides the gorm-backed database handle shared by the
// persistence stores and the console.
package database

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Database wraps a gorm.DB with dialect awareness.
type Database struct {
	db       *gorm.DB
	postgres bool
}

// Open connects to the database named by url. Supported schemes:
// sqlite://<path> (plus the literal ":memory:") and postgres://...
func Open(url string) (Database, error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		return openSQLite(path)
	case url == ":memory:":
		return openSQLite(":memory:")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		db, err := gorm.Open(postgres.Open(url), gormConfig())
		if err != nil {
			return Database{}, fmt.Errorf("open postgres: %w", err)
		}
		return Database{db: db, postgres: true}, nil
	default:
		return Database{}, fmt.Errorf("unsupported database url: %s", url)
	}
}

func openSQLite(path string) (Database, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return Database{}, fmt.Errorf("open sqlite: %w", err)
	}
	return Database{db: db}, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: newGormLogger()}
}

// GORM returns the raw gorm handle.
func (d Database) GORM() *gorm.DB { return d.db }

// Session returns a context-scoped gorm session.
func (d Database) Session(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

// IsPostgres reports whether the connection uses the postgres dialect.
func (d Database) IsPostgres() bool { return d.postgres }

// Close releases the underlying connection pool.
func (d Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

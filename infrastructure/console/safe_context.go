package console

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/codescope/codescope/internal/database"
)

// errRollbackOnly aborts the wrapping transaction after the handler has
// finished, so its work is discarded even on success.
var errRollbackOnly = errors.New("console: rollback-only transaction")

// SafeContext runs every console query inside a transaction that is
// unconditionally rolled back, with a dialect-aware statement timeout.
// Nothing a handler does inside Execute can commit.
type SafeContext struct {
	db        database.Database
	timeoutMS int
}

// NewSafeContext creates a SafeContext with the given statement timeout in
// milliseconds.
func NewSafeContext(db database.Database, timeoutMS int) *SafeContext {
	if timeoutMS <= 0 {
		timeoutMS = 5000
	}
	return &SafeContext{db: db, timeoutMS: timeoutMS}
}

// Execute runs fn inside the rollback-only transaction. The error fn
// returns (or nil) is passed through; the rollback itself never surfaces
// as an error.
func (s *SafeContext) Execute(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var fnErr error
	txErr := s.db.Session(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.applyStatementTimeout(tx); err != nil {
			return err
		}
		fnErr = fn(tx)
		if fnErr != nil {
			return fnErr
		}
		// Force the rollback on the success path too.
		return errRollbackOnly
	})
	if txErr != nil && !errors.Is(txErr, errRollbackOnly) {
		return txErr
	}
	return fnErr
}

// applyStatementTimeout sets the per-transaction statement timeout using
// the dialect's mechanism. SQLite has no equivalent; callers rely on the
// tool-server deadline there.
func (s *SafeContext) applyStatementTimeout(tx *gorm.DB) error {
	if s.db.IsPostgres() {
		return tx.Exec(fmt.Sprintf("SET LOCAL statement_timeout = %d", s.timeoutMS)).Error
	}
	if tx.Dialector.Name() == "mysql" {
		return tx.Exec(fmt.Sprintf("SET SESSION max_execution_time = %d", s.timeoutMS)).Error
	}
	return nil
}

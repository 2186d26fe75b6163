package database

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm/logger"
)

// slowQueryThreshold marks queries worth warning about.
const slowQueryThreshold = 500 * time.Millisecond

// gormLogger routes gorm's logging through slog, keeping SQL noise at
// debug level.
type gormLogger struct {
	level logger.LogLevel
}

func newGormLogger() logger.Interface {
	return &gormLogger{level: logger.Warn}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		slog.Info(msg, slog.Any("args", args))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		slog.Warn(msg, slog.Any("args", args))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		slog.Error(msg, slog.Any("args", args))
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	switch {
	case err != nil:
		slog.Debug("query failed", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case elapsed > slowQueryThreshold:
		slog.Warn("slow query", "sql", sql, "rows", rows, "elapsed", elapsed)
	default:
		slog.Debug("query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}

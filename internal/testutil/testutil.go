// Package testutil wires throwaway SQLite databases for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/richardliu001/ledger-service/internal/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenDB returns a migrated file-backed SQLite database. SQLite has no row
// locks, so the pool is capped at one connection: every atomic unit then runs
// alone, which is what FOR UPDATE guarantees on Postgres.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "ledger.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func Logger(t testing.TB) *zap.SugaredLogger {
	return zaptest.NewLogger(t).Sugar()
}

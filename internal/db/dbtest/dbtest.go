// Package dbtest поднимает SQLite в памяти с той же схемой, что и в Postgres, для тестов.
package dbtest

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paid-channel-bot/internal/db"
)

// New возвращает чистую базу на время теста. Одно соединение, чтобы :memory: не терялась между запросами.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

// NewStore то же, что New, но сразу обёрнутое в db.Store
func NewStore(t testing.TB) *db.Store {
	return db.NewStore(New(t))
}

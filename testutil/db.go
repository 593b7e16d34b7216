package testutil

import (
	"path/filepath"
	"testing"

	"creator-portal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory database. It is pinned to one connection since
// every sqlite :memory: connection is a separate database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	return open(t, ":memory:", 1)
}

// NewSharedDB returns a migrated file database in WAL mode that several connections
// use at once. Writers take the lock at BEGIN and wait up to 5s for each other, which
// mirrors row locking closely enough for concurrent-review tests.
func NewSharedDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "portal.db") +
		"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	return open(t, dsn, 8)
}

func open(t *testing.T, dsn string, maxConns int) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(maxConns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	return db
}

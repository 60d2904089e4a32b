package tester

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/emrgen/knowledge/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB opens a migrated sqlite database in a temporary directory owned by t.
func TestDB(t testing.TB) *gorm.DB {
	t.Helper()

	_ = os.Setenv("ENV", "test")

	path := filepath.Join(t.TempDir(), "knowledge.db")
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	err = model.Migrate(db)
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

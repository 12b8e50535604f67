// Package repotest provides throwaway databases for tests.
package repotest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rohits-web03/chainforge/internal/repositories"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database closed at test end.
// It holds a single connection, so code under test must run transactional
// work on the transaction handle only.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repositories.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

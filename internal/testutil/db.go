package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/orderdesk/orderdesk/internal/domain"
)

var dbSeq int64

// OpenTestDB returns an isolated in-memory database with the full
// schema migrated. The pool is capped at one connection so concurrent
// transactions serialize instead of tripping over SQLite table locks.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("%s_%d", sanitizeName(t.Name()), atomic.AddInt64(&dbSeq, 1))
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(domain.Tables...); err != nil {
		t.Fatalf("migrate test schema: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func sanitizeName(name string) string {
	return strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(name)
}

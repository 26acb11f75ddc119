package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/curriculum-orchestrator/internal/data/db"
	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.Nop()
}

// DB opens a private in-memory database with the full schema.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		tb.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrateAll(gdb); err != nil {
		tb.Fatalf("automigrate: %v", err)
	}
	return gdb
}

func Ctx() dbctx.Context { return dbctx.New(context.Background()) }

func SeedTenant(tb testing.TB, gdb *gorm.DB, slug string) *types.Tenant {
	tb.Helper()
	t := &types.Tenant{Slug: slug, Name: slug, Active: true}
	if err := gdb.Create(t).Error; err != nil {
		tb.Fatalf("seed tenant: %v", err)
	}
	return t
}

func SeedFaculty(tb testing.TB, gdb *gorm.DB, tenantID uuid.UUID, slug string) *types.Faculty {
	tb.Helper()
	f := &types.Faculty{TenantID: tenantID, Slug: slug, Name: slug}
	if err := gdb.Create(f).Error; err != nil {
		tb.Fatalf("seed faculty: %v", err)
	}
	return f
}

package tables

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"xihong/internal/infrastructure/persistence/sqlite/repository"
	"xihong/internal/ports"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "tables.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

func TestEnsureTableCreatesOnce(t *testing.T) {
	db := setupDB(t)
	p := NewProvisioner(db)
	ctx := context.Background()

	name, err := p.EnsureTable(ctx, "Shopee", "services", "", "monthly")
	if err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	if name != "fact_shopee_services_agent_monthly" {
		t.Fatalf("EnsureTable() name = %q", name)
	}
	if !db.Migrator().HasTable(name) {
		t.Fatalf("table %s was not created", name)
	}

	// a fresh provisioner must tolerate an existing table
	again, err := NewProvisioner(db).EnsureTable(ctx, "shopee", "services", "agent", "monthly")
	if err != nil || again != name {
		t.Fatalf("EnsureTable() second call = %q, %v", again, err)
	}
}

func TestEnsureTableRejectsUnknownRouting(t *testing.T) {
	p := NewProvisioner(setupDB(t))
	if _, err := p.EnsureTable(context.Background(), "ebay", "orders", "", "daily"); err == nil {
		t.Fatalf("EnsureTable() expected error for unknown platform")
	}
}

func TestProvisionedTableAcceptsRawRows(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	name, err := NewProvisioner(db).EnsureTable(ctx, "lazada", "orders", "", "daily")
	if err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}

	day := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	facts := repository.NewFactRepository(db)
	rows := []ports.RawFactRow{
		{CatalogID: 1, RowNumber: 1, ShopID: "s1", MetricDate: &day, Raw: map[string]any{"order_id": "A"}},
		{CatalogID: 1, RowNumber: 2, ShopID: "s1", Raw: map[string]any{"order_id": "B"}},
	}
	if err := facts.AppendRaw(ctx, name, rows); err != nil {
		t.Fatalf("AppendRaw() error = %v", err)
	}
	// re-running the same file replaces rather than duplicates
	if err := facts.AppendRaw(ctx, name, rows); err != nil {
		t.Fatalf("AppendRaw() rerun error = %v", err)
	}

	var count int64
	if err := db.Table(name).Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 2 {
		t.Fatalf("row count = %d, want 2", count)
	}
}

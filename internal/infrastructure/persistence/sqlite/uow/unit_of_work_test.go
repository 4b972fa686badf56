package uow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"xihong/internal/infrastructure/persistence/sqlite/model"
	"xihong/internal/ports"
)

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "uow.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.KV{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	u := NewUnitOfWork(db)
	ctx := context.Background()

	err = u.WithTx(ctx, func(txCtx context.Context) error {
		if ports.TxFromContext(txCtx) == nil {
			t.Fatalf("WithTx() expected tx in context")
		}
		tx := ports.TxFromContext(txCtx).(*gorm.DB)
		return tx.Create(&model.KV{Key: "a", Value: "1", UpdatedAt: "now"}).Error
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	boom := errors.New("boom")
	err = u.WithTx(ctx, func(txCtx context.Context) error {
		tx := ports.TxFromContext(txCtx).(*gorm.DB)
		if err := tx.Create(&model.KV{Key: "b", Value: "2", UpdatedAt: "now"}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	var count int64
	if err := db.Model(&model.KV{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}
}

func TestClassifyLockErrors(t *testing.T) {
	err := classify(errors.New("database is locked (5) (SQLITE_BUSY)"))
	if !errors.Is(err, ports.ErrTransient) {
		t.Fatalf("classify() = %v, want ErrTransient", err)
	}
	if err := classify(errors.New("UNIQUE constraint failed")); errors.Is(err, ports.ErrTransient) {
		t.Fatalf("classify() constraint error should not be transient")
	}
	if classify(nil) != nil {
		t.Fatalf("classify(nil) expected nil")
	}
}

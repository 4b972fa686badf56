package uow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"xihong/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm.
type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
	return classify(err)
}

var lockMarkers = []string{
	"database is locked",
	"database table is locked",
	"sqlite_busy",
	"sqlite_locked",
	"(5)",
	"(6)",
}

// classify wraps SQLite lock contention with ports.ErrTransient.
func classify(err error) error {
	if err == nil || errors.Is(err, ports.ErrTransient) {
		return err
	}
	if IsLockError(err) {
		return fmt.Errorf("%w: %w", ports.ErrTransient, err)
	}
	return err
}

func IsLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "lock") && !strings.Contains(msg, "busy") {
		return false
	}
	for _, marker := range lockMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

package tables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"xihong/internal/bootstrap/logging"
	"xihong/internal/domain/ingest"
	"xihong/internal/errs"
	"xihong/internal/infrastructure/persistence/sqlite/model"
	"xihong/internal/ports"
)

// Provisioner creates fact_{platform}_{domain}[_{sub}]_{granularity}
// landing tables the first time a routing combination is seen.
type Provisioner struct {
	db *gorm.DB

	mu    sync.Mutex
	known map[string]struct{}
}

var _ ports.TableProvisioner = (*Provisioner)(nil)

func NewProvisioner(db *gorm.DB) *Provisioner {
	return &Provisioner{db: db, known: make(map[string]struct{})}
}

func (p *Provisioner) EnsureTable(ctx context.Context, platform string, domain string, subDomain string, granularity string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	routing, err := ingest.NormalizeRouting(ingest.Routing{
		Platform:    platform,
		Domain:      domain,
		SubDomain:   subDomain,
		Granularity: granularity,
	})
	if err != nil {
		return "", err
	}
	name := ingest.TableName(routing.Platform, routing.Domain, routing.SubDomain, routing.Granularity)

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.known[name]; ok {
		return name, nil
	}

	db := p.db.WithContext(ctx)
	tx, inTx := ports.TxFromContext(ctx).(*gorm.DB)
	if inTx && tx != nil {
		db = tx.WithContext(ctx)
	}

	if !db.Migrator().HasTable(name) {
		if err := db.Table(name).Migrator().CreateTable(&model.PlatformFactRow{}); err != nil {
			return "", errs.Wrapf(err, "create table %s", name)
		}
		logging.Info(
			logging.WithAttrs(ctx, slog.String("component", "tables.provisioner")),
			"fact table created",
			slog.String("table", name),
		)
	}

	index := fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS "ux_%s_row" ON "%s" ("catalog_id", "row_number")`, name, name)
	if err := db.Exec(index).Error; err != nil {
		return "", errs.Wrapf(err, "create row index on %s", name)
	}

	// DDL inside a transaction can still be rolled back.
	if !inTx {
		p.known[name] = struct{}{}
	}
	return name, nil
}

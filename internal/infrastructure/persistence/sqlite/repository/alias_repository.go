package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"xihong/internal/errs"
	"xihong/internal/infrastructure/persistence/sqlite/model"
	"xihong/internal/ports"
)

type AliasRepository struct {
	db *gorm.DB
}

var _ ports.AliasRepository = (*AliasRepository)(nil)

func NewAliasRepository(db *gorm.DB) *AliasRepository {
	return &AliasRepository{db: db}
}

func (r *AliasRepository) ListActive(ctx context.Context) ([]ports.AccountAlias, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.AccountAlias
	if err := db.Where("active = ?", true).Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query account aliases")
	}

	out := make([]ports.AccountAlias, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.AccountAlias{
			Platform:      row.Platform,
			Account:       row.Account,
			Site:          row.Site,
			StoreLabelRaw: row.StoreLabelRaw,
			TargetID:      row.TargetID,
			Active:        row.Active,
		})
	}
	return out, nil
}

func (r *AliasRepository) Upsert(ctx context.Context, alias ports.AccountAlias) error {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	row := model.AccountAlias{
		Platform:      alias.Platform,
		Account:       alias.Account,
		Site:          alias.Site,
		StoreLabelRaw: alias.StoreLabelRaw,
		TargetID:      alias.TargetID,
		Active:        alias.Active,
		UpdatedAt:     formatTime(time.Now()),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "platform"}, {Name: "account"}, {Name: "site"}, {Name: "store_label_raw"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"target_id", "active", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert account alias")
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"xihong/internal/errs"
	"xihong/internal/infrastructure/persistence/sqlite/model"
	"xihong/internal/ports"
)

type FXRateRepository struct {
	db *gorm.DB
}

var _ ports.FXRateRepository = (*FXRateRepository)(nil)

func NewFXRateRepository(db *gorm.DB) *FXRateRepository {
	return &FXRateRepository{db: db}
}

func (r *FXRateRepository) NearestRate(ctx context.Context, currency string, asOf time.Time) (ports.FXRate, bool, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.FXRate{}, false, err
	}

	var row model.FXRate
	if err := db.
		Where("currency = ? AND rate_date <= ?", strings.ToUpper(currency), formatDate(asOf)).
		Order("rate_date desc").
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.FXRate{}, false, nil
		}
		return ports.FXRate{}, false, errs.Wrap(err, "query fx rate")
	}
	return ports.FXRate{
		Currency:   row.Currency,
		RateDate:   parseDate(row.RateDate),
		RateToBase: row.RateToBase,
	}, true, nil
}

func (r *FXRateRepository) UpsertRate(ctx context.Context, rate ports.FXRate) error {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	row := model.FXRate{
		Currency:   strings.ToUpper(rate.Currency),
		RateDate:   formatDate(rate.RateDate),
		RateToBase: rate.RateToBase,
		UpdatedAt:  formatTime(time.Now()),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "currency"}, {Name: "rate_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate_to_base", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert fx rate")
	}
	return nil
}

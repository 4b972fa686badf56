package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"xihong/internal/errs"
	"xihong/internal/infrastructure/persistence/sqlite/model"
	"xihong/internal/ports"
)

type QuarantineRepository struct {
	db *gorm.DB
}

var _ ports.QuarantineRepository = (*QuarantineRepository)(nil)

func NewQuarantineRepository(db *gorm.DB) *QuarantineRepository {
	return &QuarantineRepository{db: db}
}

func (r *QuarantineRepository) Append(ctx context.Context, record ports.QuarantineRecord) (ports.QuarantineRecord, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.QuarantineRecord{}, err
	}

	payload, err := json.Marshal(record.RowData)
	if err != nil {
		return ports.QuarantineRecord{}, errs.Wrap(err, "encode quarantine row")
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	row := model.DataQuarantine{
		CatalogID: record.CatalogID,
		FilePath:  record.FilePath,
		RowNumber: record.RowNumber,
		RowData:   datatypes.JSON(payload),
		ErrorType: record.ErrorType,
		ErrorMsg:  record.ErrorMsg,
		RunID:     record.RunID,
		CreatedAt: formatTime(createdAt),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.QuarantineRecord{}, errs.Wrap(err, "insert quarantine record")
	}
	return mapQuarantine(row), nil
}

func (r *QuarantineRepository) List(ctx context.Context, filter ports.QuarantineFilter) ([]ports.QuarantineRecord, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.DataQuarantine{})
	if filter.CatalogID > 0 {
		query = query.Where("catalog_file_id = ?", filter.CatalogID)
	}
	if errorType := strings.TrimSpace(filter.ErrorType); errorType != "" {
		query = query.Where("error_type = ?", errorType)
	}
	if !filter.IncludeResolved {
		query = query.Where("is_resolved = ?", false)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.DataQuarantine
	if err := query.Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query quarantine records")
	}

	out := make([]ports.QuarantineRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapQuarantine(row))
	}
	return out, nil
}

func (r *QuarantineRepository) Get(ctx context.Context, id uint64) (ports.QuarantineRecord, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.QuarantineRecord{}, err
	}

	var row model.DataQuarantine
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.QuarantineRecord{}, fmt.Errorf("%w: %d", ports.ErrQuarantineNotFound, id)
		}
		return ports.QuarantineRecord{}, errs.Wrap(err, "query quarantine record")
	}
	return mapQuarantine(row), nil
}

func (r *QuarantineRepository) Resolve(ctx context.Context, id uint64, at time.Time) error {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.DataQuarantine{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_resolved": true,
			"resolved_at": formatTime(at),
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "resolve quarantine record")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ports.ErrQuarantineNotFound, id)
	}
	return nil
}

func mapQuarantine(row model.DataQuarantine) ports.QuarantineRecord {
	var data map[string]any
	if len(row.RowData) > 0 {
		_ = json.Unmarshal(row.RowData, &data)
	}
	return ports.QuarantineRecord{
		ID:         row.ID,
		CatalogID:  row.CatalogID,
		FilePath:   row.FilePath,
		RowNumber:  row.RowNumber,
		RowData:    data,
		ErrorType:  row.ErrorType,
		ErrorMsg:   row.ErrorMsg,
		RunID:      row.RunID,
		IsResolved: row.IsResolved,
		CreatedAt:  parseTime(row.CreatedAt),
		ResolvedAt: parseTimePtr(row.ResolvedAt),
	}
}

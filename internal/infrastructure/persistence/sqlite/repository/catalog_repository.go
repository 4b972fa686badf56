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

	"xihong/internal/domain/ingest"
	"xihong/internal/errs"
	"xihong/internal/infrastructure/persistence/sqlite/model"
	"xihong/internal/ports"
)

type CatalogRepository struct {
	db *gorm.DB
}

var _ ports.CatalogRepository = (*CatalogRepository)(nil)

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// FindByHashOrPath prefers a hash match so a moved file resolves to its
// original row even when another row already holds the new path.
func (r *CatalogRepository) FindByHashOrPath(ctx context.Context, fileHash string, filePath string) (ports.CatalogFile, bool, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.CatalogFile{}, false, err
	}

	var rows []model.CatalogFile
	if err := db.
		Where("file_hash = ? OR file_path = ?", fileHash, filePath).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return ports.CatalogFile{}, false, errs.Wrap(err, "query catalog by hash or path")
	}
	if len(rows) == 0 {
		return ports.CatalogFile{}, false, nil
	}
	for _, row := range rows {
		if row.FileHash == fileHash {
			return mapCatalogFile(row), true, nil
		}
	}
	return mapCatalogFile(rows[0]), true, nil
}

func (r *CatalogRepository) Create(ctx context.Context, file ports.CatalogFile) (ports.CatalogFile, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.CatalogFile{}, err
	}

	row := toCatalogModel(file)
	row.ID = 0
	if err := db.Create(&row).Error; err != nil {
		return ports.CatalogFile{}, errs.Wrap(err, "insert catalog file")
	}
	return mapCatalogFile(row), nil
}

func (r *CatalogRepository) Update(ctx context.Context, file ports.CatalogFile) error {
	if file.ID == 0 {
		return errors.New("catalog file id is required")
	}
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	row := toCatalogModel(file)
	result := db.Model(&model.CatalogFile{}).Where("id = ?", file.ID).Select("*").Omit("id").Updates(&row)
	if result.Error != nil {
		return errs.Wrap(result.Error, "update catalog file")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ports.ErrCatalogFileNotFound, file.ID)
	}
	return nil
}

func (r *CatalogRepository) Get(ctx context.Context, id uint64) (ports.CatalogFile, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.CatalogFile{}, err
	}

	var row model.CatalogFile
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.CatalogFile{}, fmt.Errorf("%w: %d", ports.ErrCatalogFileNotFound, id)
		}
		return ports.CatalogFile{}, errs.Wrap(err, "query catalog file")
	}
	return mapCatalogFile(row), nil
}

func (r *CatalogRepository) ListPending(ctx context.Context, filter ports.CatalogPendingFilter) ([]ports.CatalogFile, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.CatalogFile{}).Where("status = ?", ports.CatalogStatusPending)
	if domains := normalizeList(filter.Domains); len(domains) > 0 {
		query = query.Where("data_domain IN ?", domains)
	}
	if filter.SeenAfter != nil {
		query = query.Where("first_seen_at >= ?", formatTime(*filter.SeenAfter))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.CatalogFile
	if err := query.Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query pending catalog files")
	}
	return mapCatalogFiles(rows), nil
}

func (r *CatalogRepository) List(ctx context.Context, filter ports.CatalogListFilter) ([]ports.CatalogFile, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.CatalogFile{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if domain := strings.TrimSpace(filter.Domain); domain != "" {
		query = query.Where("data_domain = ?", domain)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.CatalogFile
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query catalog files")
	}
	return mapCatalogFiles(rows), nil
}

func (r *CatalogRepository) MarkOutcome(ctx context.Context, id uint64, status string, message string, at time.Time) error {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	processedAt := formatTime(at)
	result := db.Model(&model.CatalogFile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            status,
			"error_message":     message,
			"last_processed_at": processedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update catalog status")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ports.ErrCatalogFileNotFound, id)
	}
	return nil
}

func (r *CatalogRepository) CountByStatusDomain(ctx context.Context) ([]ports.CatalogCount, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Status     string
		DataDomain string
		Count      int64
	}
	if err := db.Model(&model.CatalogFile{}).
		Select("status, data_domain, count(*) as count").
		Group("status, data_domain").
		Order("status asc, data_domain asc").
		Scan(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "count catalog files")
	}

	out := make([]ports.CatalogCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.CatalogCount{Status: row.Status, Domain: row.DataDomain, Count: row.Count})
	}
	return out, nil
}

func (r *CatalogRepository) ResetFailed(ctx context.Context, ids []uint64) (int64, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return 0, err
	}

	query := db.Model(&model.CatalogFile{}).Where("status = ?", ports.CatalogStatusFailed)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	result := query.Updates(map[string]any{
		"status":        ports.CatalogStatusPending,
		"error_message": "",
	})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "reset failed catalog files")
	}
	return result.RowsAffected, nil
}

func toCatalogModel(file ports.CatalogFile) model.CatalogFile {
	shopID := file.ShopID
	if shopID == "" {
		shopID = ingest.UnresolvedShopID
	}
	status := file.Status
	if status == "" {
		status = ports.CatalogStatusPending
	}
	storage := file.StorageLayer
	if storage == "" {
		storage = "raw"
	}
	firstSeen := file.FirstSeenAt
	if firstSeen.IsZero() {
		firstSeen = time.Now()
	}

	return model.CatalogFile{
		ID:           file.ID,
		FilePath:     file.FilePath,
		FileName:     file.FileName,
		FileSize:     file.FileSize,
		FileHash:     file.FileHash,
		Source:       file.Source,
		PlatformCode: file.PlatformCode,
		DataDomain:   file.DataDomain,
		SubDomain:    file.SubDomain,
		Granularity:  file.Granularity,
		ShopID:       shopID,
		Account:      file.Account,
		ShopResolution: datatypes.JSONMap{
			"shop_id":    file.ShopResolution.ShopID,
			"confidence": file.ShopResolution.Confidence,
			"source":     file.ShopResolution.Source,
			"detail":     file.ShopResolution.Detail,
		},
		DateFrom:        formatDatePtr(file.DateFrom),
		DateTo:          formatDatePtr(file.DateTo),
		Status:          status,
		ErrorMessage:    file.ErrorMessage,
		QualityScore:    file.QualityScore,
		StorageLayer:    storage,
		MetaFilePath:    file.MetaFilePath,
		FirstSeenAt:     formatTime(firstSeen),
		LastProcessedAt: formatTimePtr(file.LastProcessedAt),
	}
}

func mapCatalogFile(row model.CatalogFile) ports.CatalogFile {
	return ports.CatalogFile{
		ID:              row.ID,
		FilePath:        row.FilePath,
		FileName:        row.FileName,
		FileSize:        row.FileSize,
		FileHash:        row.FileHash,
		Source:          row.Source,
		PlatformCode:    row.PlatformCode,
		DataDomain:      row.DataDomain,
		SubDomain:       row.SubDomain,
		Granularity:     row.Granularity,
		ShopID:          row.ShopID,
		Account:         row.Account,
		ShopResolution:  mapShopResolution(row.ShopResolution),
		DateFrom:        parseDatePtr(row.DateFrom),
		DateTo:          parseDatePtr(row.DateTo),
		Status:          row.Status,
		ErrorMessage:    row.ErrorMessage,
		QualityScore:    row.QualityScore,
		StorageLayer:    row.StorageLayer,
		MetaFilePath:    row.MetaFilePath,
		FirstSeenAt:     parseTime(row.FirstSeenAt),
		LastProcessedAt: parseTimePtr(row.LastProcessedAt),
	}
}

func mapCatalogFiles(rows []model.CatalogFile) []ports.CatalogFile {
	out := make([]ports.CatalogFile, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapCatalogFile(row))
	}
	return out
}

func mapShopResolution(m datatypes.JSONMap) ingest.ShopResolution {
	var out ingest.ShopResolution
	if m == nil {
		return out
	}
	if v, ok := m["shop_id"].(string); ok {
		out.ShopID = v
	}
	switch v := m["confidence"].(type) {
	case float64:
		out.Confidence = v
	case int:
		out.Confidence = float64(v)
	case json.Number:
		// JSONMap.Scan decodes numbers with UseNumber.
		if f, err := v.Float64(); err == nil {
			out.Confidence = f
		}
	}
	if v, ok := m["source"].(string); ok {
		out.Source = v
	}
	if v, ok := m["detail"].(string); ok {
		out.Detail = v
	}
	return out
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

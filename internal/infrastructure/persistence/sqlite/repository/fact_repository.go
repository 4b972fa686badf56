package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"xihong/internal/domain/ingest"
	"xihong/internal/errs"
	"xihong/internal/infrastructure/persistence/sqlite/model"
	"xihong/internal/ports"
)

var factTablePattern = regexp.MustCompile(`^fact_[a-z0-9_]+$`)

// metric name -> pointer into the model row
var metricColumns = map[string]func(*model.FactProductMetric) **float64{
	ingest.MetricSalesAmount:     func(m *model.FactProductMetric) **float64 { return &m.SalesAmount },
	ingest.MetricSalesAmountBase: func(m *model.FactProductMetric) **float64 { return &m.SalesAmountBase },
	ingest.MetricSalesVolume:     func(m *model.FactProductMetric) **float64 { return &m.SalesVolume },
	ingest.MetricPageViews:       func(m *model.FactProductMetric) **float64 { return &m.PageViews },
	ingest.MetricUniqueVisitors:  func(m *model.FactProductMetric) **float64 { return &m.UniqueVisitors },
	ingest.MetricAddToCart:       func(m *model.FactProductMetric) **float64 { return &m.AddToCartCount },
	ingest.MetricConversionRate:  func(m *model.FactProductMetric) **float64 { return &m.ConversionRate },
	ingest.MetricOrderCount:      func(m *model.FactProductMetric) **float64 { return &m.OrderCount },
	ingest.MetricRefundAmount:    func(m *model.FactProductMetric) **float64 { return &m.RefundAmount },
}

type FactRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.FactRepository = (*FactRepository)(nil)

func NewFactRepository(db *gorm.DB) *FactRepository {
	return &FactRepository{db: db, now: time.Now}
}

// UpsertProductMetric merges metric columns into the keyed row. Columns
// the input does not carry keep their stored value.
func (r *FactRepository) UpsertProductMetric(ctx context.Context, metric ports.ProductMetric) error {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	scope := metric.Scope
	if scope == "" {
		scope = ingest.ScopeProduct
	}
	row := model.FactProductMetric{
		Platform:        metric.Platform,
		ShopID:          metric.ShopID,
		SKU:             metric.SKU,
		MetricDate:      formatDate(metric.MetricDate),
		Granularity:     metric.Granularity,
		SKUScope:        scope,
		ParentSKU:       metric.ParentSKU,
		Currency:        metric.Currency,
		PeriodStart:     formatDatePtr(metric.PeriodStart),
		PeriodEnd:       formatDatePtr(metric.PeriodEnd),
		SourceCatalogID: metric.CatalogID,
		UpdatedAt:       formatTime(r.now()),
	}

	updates := []string{"source_catalog_id", "updated_at", "parent_platform_sku"}
	names := make([]string, 0, len(metric.Metrics))
	for name := range metric.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		field, ok := metricColumns[name]
		if !ok {
			continue
		}
		v := metric.Metrics[name]
		*field(&row) = &v
		updates = append(updates, name)
	}
	if metric.Currency != "" {
		updates = append(updates, "currency")
	}
	if row.PeriodStart != nil {
		updates = append(updates, "period_start_date")
	}
	if row.PeriodEnd != nil {
		updates = append(updates, "period_end_date")
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "platform"}, {Name: "shop_id"}, {Name: "sku"},
			{Name: "metric_date"}, {Name: "granularity"}, {Name: "sku_scope"},
		},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert product metric")
	}
	return nil
}

func (r *FactRepository) GetProductMetric(ctx context.Context, platform string, shopID string, sku string, metricDate time.Time, granularity string) (ports.ProductMetric, bool, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.ProductMetric{}, false, err
	}

	var row model.FactProductMetric
	if err := db.Where(
		"platform = ? AND shop_id = ? AND sku = ? AND metric_date = ? AND granularity = ?",
		platform, shopID, sku, formatDate(metricDate), granularity,
	).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ProductMetric{}, false, nil
		}
		return ports.ProductMetric{}, false, errs.Wrap(err, "query product metric")
	}

	out := ports.ProductMetric{
		Platform:    row.Platform,
		ShopID:      row.ShopID,
		SKU:         row.SKU,
		MetricDate:  parseDate(row.MetricDate),
		Granularity: row.Granularity,
		Scope:       row.SKUScope,
		ParentSKU:   row.ParentSKU,
		Currency:    row.Currency,
		PeriodStart: parseDatePtr(row.PeriodStart),
		PeriodEnd:   parseDatePtr(row.PeriodEnd),
		CatalogID:   row.SourceCatalogID,
		Metrics:     ingest.Metrics{},
	}
	for name, field := range metricColumns {
		if v := *field(&row); v != nil {
			out.Metrics[name] = *v
		}
	}
	return out, true, nil
}

// EnsureProduct inserts the dimension row or fills title and image when
// the stored values are empty.
func (r *FactRepository) EnsureProduct(ctx context.Context, product ports.Product) error {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	now := formatTime(r.now())
	row := model.DimProduct{
		Platform:  product.Platform,
		ShopID:    product.ShopID,
		SKU:       product.SKU,
		Title:     product.Title,
		ImageURL:  product.ImageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "platform"}, {Name: "shop_id"}, {Name: "sku"}},
		DoUpdates: clause.Assignments(map[string]any{
			"title":      gorm.Expr("CASE WHEN title = '' THEN excluded.title ELSE title END"),
			"image_url":  gorm.Expr("CASE WHEN image_url = '' THEN excluded.image_url ELSE image_url END"),
			"updated_at": now,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "ensure product")
	}
	return nil
}

// UpsertOrder writes the order keyed by (platform, shop, order id). A nil
// date, base total or empty currency never clears a stored value.
func (r *FactRepository) UpsertOrder(ctx context.Context, order ports.Order) error {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	row := model.FactOrder{
		Platform:        order.Platform,
		ShopID:          order.ShopID,
		OrderID:         order.OrderID,
		OrderDate:       formatDatePtr(order.OrderDate),
		Subtotal:        order.Subtotal,
		ShippingFee:     order.ShippingFee,
		TaxAmount:       order.Tax,
		Discount:        order.Discount,
		TotalAmount:     order.Total,
		TotalBase:       order.TotalBase,
		Currency:        order.Currency,
		SourceCatalogID: order.CatalogID,
		UpdatedAt:       formatTime(r.now()),
	}

	updates := []string{"subtotal", "shipping_fee", "tax_amount", "discount_amount", "total_amount", "source_catalog_id", "updated_at"}
	if row.OrderDate != nil {
		updates = append(updates, "order_date")
	}
	if row.TotalBase != nil {
		updates = append(updates, "total_amount_base")
	}
	if row.Currency != "" {
		updates = append(updates, "currency")
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform"}, {Name: "shop_id"}, {Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert order")
	}
	return nil
}

func (r *FactRepository) GetOrder(ctx context.Context, platform string, shopID string, orderID string) (ports.Order, bool, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.Order{}, false, err
	}

	var row model.FactOrder
	if err := db.Where("platform = ? AND shop_id = ? AND order_id = ?", platform, shopID, orderID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Order{}, false, nil
		}
		return ports.Order{}, false, errs.Wrap(err, "query order")
	}
	return ports.Order{
		Platform:    row.Platform,
		ShopID:      row.ShopID,
		OrderID:     row.OrderID,
		OrderDate:   parseDatePtr(row.OrderDate),
		Subtotal:    row.Subtotal,
		ShippingFee: row.ShippingFee,
		Tax:         row.TaxAmount,
		Discount:    row.Discount,
		Total:       row.TotalAmount,
		TotalBase:   row.TotalBase,
		Currency:    row.Currency,
		CatalogID:   row.SourceCatalogID,
	}, true, nil
}

// AppendRaw lands rows in a provisioned table. Re-running a file replaces
// its rows by (catalog_id, row_number).
func (r *FactRepository) AppendRaw(ctx context.Context, table string, rows []ports.RawFactRow) error {
	if !factTablePattern.MatchString(table) {
		return fmt.Errorf("invalid fact table name %q", table)
	}
	if len(rows) == 0 {
		return nil
	}
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	now := formatTime(r.now())
	batch := make([]model.PlatformFactRow, 0, len(rows))
	for _, in := range rows {
		raw, err := json.Marshal(in.Raw)
		if err != nil {
			return errs.Wrapf(err, "encode row %d", in.RowNumber)
		}
		batch = append(batch, model.PlatformFactRow{
			CatalogID:   in.CatalogID,
			RowNumber:   in.RowNumber,
			ShopID:      in.ShopID,
			MetricDate:  formatDatePtr(in.MetricDate),
			PeriodStart: formatDatePtr(in.PeriodStart),
			PeriodEnd:   formatDatePtr(in.PeriodEnd),
			Raw:         datatypes.JSON(raw),
			IngestedAt:  now,
		})
	}

	if err := db.Table(table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "catalog_id"}, {Name: "row_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"shop_id", "metric_date", "period_start_date", "period_end_date", "raw", "ingested_at"}),
	}).CreateInBatches(&batch, 200).Error; err != nil {
		return errs.Wrapf(err, "insert rows into %s", table)
	}
	return nil
}

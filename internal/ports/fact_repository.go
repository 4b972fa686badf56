package ports

import (
	"context"
	"time"

	"xihong/internal/domain/ingest"
)

// ProductMetric is one row keyed by (platform, shop, sku, date,
// granularity, scope). Only metrics present in Metrics are written.
type ProductMetric struct {
	Platform    string
	ShopID      string
	SKU         string
	MetricDate  time.Time
	Granularity string
	Scope       string
	ParentSKU   string
	Currency    string
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	CatalogID   uint64
	Metrics     ingest.Metrics
}

type Product struct {
	Platform string
	ShopID   string
	SKU      string
	Title    string
	ImageURL string
}

// Order is keyed by (platform, shop, order id). Amounts default to zero.
type Order struct {
	Platform    string
	ShopID      string
	OrderID     string
	OrderDate   *time.Time
	Subtotal    float64
	ShippingFee float64
	Tax         float64
	Discount    float64
	Total       float64
	TotalBase   *float64
	Currency    string
	CatalogID   uint64
}

// RawFactRow lands a standardized row in a provisioned platform table.
type RawFactRow struct {
	CatalogID   uint64
	RowNumber   int
	ShopID      string
	MetricDate  *time.Time
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	Raw         map[string]any
}

type FactRepository interface {
	UpsertProductMetric(ctx context.Context, metric ProductMetric) error
	GetProductMetric(ctx context.Context, platform string, shopID string, sku string, metricDate time.Time, granularity string) (ProductMetric, bool, error)
	EnsureProduct(ctx context.Context, product Product) error
	UpsertOrder(ctx context.Context, order Order) error
	GetOrder(ctx context.Context, platform string, shopID string, orderID string) (Order, bool, error)
	AppendRaw(ctx context.Context, table string, rows []RawFactRow) error
}

package model

// FactProductMetric metric columns are nullable: absent means the source
// file did not carry the metric.
type FactProductMetric struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Platform    string `gorm:"column:platform;type:text;not null;uniqueIndex:ux_product_metric_key,priority:1"`
	ShopID      string `gorm:"column:shop_id;type:text;not null;uniqueIndex:ux_product_metric_key,priority:2"`
	SKU         string `gorm:"column:sku;type:text;not null;uniqueIndex:ux_product_metric_key,priority:3"`
	MetricDate  string `gorm:"column:metric_date;type:text;not null;uniqueIndex:ux_product_metric_key,priority:4"`
	Granularity string `gorm:"column:granularity;type:text;not null;uniqueIndex:ux_product_metric_key,priority:5"`
	SKUScope    string `gorm:"column:sku_scope;type:text;not null;uniqueIndex:ux_product_metric_key,priority:6"`

	ParentSKU   string  `gorm:"column:parent_platform_sku;type:text;not null;default:''"`
	Currency    string  `gorm:"column:currency;type:text;not null;default:''"`
	PeriodStart *string `gorm:"column:period_start_date;type:text"`
	PeriodEnd   *string `gorm:"column:period_end_date;type:text"`

	SalesAmount     *float64 `gorm:"column:sales_amount"`
	SalesAmountBase *float64 `gorm:"column:sales_amount_base"`
	SalesVolume     *float64 `gorm:"column:sales_volume"`
	PageViews       *float64 `gorm:"column:page_views"`
	UniqueVisitors  *float64 `gorm:"column:unique_visitors"`
	AddToCartCount  *float64 `gorm:"column:add_to_cart_count"`
	ConversionRate  *float64 `gorm:"column:conversion_rate"`
	OrderCount      *float64 `gorm:"column:order_count"`
	RefundAmount    *float64 `gorm:"column:refund_amount"`

	SourceCatalogID uint64 `gorm:"column:source_catalog_id;not null;index"`
	UpdatedAt       string `gorm:"column:updated_at;type:text;not null"`
}

func (FactProductMetric) TableName() string {
	return "fact_product_metrics"
}

package model

type FactOrder struct {
	ID       uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Platform string `gorm:"column:platform;type:text;not null;uniqueIndex:ux_order_key,priority:1"`
	ShopID   string `gorm:"column:shop_id;type:text;not null;uniqueIndex:ux_order_key,priority:2"`
	OrderID  string `gorm:"column:order_id;type:text;not null;uniqueIndex:ux_order_key,priority:3"`

	OrderDate   *string  `gorm:"column:order_date;type:text;index"`
	Subtotal    float64  `gorm:"column:subtotal;not null;default:0"`
	ShippingFee float64  `gorm:"column:shipping_fee;not null;default:0"`
	TaxAmount   float64  `gorm:"column:tax_amount;not null;default:0"`
	Discount    float64  `gorm:"column:discount_amount;not null;default:0"`
	TotalAmount float64  `gorm:"column:total_amount;not null;default:0"`
	TotalBase   *float64 `gorm:"column:total_amount_base"`
	Currency    string   `gorm:"column:currency;type:text;not null;default:''"`

	SourceCatalogID uint64 `gorm:"column:source_catalog_id;not null;index"`
	UpdatedAt       string `gorm:"column:updated_at;type:text;not null"`
}

func (FactOrder) TableName() string {
	return "fact_orders"
}

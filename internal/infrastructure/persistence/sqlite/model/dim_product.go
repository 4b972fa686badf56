package model

type DimProduct struct {
	Platform  string `gorm:"column:platform;type:text;primaryKey"`
	ShopID    string `gorm:"column:shop_id;type:text;primaryKey"`
	SKU       string `gorm:"column:sku;type:text;primaryKey"`
	Title     string `gorm:"column:title;type:text;not null;default:''"`
	ImageURL  string `gorm:"column:image_url;type:text;not null;default:''"`
	CreatedAt string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (DimProduct) TableName() string {
	return "dim_products"
}

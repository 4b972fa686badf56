package model

import "gorm.io/datatypes"

// PlatformFactRow is the schema of every provisioned fact_{platform}_...
// landing table. It has no TableName: callers always pass the table.
type PlatformFactRow struct {
	ID          uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	CatalogID   uint64         `gorm:"column:catalog_id;not null"`
	RowNumber   int            `gorm:"column:row_number;not null"`
	ShopID      string         `gorm:"column:shop_id;type:text;not null"`
	MetricDate  *string        `gorm:"column:metric_date;type:text"`
	PeriodStart *string        `gorm:"column:period_start_date;type:text"`
	PeriodEnd   *string        `gorm:"column:period_end_date;type:text"`
	Raw         datatypes.JSON `gorm:"column:raw"`
	IngestedAt  string         `gorm:"column:ingested_at;type:text;not null"`
}

package model

import "gorm.io/datatypes"

type DataQuarantine struct {
	ID         uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	CatalogID  uint64         `gorm:"column:catalog_file_id;not null;index"`
	FilePath   string         `gorm:"column:file_path;type:text;not null"`
	RowNumber  int            `gorm:"column:row_number;not null"`
	RowData    datatypes.JSON `gorm:"column:row_data"`
	ErrorType  string         `gorm:"column:error_type;type:text;not null;index"`
	ErrorMsg   string         `gorm:"column:error_msg;type:text;not null"`
	RunID      string         `gorm:"column:run_id;type:text;not null;default:''"`
	IsResolved bool           `gorm:"column:is_resolved;not null;default:0"`
	CreatedAt  string         `gorm:"column:created_at;type:text;not null"`
	ResolvedAt *string        `gorm:"column:resolved_at;type:text"`
}

func (DataQuarantine) TableName() string {
	return "data_quarantine"
}

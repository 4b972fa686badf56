package model

import "gorm.io/datatypes"

type CatalogFile struct {
	ID       uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	FilePath string `gorm:"column:file_path;type:text;not null;index"`
	FileName string `gorm:"column:file_name;type:text;not null"`
	FileSize int64  `gorm:"column:file_size;not null;default:0"`
	FileHash string `gorm:"column:file_hash;type:text;not null;uniqueIndex"`
	Source   string `gorm:"column:source;type:text;not null;default:''"`

	PlatformCode string `gorm:"column:platform_code;type:text;not null;index"`
	DataDomain   string `gorm:"column:data_domain;type:text;not null;index"`
	SubDomain    string `gorm:"column:sub_domain;type:text;not null;default:''"`
	Granularity  string `gorm:"column:granularity;type:text;not null"`
	ShopID       string `gorm:"column:shop_id;type:text;not null;default:'none'"`
	Account      string `gorm:"column:account;type:text;not null;default:''"`

	ShopResolution datatypes.JSONMap `gorm:"column:shop_resolution"`

	DateFrom *string `gorm:"column:date_from;type:text"`
	DateTo   *string `gorm:"column:date_to;type:text"`

	Status       string   `gorm:"column:status;type:text;not null;index"`
	ErrorMessage string   `gorm:"column:error_message;type:text;not null;default:''"`
	QualityScore *float64 `gorm:"column:quality_score"`
	StorageLayer string   `gorm:"column:storage_layer;type:text;not null;default:'raw'"`
	MetaFilePath string   `gorm:"column:meta_file_path;type:text;not null;default:''"`

	FirstSeenAt     string  `gorm:"column:first_seen_at;type:text;not null;index"`
	LastProcessedAt *string `gorm:"column:last_processed_at;type:text"`
}

func (CatalogFile) TableName() string {
	return "catalog_files"
}

package model

type FXRate struct {
	Currency   string `gorm:"column:currency;type:text;primaryKey"`
	RateDate   string `gorm:"column:rate_date;type:text;primaryKey"`
	RateToBase string `gorm:"column:rate_to_base;type:text;not null"`
	UpdatedAt  string `gorm:"column:updated_at;type:text;not null"`
}

func (FXRate) TableName() string {
	return "fx_rates"
}

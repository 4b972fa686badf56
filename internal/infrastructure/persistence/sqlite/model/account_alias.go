package model

type AccountAlias struct {
	ID            uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Platform      string `gorm:"column:platform;type:text;not null;uniqueIndex:ux_account_alias,priority:1"`
	Account       string `gorm:"column:account;type:text;not null;default:'';uniqueIndex:ux_account_alias,priority:2"`
	Site          string `gorm:"column:site;type:text;not null;default:'';uniqueIndex:ux_account_alias,priority:3"`
	StoreLabelRaw string `gorm:"column:store_label_raw;type:text;not null;uniqueIndex:ux_account_alias,priority:4"`
	TargetID      string `gorm:"column:target_id;type:text;not null"`
	Active        bool   `gorm:"column:active;not null;default:1"`
	UpdatedAt     string `gorm:"column:updated_at;type:text;not null"`
}

func (AccountAlias) TableName() string {
	return "account_aliases"
}

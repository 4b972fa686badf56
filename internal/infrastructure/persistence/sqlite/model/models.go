package model

// All lists the models migrated by init-db and at bootstrap.
func All() []any {
	return []any{
		&CatalogFile{},
		&DimProduct{},
		&FactProductMetric{},
		&FactOrder{},
		&DataQuarantine{},
		&AccountAlias{},
		&FXRate{},
		&KV{},
	}
}

package ports

import "context"

// AccountAlias maps a raw store label seen in exports to a shop id.
type AccountAlias struct {
	Platform      string
	Account       string
	Site          string
	StoreLabelRaw string
	TargetID      string
	Active        bool
}

type AliasRepository interface {
	ListActive(ctx context.Context) ([]AccountAlias, error)
	Upsert(ctx context.Context, alias AccountAlias) error
}

package ports

import (
	"context"
	"errors"
	"time"
)

var ErrRateNotFound = errors.New("exchange rate not found")

// CurrencyNormalizer converts an amount into the configured base currency
// using the rate in force on asOf.
type CurrencyNormalizer interface {
	ToBase(ctx context.Context, amount float64, currency string, asOf time.Time) (float64, error)
}

type FXRate struct {
	Currency   string
	RateDate   time.Time
	RateToBase string
}

type FXRateRepository interface {
	// NearestRate returns the latest rate dated on or before asOf.
	NearestRate(ctx context.Context, currency string, asOf time.Time) (FXRate, bool, error)
	UpsertRate(ctx context.Context, rate FXRate) error
}

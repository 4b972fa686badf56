package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"xihong/internal/bootstrap/logging"
	domainingest "xihong/internal/domain/ingest"
	"xihong/internal/errs"
	"xihong/internal/ports"
)

const fallbackCurrency = "USD"

// builtinCurrencies are settlement currencies assumed when the registry
// names none.
var builtinCurrencies = map[string]string{
	"miaoshou": "CNY",
}

// rateMemo converts amounts for one file. Lookups that failed for a
// (date, currency) pair are not retried within the file.
type rateMemo struct {
	conv   ports.CurrencyNormalizer
	failed map[string]bool
}

func newRateMemo(conv ports.CurrencyNormalizer) *rateMemo {
	return &rateMemo{conv: conv, failed: make(map[string]bool)}
}

// toBase returns the base-currency amount, false when no rate is known.
func (m *rateMemo) toBase(ctx context.Context, amount float64, currency string, asOf time.Time) (float64, bool) {
	if m == nil || m.conv == nil || currency == "" {
		return 0, false
	}
	key := asOf.Format(time.DateOnly) + "/" + currency
	if m.failed[key] {
		return 0, false
	}
	v, err := m.conv.ToBase(ctx, amount, currency, asOf)
	if err != nil {
		m.failed[key] = true
		level := logging.Warn
		if !errors.Is(err, ports.ErrRateNotFound) {
			level = logging.Error
		}
		level(ctx, "base currency conversion skipped",
			slog.String("currency", currency),
			slog.String("as_of", asOf.Format(time.DateOnly)),
			slog.Any("err", errs.Loggable(err)),
		)
		return 0, false
	}
	return v, true
}

// currencyFor picks the currency of a monetary cell: the platform's
// settlement currency, else a marker in the cell, else fallback.
func (s *Service) currencyFor(platform string, cell string, fallback string) string {
	if s.currencies != nil {
		if ccy := strings.ToUpper(strings.TrimSpace(s.currencies.PlatformCurrency(platform))); ccy != "" {
			return ccy
		}
	}
	if ccy, ok := builtinCurrencies[platform]; ok {
		return ccy
	}
	if ccy := domainingest.DetectCurrency(cell); ccy != "" {
		return ccy
	}
	return fallback
}

package currency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"xihong/internal/bootstrap/logging"
	"xihong/internal/errs"
	"xihong/internal/ports"
)

const rateCacheTTL = 24 * time.Hour

// StaticRates supplies fallback rates when fx_rates has no row.
type StaticRates interface {
	StaticRate(currency string) (string, bool)
}

// Converter turns amounts into the base currency with decimal arithmetic.
// Rates come from fx_rates (latest on or before the date) and then from
// the static registry; resolved rates are memoised in the cache.
type Converter struct {
	base   string
	rates  ports.FXRateRepository
	static StaticRates
	cache  ports.Cache
}

var _ ports.CurrencyNormalizer = (*Converter)(nil)

func NewConverter(base string, rates ports.FXRateRepository, static StaticRates, cache ports.Cache) *Converter {
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		base = "CNY"
	}
	return &Converter{base: base, rates: rates, static: static, cache: cache}
}

func (c *Converter) Base() string { return c.base }

func (c *Converter) ToBase(ctx context.Context, amount float64, currency string, asOf time.Time) (float64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return 0, errs.Wrap(err, "check context")
	}

	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "RMB" {
		code = "CNY"
	}
	if code == "" || code == c.base || amount == 0 {
		return amount, nil
	}

	rate, err := c.rate(ctx, code, asOf)
	if err != nil {
		return 0, err
	}
	converted, _ := decimal.NewFromFloat(amount).Mul(rate).Round(4).Float64()
	return converted, nil
}

func (c *Converter) rate(ctx context.Context, code string, asOf time.Time) (decimal.Decimal, error) {
	day := asOf.UTC().Format("2006-01-02")
	key := "fx:" + code + ":" + c.base + ":" + day

	if c.cache != nil {
		if cached, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			if rate, err := decimal.NewFromString(cached); err == nil {
				return rate, nil
			}
			_ = c.cache.Delete(ctx, key)
		}
	}

	raw, source, err := c.lookup(ctx, code, asOf)
	if err != nil {
		return decimal.Decimal{}, err
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("invalid %s rate %q for %s", source, raw, code)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, rate.String(), rateCacheTTL); err != nil {
			logging.Warn(
				logging.WithAttrs(ctx, slog.String("component", "currency.converter")),
				"cache exchange rate failed",
				slog.String("key", key),
				slog.Any("err", errs.Loggable(err)),
			)
		}
	}
	return rate, nil
}

func (c *Converter) lookup(ctx context.Context, code string, asOf time.Time) (string, string, error) {
	if c.rates != nil {
		stored, ok, err := c.rates.NearestRate(ctx, code, asOf)
		if err != nil {
			return "", "", errs.Wrap(err, "lookup exchange rate")
		}
		if ok {
			return stored.RateToBase, "fx_rates", nil
		}
	}
	if c.static != nil {
		if raw, ok := c.static.StaticRate(code); ok {
			return raw, "registry", nil
		}
	}
	return "", "", fmt.Errorf("%w: %s->%s on %s", ports.ErrRateNotFound, code, c.base, asOf.UTC().Format("2006-01-02"))
}

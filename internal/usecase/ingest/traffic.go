package ingest

import (
	"context"
	"fmt"
	"time"

	domainingest "xihong/internal/domain/ingest"
	"xihong/internal/ports"
)

const (
	storeSKU   = "__STORE__"
	storeTitle = "STORE_METRICS"
)

// dailyMetrics accumulates per-date metrics. The first value seen for a
// (date, metric) pair wins.
type dailyMetrics struct {
	dates  []time.Time
	byDate map[string]domainingest.Metrics
}

func newDailyMetrics() *dailyMetrics {
	return &dailyMetrics{byDate: make(map[string]domainingest.Metrics)}
}

func (d *dailyMetrics) set(date time.Time, metric string, value float64) {
	key := date.Format(time.DateOnly)
	m, ok := d.byDate[key]
	if !ok {
		m = domainingest.Metrics{}
		d.byDate[key] = m
		d.dates = append(d.dates, date)
	}
	if _, exists := m[metric]; !exists {
		m[metric] = value
	}
}

func (d *dailyMetrics) get(date time.Time) domainingest.Metrics {
	return d.byDate[date.Format(time.DateOnly)]
}

// ingestTraffic writes store-level traffic under a pseudo SKU, one row per
// date.
func (s *Service) ingestTraffic(ctx context.Context, job *fileJob) (outcome, error) {
	fallback := s.fileDate(job)
	days := newDailyMetrics()
	currency := ""

	for i, raw := range job.table.Rows {
		row := job.std.Standardize(ctx, raw, i+1)
		date, ok := row.Date(FieldDate)
		if !ok {
			date = fallback
		}
		for field, metric := range map[string]string{
			FieldViews:      domainingest.MetricPageViews,
			FieldVisitors:   domainingest.MetricUniqueVisitors,
			FieldOrders:     domainingest.MetricOrderCount,
			FieldConversion: domainingest.MetricConversionRate,
			FieldRefund:     domainingest.MetricRefundAmount,
		} {
			if row.Has(field) {
				days.set(date, metric, row.Float(field))
			}
		}
		if row.Has(FieldGMV) {
			amount := row.Float(FieldGMV)
			ccy := s.currencyFor(job.file.PlatformCode, row.Text(FieldGMV), fallbackCurrency)
			if currency == "" {
				currency = ccy
			}
			if _, seen := days.get(date)[domainingest.MetricSalesAmount]; !seen {
				if base, ok := job.rates.toBase(ctx, amount, ccy, date); ok {
					days.set(date, domainingest.MetricSalesAmountBase, base)
				}
			}
			days.set(date, domainingest.MetricSalesAmount, amount)
		}
	}

	return s.writePseudoSKU(ctx, job, storeSKU, storeTitle, granularityOr(job.file.Granularity), currency, days)
}

// writePseudoSKU upserts one product-scope row per accumulated date.
func (s *Service) writePseudoSKU(ctx context.Context, job *fileJob, sku string, title string, granularity string, currency string, days *dailyMetrics) (outcome, error) {
	if len(days.dates) == 0 {
		return outcome{note: "no metrics found"}, nil
	}
	platform, shopID := job.file.PlatformCode, job.file.ShopID
	if err := s.facts.EnsureProduct(ctx, ports.Product{Platform: platform, ShopID: shopID, SKU: sku, Title: title}); err != nil {
		return outcome{}, err
	}

	job.emit(PhaseWrite, fmt.Sprintf("dates=%d", len(days.dates)))
	for _, date := range days.dates {
		if err := s.facts.UpsertProductMetric(ctx, ports.ProductMetric{
			Platform:    platform,
			ShopID:      shopID,
			SKU:         sku,
			MetricDate:  date,
			Granularity: granularity,
			Scope:       domainingest.ScopeProduct,
			Currency:    currency,
			CatalogID:   job.file.ID,
			Metrics:     days.get(date),
		}); err != nil {
			return outcome{}, err
		}
	}
	return outcome{rows: len(days.dates), note: fmt.Sprintf("dates=%d", len(days.dates))}, nil
}

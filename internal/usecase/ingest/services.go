package ingest

import (
	"context"
	"fmt"
	"time"

	domainingest "xihong/internal/domain/ingest"
	"xihong/internal/ports"
)

const (
	aiAssistantSKU   = "__SERVICES_AI__"
	aiAssistantTitle = "AI_ASSISTANT_METRICS"
	agentSKU         = "__SERVICES_AGENT__"
	agentTitle       = "AGENT_METRICS"
)

// ingestAIAssistant writes daily assistant metrics under a pseudo SKU.
func (s *Service) ingestAIAssistant(ctx context.Context, job *fileJob) (outcome, error) {
	fallback := s.fileDate(job)
	days := newDailyMetrics()

	for i, raw := range job.table.Rows {
		row := job.std.Standardize(ctx, raw, i+1)
		date, ok := row.Date(FieldDate)
		if !ok {
			date = fallback
		}
		if row.Has(FieldVisitors) {
			days.set(date, domainingest.MetricUniqueVisitors, row.Float(FieldVisitors))
		}
		if row.Has(FieldQuestions) {
			days.set(date, domainingest.MetricOrderCount, row.Float(FieldQuestions))
		}
		if row.Has(FieldSatisfied) {
			days.set(date, domainingest.MetricConversionRate, row.Float(FieldSatisfied))
		}
	}

	return s.writePseudoSKU(ctx, job, aiAssistantSKU, aiAssistantTitle, domainingest.GranularityDaily, "", days)
}

// ingestAgent writes the single summary row of an agent report. The row
// covers a date range; its granularity follows the span.
func (s *Service) ingestAgent(ctx context.Context, job *fileJob) (outcome, error) {
	row := job.std.Standardize(ctx, job.table.Rows[0], 1)

	start, end, ok := job.std.ParseRange(row.Text(FieldRange))
	if !ok {
		end = s.fileDate(job)
		start = time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	}

	m := domainingest.Metrics{}
	for field, metric := range map[string]string{
		FieldVisitors:  domainingest.MetricUniqueVisitors,
		FieldChats:     domainingest.MetricOrderCount,
		FieldOrders:    domainingest.MetricSalesVolume,
		FieldSatisfied: domainingest.MetricConversionRate,
	} {
		if row.Has(field) {
			m[metric] = row.Float(field)
		}
	}
	currency := ""
	if row.Has(FieldGMV) {
		amount := row.Float(FieldGMV)
		m[domainingest.MetricSalesAmount] = amount
		currency = s.currencyFor(job.file.PlatformCode, row.Text(FieldGMV), fallbackCurrency)
		if base, ok := job.rates.toBase(ctx, amount, currency, end); ok {
			m[domainingest.MetricSalesAmountBase] = base
		}
	}
	if len(m) == 0 {
		return outcome{note: "no metrics found"}, nil
	}

	platform, shopID := job.file.PlatformCode, job.file.ShopID
	if err := s.facts.EnsureProduct(ctx, ports.Product{Platform: platform, ShopID: shopID, SKU: agentSKU, Title: agentTitle}); err != nil {
		return outcome{}, err
	}
	granularity := domainingest.GranularityForSpan(start, end)
	job.emit(PhaseWrite, fmt.Sprintf("range=%s..%s", start.Format(time.DateOnly), end.Format(time.DateOnly)))
	if err := s.facts.UpsertProductMetric(ctx, ports.ProductMetric{
		Platform:    platform,
		ShopID:      shopID,
		SKU:         agentSKU,
		MetricDate:  end,
		Granularity: granularity,
		Scope:       domainingest.ScopeProduct,
		Currency:    currency,
		PeriodStart: &start,
		PeriodEnd:   &end,
		CatalogID:   job.file.ID,
		Metrics:     m,
	}); err != nil {
		return outcome{}, err
	}
	return outcome{rows: 1, note: "single range row, granularity " + granularity}, nil
}

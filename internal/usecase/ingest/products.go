package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	domainingest "xihong/internal/domain/ingest"
	"xihong/internal/ports"
)

var (
	serviceColumnHints = []string{"客服", "满意", "响应", "会话", "平均响应", "超时响应"}
	trafficColumnHints = []string{"曝光", "浏览", "访客", "页面浏览次数", "转化率", "点击", "订单数"}

	hyperlinkPattern = regexp.MustCompile(`(?i)HYPERLINK\(\s*"(https?://[^"]+)"`)
	hrefPattern      = regexp.MustCompile(`(?i)href="(https?://[^"]+)"`)
	rawURLPattern    = regexp.MustCompile(`https?://\S+`)
)

// skuGroup is every row of one product SKU, in file order.
type skuGroup struct {
	sku  string
	rows []StandardRow
}

// ingestProducts writes one product-level row per SKU plus one row per
// variant. The product-level metrics come from hierarchy reconciliation.
func (s *Service) ingestProducts(ctx context.Context, job *fileJob) (outcome, error) {
	if _, ok := job.fields.Col(FieldSKU); !ok {
		if domain := reclassifySKULess(job.table); domain != "" {
			job.reclassified = domain
			kind := domainingest.KindFor(domain, "")
			s.mapFields(job, kind)
			out, err := s.dispatch(ctx, job)
			if err == nil {
				out.note = strings.TrimSpace(fmt.Sprintf("reclassified as %s %s", domain, out.note))
			}
			return out, err
		}
		return outcome{}, fmt.Errorf("%w: sku", domainingest.ErrMissingColumn)
	}

	platform := job.file.PlatformCode
	metricDate := s.fileDate(job)
	attrCols := AttributeColumns(job.table, job.fields)

	var groups []*skuGroup
	index := map[string]*skuGroup{}
	for i, raw := range job.table.Rows {
		row := job.std.Standardize(ctx, raw, i+1)
		sku := row.Text(FieldSKU)
		if domainingest.IsSemanticNull(sku) {
			if err := s.quarantineRow(ctx, job, row.Number(), raw, ports.QuarantineMissingRequiredField, "row has no sku"); err != nil {
				return outcome{}, err
			}
			continue
		}
		g, ok := index[sku]
		if !ok {
			g = &skuGroup{sku: sku}
			index[sku] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, row)
	}

	job.emit(PhaseWrite, fmt.Sprintf("skus=%d", len(groups)))
	written := 0
	for _, g := range groups {
		shopID := job.file.ShopID
		if shopID == domainingest.UnresolvedShopID {
			if v := firstText(g.rows, FieldShopID); v != "" {
				shopID = v
			}
		}

		title := firstText(g.rows, FieldProductName)
		image := ""
		for _, r := range g.rows {
			if image = extractURL(r.Text(FieldImage)); image != "" {
				break
			}
		}
		if err := s.facts.EnsureProduct(ctx, ports.Product{Platform: platform, ShopID: shopID, SKU: g.sku, Title: title, ImageURL: image}); err != nil {
			return outcome{}, err
		}

		var summary domainingest.Metrics
		var variants []domainingest.Metrics
		var variantIDs []string
		currency := ""
		for _, r := range g.rows {
			m, ccy := s.productMetrics(ctx, job, r, metricDate)
			if currency == "" {
				currency = ccy
			}
			vid := variantID(attrCols, r, job.table.Rows[r.Number()-1])
			if vid == "" {
				if summary == nil {
					summary = m
				}
				continue
			}
			variants = append(variants, m)
			variantIDs = append(variantIDs, vid)
		}

		product, _ := domainingest.ReconcileProduct(summary, variants, s.opts.Tolerances)
		if err := s.facts.UpsertProductMetric(ctx, ports.ProductMetric{
			Platform:    platform,
			ShopID:      shopID,
			SKU:         g.sku,
			MetricDate:  metricDate,
			Granularity: granularityOr(job.file.Granularity),
			Scope:       domainingest.ScopeProduct,
			Currency:    currency,
			CatalogID:   job.file.ID,
			Metrics:     product,
		}); err != nil {
			return outcome{}, err
		}
		written++

		for i, vid := range variantIDs {
			variantSKU := domainingest.VariantSKU(g.sku, vid)
			if err := s.facts.EnsureProduct(ctx, ports.Product{Platform: platform, ShopID: shopID, SKU: variantSKU, Title: title, ImageURL: image}); err != nil {
				return outcome{}, err
			}
			if err := s.facts.UpsertProductMetric(ctx, ports.ProductMetric{
				Platform:    platform,
				ShopID:      shopID,
				SKU:         variantSKU,
				MetricDate:  metricDate,
				Granularity: granularityOr(job.file.Granularity),
				Scope:       domainingest.ScopeVariant,
				ParentSKU:   g.sku,
				Currency:    currency,
				CatalogID:   job.file.ID,
				Metrics:     variants[i],
			}); err != nil {
				return outcome{}, err
			}
		}
	}
	return outcome{rows: written, note: fmt.Sprintf("skus=%d", written)}, nil
}

// productMetrics reads the metrics present on one row and the currency of
// its revenue cell.
func (s *Service) productMetrics(ctx context.Context, job *fileJob, r StandardRow, asOf time.Time) (domainingest.Metrics, string) {
	m := domainingest.Metrics{}
	set := func(field string, metric string) {
		if r.Has(field) {
			m[metric] = r.Float(field)
		}
	}
	set(FieldSales, domainingest.MetricSalesVolume)
	set(FieldViews, domainingest.MetricPageViews)
	set(FieldVisitors, domainingest.MetricUniqueVisitors)
	set(FieldAddToCart, domainingest.MetricAddToCart)
	set(FieldConversion, domainingest.MetricConversionRate)

	currency := ""
	if r.Has(FieldRevenue) {
		amount := r.Float(FieldRevenue)
		m[domainingest.MetricSalesAmount] = amount
		currency = s.currencyFor(job.file.PlatformCode, r.Text(FieldRevenue), fallbackCurrency)
		if base, ok := job.rates.toBase(ctx, amount, currency, asOf); ok {
			m[domainingest.MetricSalesAmountBase] = base
		}
	}
	return m, currency
}

// variantID is the explicit variant column, else the attribute cells joined
// with "+". "" marks a summary row.
func variantID(attrCols []int, r StandardRow, raw []string) string {
	if vid := r.Text(FieldVariantID); !domainingest.IsSemanticNull(vid) {
		return vid
	}
	var parts []string
	for _, col := range attrCols {
		if col < len(raw) && !domainingest.IsSemanticNull(raw[col]) {
			parts = append(parts, raw[col])
		}
	}
	return strings.Join(parts, "+")
}

// reclassifySKULess names the domain a SKU-less products file really holds,
// "" when its columns give no hint.
func reclassifySKULess(t Table) string {
	has := func(hints []string) bool {
		for _, col := range t.Columns {
			lower := strings.ToLower(col)
			for _, h := range hints {
				if strings.Contains(lower, h) {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has(serviceColumnHints):
		return domainingest.DomainServices
	case has(trafficColumnHints):
		return domainingest.DomainAnalytics
	default:
		return ""
	}
}

// extractURL pulls an http(s) link out of a plain, HYPERLINK() or <a href>
// cell.
func extractURL(cell string) string {
	if cell == "" {
		return ""
	}
	if m := hyperlinkPattern.FindStringSubmatch(cell); m != nil {
		return m[1]
	}
	if m := hrefPattern.FindStringSubmatch(cell); m != nil {
		return m[1]
	}
	return rawURLPattern.FindString(cell)
}

func firstText(rows []StandardRow, field string) string {
	for _, r := range rows {
		if v := r.Text(field); !domainingest.IsSemanticNull(v) {
			return v
		}
	}
	return ""
}

func granularityOr(g string) string {
	if g == "" {
		return domainingest.GranularityDaily
	}
	return g
}

func (s *Service) quarantineRow(ctx context.Context, job *fileJob, number int, raw []string, errorType string, msg string) error {
	if s.quarantine == nil {
		return nil
	}
	_, err := s.quarantine.Quarantine(ctx, QuarantineInput{
		CatalogID: job.file.ID,
		FilePath:  job.file.FilePath,
		RowNumber: number,
		Row:       job.table.Record(raw),
		ErrorType: errorType,
		Message:   msg,
		RunID:     job.runID,
	})
	return err
}

package ingest

import "math"

const (
	MetricSalesAmount     = "sales_amount"
	MetricSalesAmountBase = "sales_amount_base"
	MetricSalesVolume     = "sales_volume"
	MetricPageViews       = "page_views"
	MetricUniqueVisitors  = "unique_visitors"
	MetricAddToCart       = "add_to_cart_count"
	MetricConversionRate  = "conversion_rate"
	MetricOrderCount      = "order_count"
	MetricRefundAmount    = "refund_amount"
)

const (
	ScopeProduct = "product"
	ScopeVariant = "variant"

	VariantSeparator = "::"
)

// Metrics holds the metric values present on one row. Absent keys are
// unknown, which is different from zero.
type Metrics map[string]float64

func (m Metrics) Get(name string) (float64, bool) {
	v, ok := m[name]
	return v, ok
}

// Tolerances are the relative differences under which a summary row is
// considered consistent with the sum of its variants.
type Tolerances struct {
	Amount  float64
	Volume  float64
	Traffic float64
}

func DefaultTolerances() Tolerances {
	return Tolerances{Amount: 0.05, Volume: 0.05, Traffic: 0.10}
}

// SumVariants adds up variant metrics. Rates do not sum and are skipped.
func SumVariants(rows []Metrics) Metrics {
	out := Metrics{}
	for _, row := range rows {
		for name, v := range row {
			if name == MetricConversionRate {
				continue
			}
			out[name] += v
		}
	}
	return out
}

// WithinTolerance is false when either side is unknown. Two zeros agree.
func WithinTolerance(a float64, aOK bool, b float64, bOK bool, tol float64) bool {
	if !aOK || !bOK {
		return false
	}
	ma, mb := math.Abs(a), math.Abs(b)
	if ma == 0 && mb == 0 {
		return true
	}
	return math.Abs(ma-mb)/math.Max(ma, mb) <= tol
}

// ReconcileProduct picks product-level metrics for a SKU group. The summary
// row wins when any of amount, volume or page views agrees with the variant
// sum within tolerance; otherwise the variant sum is used. A group without
// variants falls back to the summary row.
func ReconcileProduct(summary Metrics, variants []Metrics, tol Tolerances) (Metrics, bool) {
	if len(variants) == 0 {
		return copyMetrics(summary), summary != nil
	}
	sum := SumVariants(variants)
	if summary == nil {
		return sum, false
	}

	check := func(name string, t float64) bool {
		a, aOK := summary.Get(name)
		b, bOK := sum.Get(name)
		return WithinTolerance(a, aOK, b, bOK, t)
	}
	if check(MetricSalesAmount, tol.Amount) || check(MetricSalesVolume, tol.Volume) || check(MetricPageViews, tol.Traffic) {
		return copyMetrics(summary), true
	}
	return sum, false
}

// VariantSKU returns parent::variant.
func VariantSKU(parent string, variantID string) string {
	return parent + VariantSeparator + variantID
}

func copyMetrics(m Metrics) Metrics {
	out := make(Metrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

package ingest

import (
	"context"
	"fmt"
	"time"

	domainingest "xihong/internal/domain/ingest"
	"xihong/internal/ports"
)

const orderFallbackCurrency = "CNY"

// ingestOrders upserts one order per row keyed by order id. Amounts that are
// empty or unparseable are stored as 0.
func (s *Service) ingestOrders(ctx context.Context, job *fileJob) (outcome, error) {
	if _, ok := job.fields.Col(FieldOrderID); !ok {
		return outcome{}, fmt.Errorf("%w: order_id", domainingest.ErrMissingColumn)
	}

	fallback := s.fileDate(job)
	job.emit(PhaseWrite, fmt.Sprintf("orders=%d", job.table.Len()))
	written := 0
	for i, raw := range job.table.Rows {
		row := job.std.Standardize(ctx, raw, i+1)
		orderID := row.Text(FieldOrderID)
		if domainingest.IsSemanticNull(orderID) {
			if err := s.quarantineRow(ctx, job, row.Number(), raw, ports.QuarantineMissingRequiredField, "row has no order id"); err != nil {
				return outcome{}, err
			}
			continue
		}

		order := ports.Order{
			Platform:    job.file.PlatformCode,
			ShopID:      job.file.ShopID,
			OrderID:     orderID,
			Subtotal:    row.Float(FieldSubtotal),
			ShippingFee: row.Float(FieldShipping),
			Tax:         row.Float(FieldTax),
			Discount:    row.Float(FieldDiscount),
			Total:       row.Float(FieldTotal),
			Currency:    s.currencyFor(job.file.PlatformCode, row.Text(FieldTotal), orderFallbackCurrency),
			CatalogID:   job.file.ID,
		}
		asOf := fallback
		if d, ok := row.Date(FieldOrderDate); ok {
			order.OrderDate = &d
			asOf = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		}
		if row.Has(FieldTotal) {
			if base, ok := job.rates.toBase(ctx, order.Total, order.Currency, asOf); ok {
				order.TotalBase = &base
			}
		}

		if err := s.facts.UpsertOrder(ctx, order); err != nil {
			return outcome{}, err
		}
		written++
	}
	return outcome{rows: written, note: fmt.Sprintf("orders=%d", written)}, nil
}

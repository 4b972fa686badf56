package ingest

import (
	"context"
	"fmt"

	domainingest "xihong/internal/domain/ingest"
)

// ingestUnknown handles files no ingester claims. A data_type column may
// name the real domain; inventory and finance exports only land raw rows.
func (s *Service) ingestUnknown(ctx context.Context, job *fileJob) (outcome, error) {
	if col, ok := job.table.FindExact("data_type"); ok {
		if domain := domainingest.DomainFromDataType(job.table.Rows[0][col]); domain != "" {
			if kind := domainingest.KindFor(domain, job.file.SubDomain); kind != domainingest.IngesterUnknown {
				job.reclassified = domain
				s.mapFields(job, kind)
				return s.dispatch(ctx, job)
			}
		}
	}

	switch job.file.DataDomain {
	case domainingest.DomainInventory, domainingest.DomainFinance:
		return outcome{rows: job.table.Len(), note: "raw rows only"}, nil
	}
	return outcome{}, fmt.Errorf("%w: %q", domainingest.ErrUnsupportedDomain, job.file.DataDomain)
}

package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"xihong/internal/bootstrap/logging"
	"xihong/internal/errs"
	"xihong/internal/ports"
)

// FileRowNumber marks a quarantine record that holds a whole file.
const FileRowNumber = 0

// QuarantineWriter appends failed rows and files to data_quarantine and
// mirrors them to the optional sink. Records are never changed except to be
// resolved.
type QuarantineWriter struct {
	repo    ports.QuarantineRepository
	sink    ports.QuarantineSink
	catalog ports.CatalogRepository
	uow     ports.UnitOfWork
	now     func() time.Time
}

// NewQuarantineWriter wires the quarantine table. sink and catalog may be
// nil; without catalog, resolving a file record does not re-queue the file.
func NewQuarantineWriter(repo ports.QuarantineRepository, sink ports.QuarantineSink, catalog ports.CatalogRepository, uow ports.UnitOfWork) *QuarantineWriter {
	return &QuarantineWriter{
		repo:    repo,
		sink:    sink,
		catalog: catalog,
		uow:     uow,
		now:     time.Now,
	}
}

type QuarantineInput struct {
	CatalogID uint64
	FilePath  string
	RowNumber int
	Row       map[string]any
	ErrorType string
	Message   string
	RunID     string
}

// Quarantine appends one record. It joins the transaction in ctx when there
// is one. A sink failure is logged and does not fail the append.
func (w *QuarantineWriter) Quarantine(ctx context.Context, input QuarantineInput) (ports.QuarantineRecord, error) {
	if err := w.check(ctx); err != nil {
		return ports.QuarantineRecord{}, err
	}
	errorType := strings.TrimSpace(input.ErrorType)
	if errorType == "" {
		errorType = ports.QuarantineValidationError
	}

	record, err := w.repo.Append(ctx, ports.QuarantineRecord{
		CatalogID: input.CatalogID,
		FilePath:  input.FilePath,
		RowNumber: input.RowNumber,
		RowData:   input.Row,
		ErrorType: errorType,
		ErrorMsg:  errs.Truncate(input.Message, errorMessageLimit),
		RunID:     input.RunID,
		CreatedAt: w.now(),
	})
	if err != nil {
		return ports.QuarantineRecord{}, err
	}

	if w.sink != nil {
		if err := w.sink.Write(ctx, record); err != nil {
			logging.Warn(ctx, "quarantine mirror write failed",
				slog.Uint64("quarantine_id", record.ID),
				slog.Any("err", errs.Loggable(err)),
			)
		}
	}
	return record, nil
}

func (w *QuarantineWriter) List(ctx context.Context, filter ports.QuarantineFilter) ([]ports.QuarantineRecord, error) {
	if err := w.check(ctx); err != nil {
		return nil, err
	}
	filter.ErrorType = strings.TrimSpace(filter.ErrorType)
	return w.repo.List(ctx, filter)
}

// Resolve marks a record handled. Resolving a file record also puts a
// quarantined catalog row back to pending so the next run replays it.
func (w *QuarantineWriter) Resolve(ctx context.Context, id uint64) error {
	if err := w.check(ctx); err != nil {
		return err
	}
	if w.uow == nil {
		return errors.New("quarantine unit of work is required")
	}

	return w.uow.WithTx(ctx, func(txCtx context.Context) error {
		record, err := w.repo.Get(txCtx, id)
		if err != nil {
			return err
		}
		if err := w.repo.Resolve(txCtx, id, w.now()); err != nil {
			return err
		}
		if record.RowNumber != FileRowNumber || record.CatalogID == 0 || w.catalog == nil {
			return nil
		}

		file, err := w.catalog.Get(txCtx, record.CatalogID)
		if err != nil {
			if errors.Is(err, ports.ErrCatalogFileNotFound) {
				return nil
			}
			return err
		}
		if file.Status != ports.CatalogStatusQuarantined {
			return nil
		}
		file.Status = ports.CatalogStatusPending
		file.ErrorMessage = ""
		if err := w.catalog.Update(txCtx, file); err != nil {
			return err
		}
		logging.Info(txCtx, "quarantined file re-queued", slog.Uint64("catalog_id", file.ID))
		return nil
	})
}

func (w *QuarantineWriter) check(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if w == nil || w.repo == nil {
		return errors.New("quarantine repository is required")
	}
	return nil
}

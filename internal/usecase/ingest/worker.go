package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"xihong/internal/bootstrap/logging"
	domainingest "xihong/internal/domain/ingest"
	"xihong/internal/errs"
	"xihong/internal/ports"
)

// fileJob is the state of one catalog row while it is ingested.
type fileJob struct {
	runID  string
	file   ports.CatalogFile
	path   string
	kind   domainingest.IngesterKind
	table  Table
	fields FieldMap
	std    *Standardizer
	rates  *rateMemo
	emit   func(phase string, msg string)

	// reclassified is set when the ingester moved the file to another domain.
	reclassified string
}

// outcome is what an ingester reports for a file that did not fail.
type outcome struct {
	rows int
	note string
	// skipped files land no raw rows.
	skipped bool
}

// RunOnce ingests one batch of pending catalog rows in ascending id order.
// A failing file is recorded on its catalog row and never stops the batch.
// The context deadline is checked between files; rows not reached stay
// pending.
func (s *Service) RunOnce(ctx context.Context, input RunInput) (Stats, error) {
	if err := s.check(ctx); err != nil {
		return Stats{}, err
	}

	stats := Stats{RunID: uuid.NewString()}
	runCtx := logging.WithRun(logging.WithAttrs(ctx, slog.String("component", "ingest.worker")), stats.RunID, 0)

	limit := input.Limit
	if limit <= 0 {
		limit = s.opts.BatchSize
	}
	domains := input.Domains
	if len(domains) == 0 {
		domains = s.opts.Domains
	}
	filter := ports.CatalogPendingFilter{Limit: limit, Domains: domains}
	recentHours := input.RecentHours
	if recentHours <= 0 {
		recentHours = s.opts.RecentHours
	}
	if recentHours > 0 {
		cutoff := s.now().Add(-time.Duration(recentHours) * time.Hour)
		filter.SeenAfter = &cutoff
	}

	files, err := s.catalog.ListPending(ctx, filter)
	if err != nil {
		return stats, errs.Wrap(err, "list pending catalog files")
	}
	logging.Info(runCtx, "ingest batch started", slog.Int("pending", len(files)), slog.Int("limit", limit))

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			logging.Warn(runCtx, "ingest batch stopped by context deadline",
				slog.Int("processed", i),
				slog.Int("left_pending", len(files)-i),
			)
			break
		}
		stats.Picked++

		switch s.processFile(ctx, stats.RunID, i, len(files), file, input.Progress) {
		case ports.CatalogStatusIngested:
			stats.Succeeded++
		case ports.CatalogStatusQuarantined:
			stats.Quarantined++
			stats.Failed++
		default:
			stats.Failed++
		}
	}

	logging.Info(runCtx, "ingest batch completed",
		slog.Int("picked", stats.Picked),
		slog.Int("succeeded", stats.Succeeded),
		slog.Int("failed", stats.Failed),
		slog.Int("quarantined", stats.Quarantined),
	)
	return stats, nil
}

// processFile runs one file end to end and returns the status recorded on
// its catalog row.
func (s *Service) processFile(ctx context.Context, runID string, index int, total int, file ports.CatalogFile, progress ProgressFunc) string {
	fileCtx := logging.WithRun(logging.WithAttrs(ctx,
		slog.String("component", "ingest.worker"),
		slog.String("file", file.FilePath),
		slog.String("domain", file.DataDomain),
	), runID, file.ID)

	emit := func(phase string, msg string) {
		if progress == nil {
			return
		}
		progress(ProgressEvent{
			RunID:     runID,
			CatalogID: file.ID,
			FileName:  file.FileName,
			Index:     index,
			Total:     total,
			Phase:     phase,
			Message:   msg,
		})
	}
	emit(PhaseStart, "")

	job := &fileJob{
		runID: runID,
		file:  file,
		path:  s.absolutePath(file.FilePath),
		rates: newRateMemo(s.currency),
		emit:  emit,
	}
	out, err := s.ingestGuarded(fileCtx, job)

	status, message := ports.CatalogStatusIngested, out.note
	var quarantineType string
	if err != nil {
		status, message = ports.CatalogStatusFailed, errs.Truncate(err.Error(), errorMessageLimit)
		if quarantineType = quarantineTypeFor(err); quarantineType != "" && s.quarantine != nil {
			status = ports.CatalogStatusQuarantined
		}
	} else if out.rows == 0 && message == "" {
		message = "no rows to ingest"
	}

	if markErr := s.recordOutcome(fileCtx, job, status, message, quarantineType); markErr != nil {
		logging.Error(fileCtx, "record file outcome failed", slog.Any("err", errs.Loggable(markErr)))
		status = ports.CatalogStatusFailed
	}

	if status == ports.CatalogStatusIngested {
		logging.Info(fileCtx, "file ingested", slog.Int("rows", out.rows), slog.String("note", out.note))
		emit(PhaseDone, message)
	} else {
		logging.Warn(fileCtx, "file not ingested", slog.String("status", status), slog.Any("err", errs.Loggable(err)))
		emit(PhaseFailed, message)
	}
	return status
}

// ingestGuarded turns a panic anywhere in the file into a file failure.
func (s *Service) ingestGuarded(ctx context.Context, job *fileJob) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.WithStack(fmt.Errorf("panic: %v", r))
			logging.Error(ctx, "ingester panicked", slog.Any("err", errs.Loggable(err)))
			out = outcome{}
		}
	}()

	if strings.TrimSpace(job.file.ShopID) == "" {
		return outcome{}, domainingest.ErrMissingShop
	}
	if err := s.load(ctx, job); err != nil {
		return outcome{}, err
	}
	return s.commitWithRetry(ctx, job)
}

// load reads the file and prepares field detection for its ingester.
func (s *Service) load(ctx context.Context, job *fileJob) error {
	job.kind = domainingest.KindFor(job.file.DataDomain, job.file.SubDomain)
	if job.kind == domainingest.IngesterUnknown {
		if domain := domainingest.DomainFromName(job.file.FileName, job.file.FilePath); domain != "" {
			if kind := domainingest.KindFor(domain, job.file.SubDomain); kind != domainingest.IngesterUnknown {
				logging.Info(ctx, "domain re-inferred from name", slog.String("from", job.file.DataDomain), slog.String("to", domain))
				job.kind = kind
				job.reclassified = domain
			}
		}
	}

	sheets, err := s.reader.ReadSheets(ctx, job.path)
	if err != nil {
		return err
	}
	var tokens []string
	if s.profile != nil {
		tokens = s.profile.HeaderTokens()
	}
	job.table = BuildTable(sheets, tokens)
	job.emit(PhaseParse, fmt.Sprintf("rows=%d cols=%d", job.table.Len(), len(job.table.Columns)))

	s.mapFields(job, job.kind)
	return nil
}

func (s *Service) mapFields(job *fileJob, kind domainingest.IngesterKind) {
	job.kind = kind
	job.fields = DetectFields(job.table, kind, job.file.PlatformCode, s.profile)
	job.std = NewStandardizer(job.table, job.fields, kind)
	job.emit(PhaseMap, fmt.Sprintf("%s fields=%d", kind, len(job.fields)))
}

// commitWithRetry runs the file transaction, retrying only transient
// commit failures.
func (s *Service) commitWithRetry(ctx context.Context, job *fileJob) (outcome, error) {
	var out outcome
	err := s.retryTransient(ctx, "file commit", func(attempt int) error {
		if attempt > 1 {
			job.rates = newRateMemo(s.currency)
		}
		var err error
		out, err = s.ingestTx(ctx, job)
		return err
	})
	if err != nil {
		return outcome{}, err
	}
	return out, nil
}

// retryTransient runs fn up to CommitAttempts times with a jittered
// backoff while it fails with ports.ErrTransient.
func (s *Service) retryTransient(ctx context.Context, what string, fn func(attempt int) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ports.ErrTransient) || attempt >= s.opts.CommitAttempts {
			return err
		}

		backoff := s.opts.CommitBackoff + rand.N(s.opts.CommitBackoff)
		logging.Warn(ctx, what+" retried",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.Any("err", errs.Loggable(err)),
		)
		if err := s.sleep(ctx, backoff); err != nil {
			return errs.Wrapf(err, "wait before %s retry", what)
		}
	}
}

func (s *Service) ingestTx(ctx context.Context, job *fileJob) (outcome, error) {
	var out outcome
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		out, err = s.dispatch(txCtx, job)
		if err != nil {
			return err
		}
		if !out.skipped {
			if err := s.landRaw(txCtx, job); err != nil {
				return err
			}
		}
		if job.reclassified != "" && job.reclassified != job.file.DataDomain {
			updated := job.file
			updated.DataDomain = job.reclassified
			if err := s.catalog.Update(txCtx, updated); err != nil {
				return errs.Wrap(err, "store reclassified domain")
			}
		}
		job.emit(PhaseCommit, "")
		return nil
	})
	return out, err
}

// dispatch switches over every ingester kind.
func (s *Service) dispatch(ctx context.Context, job *fileJob) (outcome, error) {
	if job.table.Empty() {
		return outcome{note: "empty file skipped", skipped: true}, nil
	}
	if IsManifest(job.table) {
		return outcome{note: "manifest skipped", skipped: true}, nil
	}

	switch job.kind {
	case domainingest.IngesterProducts:
		return s.ingestProducts(ctx, job)
	case domainingest.IngesterOrders:
		return s.ingestOrders(ctx, job)
	case domainingest.IngesterTraffic:
		return s.ingestTraffic(ctx, job)
	case domainingest.IngesterServicesAgent:
		return s.ingestAgent(ctx, job)
	case domainingest.IngesterServicesAIAssistant:
		return s.ingestAIAssistant(ctx, job)
	case domainingest.IngesterUnknown:
		return s.ingestUnknown(ctx, job)
	default:
		panic(fmt.Sprintf("unhandled ingester kind %d", job.kind))
	}
}

// landRaw copies every row of the file into its platform table.
func (s *Service) landRaw(ctx context.Context, job *fileJob) error {
	if s.provisioner == nil {
		return nil
	}
	f := job.file
	domain := f.DataDomain
	if job.reclassified != "" {
		domain = job.reclassified
	}
	table, err := s.provisioner.EnsureTable(ctx, f.PlatformCode, domain, f.SubDomain, f.Granularity)
	if err != nil {
		return errs.Wrap(err, "ensure platform table")
	}

	rows := make([]ports.RawFactRow, 0, job.table.Len())
	for i, row := range job.table.Rows {
		rows = append(rows, ports.RawFactRow{
			CatalogID:   f.ID,
			RowNumber:   i + 1,
			ShopID:      f.ShopID,
			PeriodStart: f.DateFrom,
			PeriodEnd:   f.DateTo,
			Raw:         job.table.Record(row),
		})
	}
	job.emit(PhaseWrite, fmt.Sprintf("raw rows=%d table=%s", len(rows), table))
	return s.facts.AppendRaw(ctx, table, rows)
}

// recordOutcome stores the status in its own transaction, retried like the
// file commit. File-level validation failures are quarantined in the same
// transaction.
func (s *Service) recordOutcome(ctx context.Context, job *fileJob, status string, message string, quarantineType string) error {
	return s.retryTransient(ctx, "status commit", func(int) error {
		return s.recordOutcomeTx(ctx, job, status, message, quarantineType)
	})
}

func (s *Service) recordOutcomeTx(ctx context.Context, job *fileJob, status string, message string, quarantineType string) error {
	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if status == ports.CatalogStatusQuarantined {
			if _, err := s.quarantine.Quarantine(txCtx, QuarantineInput{
				CatalogID: job.file.ID,
				FilePath:  job.file.FilePath,
				RowNumber: FileRowNumber,
				Row:       job.table.HeaderRecord(),
				ErrorType: quarantineType,
				Message:   message,
				RunID:     job.runID,
			}); err != nil {
				return err
			}
		}
		return s.catalog.MarkOutcome(txCtx, job.file.ID, status, message, s.now())
	})
}

// quarantineTypeFor classifies file-level failures worth replaying after a
// fix. Other failures only mark the file failed.
func quarantineTypeFor(err error) string {
	switch {
	case errors.Is(err, domainingest.ErrMissingColumn):
		return ports.QuarantineMissingRequiredField
	case errors.Is(err, domainingest.ErrMissingShop):
		return ports.QuarantineValidationError
	case errors.Is(err, domainingest.ErrUnsupportedDomain):
		return ports.QuarantineUnsupportedDomain
	default:
		return ""
	}
}

func (s *Service) absolutePath(p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.opts.BaseDir, p)
}

// fileDate is the date embedded in the file name, else today.
func (s *Service) fileDate(job *fileJob) time.Time {
	if d, ok := domainingest.DateFromName(job.file.FileName); ok {
		return d
	}
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

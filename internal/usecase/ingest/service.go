package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	domainingest "xihong/internal/domain/ingest"
	"xihong/internal/errs"
	"xihong/internal/ports"
)

const (
	defaultBatchSize      = 20
	defaultCommitAttempts = 5
	defaultCommitBackoff  = 500 * time.Millisecond
	errorMessageLimit     = 500
)

// KeywordProfile supplies per-platform column keyword overrides.
type KeywordProfile interface {
	Keywords(platform string, domain string, field string) []string
	HeaderTokens() []string
}

// PlatformCurrencies names the settlement currency of a platform, "" when
// the platform reports mixed currencies.
type PlatformCurrencies interface {
	PlatformCurrency(platform string) string
}

// Options carries the ingest section of the config.
type Options struct {
	BatchSize      int
	RecentHours    int
	Domains        []string
	CommitAttempts int
	CommitBackoff  time.Duration
	Tolerances     domainingest.Tolerances
	BaseDir        string
}

type Service struct {
	catalog     ports.CatalogRepository
	facts       ports.FactRepository
	uow         ports.UnitOfWork
	reader      ports.SheetReader
	provisioner ports.TableProvisioner
	currency    ports.CurrencyNormalizer
	quarantine  *QuarantineWriter
	profile     KeywordProfile
	currencies  PlatformCurrencies
	opts        Options
	now         func() time.Time
	sleep       func(context.Context, time.Duration) error
}

// Deps groups the collaborators of the worker. Provisioner, Currency,
// Quarantine, Profile and Currencies may be nil.
type Deps struct {
	Catalog     ports.CatalogRepository
	Facts       ports.FactRepository
	UnitOfWork  ports.UnitOfWork
	Reader      ports.SheetReader
	Provisioner ports.TableProvisioner
	Currency    ports.CurrencyNormalizer
	Quarantine  *QuarantineWriter
	Profile     KeywordProfile
	Currencies  PlatformCurrencies
}

func NewService(deps Deps, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.CommitAttempts <= 0 {
		opts.CommitAttempts = defaultCommitAttempts
	}
	if opts.CommitBackoff <= 0 {
		opts.CommitBackoff = defaultCommitBackoff
	}
	if opts.Tolerances == (domainingest.Tolerances{}) {
		opts.Tolerances = domainingest.DefaultTolerances()
	}
	if strings.TrimSpace(opts.BaseDir) == "" {
		opts.BaseDir = "."
	}
	return &Service{
		catalog:     deps.Catalog,
		facts:       deps.Facts,
		uow:         deps.UnitOfWork,
		reader:      deps.Reader,
		provisioner: deps.Provisioner,
		currency:    deps.Currency,
		quarantine:  deps.Quarantine,
		profile:     deps.Profile,
		currencies:  deps.Currencies,
		opts:        opts,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Phase names reported to the progress callback.
const (
	PhaseStart  = "start"
	PhaseParse  = "parse"
	PhaseMap    = "map"
	PhaseWrite  = "write"
	PhaseCommit = "commit"
	PhaseDone   = "done"
	PhaseFailed = "failed"
)

// ProgressEvent is emitted synchronously between phases of one file.
type ProgressEvent struct {
	RunID     string
	CatalogID uint64
	FileName  string
	Index     int
	Total     int
	Phase     string
	Message   string
}

type ProgressFunc func(ProgressEvent)

type RunInput struct {
	Limit       int
	Domains     []string
	RecentHours int
	Progress    ProgressFunc
}

// Stats summarizes one batch. Quarantined files are also counted as failed.
type Stats struct {
	RunID       string `json:"run_id"`
	Picked      int    `json:"picked"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	Quarantined int    `json:"quarantined"`
}

func (s *Service) check(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.catalog == nil {
		return errors.New("catalog repository is required")
	}
	if s.facts == nil {
		return errors.New("fact repository is required")
	}
	if s.uow == nil {
		return errors.New("ingest unit of work is required")
	}
	if s.reader == nil {
		return errors.New("sheet reader is required")
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

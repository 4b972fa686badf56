package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"xihong/internal/domain/ingest"
	"xihong/internal/errs"
	"xihong/internal/ports"
)

// Options carries the catalog section of the config.
type Options struct {
	Root    string
	BaseDir string
}

type Service struct {
	repo        ports.CatalogRepository
	uow         ports.UnitOfWork
	aliases     ports.AliasRepository
	registry    ShopAliasSource
	platforms   *ingest.PlatformResolver
	provisioner ports.TableProvisioner
	opts        Options
	now         func() time.Time
}

// NewService wires cataloging with its repositories. aliases, registry and
// provisioner may be nil.
func NewService(
	repo ports.CatalogRepository,
	uow ports.UnitOfWork,
	aliases ports.AliasRepository,
	registry ShopAliasSource,
	platforms *ingest.PlatformResolver,
	provisioner ports.TableProvisioner,
	opts Options,
) *Service {
	if platforms == nil {
		platforms = ingest.NewPlatformResolver(nil)
	}
	if strings.TrimSpace(opts.BaseDir) == "" {
		opts.BaseDir = "."
	}
	return &Service{
		repo:        repo,
		uow:         uow,
		aliases:     aliases,
		registry:    registry,
		platforms:   platforms,
		provisioner: provisioner,
		opts:        opts,
		now:         time.Now,
	}
}

type ScanInput struct {
	Root string
	Now  time.Time
}

// ScanResult counts one pass. Seen = Registered + Updated + Unchanged + Skipped.
type ScanResult struct {
	RunID      string
	Seen       int
	Registered int
	Updated    int
	Unchanged  int
	Skipped    int
	NewFileIDs []uint64
}

type ListFilter struct {
	Status string
	Domain string
	Limit  int
}

type RetryInput struct {
	IDs []uint64
	All bool
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]ports.CatalogFile, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, ports.CatalogListFilter{
		Status: strings.ToLower(strings.TrimSpace(filter.Status)),
		Domain: strings.ToLower(strings.TrimSpace(filter.Domain)),
		Limit:  filter.Limit,
	})
}

func (s *Service) Get(ctx context.Context, id uint64) (ports.CatalogFile, error) {
	if err := s.check(ctx); err != nil {
		return ports.CatalogFile{}, err
	}
	return s.repo.Get(ctx, id)
}

// Stats counts catalog rows by status and domain.
func (s *Service) Stats(ctx context.Context) ([]ports.CatalogCount, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.repo.CountByStatusDomain(ctx)
}

// ResetFailed moves failed rows back to pending so the next run picks them up.
func (s *Service) ResetFailed(ctx context.Context, input RetryInput) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	if !input.All && len(input.IDs) == 0 {
		return 0, errors.New("ids or all is required")
	}
	ids := input.IDs
	if input.All {
		ids = nil
	}

	var reset int64
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		reset, err = s.repo.ResetFailed(txCtx, ids)
		return err
	})
	return reset, err
}

func (s *Service) check(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("catalog repository is required")
	}
	if s.uow == nil {
		return errors.New("catalog unit of work is required")
	}
	return nil
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"xihong/internal/bootstrap/logging"
	"xihong/internal/domain/ingest"
	"xihong/internal/errs"
	"xihong/internal/ports"
)

var yearDirPattern = regexp.MustCompile(`^20\d{2}$`)

var scanExtensions = map[string]struct{}{
	".csv":  {},
	".xlsx": {},
	".xls":  {},
}

const repairedDir = "repaired"

type scanOutcome int

const (
	outcomeSkipped scanOutcome = iota
	outcomeRegistered
	outcomeUpdated
	outcomeUnchanged
)

// scanState holds what is loaded once per pass.
type scanState struct {
	runID    string
	now      time.Time
	resolver *ShopResolver
}

// Scan walks the year partitions under root and upserts one catalog row per
// data file. Files that cannot be routed are skipped with a warning.
func (s *Service) Scan(ctx context.Context, input ScanInput) (ScanResult, error) {
	if err := s.check(ctx); err != nil {
		return ScanResult{}, err
	}

	root := strings.TrimSpace(input.Root)
	if root == "" {
		root = s.opts.Root
	}
	if root == "" {
		return ScanResult{}, errors.New("scan root is required")
	}
	now := input.Now
	if now.IsZero() {
		now = s.now()
	}

	result := ScanResult{RunID: uuid.NewString()}
	logCtx := logging.WithRun(logging.WithAttrs(ctx, slog.String("component", "catalog.scanner")), result.RunID, 0)

	var aliases []ports.AccountAlias
	if s.aliases != nil {
		loaded, err := s.aliases.ListActive(ctx)
		if err != nil {
			return ScanResult{}, errs.Wrap(err, "load account aliases")
		}
		aliases = loaded
	}
	state := scanState{
		runID:    result.RunID,
		now:      now,
		resolver: NewShopResolver(aliases, s.registry),
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return ScanResult{}, errs.Wrapf(err, "read scan root %s", root)
	}
	logging.Info(logCtx, "catalog scan started", slog.String("root", root))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if !yearDirPattern.MatchString(entry.Name()) {
			logging.Warn(logCtx, "non-year directory skipped", slog.String("dir", entry.Name()))
			continue
		}

		yearDir := filepath.Join(root, entry.Name())
		walkErr := filepath.WalkDir(yearDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logging.Warn(logCtx, "walk error", slog.String("path", path), slog.Any("err", errs.Loggable(err)))
				return nil
			}
			if d.IsDir() {
				if strings.EqualFold(d.Name(), repairedDir) {
					return filepath.SkipDir
				}
				return nil
			}
			if !isDataFile(d.Name()) {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			result.Seen++
			outcome, id, err := s.scanFile(logCtx, state, path)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logging.Warn(logCtx, "file skipped", slog.String("path", path), slog.Any("err", errs.Loggable(err)))
				result.Skipped++
				return nil
			}
			switch outcome {
			case outcomeRegistered:
				result.Registered++
				result.NewFileIDs = append(result.NewFileIDs, id)
			case outcomeUpdated:
				result.Updated++
			case outcomeUnchanged:
				result.Unchanged++
			default:
				result.Skipped++
			}
			return nil
		})
		if walkErr != nil {
			return result, errs.Wrap(walkErr, "walk year directory")
		}
	}

	logging.Info(
		logCtx,
		"catalog scan completed",
		slog.Int("seen", result.Seen),
		slog.Int("registered", result.Registered),
		slog.Int("updated", result.Updated),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

func isDataFile(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, sidecarSuffix) {
		return false
	}
	_, ok := scanExtensions[filepath.Ext(lower)]
	return ok
}

// fileRouting is the routing recovered from a file name before validation.
type fileRouting struct {
	routing     ingest.Routing
	legacy      bool
	legacyShop  string
	legacyAcct  string
	templateKey string
}

func (s *Service) scanFile(ctx context.Context, state scanState, path string) (scanOutcome, uint64, error) {
	relPath := s.relativePath(path)
	fileName := filepath.Base(path)
	fileCtx := logging.WithAttrs(ctx, slog.String("file", relPath))

	fr, err := s.routeFromName(relPath)
	if err != nil {
		return outcomeSkipped, 0, err
	}

	sidecar, hasSidecar, err := ReadSidecar(fileCtx, path)
	if err != nil {
		logging.Warn(fileCtx, "sidecar unreadable, ignored", slog.Any("err", errs.Loggable(err)))
		hasSidecar = false
	}

	account := fr.legacyAcct
	query := ShopQuery{
		RelPath:     relPath,
		Platform:    fr.routing.Platform,
		Domain:      fr.routing.Domain,
		LegacyShop:  fr.legacyShop,
		LegacyMatch: fr.legacy,
	}
	if hasSidecar {
		query.Sidecar = &sidecar
		if sidecar.Account != "" {
			account = sidecar.Account
		}
	}
	query.Account = account
	resolution := state.resolver.Resolve(query)

	routing, err := ingest.NormalizeRouting(fr.routing)
	if err != nil {
		return outcomeSkipped, 0, err
	}

	shopID := resolution.ShopID
	if !resolution.Resolved() {
		shopID = ingest.UnresolvedShopID
	}

	hash, size, err := contentHash(path, shopID, routing.Platform)
	if err != nil {
		return outcomeSkipped, 0, err
	}

	candidate := ports.CatalogFile{
		FilePath:       relPath,
		FileName:       fileName,
		FileSize:       size,
		FileHash:       hash,
		Source:         "data/raw",
		PlatformCode:   routing.Platform,
		DataDomain:     routing.Domain,
		SubDomain:      routing.SubDomain,
		Granularity:    routing.Granularity,
		ShopID:         shopID,
		Account:        account,
		ShopResolution: resolution,
		Status:         ports.CatalogStatusPending,
		StorageLayer:   "raw",
		FirstSeenAt:    state.now,
	}
	if hasSidecar {
		candidate.DateFrom = sidecar.DateFrom
		candidate.DateTo = sidecar.DateTo
		candidate.QualityScore = sidecar.QualityScore
		candidate.MetaFilePath = s.relativePath(sidecar.Path)
	}

	var (
		outcome scanOutcome
		id      uint64
	)
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		existing, found, err := s.repo.FindByHashOrPath(txCtx, hash, relPath)
		if err != nil {
			return err
		}
		if !found {
			created, err := s.repo.Create(txCtx, candidate)
			if err != nil {
				return err
			}
			outcome, id = outcomeRegistered, created.ID
			return nil
		}

		id = existing.ID
		if existing.FilePath != relPath && existing.FileHash == hash && s.storedFileExists(existing.FilePath) {
			// same bytes at a second path; the first path keeps the row
			outcome = outcomeUnchanged
			return nil
		}
		merged, changed := mergeCatalogRow(existing, candidate)
		if !changed {
			outcome = outcomeUnchanged
			return nil
		}
		outcome = outcomeUpdated
		return s.repo.Update(txCtx, merged)
	}); err != nil {
		return outcomeSkipped, 0, errs.Wrap(err, "upsert catalog row")
	}

	switch outcome {
	case outcomeRegistered:
		logging.Info(fileCtx, "file registered",
			slog.Uint64("catalog_id", id),
			slog.String("template", fr.templateKey),
			slog.String("shop_id", shopID),
			slog.String("shop_source", resolution.Source),
		)
		s.ensureTable(fileCtx, routing)
	case outcomeUpdated:
		logging.Debug(fileCtx, "catalog row refreshed", slog.Uint64("catalog_id", id))
	}
	return outcome, id, nil
}

// routeFromName decodes a standard name and falls back to the legacy parser
// when the name is not standard or carries values outside the whitelists.
func (s *Service) routeFromName(relPath string) (fileRouting, error) {
	fileName := filepath.Base(relPath)

	parsed, err := ingest.DecodeFilename(fileName)
	if err == nil && ingest.IsValidDomain(parsed.Domain) && ingest.IsValidGranularity(parsed.Granularity) && !isDigits(parsed.Platform) {
		platform := parsed.Platform
		if !ingest.IsValidPlatform(platform) {
			if code, ok := s.platforms.Resolve(platform); ok {
				platform = code
			}
		}
		return fileRouting{
			routing: ingest.Routing{
				Platform:    platform,
				Domain:      parsed.Domain,
				SubDomain:   parsed.SubDomain,
				Granularity: parsed.Granularity,
			},
			templateKey: parsed.TemplateKey,
		}, nil
	}

	legacy, legacyErr := ingest.ParseLegacyName(relPath, s.platforms)
	if legacyErr != nil {
		if err != nil {
			return fileRouting{}, fmt.Errorf("%w; legacy: %w", err, legacyErr)
		}
		return fileRouting{}, legacyErr
	}
	platform := legacy.Platform
	if !ingest.IsValidPlatform(platform) {
		if code, ok := s.platforms.Resolve(relPath); ok {
			platform = code
		}
	}
	return fileRouting{
		routing: ingest.Routing{
			Platform:    platform,
			Domain:      legacy.Domain,
			SubDomain:   legacy.SubDomain,
			Granularity: legacy.Granularity,
		},
		legacy:      true,
		legacyShop:  legacy.ShopID,
		legacyAcct:  legacy.Account,
		templateKey: ingest.TemplateKey(platform, legacy.Domain, legacy.SubDomain, legacy.Granularity),
	}, nil
}

func (s *Service) ensureTable(ctx context.Context, routing ingest.Routing) {
	if s.provisioner == nil {
		return
	}
	table, err := s.provisioner.EnsureTable(ctx, routing.Platform, routing.Domain, routing.SubDomain, routing.Granularity)
	if err != nil {
		logging.Warn(ctx, "ensure fact table failed, retried at ingest", slog.Any("err", errs.Loggable(err)))
		return
	}
	logging.Debug(ctx, "fact table ready", slog.String("table", table))
}

// relativePath stores paths relative to the base dir, slash separated.
func (s *Service) relativePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	base, err := filepath.Abs(s.opts.BaseDir)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// storedFileExists reports whether a catalog file_path still resolves to a
// regular file.
func (s *Service) storedFileExists(stored string) bool {
	path := filepath.FromSlash(stored)
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.opts.BaseDir, path)
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// mergeCatalogRow refreshes routing and metadata on an existing row. The
// shop is replaced only when Prefer allows it; new content goes back to
// pending.
func mergeCatalogRow(existing ports.CatalogFile, scanned ports.CatalogFile) (ports.CatalogFile, bool) {
	merged := existing
	merged.FilePath = scanned.FilePath
	merged.FileName = scanned.FileName
	merged.FileSize = scanned.FileSize
	merged.PlatformCode = scanned.PlatformCode
	merged.DataDomain = scanned.DataDomain
	merged.SubDomain = scanned.SubDomain
	merged.Granularity = scanned.Granularity
	merged.StorageLayer = scanned.StorageLayer
	merged.MetaFilePath = scanned.MetaFilePath
	if scanned.QualityScore != nil {
		merged.QualityScore = scanned.QualityScore
	}
	if scanned.DateFrom != nil {
		merged.DateFrom = scanned.DateFrom
	}
	if scanned.DateTo != nil {
		merged.DateTo = scanned.DateTo
	}
	if scanned.Account != "" {
		merged.Account = scanned.Account
	}
	if ingest.Prefer(scanned.ShopResolution, existing.ShopResolution) {
		merged.ShopID = scanned.ShopID
		merged.ShopResolution = scanned.ShopResolution
	}
	if scanned.FileHash != existing.FileHash {
		merged.FileHash = scanned.FileHash
		if existing.Status == ports.CatalogStatusIngested {
			merged.Status = ports.CatalogStatusPending
			merged.ErrorMessage = ""
		}
	}
	return merged, !sameCatalogRow(existing, merged)
}

func sameCatalogRow(a ports.CatalogFile, b ports.CatalogFile) bool {
	return a.FilePath == b.FilePath &&
		a.FileName == b.FileName &&
		a.FileSize == b.FileSize &&
		a.FileHash == b.FileHash &&
		a.PlatformCode == b.PlatformCode &&
		a.DataDomain == b.DataDomain &&
		a.SubDomain == b.SubDomain &&
		a.Granularity == b.Granularity &&
		a.ShopID == b.ShopID &&
		a.Account == b.Account &&
		a.ShopResolution == b.ShopResolution &&
		a.Status == b.Status &&
		a.StorageLayer == b.StorageLayer &&
		a.MetaFilePath == b.MetaFilePath &&
		sameFloatPtr(a.QualityScore, b.QualityScore) &&
		sameDatePtr(a.DateFrom, b.DateFrom) &&
		sameDatePtr(a.DateTo, b.DateTo)
}

func sameFloatPtr(a *float64, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameDatePtr(a *time.Time, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

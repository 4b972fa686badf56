package ports

import (
	"context"
	"errors"
	"time"

	"xihong/internal/domain/ingest"
)

var ErrCatalogFileNotFound = errors.New("catalog file not found")

const (
	CatalogStatusPending     = "pending"
	CatalogStatusIngested    = "ingested"
	CatalogStatusFailed      = "failed"
	CatalogStatusQuarantined = "quarantined"
)

type CatalogFile struct {
	ID       uint64
	FilePath string
	FileName string
	FileSize int64
	FileHash string
	Source   string

	PlatformCode string
	DataDomain   string
	SubDomain    string
	Granularity  string
	ShopID       string
	Account      string

	ShopResolution ingest.ShopResolution

	DateFrom *time.Time
	DateTo   *time.Time

	Status       string
	ErrorMessage string
	QualityScore *float64
	StorageLayer string
	MetaFilePath string

	FirstSeenAt     time.Time
	LastProcessedAt *time.Time
}

type CatalogPendingFilter struct {
	Limit     int
	Domains   []string
	SeenAfter *time.Time
}

type CatalogListFilter struct {
	Status string
	Domain string
	Limit  int
}

type CatalogCount struct {
	Status string
	Domain string
	Count  int64
}

type CatalogRepository interface {
	FindByHashOrPath(ctx context.Context, fileHash string, filePath string) (CatalogFile, bool, error)
	Create(ctx context.Context, file CatalogFile) (CatalogFile, error)
	Update(ctx context.Context, file CatalogFile) error
	Get(ctx context.Context, id uint64) (CatalogFile, error)
	ListPending(ctx context.Context, filter CatalogPendingFilter) ([]CatalogFile, error)
	List(ctx context.Context, filter CatalogListFilter) ([]CatalogFile, error)
	MarkOutcome(ctx context.Context, id uint64, status string, message string, at time.Time) error
	CountByStatusDomain(ctx context.Context) ([]CatalogCount, error)
	// ResetFailed moves failed rows back to pending. An empty ids slice
	// resets every failed row.
	ResetFailed(ctx context.Context, ids []uint64) (int64, error)
}

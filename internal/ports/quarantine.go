package ports

import (
	"context"
	"errors"
	"time"
)

var ErrQuarantineNotFound = errors.New("quarantine record not found")

const (
	QuarantineValidationError      = "validation_error"
	QuarantineMissingRequiredField = "missing_required_field"
	QuarantineParseError           = "parse_error"
	QuarantineUnsupportedDomain    = "unsupported_domain"
)

type QuarantineRecord struct {
	ID         uint64
	CatalogID  uint64
	FilePath   string
	RowNumber  int
	RowData    map[string]any
	ErrorType  string
	ErrorMsg   string
	RunID      string
	IsResolved bool
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

type QuarantineFilter struct {
	CatalogID       uint64
	ErrorType       string
	IncludeResolved bool
	Limit           int
}

// QuarantineRepository is append-only; Resolve is the only mutation.
type QuarantineRepository interface {
	Append(ctx context.Context, record QuarantineRecord) (QuarantineRecord, error)
	List(ctx context.Context, filter QuarantineFilter) ([]QuarantineRecord, error)
	Get(ctx context.Context, id uint64) (QuarantineRecord, error)
	Resolve(ctx context.Context, id uint64, at time.Time) error
}

// QuarantineSink receives a copy of every appended record.
type QuarantineSink interface {
	Write(ctx context.Context, record QuarantineRecord) error
}

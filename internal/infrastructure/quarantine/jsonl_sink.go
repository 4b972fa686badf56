package quarantine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"xihong/internal/errs"
	"xihong/internal/ports"
)

type jsonlRecord struct {
	ID        uint64         `json:"id"`
	CatalogID uint64         `json:"catalog_file_id"`
	FilePath  string         `json:"file_path"`
	RowNumber int            `json:"row_number"`
	RowData   map[string]any `json:"row_data"`
	ErrorType string         `json:"error_type"`
	ErrorMsg  string         `json:"error_msg"`
	RunID     string         `json:"run_id,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// JSONLSink mirrors quarantine records to an append-only JSON lines file.
type JSONLSink struct {
	path string
	mu   sync.Mutex
}

var _ ports.QuarantineSink = (*JSONLSink)(nil)

func NewJSONLSink(path string) *JSONLSink {
	return &JSONLSink{path: path}
}

func (s *JSONLSink) Write(ctx context.Context, record ports.QuarantineRecord) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if s == nil || s.path == "" {
		return nil
	}
	return s.append(Encode(record))
}

// WriteAll is used by the export command.
func (s *JSONLSink) WriteAll(ctx context.Context, records []ports.QuarantineRecord) error {
	for _, record := range records {
		if err := s.Write(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *JSONLSink) append(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errs.Wrap(err, "create quarantine dir")
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrap(err, "open quarantine jsonl")
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return errs.Wrap(err, "append quarantine jsonl")
	}
	return errs.Wrap(f.Close(), "close quarantine jsonl")
}

// Encode renders one record as a JSON line with a trailing newline.
func Encode(record ports.QuarantineRecord) []byte {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	raw, err := json.Marshal(jsonlRecord{
		ID:        record.ID,
		CatalogID: record.CatalogID,
		FilePath:  record.FilePath,
		RowNumber: record.RowNumber,
		RowData:   record.RowData,
		ErrorType: record.ErrorType,
		ErrorMsg:  record.ErrorMsg,
		RunID:     record.RunID,
		CreatedAt: createdAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		// row data came from string cells, so this only trips on exotic values
		raw, _ = json.Marshal(jsonlRecord{
			ID:        record.ID,
			CatalogID: record.CatalogID,
			FilePath:  record.FilePath,
			RowNumber: record.RowNumber,
			ErrorType: record.ErrorType,
			ErrorMsg:  record.ErrorMsg + " (row data not encodable)",
			RunID:     record.RunID,
			CreatedAt: createdAt.UTC().Format(time.RFC3339),
		})
	}
	return append(raw, '\n')
}

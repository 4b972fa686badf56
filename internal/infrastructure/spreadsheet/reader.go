package spreadsheet

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"xihong/internal/domain/ingest"
	"xihong/internal/errs"
	"xihong/internal/ports"
)

// Sheet is one raw grid. Rows keep the cell text exactly as exported;
// header inference happens later.
type Sheet = ports.Sheet

// Reader adapts Read to ports.SheetReader.
type Reader struct{}

var _ ports.SheetReader = Reader{}

func NewReader() Reader { return Reader{} }

func (Reader) ReadSheets(ctx context.Context, path string) ([]ports.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Read(path)
}

// Read opens a CSV, XLSX or XLS export. Files named .xls are often XLSX,
// HTML tables or delimited text in disguise, so each is tried in turn.
func Read(path string) ([]Sheet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ingest.ErrUnreadableFile, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		sheet, err := readDelimited(raw)
		if err != nil {
			return nil, err
		}
		return []Sheet{sheet}, nil
	case ".xlsx":
		return readWorkbook(raw)
	case ".xls":
		return readLegacy(raw)
	default:
		return nil, fmt.Errorf("%w: unsupported extension %q", ingest.ErrUnreadableFile, ext)
	}
}

func readLegacy(raw []byte) ([]Sheet, error) {
	if isZip(raw) {
		return readWorkbook(raw)
	}
	if looksLikeHTML(raw) {
		return readHTML(raw)
	}
	if isOLE(raw) {
		// BIFF8 workbooks need a converter; ask for a re-export
		return nil, fmt.Errorf("%w: binary xls workbook is not supported, re-export as xlsx", ingest.ErrUnreadableFile)
	}
	sheet, err := readDelimited(raw)
	if err != nil {
		return nil, errs.Wrap(err, "read xls as text")
	}
	return []Sheet{sheet}, nil
}

func isZip(raw []byte) bool {
	return bytes.HasPrefix(raw, []byte("PK\x03\x04"))
}

func isOLE(raw []byte) bool {
	return bytes.HasPrefix(raw, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
}

func looksLikeHTML(raw []byte) bool {
	head := raw
	if len(head) > 4096 {
		head = head[:4096]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<table")) ||
		bytes.Contains(bytes.ToLower(head), []byte("<html"))
}

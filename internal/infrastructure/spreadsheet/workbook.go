package spreadsheet

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"xihong/internal/domain/ingest"
)

func readWorkbook(raw []byte) ([]Sheet, error) {
	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %w", ingest.ErrUnreadableFile, err)
	}
	defer book.Close()

	var sheets []Sheet
	for _, name := range book.GetSheetList() {
		rows, err := book.Rows(name)
		if err != nil {
			return nil, fmt.Errorf("%w: read sheet %q: %w", ingest.ErrUnreadableFile, name, err)
		}

		sheet := Sheet{Name: name}
		for rows.Next() {
			cols, err := rows.Columns()
			if err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("%w: read sheet %q: %w", ingest.ErrUnreadableFile, name, err)
			}
			sheet.Rows = append(sheet.Rows, cols)
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("%w: close sheet %q: %w", ingest.ErrUnreadableFile, name, err)
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

package ports

import "context"

// Sheet is one raw grid of an export, cell text as written.
type Sheet struct {
	Name string
	Rows [][]string
}

// SheetReader opens a data file into its sheets. An empty file yields no
// sheets and no error.
type SheetReader interface {
	ReadSheets(ctx context.Context, path string) ([]Sheet, error)
}

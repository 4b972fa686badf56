package quarantine

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"xihong/internal/ports"
)

func TestJSONLSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q", "quarantine.jsonl")
	sink := NewJSONLSink(path)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		err := sink.Write(ctx, ports.QuarantineRecord{
			CatalogID: 3,
			RowNumber: i,
			RowData:   map[string]any{"order_id": ""},
			ErrorType: ports.QuarantineMissingRequiredField,
			ErrorMsg:  "order id is empty",
		})
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open jsonl: %v", err)
	}
	defer f.Close()

	var lines []jsonlRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec jsonlRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		lines = append(lines, rec)
	}
	if len(lines) != 2 || lines[1].RowNumber != 2 || lines[0].ErrorType != ports.QuarantineMissingRequiredField {
		t.Fatalf("lines = %#v", lines)
	}
}

func TestJSONLSinkDisabledWithoutPath(t *testing.T) {
	if err := NewJSONLSink("").Write(context.Background(), ports.QuarantineRecord{}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

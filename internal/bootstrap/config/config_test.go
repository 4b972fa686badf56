package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ingest.BatchSize != 20 {
		t.Fatalf("Ingest.BatchSize = %d", cfg.Ingest.BatchSize)
	}
	if cfg.Ingest.SummaryTrafficTolerance != 0.10 {
		t.Fatalf("Ingest.SummaryTrafficTolerance = %v", cfg.Ingest.SummaryTrafficTolerance)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("Database.Driver = %q", cfg.Database.Driver)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte("database:\n  dsn: test.sqlite\ningest:\n  batch_size: 7\n  summary_amount_tolerance: 0.02\ncatalog:\n  root: /data/exports\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ingest.BatchSize != 7 || cfg.Ingest.SummaryAmountTolerance != 0.02 {
		t.Fatalf("Ingest = %+v", cfg.Ingest)
	}
	if cfg.Catalog.Root != "/data/exports" {
		t.Fatalf("Catalog.Root = %q", cfg.Catalog.Root)
	}
}

func TestLoadRejectsInvalidTolerance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("ingest:\n  summary_volume_tolerance: 1.5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(context.Background(), path); err == nil {
		t.Fatalf("Load() expected tolerance error")
	}
}

func TestLoadRequiresContext(t *testing.T) {
	//nolint:staticcheck
	if _, err := Load(nil, ""); err == nil {
		t.Fatalf("Load(nil) expected error")
	}
}

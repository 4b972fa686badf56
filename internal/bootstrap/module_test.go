package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/fx"

	"xihong/internal/infrastructure/persistence/sqlite/model"
	"xihong/internal/usecase/catalog"
	"xihong/internal/usecase/ingest"
)

func TestModuleWiresServicesAndMigrates(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := "database:\n  dsn: " + filepath.ToSlash(filepath.Join(dir, "warehouse.sqlite")) + "\n" +
		"catalog:\n  root: " + filepath.ToSlash(filepath.Join(dir, "raw")) + "\n  base_dir: " + filepath.ToSlash(dir) + "\n" +
		"  registry_file: " + filepath.ToSlash(filepath.Join(dir, "missing-registry.yaml")) + "\n"
	if err := os.WriteFile(configFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var (
		app        *App
		catalogSvc *catalog.Service
		ingestSvc  *ingest.Service
		writer     *ingest.QuarantineWriter
	)
	fxApp := fx.New(
		Module,
		fx.NopLogger,
		fx.Provide(func() context.Context { return context.Background() }),
		fx.Provide(
			fx.Annotate(
				func() string { return configFile },
				fx.ResultTags(`name:"configFile"`),
			),
		),
		fx.Populate(&app, &catalogSvc, &ingestSvc, &writer),
	)
	if err := fxApp.Err(); err != nil {
		t.Fatalf("fx graph error = %v", err)
	}
	if err := fxApp.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		_ = fxApp.Stop(context.Background())
	})

	if catalogSvc == nil || ingestSvc == nil || writer == nil {
		t.Fatalf("services not populated")
	}
	for _, m := range model.All() {
		if !app.DB.Migrator().HasTable(m) {
			t.Fatalf("table for %T not migrated", m)
		}
	}

	stats, err := ingestSvc.RunOnce(context.Background(), ingest.RunInput{})
	if err != nil || stats.Picked != 0 {
		t.Fatalf("RunOnce() on empty catalog = %#v, %v", stats, err)
	}
}

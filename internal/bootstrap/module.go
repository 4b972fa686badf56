package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"xihong/internal/bootstrap/config"
	"xihong/internal/bootstrap/database"
	"xihong/internal/bootstrap/logging"
	domainingest "xihong/internal/domain/ingest"
	cacheinfra "xihong/internal/infrastructure/cache"
	"xihong/internal/infrastructure/currency"
	sqliterepo "xihong/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "xihong/internal/infrastructure/persistence/sqlite/uow"
	quarantineinfra "xihong/internal/infrastructure/quarantine"
	"xihong/internal/infrastructure/registry"
	"xihong/internal/infrastructure/spreadsheet"
	"xihong/internal/infrastructure/tables"
	"xihong/internal/ports"
	"xihong/internal/usecase/catalog"
	"xihong/internal/usecase/ingest"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewCatalogRepository,
			fx.As(new(ports.CatalogRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewFactRepository,
			fx.As(new(ports.FactRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewQuarantineRepository,
			fx.As(new(ports.QuarantineRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewAliasRepository,
			fx.As(new(ports.AliasRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewFXRateRepository,
			fx.As(new(ports.FXRateRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(
		fx.Annotate(
			tables.NewProvisioner,
			fx.As(new(ports.TableProvisioner)),
		),
	),
	fx.Provide(
		fx.Annotate(
			spreadsheet.NewReader,
			fx.As(new(ports.SheetReader)),
		),
	),
	fx.Provide(provideRegistry),
	fx.Provide(provideProfile),
	fx.Provide(provideConverter),
	fx.Provide(provideJSONLSink),
	fx.Provide(provideQuarantineWriter),
	fx.Provide(provideCatalogService),
	fx.Provide(provideIngestService),
	fx.Invoke(migrateOnStart),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

// migrateOnStart keeps the schema current for every command, not only init-db.
func migrateOnStart(lc fx.Lifecycle, app *App) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return app.InitSchema(ctx)
		},
	})
}

func provideRegistry(ctx context.Context, cfg config.Config) (*registry.Registry, error) {
	reg, err := registry.Load(cfg.Catalog.RegistryFile)
	if err != nil {
		return nil, err
	}
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")),
		"alias registry loaded",
		slog.String("path", cfg.Catalog.RegistryFile),
	)
	return reg, nil
}

func provideProfile(cfg config.Config) (*registry.Profile, error) {
	return registry.LoadProfile(cfg.Ingest.ProfileFile)
}

func provideConverter(cfg config.Config, rates ports.FXRateRepository, reg *registry.Registry, cache ports.Cache) ports.CurrencyNormalizer {
	return currency.NewConverter(cfg.Ingest.BaseCurrency, rates, reg, cache)
}

// provideJSONLSink returns a sink that does nothing when no path is configured.
func provideJSONLSink(cfg config.Config) *quarantineinfra.JSONLSink {
	return quarantineinfra.NewJSONLSink(cfg.Quarantine.JSONLPath)
}

func provideQuarantineWriter(
	repo ports.QuarantineRepository,
	sink *quarantineinfra.JSONLSink,
	files ports.CatalogRepository,
	uow ports.UnitOfWork,
) *ingest.QuarantineWriter {
	return ingest.NewQuarantineWriter(repo, sink, files, uow)
}

func provideCatalogService(
	cfg config.Config,
	repo ports.CatalogRepository,
	uow ports.UnitOfWork,
	aliases ports.AliasRepository,
	reg *registry.Registry,
	provisioner ports.TableProvisioner,
) *catalog.Service {
	return catalog.NewService(repo, uow, aliases, reg, reg.PlatformResolver(), provisioner, catalog.Options{
		Root:    cfg.Catalog.Root,
		BaseDir: cfg.Catalog.BaseDir,
	})
}

type ingestParams struct {
	fx.In

	Config      config.Config
	Catalog     ports.CatalogRepository
	Facts       ports.FactRepository
	UnitOfWork  ports.UnitOfWork
	Reader      ports.SheetReader
	Provisioner ports.TableProvisioner
	Currency    ports.CurrencyNormalizer
	Quarantine  *ingest.QuarantineWriter
	Profile     *registry.Profile
	Registry    *registry.Registry
}

func provideIngestService(p ingestParams) *ingest.Service {
	cfg := p.Config.Ingest
	return ingest.NewService(ingest.Deps{
		Catalog:     p.Catalog,
		Facts:       p.Facts,
		UnitOfWork:  p.UnitOfWork,
		Reader:      p.Reader,
		Provisioner: p.Provisioner,
		Currency:    p.Currency,
		Quarantine:  p.Quarantine,
		Profile:     p.Profile,
		Currencies:  p.Registry,
	}, ingest.Options{
		BatchSize:      cfg.BatchSize,
		RecentHours:    cfg.RecentHours,
		Domains:        cfg.Domains,
		CommitAttempts: cfg.CommitAttempts,
		CommitBackoff:  time.Duration(cfg.CommitBackoffMS) * time.Millisecond,
		Tolerances: domainingest.Tolerances{
			Amount:  cfg.SummaryAmountTolerance,
			Volume:  cfg.SummaryVolumeTolerance,
			Traffic: cfg.SummaryTrafficTolerance,
		},
		BaseDir: p.Config.Catalog.BaseDir,
	})
}

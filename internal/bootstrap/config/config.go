package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"xihong/internal/bootstrap/logging"
	"xihong/internal/errs"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Quarantine QuarantineConfig `mapstructure:"quarantine"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type DatabaseConfig struct {
	Driver        string `mapstructure:"driver"`
	DSN           string `mapstructure:"dsn"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms"`
}

// CatalogConfig controls discovery. BaseDir is the anchor for the relative
// file_path stored on catalog rows.
type CatalogConfig struct {
	Root         string `mapstructure:"root"`
	BaseDir      string `mapstructure:"base_dir"`
	RegistryFile string `mapstructure:"registry_file"`
}

type IngestConfig struct {
	BatchSize       int      `mapstructure:"batch_size"`
	RecentHours     int      `mapstructure:"recent_hours"`
	Domains         []string `mapstructure:"domains"`
	CommitAttempts  int      `mapstructure:"commit_attempts"`
	CommitBackoffMS int      `mapstructure:"commit_backoff_ms"`
	ProfileFile     string   `mapstructure:"profile_file"`
	BaseCurrency    string   `mapstructure:"base_currency"`

	SummaryAmountTolerance  float64 `mapstructure:"summary_amount_tolerance"`
	SummaryVolumeTolerance  float64 `mapstructure:"summary_volume_tolerance"`
	SummaryTrafficTolerance float64 `mapstructure:"summary_traffic_tolerance"`
}

type QuarantineConfig struct {
	JSONLPath string `mapstructure:"jsonl_path"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("XH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("catalog_root", cfg.Catalog.Root),
		slog.Int("batch_size", cfg.Ingest.BatchSize),
	)

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if cfg.Ingest.BatchSize <= 0 {
		return errors.New("ingest.batch_size must be positive")
	}
	if cfg.Ingest.CommitAttempts <= 0 {
		return errors.New("ingest.commit_attempts must be positive")
	}
	for name, tol := range map[string]float64{
		"summary_amount_tolerance":  cfg.Ingest.SummaryAmountTolerance,
		"summary_volume_tolerance":  cfg.Ingest.SummaryVolumeTolerance,
		"summary_traffic_tolerance": cfg.Ingest.SummaryTrafficTolerance,
	} {
		if tol < 0 || tol > 1 {
			return errors.New("ingest." + name + " must be within [0,1]")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "xihong")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/warehouse.sqlite")
	v.SetDefault("database.busy_timeout_ms", 5000)
	v.SetDefault("catalog.root", "data/raw")
	v.SetDefault("catalog.base_dir", ".")
	v.SetDefault("catalog.registry_file", "configs/registry.yaml")
	v.SetDefault("ingest.batch_size", 20)
	v.SetDefault("ingest.recent_hours", 0)
	v.SetDefault("ingest.domains", []string{})
	v.SetDefault("ingest.commit_attempts", 5)
	v.SetDefault("ingest.commit_backoff_ms", 250)
	v.SetDefault("ingest.profile_file", "configs/ingest_profile.toml")
	v.SetDefault("ingest.base_currency", "CNY")
	v.SetDefault("ingest.summary_amount_tolerance", 0.05)
	v.SetDefault("ingest.summary_volume_tolerance", 0.05)
	v.SetDefault("ingest.summary_traffic_tolerance", 0.10)
	v.SetDefault("quarantine.jsonl_path", "")
}

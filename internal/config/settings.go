// Package config loads the environment settings and the four YAML
// configuration files once at startup and exposes immutable snapshots to
// every other component. Structural problems are fatal before any work
// begins and report the dotted path to the offending key.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Settings holds environment-level configuration. Values come from an
// optional settings file plus WDH_-prefixed environment variables;
// environment variables override both defaults and the loaded file.
type Settings struct {
	DatabaseURI       string `yaml:"database_uri" mapstructure:"database_uri"`
	LegacyDatabaseURI string `yaml:"legacy_database_uri" mapstructure:"legacy_database_uri"`

	EnrichmentSalt    string `yaml:"enrichment_salt" mapstructure:"enrichment_salt"`
	EQCToken          string `yaml:"eqc_token" mapstructure:"eqc_token"`
	EQCBaseURL        string `yaml:"eqc_base_url" mapstructure:"eqc_base_url"`
	SyncBudgetDefault int    `yaml:"sync_budget_default" mapstructure:"sync_budget_default"`
	EnrichmentEnabled bool   `yaml:"enrichment_enabled" mapstructure:"enrichment_enabled"`

	ConfigDir   string `yaml:"config_dir" mapstructure:"config_dir"`
	ArtifactDir string `yaml:"artifact_dir" mapstructure:"artifact_dir"`

	BatchSize int   `yaml:"batch_size" mapstructure:"batch_size"`
	PoolMin   int32 `yaml:"pool_min" mapstructure:"pool_min"`
	PoolMax   int32 `yaml:"pool_max" mapstructure:"pool_max"`

	Log LogConfig `yaml:"log" mapstructure:"log"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Dir    string `yaml:"dir" mapstructure:"dir"`
}

// LoadSettings reads the settings file (optional) and environment.
func LoadSettings() (*Settings, error) {
	v := viper.New()

	v.SetConfigName("workdatahub")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("WDH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults must be bound explicitly or AutomaticEnv
	// never surfaces them to Unmarshal.
	for _, key := range []string{
		"database_uri",
		"legacy_database_uri",
		"enrichment_salt",
		"eqc_token",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	v.SetDefault("eqc_base_url", "https://eqc.example.com/api/v1")
	v.SetDefault("sync_budget_default", 0)
	v.SetDefault("enrichment_enabled", true)
	v.SetDefault("config_dir", "./config")
	v.SetDefault("artifact_dir", "./logs")
	v.SetDefault("batch_size", 1000)
	v.SetDefault("pool_min", 2)
	v.SetDefault("pool_max", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.dir", "./logs")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read settings file")
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal settings")
	}
	return &s, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}

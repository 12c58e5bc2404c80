// Package config loads service settings from an optional TOML file and
// BALANCE_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Coverage sources.
const (
	CoverageSQLite   = "sqlite"
	CoverageBigQuery = "bigquery"
)

// Config holds application configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Projection ProjectionConfig `mapstructure:"projection"`
	Coverage   CoverageConfig   `mapstructure:"coverage"`
	BigQuery   BigQueryConfig   `mapstructure:"bigquery"`
	Export     ExportConfig     `mapstructure:"export"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	// Token, when set, is the bearer token every API request must carry.
	Token string `mapstructure:"token"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProjectionConfig tunes the calculator and recalculation trigger.
type ProjectionConfig struct {
	WindowMonths   int    `mapstructure:"window_months"`
	InitialBalance string `mapstructure:"initial_balance"`
	MaxRangeDays   int    `mapstructure:"max_range_days"`
	ChunkDays      int    `mapstructure:"chunk_days"`
}

// CoverageConfig selects where transaction history is read from.
type CoverageConfig struct {
	Source  string `mapstructure:"source"`
	GapDays int    `mapstructure:"gap_days"`
}

// BigQueryConfig names the dataset holding imported transactions.
type BigQueryConfig struct {
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
}

// ExportConfig names the bucket timelines are exported to.
type ExportConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// TelemetryConfig holds the OTLP endpoint. Tracing is off when it is empty.
type TelemetryConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// JobsConfig sizes the background recalculation queue.
type JobsConfig struct {
	Buffer  int `mapstructure:"buffer"`
	Workers int `mapstructure:"workers"`
	MaxLog  int `mapstructure:"max_log"`
}

// Load reads configuration from file and env. Env var overrides use prefix BALANCE_.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("BALANCE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "balance-projection"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("BALANCE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("Load: reading config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("Load: unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "balance-projection", "balance.db"))
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("projection.window_months", 6)
	v.SetDefault("projection.initial_balance", "0")
	v.SetDefault("projection.max_range_days", 3660)
	v.SetDefault("projection.chunk_days", 366)
	v.SetDefault("coverage.source", CoverageSQLite)
	v.SetDefault("coverage.gap_days", 7)
	v.SetDefault("bigquery.project", "")
	v.SetDefault("bigquery.dataset", "finance")
	v.SetDefault("export.bucket", "")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", "balance-projection")
	v.SetDefault("jobs.buffer", 100)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.max_log", 1000)
}

// Validate checks values viper cannot type-check.
func (c Config) Validate() error {
	if _, err := c.InitialBalance(); err != nil {
		return err
	}
	if c.Projection.WindowMonths < 0 {
		return fmt.Errorf("Validate: projection.window_months must not be negative")
	}
	switch c.Coverage.Source {
	case CoverageSQLite:
	case CoverageBigQuery:
		if c.BigQuery.Project == "" {
			return fmt.Errorf("Validate: bigquery.project is required when coverage.source is %q", CoverageBigQuery)
		}
	default:
		return fmt.Errorf("Validate: unknown coverage.source %q", c.Coverage.Source)
	}
	return nil
}

// InitialBalance parses projection.initial_balance.
func (c Config) InitialBalance() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Projection.InitialBalance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("InitialBalance: parsing projection.initial_balance %q: %w", c.Projection.InitialBalance, err)
	}
	return d, nil
}

// File: internal/config/config.go
package config

import (
	"fmt"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Taint     TaintConfig     `mapstructure:"taint" yaml:"taint"`
	Reporting ReportingConfig `mapstructure:"reporting" yaml:"reporting"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// TaintConfig controls the taint engine itself.
type TaintConfig struct {
	// Enabled gates all taint bookkeeping; when false every scope is a
	// pass-through.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// SampleRate is the number of analysis units admitted per second.
	// Non-positive disables sampling (every unit is analyzed).
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	// UnitBudget is the number of taint operations granted to one analyzed
	// unit. Non-positive means unlimited.
	UnitBudget int `mapstructure:"unit_budget" yaml:"unit_budget"`
	// MaxRanges caps the range sequence length registered for any single
	// value. Non-positive means uncapped.
	MaxRanges int `mapstructure:"max_ranges" yaml:"max_ranges"`
	// RedactSources masks original input values before they are stored in
	// source descriptors.
	RedactSources bool `mapstructure:"redact_sources" yaml:"redact_sources"`
}

// ReportingConfig controls the asynchronous evidence reporter.
type ReportingConfig struct {
	Workers   int `mapstructure:"workers" yaml:"workers"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// DatabaseConfig holds PostgreSQL connection settings for the report store.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// DSN renders the config as a pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "taintflow")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Taint engine --
	v.SetDefault("taint.enabled", true)
	v.SetDefault("taint.sample_rate", 0)
	v.SetDefault("taint.unit_budget", 0)
	v.SetDefault("taint.max_ranges", 256)
	v.SetDefault("taint.redact_sources", false)

	// -- Reporting --
	v.SetDefault("reporting.workers", 4)
	v.SetDefault("reporting.queue_size", 1000)

	// -- Database --
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "") // Should be set via env var.
	v.SetDefault("database.dbname", "taintflow")
	v.SetDefault("database.sslmode", "disable")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("database.password", "TAINTFLOW_DB_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Logger.LogFile != "" {
		expanded, err := homedir.Expand(cfg.Logger.LogFile)
		if err != nil {
			return nil, fmt.Errorf("error expanding log file path: %w", err)
		}
		cfg.Logger.LogFile = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the runtime cannot honor.
func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid logger format %q (want console or json)", c.Logger.Format)
	}
	if c.Reporting.Workers < 1 {
		return fmt.Errorf("reporting.workers must be at least 1, got %d", c.Reporting.Workers)
	}
	if c.Reporting.QueueSize < 1 {
		return fmt.Errorf("reporting.queue_size must be at least 1, got %d", c.Reporting.QueueSize)
	}
	if c.Taint.SampleRate < 0 {
		return fmt.Errorf("taint.sample_rate must not be negative, got %f", c.Taint.SampleRate)
	}
	return nil
}

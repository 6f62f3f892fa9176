package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "taintflow", cfg.Logger.ServiceName)

	assert.True(t, cfg.Taint.Enabled)
	assert.Zero(t, cfg.Taint.SampleRate)
	assert.Zero(t, cfg.Taint.UnitBudget)
	assert.Equal(t, 256, cfg.Taint.MaxRanges)
	assert.False(t, cfg.Taint.RedactSources)

	assert.Equal(t, 4, cfg.Reporting.Workers)
	assert.Equal(t, 1000, cfg.Reporting.QueueSize)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)

	assert.NoError(t, cfg.Validate())
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("should apply overrides on top of defaults", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("taint.unit_budget", 50)
		v.Set("taint.redact_sources", true)
		v.Set("logger.format", "json")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 50, cfg.Taint.UnitBudget)
		assert.True(t, cfg.Taint.RedactSources)
		assert.Equal(t, "json", cfg.Logger.Format)
		assert.Equal(t, 256, cfg.Taint.MaxRanges, "untouched defaults should survive")
	})

	t.Run("should read the database password from the environment", func(t *testing.T) {
		t.Setenv("TAINTFLOW_DB_PASSWORD", "sekrit")
		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "sekrit", cfg.Database.Password)
		assert.Contains(t, cfg.Database.DSN(), "password=sekrit")
	})

	t.Run("should expand a home-relative log file path", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("logger.log_file", "~/taintflow.log")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.NotContains(t, cfg.Logger.LogFile, "~")
	})

	t.Run("should reject invalid configuration", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("logger.format", "xml")

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logger format")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero workers", func(c *Config) { c.Reporting.Workers = 0 }, "reporting.workers"},
		{"zero queue size", func(c *Config) { c.Reporting.QueueSize = 0 }, "reporting.queue_size"},
		{"negative sample rate", func(c *Config) { c.Taint.SampleRate = -1 }, "taint.sample_rate"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "taint", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=taint sslmode=require", d.DSN())
}

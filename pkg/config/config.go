// Package config loads the service configuration from a TOML file with
// APP_* environment variable overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`

	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Watchlist WatchlistConfig `mapstructure:"watchlist"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Checks    ChecksConfig    `mapstructure:"checks"`
}

type HTTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	WithCaller bool   `mapstructure:"with_caller"`
}

type WatchlistConfig struct {
	// Path to the sanctions watchlist reference file (JSON array).
	Path string `mapstructure:"path"`
}

// LimitsConfig carries the deployment-level ceilings. These are configured
// constants per environment, not values derived from limit rows.
type LimitsConfig struct {
	ProgramCeiling  string            `mapstructure:"program_ceiling"`
	CountryCeilings map[string]string `mapstructure:"country_ceilings"`
}

// ChecksConfig configures the static eligibility/exposure policy outcomes
// used when no external policy engine is wired in.
type ChecksConfig struct {
	EligibilityPass bool `mapstructure:"eligibility_pass"`
	ExposurePass    bool `mapstructure:"exposure_pass"`
	// Amendments that only adjust amount or maturity date skip re-screening
	// when true.
	ExemptDateAmountAmendments bool `mapstructure:"exempt_date_amount_amendments"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.Watchlist.Path == "" {
		return fmt.Errorf("watchlist path is required")
	}
	if _, err := c.ProgramCeiling(); err != nil {
		return err
	}
	if _, err := c.CountryCeilings(); err != nil {
		return err
	}
	return nil
}

// ProgramCeiling parses the configured program-wide limit ceiling.
func (c *Config) ProgramCeiling() (decimal.Decimal, error) {
	if c.Limits.ProgramCeiling == "" {
		return decimal.Zero, fmt.Errorf("limits.program_ceiling is required")
	}
	d, err := decimal.NewFromString(c.Limits.ProgramCeiling)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid limits.program_ceiling %q: %w", c.Limits.ProgramCeiling, err)
	}
	return d, nil
}

// CountryCeilings parses the per-country ceilings keyed by upper-cased
// country name.
func (c *Config) CountryCeilings() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(c.Limits.CountryCeilings))
	for country, raw := range c.Limits.CountryCeilings {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid limits.country_ceilings[%s] %q: %w", country, raw, err)
		}
		out[strings.ToUpper(country)] = d
	}
	return out, nil
}

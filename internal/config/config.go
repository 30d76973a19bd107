// Package config handles application configuration via environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the client.
type Config struct {
	// Marketplace settings. The locale/marketplace table lives outside this
	// module; callers supply the resolved values directly.
	Domain        string `env:"AAX_DOMAIN" env-default:"com"`
	CountryCode   string `env:"AAX_COUNTRY_CODE" env-default:"us"`
	MarketplaceID string `env:"AAX_MARKETPLACE_ID" env-default:"AF2M0KC94RCEA"`

	// Username-domain accounts authenticate against the audible host.
	WithUsername bool `env:"AAX_WITH_USERNAME" env-default:"false"`

	// Storage settings
	DataDir string `env:"AAX_DATA_DIR" env-default:"./data"`

	// Transport settings
	HTTPTimeout time.Duration `env:"AAX_HTTP_TIMEOUT" env-default:"30s"`

	// Logging
	LogLevel  string `env:"AAX_LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"AAX_LOG_FORMAT" env-default:"json"` // json or text
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LocaleCode returns the code stored alongside persisted credentials.
func (c *Config) LocaleCode() string {
	return c.CountryCode
}

package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	clearAAXEnvVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Domain != "com" {
		t.Errorf("Expected default domain 'com', got '%s'", cfg.Domain)
	}
	if cfg.CountryCode != "us" {
		t.Errorf("Expected default country code 'us', got '%s'", cfg.CountryCode)
	}
	if cfg.MarketplaceID != "AF2M0KC94RCEA" {
		t.Errorf("Expected default marketplace id, got '%s'", cfg.MarketplaceID)
	}
	if cfg.WithUsername {
		t.Error("Expected with-username to default to false")
	}
	if cfg.DataDir != "./data" {
		t.Errorf("Expected default data dir './data', got '%s'", cfg.DataDir)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("Expected default HTTP timeout 30s, got %v", cfg.HTTPTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("Expected default log format 'json', got '%s'", cfg.LogFormat)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearAAXEnvVars()

	os.Setenv("AAX_DOMAIN", "de")
	os.Setenv("AAX_COUNTRY_CODE", "de")
	os.Setenv("AAX_MARKETPLACE_ID", "AN7V1F1VY261K")
	os.Setenv("AAX_WITH_USERNAME", "true")
	os.Setenv("AAX_DATA_DIR", "/var/aax/data")
	os.Setenv("AAX_HTTP_TIMEOUT", "10s")
	os.Setenv("AAX_LOG_LEVEL", "debug")
	defer clearAAXEnvVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Domain != "de" {
		t.Errorf("Expected domain 'de', got '%s'", cfg.Domain)
	}
	if cfg.CountryCode != "de" {
		t.Errorf("Expected country code 'de', got '%s'", cfg.CountryCode)
	}
	if cfg.MarketplaceID != "AN7V1F1VY261K" {
		t.Errorf("Expected marketplace id 'AN7V1F1VY261K', got '%s'", cfg.MarketplaceID)
	}
	if !cfg.WithUsername {
		t.Error("Expected with-username to be true")
	}
	if cfg.DataDir != "/var/aax/data" {
		t.Errorf("Expected data dir '/var/aax/data', got '%s'", cfg.DataDir)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("Expected HTTP timeout 10s, got %v", cfg.HTTPTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", cfg.LogLevel)
	}
}

func TestLocaleCode(t *testing.T) {
	clearAAXEnvVars()
	os.Setenv("AAX_COUNTRY_CODE", "uk")
	defer clearAAXEnvVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LocaleCode() != "uk" {
		t.Errorf("Expected locale code 'uk', got '%s'", cfg.LocaleCode())
	}
}

func clearAAXEnvVars() {
	vars := []string{
		"AAX_DOMAIN",
		"AAX_COUNTRY_CODE",
		"AAX_MARKETPLACE_ID",
		"AAX_WITH_USERNAME",
		"AAX_DATA_DIR",
		"AAX_HTTP_TIMEOUT",
		"AAX_LOG_LEVEL",
		"AAX_LOG_FORMAT",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}

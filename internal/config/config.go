// Package config holds OPERATOR-LEVEL configuration for a claimpilot installation.
//
// This is infrastructure config set by the DevOps/admin who deploys the
// automation service, NOT per-tenant configuration. The boundary is:
//
//   - Operator config (this package): data directory, Redis address, cache
//     TTLs, batch scan limit, model selection defaults, serve address.
//     Set via env vars (CLAIMPILOT_*) or config file (claimpilot.config.yaml).
//
//   - Tenant config: prepaid balances, per-tenant rate limits and cache TTL
//     overrides. Managed through internal/tenant at runtime.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the CLAIMPILOT_ prefix
// (e.g. "redis_addr" → CLAIMPILOT_REDIS_ADDR) and to a YAML field
// in claimpilot.config.yaml.
const (
	KeyDataDir            = "data_dir"
	KeyRedisAddr          = "redis_addr"
	KeyRedisDB            = "redis_db"
	KeyCacheTTLDays       = "cache_ttl_days"
	KeyScanLimit          = "scan_limit"
	KeyBudgetThresholdUSD = "budget_threshold_usd"
	KeyCapableModel       = "capable_model"
	KeyCheapModel         = "cheap_model"
	KeyRatesFile          = "rates_file"
	KeyServeAddr          = "serve_addr"
	KeyOpenAIAPIKey       = "openai_api_key"
	KeyEmailFrom          = "email_from"
)

// Defaults. The scan limit mirrors the batch sweep cap; it is configuration,
// not an architectural constraint.
const (
	DefaultCacheTTLDays       = 7
	DefaultScanLimit          = 50
	DefaultBudgetThresholdUSD = 10.0
	DefaultCapableModel       = "gpt-4o"
	DefaultCheapModel         = "gpt-4o-mini"
	DefaultServeAddr          = ":8790"
	DefaultEmailFrom          = "claims@claimpilot.local"
)

// Config holds resolved operator-level configuration for a claimpilot process.
type Config struct {
	DataDir            string        // Base directory for all state (~/.claimpilot)
	RedisAddr          string        // Redis address for the AI result cache; empty = cache disabled
	RedisDB            int           // Redis database number
	CacheTTL           time.Duration // Default TTL for cached AI results
	ScanLimit          int           // Max claims per batch org scan
	BudgetThresholdUSD float64       // Below this remaining balance, auto mode selects the cheap model
	CapableModel       string        // High-accuracy model id
	CheapModel         string        // Low-cost model id
	RatesFile          string        // Optional YAML file overriding the model rate table
	ServeAddr          string        // HTTP API listen address
	OpenAIAPIKey       string        // API key for the OpenAI provider; empty = mock provider in dev
	EmailFrom          string        // From address for outbound claim emails
}

// ClaimsDBPath returns the full path to the claims SQLite database.
func (c *Config) ClaimsDBPath() string {
	return filepath.Join(c.DataDir, "claims.db")
}

// AutomationDBPath returns the full path to the automation records SQLite database.
func (c *Config) AutomationDBPath() string {
	return filepath.Join(c.DataDir, "automation.db")
}

// InvocationsDBPath returns the full path to the AI invocation records SQLite database.
func (c *Config) InvocationsDBPath() string {
	return filepath.Join(c.DataDir, "invocations.db")
}

// EnsureDataDir creates the data directory if it does not exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o750)
}

func init() {
	viper.SetEnvPrefix("CLAIMPILOT")
	viper.AutomaticEnv()
	viper.SetDefault(KeyCacheTTLDays, DefaultCacheTTLDays)
	viper.SetDefault(KeyScanLimit, DefaultScanLimit)
	viper.SetDefault(KeyBudgetThresholdUSD, DefaultBudgetThresholdUSD)
	viper.SetDefault(KeyCapableModel, DefaultCapableModel)
	viper.SetDefault(KeyCheapModel, DefaultCheapModel)
	viper.SetDefault(KeyServeAddr, DefaultServeAddr)
	viper.SetDefault(KeyEmailFrom, DefaultEmailFrom)
}

// Load reads configuration from Viper (which merges env vars, config
// file, and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:            resolveDataDir(),
		RedisAddr:          viper.GetString(KeyRedisAddr),
		RedisDB:            viper.GetInt(KeyRedisDB),
		CacheTTL:           time.Duration(viper.GetInt(KeyCacheTTLDays)) * 24 * time.Hour,
		ScanLimit:          viper.GetInt(KeyScanLimit),
		BudgetThresholdUSD: viper.GetFloat64(KeyBudgetThresholdUSD),
		CapableModel:       viper.GetString(KeyCapableModel),
		CheapModel:         viper.GetString(KeyCheapModel),
		RatesFile:          viper.GetString(KeyRatesFile),
		ServeAddr:          viper.GetString(KeyServeAddr),
		OpenAIAPIKey:       viper.GetString(KeyOpenAIAPIKey),
		EmailFrom:          viper.GetString(KeyEmailFrom),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claimpilot"
	}
	return filepath.Join(home, ".claimpilot")
}

func (c *Config) validate() error {
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl_days must be positive")
	}
	if c.ScanLimit <= 0 {
		return fmt.Errorf("scan_limit must be positive")
	}
	if c.CapableModel == "" || c.CheapModel == "" {
		return fmt.Errorf("capable_model and cheap_model must be set")
	}
	return nil
}

// Package config loads server and CLI settings from an optional YAML file
// named by UTILIPAY_CONFIG, then applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Plaid      PlaidConfig      `yaml:"plaid"`
	Provider   ProviderConfig   `yaml:"provider"`
	Settlement SettlementConfig `yaml:"settlement"`
	Insight    InsightConfig    `yaml:"insight"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type PlaidConfig struct {
	BaseURL    string `yaml:"base_url"`
	ClientID   string `yaml:"client_id"`
	Secret     string `yaml:"secret"`
	ClientName string `yaml:"client_name"`
}

// ProviderConfig bounds calls to the balance provider.
type ProviderConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

type SettlementConfig struct {
	// Delay is the simulated settlement leg latency.
	Delay             time.Duration `yaml:"delay"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	// StaleAfter is how long a bill may stay pending before the reconciler picks it up.
	StaleAfter       time.Duration `yaml:"stale_after"`
	ReconcileWorkers int           `yaml:"reconcile_workers"`
}

type InsightConfig struct {
	GeminiAPIKey string        `yaml:"gemini_api_key"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: 8080, ShutdownTimeout: 15 * time.Second},
		Database: DatabaseConfig{Path: "./data/utilipay.db"},
		Auth:     AuthConfig{TokenTTL: 24 * time.Hour},
		Plaid: PlaidConfig{
			BaseURL:    "https://sandbox.plaid.com",
			ClientName: "Utilyze Payment Portal",
		},
		Provider: ProviderConfig{
			Timeout:          5 * time.Second,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		},
		Settlement: SettlementConfig{
			Delay:             3 * time.Second,
			ReconcileInterval: time.Minute,
			StaleAfter:        2 * time.Minute,
			ReconcileWorkers:  4,
		},
		Insight: InsightConfig{
			Model:   "gemini-2.0-flash",
			Timeout: 20 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration: defaults, then the YAML file at
// UTILIPAY_CONFIG if set, then environment overrides. The result is validated.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("UTILIPAY_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.Path, "DB_PATH")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Plaid.ClientID, "PLAID_CLIENT_ID")
	setString(&c.Plaid.Secret, "PLAID_SECRET")
	setString(&c.Plaid.BaseURL, "PLAID_BASE_URL")
	setString(&c.Insight.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("SETTLEMENT_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SETTLEMENT_DELAY %q: %w", v, err)
		}
		c.Settlement.Delay = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters (JWT_SECRET)"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Provider.Timeout <= 0 {
		errs = append(errs, errors.New("provider.timeout must be positive"))
	}
	if c.Settlement.Delay < 0 {
		errs = append(errs, errors.New("settlement.delay must not be negative"))
	}
	if c.Settlement.ReconcileInterval <= 0 {
		errs = append(errs, errors.New("settlement.reconcile_interval must be positive"))
	}
	if c.Settlement.ReconcileWorkers <= 0 {
		errs = append(errs, errors.New("settlement.reconcile_workers must be positive"))
	}
	return errors.Join(errs...)
}

// PlaidEnabled reports whether Plaid credentials are configured.
func (c Config) PlaidEnabled() bool {
	return c.Plaid.ClientID != "" && c.Plaid.Secret != ""
}

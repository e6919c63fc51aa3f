// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type ProviderConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type PaymentConfig struct {
	Provider        ProviderConfig `yaml:"provider"`
	Currency        string         `yaml:"currency"`
	RegistrationFee int64          `yaml:"registration_fee"`
	// DuplicateWindow is how long a non-terminal payment blocks a new
	// initiation for the same user/purpose.
	DuplicateWindow time.Duration `yaml:"duplicate_window"`
}

type SweepConfig struct {
	ExpiryInterval    time.Duration `yaml:"expiry_interval"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	OrphanGrace       time.Duration `yaml:"orphan_grace"`
	OutboxInterval    time.Duration `yaml:"outbox_interval"`
}

type RateLimitConfig struct {
	InitiatePerMinute int `yaml:"initiate_per_minute"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Payment   PaymentConfig   `yaml:"payment"`
	Sweep     SweepConfig     `yaml:"sweep"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Load reads the YAML config and applies defaults plus minimal validation.
// The webhook secret is a hard requirement: the service refuses to start
// without one rather than silently skipping signature checks.
func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "XAF"
	}
	if cfg.Payment.RegistrationFee <= 0 {
		cfg.Payment.RegistrationFee = 5000
	}
	if cfg.Payment.DuplicateWindow <= 0 {
		cfg.Payment.DuplicateWindow = 10 * time.Minute
	}
	if cfg.Sweep.ExpiryInterval <= 0 {
		cfg.Sweep.ExpiryInterval = 5 * time.Minute
	}
	if cfg.Sweep.ReconcileInterval <= 0 {
		cfg.Sweep.ReconcileInterval = time.Minute
	}
	if cfg.Sweep.StaleAfter <= 0 {
		cfg.Sweep.StaleAfter = cfg.Payment.DuplicateWindow
	}
	if cfg.Sweep.OrphanGrace <= 0 {
		cfg.Sweep.OrphanGrace = 15 * time.Minute
	}
	if cfg.Sweep.OutboxInterval <= 0 {
		cfg.Sweep.OutboxInterval = 5 * time.Second
	}
	if cfg.RateLimit.InitiatePerMinute <= 0 {
		cfg.RateLimit.InitiatePerMinute = 5
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.Payment.Provider.BaseURL == "" {
		return nil, errors.New("payment.provider.base_url is required")
	}
	if cfg.Payment.Provider.APIKey == "" {
		return nil, errors.New("payment.provider.api_key is required")
	}
	if cfg.Payment.Provider.WebhookSecret == "" {
		return nil, errors.New("payment.provider.webhook_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

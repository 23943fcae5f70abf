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

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type GatewayConfig struct {
	BaseURL            string `yaml:"base_url"`
	SecretKey          string `yaml:"secret_key"`
	MinPromptPaySatang int64  `yaml:"min_promptpay_satang"`
}

type WebhookConfig struct {
	DedupTTL      time.Duration `yaml:"dedup_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type PollingConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	Interval          time.Duration `yaml:"interval"`
	GatewayCheckEvery int           `yaml:"gateway_check_every"` // requery provider every Nth attempt
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	BatchSize  int           `yaml:"batch_size"`
}

type AuthConfig struct {
	HMACSecret string        `yaml:"hmac_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
}

type RateLimitConfig struct {
	PurchasePerMinute int `yaml:"purchase_per_minute"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Polling    PollingConfig    `yaml:"polling"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Auth       AuthConfig       `yaml:"auth"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = "https://api.omise.co"
	}
	if cfg.Gateway.MinPromptPaySatang <= 0 {
		cfg.Gateway.MinPromptPaySatang = 2000 // 20 THB, provider transfer minimum
	}
	if cfg.Webhook.DedupTTL <= 0 {
		cfg.Webhook.DedupTTL = 5 * time.Minute
	}
	if cfg.Webhook.SweepInterval <= 0 {
		cfg.Webhook.SweepInterval = time.Minute
	}
	if cfg.Polling.MaxAttempts <= 0 {
		cfg.Polling.MaxAttempts = 30
	}
	if cfg.Polling.Interval <= 0 {
		cfg.Polling.Interval = 2 * time.Second
	}
	if cfg.Polling.GatewayCheckEvery <= 0 {
		cfg.Polling.GatewayCheckEvery = 5
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 10 * time.Minute
	}
	if cfg.Reconciler.BatchSize <= 0 {
		cfg.Reconciler.BatchSize = 200
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 30 * time.Minute
	}
	if cfg.RateLimit.PurchasePerMinute <= 0 {
		cfg.RateLimit.PurchasePerMinute = 10
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Gateway.SecretKey == "" && !dev {
		return nil, errors.New("gateway.secret_key is required")
	}
	if cfg.Auth.HMACSecret == "" && !dev {
		return nil, errors.New("auth.hmac_secret is required")
	}
	return &cfg, nil
}

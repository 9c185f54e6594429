package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port                  int              `json:"port"`
	JWTSecret             string           `json:"jwt_secret"`
	JWTTTLHours           int              `json:"jwt_ttl_hours"`
	Database              DatabaseConfig   `json:"database"`
	LogConfig             logger.LogConfig `json:"log_config"`
	Delivery              DeliveryConfig   `json:"delivery"`
	TelegramWebhookSecret string           `json:"telegram_webhook_secret"`
	CORSOrigins           []string         `json:"cors_origins"`
	Limiter               LimiterConfig    `json:"limiter"`
	Cleanup               CleanupConfig    `json:"cleanup"`
	// BotAPIKey authenticates bots calling the link confirm route; empty
	// disables the route.
	BotAPIKey string `json:"bot_api_key"`
	// CodeSecret keys the stored code digests; defaults to JWTSecret.
	CodeSecret string `json:"code_secret"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"`
	DSN      string `json:"dsn"`
	Path     string `json:"path"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type DeliveryConfig struct {
	Type           string      `json:"type"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	Data           interface{} `json:"data"`
}

type LimiterConfig struct {
	Type          string `json:"type"`
	WindowSeconds int    `json:"window_seconds"`
	MaxAttempts   int    `json:"max_attempts"`
	MaxKeys       int    `json:"max_keys"`
	// HTTPMaxAttempts throttles the public code routes per client ip; 0 disables it.
	HTTPMaxAttempts int         `json:"http_max_attempts"`
	Redis           RedisConfig `json:"redis"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type CleanupConfig struct {
	Enabled        bool   `json:"enabled"`
	Spec           string `json:"spec"`
	RetentionHours int    `json:"retention_hours"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.CodeSecret == "" {
		cfg.CodeSecret = cfg.JWTSecret
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	switch cfg.Database.Driver {
	case "", "postgres":
		cfg.Database.Driver = "postgres"
		if cfg.Database.DSN == "" && cfg.Database.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required for postgres")
		}
		if cfg.Database.Port == 0 {
			cfg.Database.Port = 5432
		}
	case "sqlite3":
		if cfg.Database.Path == "" && cfg.Database.DSN == "" {
			return fmt.Errorf("database.path is required for sqlite3")
		}
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite3")
	}

	if cfg.Delivery.Type == "" {
		cfg.Delivery.Type = "log"
	}
	if cfg.Delivery.Type == "telegram" && cfg.TelegramWebhookSecret == "" {
		return fmt.Errorf("telegram_webhook_secret is required for telegram delivery")
	}
	if cfg.Delivery.TimeoutSeconds <= 0 {
		cfg.Delivery.TimeoutSeconds = 10
	}

	if cfg.Limiter.Type == "" {
		cfg.Limiter.Type = "memory"
	}
	if cfg.Limiter.WindowSeconds <= 0 {
		cfg.Limiter.WindowSeconds = 600
	}
	if cfg.Limiter.MaxAttempts <= 0 {
		cfg.Limiter.MaxAttempts = 5
	}
	switch cfg.Limiter.Type {
	case "memory":
		if cfg.Limiter.MaxKeys <= 0 {
			cfg.Limiter.MaxKeys = 10000
		}
	case "redis":
		if cfg.Limiter.Redis.Addr == "" {
			return fmt.Errorf("limiter.redis.addr is required for redis limiter")
		}
	default:
		return fmt.Errorf("limiter.type must be memory or redis")
	}

	if cfg.Cleanup.Spec == "" {
		cfg.Cleanup.Spec = "17 3 * * *"
	}
	if cfg.Cleanup.RetentionHours <= 0 {
		cfg.Cleanup.RetentionHours = 24 * 7
	}
	return nil
}

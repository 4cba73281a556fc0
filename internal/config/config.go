// Package config loads application settings with Viper from environment
// variables and an optional config.yaml.
package config

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// Config holds every runtime setting of the catalog service.
type Config struct {
	AppEnv  string
	AppPort string
	LogFile string
	Seed    bool

	DatabaseDriver string
	DatabaseDSN    string

	CacheDriver   string
	RedisAddr     string
	RedisPassword string

	RabbitMQURL string

	CurrencyLocale string
	CurrencyCode   string
	DateLayout     string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("SEED", false)
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "catalog.db")
	v.SetDefault("CACHE_DRIVER", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("CURRENCY_LOCALE", "pt-BR")
	v.SetDefault("CURRENCY_CODE", "BRL")
	v.SetDefault("DATE_LAYOUT", "02/01/2006")
}

// Load reads configuration into a Config. Environment variables override
// values from config.yaml, which itself is optional.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Config{
		AppEnv:         v.GetString("APP_ENV"),
		AppPort:        v.GetString("APP_PORT"),
		LogFile:        v.GetString("LOG_FILE"),
		Seed:           v.GetBool("SEED"),
		DatabaseDriver: v.GetString("DATABASE_DRIVER"),
		DatabaseDSN:    v.GetString("DATABASE_DSN"),
		CacheDriver:    v.GetString("CACHE_DRIVER"),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		RabbitMQURL:    v.GetString("RABBITMQ_URL"),
		CurrencyLocale: v.GetString("CURRENCY_LOCALE"),
		CurrencyCode:   v.GetString("CURRENCY_CODE"),
		DateLayout:     v.GetString("DATE_LAYOUT"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	log.Printf("[config] APP_ENV=%s APP_PORT=%s DATABASE_DRIVER=%s CACHE_DRIVER=%s RABBITMQ=%t",
		cfg.AppEnv, cfg.AppPort, cfg.DatabaseDriver, cfg.CacheDriver, cfg.RabbitMQURL != "")
	return cfg, nil
}

// Validate rejects unknown driver names.
func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	switch c.CacheDriver {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unsupported CACHE_DRIVER %q", c.CacheDriver)
	}
	return nil
}

// IsDevelopment reports whether the service runs with development settings.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

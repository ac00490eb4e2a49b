// Package config loads runtime settings from the environment and applies
// sane defaults so the server can boot with nothing but a DSN and a secret.
package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr      string        `envconfig:"ADDR" default:":8080"`
	DBDSN     string        `envconfig:"DB_DSN"`
	RedisAddr string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	JWTSecret string        `envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
}

// Load reads the environment (after a best-effort .env load) and validates
// the secrets the server cannot run without.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return sanitize(cfg)
}

func sanitize(cfg Config) (Config, error) {
	if cfg.DBDSN == "" {
		return Config{}, errors.New("DB_DSN is not set")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is not set")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return cfg, nil
}

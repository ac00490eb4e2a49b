package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSanitize_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := sanitize(Config{DBDSN: "postgres://localhost/chat", JWTSecret: "s3cret"})
	req.NoError(err)
	req.Equal(":8080", cfg.Addr)
	req.Equal("localhost:6379", cfg.RedisAddr)
	req.Equal(24*time.Hour, cfg.TokenTTL)
}

func TestSanitize_RequiresSecrets(t *testing.T) {
	req := require.New(t)

	_, err := sanitize(Config{JWTSecret: "s3cret"})
	req.Error(err)

	_, err = sanitize(Config{DBDSN: "postgres://localhost/chat"})
	req.Error(err)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	req := require.New(t)
	t.Setenv("DB_DSN", "postgres://localhost/chat")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ADDR", ":9090")
	t.Setenv("TOKEN_TTL", "2h")

	cfg, err := Load()
	req.NoError(err)
	req.Equal(":9090", cfg.Addr)
	req.Equal(2*time.Hour, cfg.TokenTTL)
	req.Equal("postgres://localhost/chat", cfg.DBDSN)
}

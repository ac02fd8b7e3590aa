package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "memory", cfg.Store.Backend)
	require.Equal(t, "5080", cfg.Server.Port)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 10*time.Second, cfg.MongoDB.Timeout)
	require.Equal(t, "documents", cfg.MongoDB.Collection)
	require.Equal(t, "doc:", cfg.Redis.Prefix)
	require.False(t, cfg.Auth.Enabled)
	require.False(t, cfg.RateLimit.Enabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_RPS", "5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "redis", cfg.Store.Backend)
	require.Equal(t, "redis.internal", cfg.Redis.Host)
	require.Equal(t, "6380", cfg.Redis.Port)
	require.True(t, cfg.RateLimit.Enabled)
	require.Equal(t, 5.0, cfg.RateLimit.RPS)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigAuth(t *testing.T) {
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	require.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
}

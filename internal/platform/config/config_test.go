package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"WISHGUARD_ADDR", "DEBUG", "DATABASE_URL", "RATE_LIMIT_BACKEND", "KAFKA_BROKERS", "SMS_PROVIDER", "JWT_ACCESS_TTL"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.False(t, cfg.Debug)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, RateLimitBackendBuntDB, cfg.RateLimitBackend)
	assert.Nil(t, cfg.Kafka.Brokers)
	assert.Equal(t, "log", cfg.SMS.Provider)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTTL)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DEBUG", "true")
	t.Setenv("RATE_LIMIT_BACKEND", "Redis")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,k1:9092,")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("SMTP_ADDR", "smtp.example.com:587")
	t.Setenv("FRONTEND_URL", "https://wish.example/")

	cfg := FromEnv()

	assert.True(t, cfg.Debug)
	assert.Equal(t, RateLimitBackendRedis, cfg.RateLimitBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, "https://wish.example", cfg.FrontendURL)
}

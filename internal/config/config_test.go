package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{"JWT_SECRET": "s3cret"}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 20, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "question-votes", cfg.Kafka.Topic)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestSecretRequiredOutsideDevelopment(t *testing.T) {
	_, err := FromEnv(lookup(map[string]string{}))
	assert.Error(t, err)

	cfg, err := FromEnv(lookup(map[string]string{"APP_ENV": "development"}))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.JWT.Secret)
}

func TestOverrides(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		"JWT_SECRET":          "x",
		"STORE_DRIVER":        "Postgres",
		"DB_DRIVER":           "postgres",
		"DB_HOST":             "db",
		"DB_NAME":             "forum",
		"DB_PASSWORD":         "pw",
		"KAFKA_BROKERS":       "k1:9092, k2:9092,",
		"RATE_LIMIT_REQUESTS": "5",
		"RATE_LIMIT_WINDOW":   "30s",
		"CORS_ORIGINS":        "http://localhost:3000,https://stackit.dev",
		"TRUSTED_PROXIES":     "10.0.0.0/8, 127.0.0.1",
	}))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Contains(t, cfg.Database.DSN(), "host=db")
	assert.Contains(t, cfg.Database.DSN(), "dbname=forum")
	assert.NotContains(t, cfg.Database.Redacted(), "pw")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5, cfg.RateLimit.Requests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, []string{"http://localhost:3000", "https://stackit.dev"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.TrustedProxies)
}

func TestDatabaseURLWins(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		"JWT_SECRET":   "x",
		"DATABASE_URL": "postgres://app:hunter2@db:5432/forum?sslmode=disable",
		"DB_HOST":      "ignored",
	}))
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:hunter2@db:5432/forum?sslmode=disable", cfg.Database.DSN())
	assert.NotContains(t, cfg.Database.Redacted(), "hunter2")
}

func TestInvalidValues(t *testing.T) {
	bad := []map[string]string{
		{"JWT_SECRET": "x", "STORE_DRIVER": "mongo"},
		{"JWT_SECRET": "x", "DB_DRIVER": "mysql"},
		{"JWT_SECRET": "x", "JWT_TTL": "forever"},
		{"JWT_SECRET": "x", "RATE_LIMIT_REQUESTS": "many"},
		{"JWT_SECRET": "x", "RATE_LIMIT_WINDOW": "10"},
	}
	for _, env := range bad {
		_, err := FromEnv(lookup(env))
		assert.Error(t, err, "env %v", env)
	}
}

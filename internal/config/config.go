package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Env  string
	Port string

	Store      string // "memory", "postgres" or "sqlite"
	Database   Database
	SQLitePath string

	JWT struct {
		Secret string
		TTL    time.Duration
	}

	RateLimit struct {
		RedisURL string
		Requests int
		Window   time.Duration
	}

	Kafka struct {
		Brokers []string
		Topic   string
	}

	CORSOrigins []string

	// TrustedProxies lists the proxy addresses or CIDRs allowed to set
	// X-Forwarded-For. Empty means the client IP is always the peer address.
	TrustedProxies []string

	Log struct {
		Level  string
		Format string
	}
}

type Database struct {
	// Driver is the database/sql driver gorm runs on: "pgx" or "postgres" (lib/pq).
	Driver   string
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns URL when set, otherwise a key/value DSN built from the parts.
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// Redacted is the DSN with the password removed, for logs.
func (d Database) Redacted() string {
	if d.URL != "" {
		if u, err := url.Parse(d.URL); err == nil {
			return u.Redacted()
		}
		return "<unparseable DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s", d.Host, d.Port, d.User, d.Name)
}

const devSecret = "dev-only-insecure-secret"

// Load reads a .env file when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{}
	cfg.Env = get("APP_ENV", "production")
	cfg.Port = get("PORT", "8080")

	cfg.Store = strings.ToLower(get("STORE_DRIVER", "memory"))
	switch cfg.Store {
	case "memory", "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be \"memory\", \"postgres\" or \"sqlite\", got %q", cfg.Store)
	}
	cfg.SQLitePath = get("SQLITE_PATH", "stackit.db")

	cfg.Database = Database{
		Driver:   get("DB_DRIVER", "pgx"),
		URL:      get("DATABASE_URL", ""),
		Host:     get("DB_HOST", "localhost"),
		Port:     get("DB_PORT", "5432"),
		User:     get("DB_USER", "postgres"),
		Password: get("DB_PASSWORD", ""),
		Name:     get("DB_NAME", "stackit"),
		SSLMode:  get("DB_SSLMODE", "disable"),
	}
	switch cfg.Database.Driver {
	case "pgx", "postgres":
	default:
		return nil, fmt.Errorf("DB_DRIVER must be \"pgx\" or \"postgres\", got %q", cfg.Database.Driver)
	}

	cfg.JWT.Secret = get("JWT_SECRET", "")
	if cfg.JWT.Secret == "" {
		if cfg.Env != "development" {
			return nil, errors.New("JWT_SECRET is required outside APP_ENV=development")
		}
		cfg.JWT.Secret = devSecret
	}

	var err error
	if cfg.JWT.TTL, err = time.ParseDuration(get("JWT_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}

	cfg.RateLimit.RedisURL = get("REDIS_URL", "")
	if cfg.RateLimit.Requests, err = strconv.Atoi(get("RATE_LIMIT_REQUESTS", "20")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REQUESTS: %w", err)
	}
	if cfg.RateLimit.Window, err = time.ParseDuration(get("RATE_LIMIT_WINDOW", "1m")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
	}

	cfg.Kafka.Brokers = splitList(get("KAFKA_BROKERS", ""))
	cfg.Kafka.Topic = get("KAFKA_TOPIC", "question-votes")

	cfg.CORSOrigins = splitList(get("CORS_ORIGINS", "*"))
	cfg.TrustedProxies = splitList(get("TRUSTED_PROXIES", ""))

	cfg.Log.Level = get("LOG_LEVEL", "info")
	cfg.Log.Format = get("LOG_FORMAT", "text")

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package config builds runtime configuration from environment variables so
// main stays lean. Every knob has a development default; production overrides
// via env.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures the full server configuration.
type Config struct {
	Addr       string
	AdminToken string

	// LinkSigningKey signs pre-verified identity links embedded in outbound
	// invitations. Should be overridden in production.
	LinkSigningKey string

	// PostgresDSN selects the durable stores; empty means in-memory stores.
	PostgresDSN string

	Redis RedisConfig

	// KafkaBrokers selects the outbound event publisher; empty disables it.
	KafkaBrokers []string

	CodeTTL          time.Duration
	CodeLength       int
	CodeMaxAttempts  int
	RedirectTokenTTL time.Duration
	FlowTTL          time.Duration
}

// RedisConfig captures Redis connection tuning.
// An empty URL means Redis is not configured and memory stores are used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:           envOr("GATEPASS_ADDR", ":8080"),
		AdminToken:     envOr("GATEPASS_ADMIN_TOKEN", "dev-admin-token"),
		LinkSigningKey: envOr("GATEPASS_LINK_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:    os.Getenv("GATEPASS_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("GATEPASS_REDIS_URL"),
			PoolSize:     envInt("GATEPASS_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("GATEPASS_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("GATEPASS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("GATEPASS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("GATEPASS_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		CodeTTL:          envDuration("GATEPASS_CODE_TTL", 10*time.Minute),
		CodeLength:       envInt("GATEPASS_CODE_LENGTH", 6),
		CodeMaxAttempts:  envInt("GATEPASS_CODE_MAX_ATTEMPTS", 5),
		RedirectTokenTTL: envDuration("GATEPASS_REDIRECT_TOKEN_TTL", 5*time.Minute),
		FlowTTL:          envDuration("GATEPASS_FLOW_TTL", time.Hour),
	}

	if brokers := os.Getenv("GATEPASS_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// Package config loads process configuration from environment variables,
// following the teacher's plain os.Getenv-with-inline-default pattern
// (pkg/config/config.go), extended with the settings this service's
// domain packages actually need: signing secrets, storage DSNs, the
// rate limiter backend, OTLP, and HITL review deadlines.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/helmward/agentgov/pkg/ratelimit"
)

// Config holds server configuration.
type Config struct {
	Port     string
	LogLevel string

	DatabaseURL string
	SQLitePath  string
	RedisAddr   string

	SigningKeySeed string
	WebhookSecret  string
	JWTSecret      string

	OTLPEndpoint     string
	TelemetryEnabled bool

	RateLimit ratelimit.Policy

	HITLReviewDeadline time.Duration

	ShadowMode bool

	PolicySetPath string
}

// Load loads configuration from environment variables, applying the
// same defaults-when-empty idiom the teacher uses for PORT/LOG_LEVEL.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	// An empty DATABASE_URL is kept empty: callers treat it as the signal
	// to run against the embedded SQLite store.
	dbURL := os.Getenv("DATABASE_URL")

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "agentgov.db"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	otlpEndpoint := os.Getenv("OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	return &Config{
		Port:     port,
		LogLevel: logLevel,

		DatabaseURL: dbURL,
		SQLitePath:  sqlitePath,
		RedisAddr:   redisAddr,

		SigningKeySeed: os.Getenv("SIGNING_KEY_SEED"),
		WebhookSecret:  os.Getenv("WEBHOOK_SECRET"),
		JWTSecret:      os.Getenv("JWT_SECRET"),

		OTLPEndpoint:     otlpEndpoint,
		TelemetryEnabled: os.Getenv("TELEMETRY_DISABLED") != "true",

		RateLimit: ratelimit.Policy{
			RPM:   getEnvInt("RATE_LIMIT_RPM", 600),
			Burst: getEnvInt("RATE_LIMIT_BURST", 60),
		},

		HITLReviewDeadline: getEnvDuration("HITL_REVIEW_DEADLINE", 30*time.Minute),

		ShadowMode: os.Getenv("SHADOW_MODE") == "true",

		PolicySetPath: os.Getenv("POLICY_SET_PATH"),
	}
}

// Validate checks that settings required to run safely in a non-shadow
// deployment are present. It never validates ShadowMode deployments,
// which are expected to run with weaker settings during evaluation.
func (c *Config) Validate() error {
	if c.ShadowMode {
		return nil
	}
	if c.SigningKeySeed == "" {
		return fmt.Errorf("config: SIGNING_KEY_SEED is required outside shadow mode")
	}
	if c.RateLimit.RPM <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_RPM must be positive")
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

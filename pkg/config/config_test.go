package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	keys := []string{
		"PORT", "LOG_LEVEL", "DATABASE_URL", "SQLITE_PATH", "REDIS_ADDR",
		"SIGNING_KEY_SEED", "WEBHOOK_SECRET", "JWT_SECRET", "OTLP_ENDPOINT", "TELEMETRY_DISABLED",
		"RATE_LIMIT_RPM", "RATE_LIMIT_BURST", "HITL_REVIEW_DEADLINE", "SHADOW_MODE",
		"POLICY_SET_PATH",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_AppliesDefaultsWhenEnvEmpty(t *testing.T) {
	clearEnv(t)
	c := Load()

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "INFO", c.LogLevel)
	assert.Equal(t, "localhost:6379", c.RedisAddr)
	assert.Equal(t, "localhost:4317", c.OTLPEndpoint)
	assert.Equal(t, 600, c.RateLimit.RPM)
	assert.Equal(t, 60, c.RateLimit.Burst)
	assert.Equal(t, 30*time.Minute, c.HITLReviewDeadline)
	assert.False(t, c.ShadowMode)
	assert.True(t, c.TelemetryEnabled)
	assert.Equal(t, "", c.JWTSecret)
}

func TestLoad_ReadsOverridesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("RATE_LIMIT_RPM", "120")
	t.Setenv("HITL_REVIEW_DEADLINE", "2h")
	t.Setenv("SHADOW_MODE", "true")
	t.Setenv("TELEMETRY_DISABLED", "true")

	c := Load()

	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, 120, c.RateLimit.RPM)
	assert.Equal(t, 2*time.Hour, c.HITLReviewDeadline)
	assert.True(t, c.ShadowMode)
	assert.False(t, c.TelemetryEnabled)
}

func TestLoad_IgnoresUnparseableIntAndDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_RPM", "not-a-number")
	t.Setenv("HITL_REVIEW_DEADLINE", "not-a-duration")

	c := Load()

	assert.Equal(t, 600, c.RateLimit.RPM)
	assert.Equal(t, 30*time.Minute, c.HITLReviewDeadline)
}

func TestValidate_RequiresSigningKeyOutsideShadowMode(t *testing.T) {
	clearEnv(t)
	c := Load()
	require.Error(t, c.Validate())

	c.SigningKeySeed = "seed"
	require.NoError(t, c.Validate())
}

func TestValidate_SkipsChecksInShadowMode(t *testing.T) {
	clearEnv(t)
	c := Load()
	c.ShadowMode = true
	require.NoError(t, c.Validate())
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VECTOR_ATTR_API_KEY_MASTER", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.True(t, cfg.IsDevelopment())

	assert.Equal(t, 7*24*time.Hour, cfg.Attribution.HalfLife)
	assert.Equal(t, 0.4, cfg.Attribution.UShapeEdgeWeight)

	assert.Equal(t, 24*time.Hour, cfg.Propensity.RecencyWindow)
	assert.Equal(t, 1.5, cfg.Propensity.RecencyMultiplier)
	assert.Equal(t, 0.7, cfg.Propensity.HotThreshold)
	assert.Equal(t, 0.3, cfg.Propensity.WarmThreshold)

	assert.Equal(t, 2.0, cfg.Anomaly.YellowThreshold)
	assert.Equal(t, 3.0, cfg.Anomaly.RedThreshold)
	assert.Equal(t, int64(100), cfg.Anomaly.MinImpressions)
	assert.Equal(t, 10.0, cfg.Anomaly.MinSpend)

	assert.Equal(t, 10, cfg.LTV.BatchSize)
	assert.Equal(t, 50.0, cfg.Aggregator.AssumedOrderValue)
	assert.Equal(t, 50, cfg.Redis.PoolSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VECTOR_ATTR_API_KEY_MASTER", "test-key")
	t.Setenv("VECTOR_ATTR_DECAY_HALF_LIFE", "72h")
	t.Setenv("VECTOR_ATTR_LTV_BATCH_SIZE", "5")
	t.Setenv("VECTOR_ATTR_AUTH_SKIP_PATHS", "/health, /metrics,/debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 72*time.Hour, cfg.Attribution.HalfLife)
	assert.Equal(t, 5, cfg.LTV.BatchSize)
	assert.Equal(t, []string{"/health", "/metrics", "/debug"}, cfg.Auth.SkipPaths)
}

func TestValidateMasterKeyRequired(t *testing.T) {
	t.Setenv("VECTOR_ATTR_API_KEY_MASTER", "")
	t.Setenv("VECTOR_ATTR_AUTH_ENABLED", "true")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateThresholdOrdering(t *testing.T) {
	t.Setenv("VECTOR_ATTR_API_KEY_MASTER", "test-key")
	t.Setenv("VECTOR_ATTR_ANOMALY_YELLOW", "3.5")
	t.Setenv("VECTOR_ATTR_ANOMALY_RED", "2.0")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateBatchSizeBounds(t *testing.T) {
	t.Setenv("VECTOR_ATTR_API_KEY_MASTER", "test-key")
	t.Setenv("VECTOR_ATTR_LTV_BATCH_SIZE", "25")

	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db.internal", Port: 5433, User: "svc", Password: "pw",
		DBName: "attr", SSLMode: "require",
	}
	assert.Equal(t, "postgres://svc:pw@db.internal:5433/attr?sslmode=require", d.DSN())
}

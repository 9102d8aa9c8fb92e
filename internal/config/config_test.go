package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, OrderStoreMemory, cfg.OrderStore)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "storefront-orders", cfg.Kafka.Topic)
	assert.Equal(t, StorageFile, cfg.Client.Storage)
	assert.Equal(t, time.Second, cfg.Client.PollInterval)
	assert.Equal(t, 12*time.Hour, cfg.JWT.TokenTTL)
	assert.Equal(t, "storefront-orders", cfg.Dynamo.Table)
	assert.Empty(t, cfg.Dynamo.Endpoint)
}

func TestLoad_Dynamo(t *testing.T) {
	t.Setenv("ORDER_STORE", "dynamo")
	t.Setenv("DYNAMO_ENDPOINT", "http://localhost:8000")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, OrderStoreDynamo, cfg.OrderStore)
	assert.Equal(t, "http://localhost:8000", cfg.Dynamo.Endpoint)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ORDER_STORE", "Mongo")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("STOREFRONT_POLL_INTERVAL", "250ms")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, OrderStoreMongo, cfg.OrderStore)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, 250*time.Millisecond, cfg.Client.PollInterval)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STOREFRONT_PROFILE=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("STOREFRONT_PROFILE") })

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Client.Profile)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown order store", map[string]string{"ORDER_STORE": "sqlite"}},
		{"unknown client storage", map[string]string{"STOREFRONT_STORAGE": "cookie"}},
		{"production without secret", map[string]string{"ENVIRONMENT": "production", "JWT_SECRET": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("production", "warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	dev, err := NewLogger("development", "not-a-level")
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.InfoLevel))
}

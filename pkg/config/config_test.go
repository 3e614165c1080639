package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "queue-broker", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Queue.PerHeadMinutes)
	assert.Equal(t, "Walk-in", cfg.Queue.WalkInServiceName)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "salon-queue-events", cfg.Kafka.Topic)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("QUEUE_PER_HEAD_MINUTES", "7")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Queue.PerHeadMinutes)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
}

func TestValidate_RejectsBadPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_RejectsBadPerHead(t *testing.T) {
	t.Setenv("QUEUE_PER_HEAD_MINUTES", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_ProductionNeedsRealSecret(t *testing.T) {
	t.Setenv("APP_ENVIRONMENT", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "turn pass secret")

	t.Setenv("TURN_PASS_SECRET", "an-actual-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestServerConfig_Addr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8080}
	assert.Equal(t, "127.0.0.1:8080", s.Addr())
}

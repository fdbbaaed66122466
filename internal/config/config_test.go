package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("CATEGORIES_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, 64, cfg.Notification.SendBuffer)
	assert.Equal(t, 10*time.Second, cfg.Notification.WriteTimeout())
	assert.Equal(t, 25*time.Second, cfg.Notification.PingInterval())
	assert.Equal(t, time.Minute, cfg.Notification.PongWait())
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Zero(t, cfg.Catalog.RefreshInterval())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CATEGORIES_FILE", "/etc/triage/categories.yaml")
	t.Setenv("CATEGORIES_REFRESH_SECONDS", "15")
	t.Setenv("NOTIFY_SEND_BUFFER", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Second, cfg.Catalog.RefreshInterval())
	assert.Equal(t, 64, cfg.Notification.SendBuffer)
}

func TestLoad_SessionKeepalive(t *testing.T) {
	t.Setenv("NOTIFY_PING_INTERVAL_SECONDS", "0")
	t.Setenv("NOTIFY_PONG_WAIT_SECONDS", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.Notification.PingInterval())
	assert.Zero(t, cfg.Notification.PongWait())

	t.Setenv("NOTIFY_PING_INTERVAL_SECONDS", "30")
	t.Setenv("NOTIFY_PONG_WAIT_SECONDS", "30")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")
	_, err := Load()
	assert.Error(t, err)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, StorageBolt, cfg.Storage)
	require.Equal(t, "./data/docroom.db", cfg.BoltPath)
	require.Equal(t, 50, cfg.MaxConnections)
	require.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	require.Equal(t, 90*time.Second, cfg.IdleTimeout)
	require.Equal(t, 1000, cfg.HistoryLimit)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DOCROOM_ADDR", ":9090")
	t.Setenv("DOCROOM_STORAGE", StorageRedis)
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("DOCROOM_MAX_CONNECTIONS", "10")
	t.Setenv("DOCROOM_HEARTBEAT_SECONDS", "5")
	t.Setenv("DOCROOM_IDLE_TIMEOUT_SECONDS", "15")
	t.Setenv("DOCROOM_HISTORY_LIMIT", "100")

	cfg := Load()

	require.Equal(t, ":9090", cfg.Addr)
	require.Equal(t, StorageRedis, cfg.Storage)
	require.Equal(t, "redis://cache:6379/2", cfg.RedisURL)
	require.Equal(t, 10, cfg.MaxConnections)
	require.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	require.Equal(t, 15*time.Second, cfg.IdleTimeout)
	require.Equal(t, 100, cfg.HistoryLimit)
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("DOCROOM_MAX_CONNECTIONS", "lots")

	cfg := Load()

	require.Equal(t, 50, cfg.MaxConnections)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, StorageMemory, cfg.Storage.Driver)
	require.Equal(t, EventsLocal, cfg.Events.Driver)
	require.True(t, decimal.NewFromInt(50).Equal(cfg.Bidding.MinIncrement))
	require.Equal(t, 30*time.Second, cfg.Leader.TTL)
	require.Equal(t, "@every 1s", cfg.Scheduler.Spec)
}

func TestLoadFromFile_Overrides(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, `
storage:
  driver: sqlite
sqlite:
  path: /tmp/auctions.db
bidding:
  min_increment: 12.50
websocket:
  write_wait: 3s
`))
	require.NoError(t, err)

	require.Equal(t, StorageSQLite, cfg.Storage.Driver)
	require.Equal(t, "/tmp/auctions.db", cfg.SQLite.Path)
	require.True(t, decimal.RequireFromString("12.5").Equal(cfg.Bidding.MinIncrement))
	require.Equal(t, 3*time.Second, cfg.WebSocket.WriteWait)
}

func TestLoadFromFile_EnvOverride(t *testing.T) {
	t.Setenv("BIDDING_MIN_INCREMENT", "75")
	t.Setenv("EVENTS_DRIVER", "redis")

	cfg, err := LoadFromFile(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	require.True(t, decimal.NewFromInt(75).Equal(cfg.Bidding.MinIncrement))
	require.Equal(t, EventsRedis, cfg.Events.Driver)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown_storage", body: "storage:\n  driver: postgres\n"},
		{name: "unknown_events", body: "events:\n  driver: kafka\n"},
		{name: "zero_increment", body: "bidding:\n  min_increment: 0\n"},
		{name: "negative_increment", body: "bidding:\n  min_increment: \"-5\"\n"},
		{name: "zero_pong_wait", body: "websocket:\n  pong_wait: 0s\n"},
		{name: "tiny_pong_wait", body: "websocket:\n  pong_wait: 1ns\n"},
		{name: "zero_write_wait", body: "websocket:\n  write_wait: 0s\n"},
		{name: "zero_max_message_size", body: "websocket:\n  max_message_size: 0\n"},
		{name: "zero_leader_ttl_with_redis", body: "events:\n  driver: redis\nleader:\n  ttl: 0s\n"},
		{name: "tiny_leader_ttl_with_redis", body: "events:\n  driver: redis\nleader:\n  ttl: 2ms\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tc.body))
			require.Error(t, err)
		})
	}
}

func TestLoadFromFile_LeaderTTLIgnoredWithoutRedis(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, "events:\n  driver: local\nleader:\n  ttl: 0s\n"))
	require.NoError(t, err)
	require.Zero(t, cfg.Leader.TTL)
}

package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.ListenAddr)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, 60*time.Second, cfg.ReadTimeout)
	assert.Equal(t, DriverSQLite, cfg.MessageStore)
	assert.Equal(t, DriverSQLite, cfg.PresenceStore)
	assert.Equal(t, "roomchat.db", cfg.Database.Path)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoadServerConfigOverrides(t *testing.T) {
	t.Setenv("ROOMCHAT_LISTEN_ADDR", ":9090")
	t.Setenv("ROOMCHAT_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("ROOMCHAT_PRESENCE_STORE", "redis")
	t.Setenv("ROOMCHAT_REDIS_ADDR", "cache:6380")
	t.Setenv("ROOMCHAT_DB_PATH", "/tmp/chat.db")
	t.Setenv("ROOMCHAT_READ_TIMEOUT", "20s")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, DriverRedis, cfg.PresenceStore)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, "/tmp/chat.db", cfg.Database.Path)
	assert.Equal(t, 18*time.Second, cfg.PingPeriod())
}

func TestLoadServerConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad duration", key: "ROOMCHAT_READ_TIMEOUT", val: "soon"},
		{name: "unknown message store", key: "ROOMCHAT_MESSAGE_STORE", val: "mongo"},
		{name: "redis message store", key: "ROOMCHAT_MESSAGE_STORE", val: "redis"},
		{name: "zero history", key: "ROOMCHAT_HISTORY_LIMIT", val: "0"},
		{name: "bad log level", key: "ROOMCHAT_LOG_LEVEL", val: "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := LoadServerConfig()
			require.Error(t, err)
		})
	}
}

func TestParseEnvErrorPrefix(t *testing.T) {
	t.Setenv("ROOMCHAT_HISTORY_LIMIT", "many")
	var cfg ServerConfig
	err := ParseEnv(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLevel(t *testing.T) {
	cfg := ServerConfig{LogLevel: "debug"}
	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadClientConfig(t *testing.T) {
	t.Setenv("ROOMCHAT_SERVER_URL", "ws://chat.test/ws")
	cfg, err := LoadClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "ws://chat.test/ws", cfg.ServerURL)
	assert.Equal(t, "/", cfg.CommandPrefix)
}

package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9600, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Host)
	require.Equal(t, 5433, cfg.Database.Port)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "redis.example.com:6380", cfg.Cache.Redis.Address)
	require.Equal(t, 2, cfg.Cache.Redis.DB)
	require.Equal(t, 3*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, "https://api.keepstack.example.com", cfg.Feed.BaseURL)
	require.Equal(t, "device-42", cfg.Feed.DeviceID)
	require.Equal(t, 8*time.Second, cfg.Feed.Timeout)
	require.Equal(t, 30*time.Second, cfg.Feed.PollInterval)

	require.True(t, cfg.Notifications.PermissionGranted)
	require.True(t, cfg.Notifications.FCM.Enabled)
	require.Equal(t, "/etc/keepsync/sa.json", cfg.Notifications.FCM.CredentialsFile)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8600, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 10*time.Second, cfg.Feed.Timeout)
	require.Equal(t, 15*time.Second, cfg.Feed.PollInterval)
	require.False(t, cfg.Notifications.PermissionGranted)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	require.Error(t, cfg.Validate())

	cfg.Feed = FeedConfig{BaseURL: "https://api.example.com", DeviceID: "d", DeviceSecret: "s"}
	require.NoError(t, cfg.Validate())

	cfg.Notifications.FCM.Enabled = true
	require.Error(t, cfg.Validate(), "fcm needs credentials and a token")

	cfg.Notifications.FCM.CredentialsFile = "sa.json"
	cfg.Notifications.FCM.DeviceToken = "token"
	require.NoError(t, cfg.Validate())
}

func TestConfigAdapters(t *testing.T) {
	db := DatabaseConfig{Driver: "mysql", Host: "h", Port: 3307, User: "u", Password: "p", Name: "n"}
	opts := db.DatabaseOptions()
	require.Equal(t, "mysql", opts.Driver)
	require.Equal(t, 3307, opts.Port)

	redis := RedisCacheConfig{Address: "a:1", DB: 3, Timeout: time.Second}
	r := redis.RedisOptions()
	require.Equal(t, "a:1", r.Address)
	require.Equal(t, 3, r.DB)

	f := FeedConfig{BaseURL: "b", DeviceID: "d", DeviceSecret: "s", Timeout: time.Second}
	fc := f.ClientOptions()
	require.Equal(t, "b", fc.BaseURL)
	require.Equal(t, time.Second, fc.Timeout)
}

package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/keepstack/keepsync/internal/database"
	"github.com/keepstack/keepsync/internal/feed"
	"github.com/keepstack/keepsync/internal/kv"
	"github.com/keepstack/keepsync/internal/notify"
)

// Config represents the runtime configuration for the keepsync daemon.
type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Feed          FeedConfig         `mapstructure:"feed"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

// ServerConfig configures the device API server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// FeedConfig points at the remote insight feed.
type FeedConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	DeviceID     string        `mapstructure:"device_id"`
	DeviceSecret string        `mapstructure:"device_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// NotificationConfig configures delivery channels and the permission gate.
type NotificationConfig struct {
	PermissionGranted bool      `mapstructure:"permission_granted"`
	FCM               FCMConfig `mapstructure:"fcm"`
}

// FCMConfig enables push delivery through Firebase Cloud Messaging.
type FCMConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	CredentialsFile string `mapstructure:"credentials_file"`
	DeviceToken     string `mapstructure:"device_token"`
}

// DatabaseOptions adapts the section into the database layer's configuration.
func (c DatabaseConfig) DatabaseOptions() database.Config {
	return database.Config{
		Driver:   c.Driver,
		Path:     c.Path,
		DSN:      c.DSN,
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Name:     c.Name,
	}
}

// RedisOptions adapts the section into the Redis client's configuration.
func (c RedisCacheConfig) RedisOptions() kv.RedisConfig {
	return kv.RedisConfig{
		Address:  c.Address,
		Username: c.Username,
		Password: c.Password,
		DB:       c.DB,
		TLS:      c.TLS,
		Timeout:  c.Timeout,
	}
}

// ClientOptions adapts the section into the feed client's configuration.
func (c FeedConfig) ClientOptions() feed.HTTPConfig {
	return feed.HTTPConfig{
		BaseURL:      c.BaseURL,
		DeviceID:     c.DeviceID,
		DeviceSecret: c.DeviceSecret,
		Timeout:      c.Timeout,
	}
}

// DelivererOptions adapts the section into the FCM deliverer's configuration.
func (c FCMConfig) DelivererOptions() notify.FCMConfig {
	return notify.FCMConfig{
		CredentialsFile: c.CredentialsFile,
		DeviceToken:     c.DeviceToken,
	}
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("KEEPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate checks the settings the daemon cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Feed.BaseURL) == "" {
		return errors.New("config: feed.base_url is required")
	}
	if strings.TrimSpace(c.Feed.DeviceID) == "" {
		return errors.New("config: feed.device_id is required")
	}
	if strings.TrimSpace(c.Feed.DeviceSecret) == "" {
		return errors.New("config: feed.device_secret is required")
	}
	if c.Notifications.FCM.Enabled {
		if c.Notifications.FCM.CredentialsFile == "" {
			return errors.New("config: notifications.fcm.credentials_file is required when fcm is enabled")
		}
		if c.Notifications.FCM.DeviceToken == "" {
			return errors.New("config: notifications.fcm.device_token is required when fcm is enabled")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8600)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/keepsync.sqlite")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("feed.timeout", "10s")
	v.SetDefault("feed.poll_interval", "15s")

	v.SetDefault("notifications.permission_granted", false)
	v.SetDefault("notifications.fcm.enabled", false)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

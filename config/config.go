package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling and env for environment variable binding.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Presence tuning. The sweep interval should stay well below the
	// heartbeat timeout so evictions are timely; the timeout is checked
	// against last-seen timestamps, not sweep boundaries.
	HeartbeatTimeoutSec int `mapstructure:"HEARTBEAT_TIMEOUT_SEC"`
	SweepIntervalSec    int `mapstructure:"SWEEP_INTERVAL_SEC"`

	// StatsTimezone fixes the calendar-day boundary for daily facts,
	// independent of the server-local zone.
	StatsTimezone string `mapstructure:"STATS_TIMEZONE"`

	// Cache backend for stats reads: "memory", "redis", or "none".
	CacheBackend string `mapstructure:"CACHE_BACKEND"`
	RedisAddr    string `mapstructure:"REDIS_ADDR"`
	RedisPrefix  string `mapstructure:"REDIS_PREFIX"`
}

// HeartbeatTimeout returns the eviction threshold as a duration.
func (c *ServerConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSec) * time.Second
}

// SweepInterval returns the monitor period as a duration.
func (c *ServerConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

// Location resolves the configured stats timezone, falling back to UTC on
// an unknown name.
func (c *ServerConfig) Location() (*time.Location, error) {
	if c.StatsTimezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.StatsTimezone)
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	// Set configuration file name and type
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Set search paths for the configuration file
	v.AddConfigPath("/etc/presence/")
	v.AddConfigPath("$HOME/.presence")
	v.AddConfigPath(".")

	// Read environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	v.SetDefault("HTTP_PORT", "3000")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/presence_dev")
	v.SetDefault("MONGO_DB_NAME", "presence_dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "presence-server")
	v.SetDefault("HEARTBEAT_TIMEOUT_SEC", 30)
	v.SetDefault("SWEEP_INTERVAL_SEC", 10)
	v.SetDefault("STATS_TIMEZONE", "UTC")
	v.SetDefault("CACHE_BACKEND", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PREFIX", "presence")

	// Attempt to read the config file
	if err := v.ReadInConfig(); err != nil {
		// ConfigFileNotFoundError is acceptable, means we use defaults/env vars.
		// Other errors (e.g., permission issues, malformed config) should be returned.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal the configuration into the ServerConfig struct
	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

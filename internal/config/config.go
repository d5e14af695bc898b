// Package config loads process configuration from defaults, an optional
// config.yaml, and DATAFORGE_* environment variables, in that order of
// precedence (later wins).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Store   StoreConfig   `mapstructure:"store"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SandboxConfig holds snippet execution configuration.
type SandboxConfig struct {
	TimeoutSec    int `mapstructure:"timeout_sec"`
	MaxTimeoutSec int `mapstructure:"max_timeout_sec"`
	MaxCodeBytes  int `mapstructure:"max_code_bytes"`
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// StoreConfig holds dataset store configuration.
type StoreConfig struct {
	ScratchDir     string `mapstructure:"scratch_dir"`
	SessionTTLMin  int    `mapstructure:"session_ttl_min"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// New loads and validates the application configuration.
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("dataforge")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("sandbox.timeout_sec", 5)
	viper.SetDefault("sandbox.max_timeout_sec", 30)
	viper.SetDefault("sandbox.max_code_bytes", 100000)
	viper.SetDefault("sandbox.max_concurrent", 8)
	viper.SetDefault("store.scratch_dir", "")
	viper.SetDefault("store.session_ttl_min", 60)
	viper.SetDefault("store.max_upload_bytes", 32*1024*1024)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid.
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		return fmt.Errorf("invalid server.environment: %s, must be 'development' or 'production'", c.Server.Environment)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.MaxTimeoutSec < c.Sandbox.TimeoutSec {
		return fmt.Errorf("sandbox.max_timeout_sec must be >= sandbox.timeout_sec, got: %d", c.Sandbox.MaxTimeoutSec)
	}

	if c.Sandbox.MaxCodeBytes <= 0 {
		return fmt.Errorf("sandbox.max_code_bytes must be positive, got: %d", c.Sandbox.MaxCodeBytes)
	}

	if c.Sandbox.MaxConcurrent <= 0 {
		return fmt.Errorf("sandbox.max_concurrent must be positive, got: %d", c.Sandbox.MaxConcurrent)
	}

	if c.Store.SessionTTLMin <= 0 {
		return fmt.Errorf("store.session_ttl_min must be positive, got: %d", c.Store.SessionTTLMin)
	}

	if c.Store.MaxUploadBytes <= 0 {
		return fmt.Errorf("store.max_upload_bytes must be positive, got: %d", c.Store.MaxUploadBytes)
	}

	return nil
}

// DefaultTimeout returns the default execution time limit as a duration.
func (c *Config) DefaultTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// MaxTimeout returns the largest time limit a request may ask for.
func (c *Config) MaxTimeout() time.Duration {
	return time.Duration(c.Sandbox.MaxTimeoutSec) * time.Second
}

// SessionTTL returns how long an idle session is kept before eviction.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Store.SessionTTLMin) * time.Minute
}

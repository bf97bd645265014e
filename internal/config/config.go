package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the activerow configuration
type Config struct {
	Models   string         `mapstructure:"models"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Hooks    HooksConfig    `mapstructure:"hooks"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Debug    DebugConfig    `mapstructure:"debug"`
}

// DatabaseConfig selects the executor entities are stored through
type DatabaseConfig struct {
	// Driver is one of memory, redis, sqlite3, pgx or postgres
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// RedisConfig configures the redis executor
type RedisConfig struct {
	Addr   string `mapstructure:"addr"`
	DB     int    `mapstructure:"db"`
	Prefix string `mapstructure:"prefix"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	Host      string `mapstructure:"host"`
	APIPrefix string `mapstructure:"api_prefix"`
}

// AuthConfig configures bearer token verification. An empty secret
// disables authentication.
type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HooksConfig configures lifecycle hook execution
type HooksConfig struct {
	AsyncWorkers int `mapstructure:"async_workers"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DebugConfig configures the internal profiling listener. An empty
// address disables it.
type DebugConfig struct {
	PprofAddr string `mapstructure:"pprof_addr"`
}

// Drivers lists the accepted database.driver values
var Drivers = []string{"memory", "redis", "sqlite3", "pgx", "postgres"}

// Load reads the configuration from path, or from activerow.yml or
// activerow.yaml in the working directory when path is empty. A missing
// file leaves the defaults. ACTIVEROW_* environment variables override
// file values, e.g. ACTIVEROW_SERVER_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("models", "models.yaml")
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "activerow")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.api_prefix", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "activerow")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("hooks.async_workers", 4)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("debug.pprof_addr", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("activerow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Enable environment variable support
	v.SetEnvPrefix("activerow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.URL == "" {
		config.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Address returns the host:port the server listens on
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if !contains(Drivers, cfg.Database.Driver) {
		return fmt.Errorf("database.driver must be one of %s, got: %s", strings.Join(Drivers, ", "), cfg.Database.Driver)
	}
	switch cfg.Database.Driver {
	case "sqlite3", "pgx", "postgres":
		if cfg.Database.URL == "" {
			return fmt.Errorf("database.url is required for driver %s", cfg.Database.Driver)
		}
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got: %d", cfg.Server.Port)
	}

	// Validate API prefix format
	if cfg.Server.APIPrefix != "" {
		if !strings.HasPrefix(cfg.Server.APIPrefix, "/") {
			return fmt.Errorf("server.api_prefix must start with '/', got: %s", cfg.Server.APIPrefix)
		}
		if strings.HasSuffix(cfg.Server.APIPrefix, "/") {
			return fmt.Errorf("server.api_prefix must not end with '/', got: %s", cfg.Server.APIPrefix)
		}
	}

	if cfg.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got: %s", cfg.Auth.TokenTTL)
	}

	if cfg.Hooks.AsyncWorkers < 0 {
		return fmt.Errorf("hooks.async_workers must not be negative, got: %d", cfg.Hooks.AsyncWorkers)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

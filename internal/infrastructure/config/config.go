package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Authority AuthorityConfig
	Surface   SurfaceConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration for event ingress.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// StorageConfig selects and configures the persistent store.
type StorageConfig struct {
	Driver      string `envconfig:"STORAGE_DRIVER" default:"sqlite"`
	Path        string `envconfig:"STORAGE_PATH" default:"focusgate.db"`
	RedisURL    string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	RedisPrefix string `envconfig:"REDIS_PREFIX" default:"focusgate:"`
}

// AuthorityConfig holds decision authority tuning.
type AuthorityConfig struct {
	QuotaMax          int           `envconfig:"QUOTA_MAX" default:"3"`
	QuotaWindow       time.Duration `envconfig:"QUOTA_WINDOW" default:"0s"`
	SurfaceGuardTTL   time.Duration `envconfig:"SURFACE_GUARD_TTL" default:"10s"`
	QuickTaskDuration time.Duration `envconfig:"QUICK_TASK_DURATION" default:"3m"`
	ActivityLease     time.Duration `envconfig:"ACTIVITY_LEASE" default:"30m"`
	PolicyFile        string        `envconfig:"POLICY_FILE"`

	MonitoredApps      []string `envconfig:"MONITORED_APPS"`
	InfrastructureApps []string `envconfig:"INFRASTRUCTURE_APPS"`
}

// SurfaceConfig holds settings for the UI surface client.
type SurfaceConfig struct {
	AuthorityURL      string        `envconfig:"SURFACE_AUTHORITY_URL" default:"ws://localhost:8000/v1/surface"`
	HeartbeatInterval time.Duration `envconfig:"SURFACE_HEARTBEAT" default:"3s"`
}

// Load loads configuration from environment variables and, when
// POLICY_FILE is set, overlays the policy file on top.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Authority.PolicyFile != "" {
		policy, err := LoadPolicy(cfg.Authority.PolicyFile)
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplyPolicy(policy); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects settings the authority cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Authority.QuotaMax < 0 {
		return fmt.Errorf("quota max must not be negative, got %d", c.Authority.QuotaMax)
	}
	if c.Authority.QuotaWindow < 0 {
		return fmt.Errorf("quota window must not be negative, got %s", c.Authority.QuotaWindow)
	}
	if c.Authority.SurfaceGuardTTL <= 0 {
		return fmt.Errorf("surface guard ttl must be positive, got %s", c.Authority.SurfaceGuardTTL)
	}
	if c.Authority.QuickTaskDuration <= 0 {
		return fmt.Errorf("quick task duration must be positive, got %s", c.Authority.QuickTaskDuration)
	}
	if c.Authority.ActivityLease <= 0 {
		return fmt.Errorf("activity lease must be positive, got %s", c.Authority.ActivityLease)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Storage: StorageConfig{
			Driver:      DriverSQLite,
			Path:        "focusgate.db",
			RedisURL:    "redis://localhost:6379/0",
			RedisPrefix: "focusgate:",
		},
		Authority: AuthorityConfig{
			QuotaMax:          3,
			QuotaWindow:       0,
			SurfaceGuardTTL:   10 * time.Second,
			QuickTaskDuration: 3 * time.Minute,
			ActivityLease:     30 * time.Minute,
		},
		Surface: SurfaceConfig{
			AuthorityURL:      "ws://localhost:8000/v1/surface",
			HeartbeatInterval: 3 * time.Second,
		},
	}
}

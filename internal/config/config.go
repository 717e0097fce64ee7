// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the root service configuration.
type Config struct {
	Service  ServiceConfig
	Server   ServerConfig
	Database DatabaseConfig
	NATS     NATSConfig
	Approval ApprovalConfig
}

// ServiceConfig identifies the service in logs and events.
type ServiceConfig struct {
	Name        string `env:"SERVICE_NAME" envDefault:"be-ops-approvals"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port            int           `env:"HTTP_PORT" envDefault:"8086"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig describes the PostgreSQL pool.
type DatabaseConfig struct {
	Host        string        `env:"DB_HOST" envDefault:"localhost"`
	Port        int           `env:"DB_PORT" envDefault:"5432"`
	User        string        `env:"DB_USER" envDefault:"postgres"`
	Password    string        `env:"DB_PASSWORD"`
	Database    string        `env:"DB_NAME" envDefault:"ops_platform"`
	SSLMode     string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns    int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns    int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLife time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxIdleTime time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"30m"`
	HealthCheck time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

// NATSConfig describes the notification stream connection. An empty URL
// disables publishing.
type NATSConfig struct {
	URL string `env:"NATS_URL"`
}

// ApprovalConfig holds workflow engine tunables.
type ApprovalConfig struct {
	// MaxHierarchyDepth bounds superior-chain resolution.
	MaxHierarchyDepth int `env:"APPROVAL_MAX_HIERARCHY_DEPTH" envDefault:"5"`
	// DefaultLevels is used when a submission does not name a level count.
	DefaultLevels int `env:"APPROVAL_DEFAULT_LEVELS" envDefault:"1"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.Approval.MaxHierarchyDepth < 1 {
		return nil, fmt.Errorf("APPROVAL_MAX_HIERARCHY_DEPTH must be >= 1")
	}
	if cfg.Approval.DefaultLevels < 0 {
		return nil, fmt.Errorf("APPROVAL_DEFAULT_LEVELS must be >= 0")
	}
	return cfg, nil
}

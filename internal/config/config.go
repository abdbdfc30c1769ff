package config

import (
	"time"

	"github.com/mou514/FinanceMate-sub000/internal/ailink"
)

// Config represents the complete application configuration.
// Values are layered: built-in defaults, then an optional YAML file, then
// FINANCEMATE_* environment variables (including a local .env file).
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Store         StoreConfig         `mapstructure:"store"`
	AILink        ailink.Config       `mapstructure:"ailink"`
	Receipts      ReceiptsConfig      `mapstructure:"receipts"`
	Quota         QuotaConfig         `mapstructure:"quota"`
	Budget        BudgetConfig        `mapstructure:"budget"`
	Throttle      ThrottleConfig      `mapstructure:"throttle"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Health        HealthConfig        `mapstructure:"health"`
	Debug         DebugConfig         `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// ReceiptsConfig controls upload limits and the extraction vocabulary.
type ReceiptsConfig struct {
	// MaxDimension is the largest accepted width or height in pixels.
	MaxDimension int `mapstructure:"max_dimension"`

	// MaxUploadBytes caps request bodies on the receipt routes.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`

	DefaultCategories []string `mapstructure:"default_categories"`
	DefaultCurrency   string   `mapstructure:"default_currency"`
}

// QuotaConfig configures the per-user sliding window on extractions.
type QuotaConfig struct {
	Action string        `mapstructure:"action"`
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// BudgetConfig configures budget alerts.
type BudgetConfig struct {
	DefaultThresholdPercent int `mapstructure:"default_threshold_percent"`
}

// ThrottleConfig configures the per-IP request throttle in front of the
// receipt routes. It is independent of the per-user quota.
type ThrottleConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// NotificationsConfig configures optional fan-out of budget alerts.
type NotificationsConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated Prometheus endpoint port.
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

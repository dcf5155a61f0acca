package config

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	defaultServiceName  = "pulse-collector"
	defaultServicePort  = 8094
	defaultVersion      = "0.1.0"
	defaultLoggingLevel = "info"
	defaultLoggingFmt   = "json"

	defaultDBHost    = "localhost"
	defaultDBPort    = 5432
	defaultDBName    = "pulse"
	defaultDBUser    = "postgres"
	defaultDBSSLMode = "disable"

	defaultEventBufferSize  = 1000
	defaultFlushThreshold   = 200
	defaultFlushIntervalS   = 2
	defaultMaxReplaySamples = 1000

	defaultMaxRequestsPerMinute = 600
	defaultWindowSeconds        = 60

	defaultInactivityTimeoutMin = 30
	defaultReplayChunkSize      = 200
	defaultReplayFlushS         = 10
	defaultPointerSampleMS      = 50
)

// Config holds the application configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracker   TrackerConfig   `yaml:"tracker"`
}

// ServiceConfig holds collector service-level configuration.
type ServiceConfig struct {
	Name             string        `yaml:"name"`
	Version          string        `yaml:"version"`
	Port             int           `env:"PULSE_PORT"  yaml:"port"`
	Debug            bool          `env:"APP_DEBUG"   yaml:"debug"`
	EventBufferSize  int           `yaml:"event_buffer_size"`
	FlushInterval    time.Duration `yaml:"flush_interval"`
	FlushThreshold   int           `yaml:"flush_threshold"`
	MaxReplaySamples int           `yaml:"max_replay_samples"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host     string `env:"POSTGRES_PULSE_HOST"     yaml:"host"`
	Port     int    `env:"POSTGRES_PULSE_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_PULSE_USER"     yaml:"user"`
	Password string `env:"POSTGRES_PULSE_PASSWORD" yaml:"password"`
	Database string `env:"POSTGRES_PULSE_DB"       yaml:"database"`
	SSLMode  string `env:"POSTGRES_PULSE_SSLMODE"  yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// URL returns the PostgreSQL URL form used by the migration runner.
func (d *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// RateLimitConfig holds per-IP ingest rate limiting configuration.
type RateLimitConfig struct {
	MaxRequestsPerMinute int `yaml:"max_requests_per_minute"`
	WindowSeconds        int `yaml:"window_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// TrackerConfig holds engine-side defaults for hosts that embed the tracker
// and configure it through the same file as the collector.
type TrackerConfig struct {
	GatewayURL          string        `env:"PULSE_GATEWAY_URL" yaml:"gateway_url"`
	InactivityTimeout   time.Duration `yaml:"inactivity_timeout"`
	ReplayChunkSize     int           `yaml:"replay_chunk_size"`
	ReplayFlushInterval time.Duration `yaml:"replay_flush_interval"`
	PointerSampleEvery  time.Duration `yaml:"pointer_sample_every"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return load[Config](path, setDefaults)
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setRateLimitDefaults(&cfg.RateLimit)
	setLoggingDefaults(&cfg.Logging)
	setTrackerDefaults(&cfg.Tracker)
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
	if svc.EventBufferSize == 0 {
		svc.EventBufferSize = defaultEventBufferSize
	}
	if svc.FlushInterval == 0 {
		svc.FlushInterval = defaultFlushIntervalS * time.Second
	}
	if svc.FlushThreshold == 0 {
		svc.FlushThreshold = defaultFlushThreshold
	}
	if svc.MaxReplaySamples == 0 {
		svc.MaxReplaySamples = defaultMaxReplaySamples
	}
}

func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

func setRateLimitDefaults(rl *RateLimitConfig) {
	if rl.MaxRequestsPerMinute == 0 {
		rl.MaxRequestsPerMinute = defaultMaxRequestsPerMinute
	}
	if rl.WindowSeconds == 0 {
		rl.WindowSeconds = defaultWindowSeconds
	}
}

func setLoggingDefaults(log *LoggingConfig) {
	if log.Level == "" {
		log.Level = defaultLoggingLevel
	}
	if log.Format == "" {
		log.Format = defaultLoggingFmt
	}
}

func setTrackerDefaults(tr *TrackerConfig) {
	if tr.InactivityTimeout == 0 {
		tr.InactivityTimeout = defaultInactivityTimeoutMin * time.Minute
	}
	if tr.ReplayChunkSize == 0 {
		tr.ReplayChunkSize = defaultReplayChunkSize
	}
	if tr.ReplayFlushInterval == 0 {
		tr.ReplayFlushInterval = defaultReplayFlushS * time.Second
	}
	if tr.PointerSampleEvery == 0 {
		tr.PointerSampleEvery = defaultPointerSampleMS * time.Millisecond
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return &ValidationError{
			Field:   "service.port",
			Message: "must be between 1 and 65535",
		}
	}
	if c.Database.Host == "" {
		return &ValidationError{Field: "database.host", Message: "is required"}
	}
	if c.Service.FlushThreshold > c.Service.EventBufferSize {
		return &ValidationError{
			Field:   "service.flush_threshold",
			Message: "must not exceed event_buffer_size",
		}
	}
	return nil
}

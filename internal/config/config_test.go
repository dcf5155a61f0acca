package config

import (
	"testing"
	"time"
)

func assertStringEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}

func assertIntEqual(t *testing.T, field string, want, got int) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %d, want %d", field, got, want)
	}
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	assertStringEqual(t, "service.name", defaultServiceName, cfg.Service.Name)
	assertStringEqual(t, "service.version", defaultVersion, cfg.Service.Version)
	assertIntEqual(t, "service.port", defaultServicePort, cfg.Service.Port)
	assertIntEqual(t, "service.event_buffer_size", defaultEventBufferSize, cfg.Service.EventBufferSize)
	assertIntEqual(t, "service.flush_threshold", defaultFlushThreshold, cfg.Service.FlushThreshold)

	expectedFlushInterval := defaultFlushIntervalS * time.Second
	if cfg.Service.FlushInterval != expectedFlushInterval {
		t.Errorf("service.flush_interval: got %v, want %v",
			cfg.Service.FlushInterval, expectedFlushInterval)
	}

	assertStringEqual(t, "database.host", defaultDBHost, cfg.Database.Host)
	assertIntEqual(t, "database.port", defaultDBPort, cfg.Database.Port)
	assertStringEqual(t, "database.user", defaultDBUser, cfg.Database.User)
	assertStringEqual(t, "database.database", defaultDBName, cfg.Database.Database)
	assertStringEqual(t, "database.sslmode", defaultDBSSLMode, cfg.Database.SSLMode)

	assertIntEqual(t, "rate_limit.max_requests_per_minute",
		defaultMaxRequestsPerMinute, cfg.RateLimit.MaxRequestsPerMinute)

	assertStringEqual(t, "logging.level", defaultLoggingLevel, cfg.Logging.Level)
	assertStringEqual(t, "logging.format", defaultLoggingFmt, cfg.Logging.Format)

	expectedInactivity := defaultInactivityTimeoutMin * time.Minute
	if cfg.Tracker.InactivityTimeout != expectedInactivity {
		t.Errorf("tracker.inactivity_timeout: got %v, want %v",
			cfg.Tracker.InactivityTimeout, expectedInactivity)
	}
	assertIntEqual(t, "tracker.replay_chunk_size",
		defaultReplayChunkSize, cfg.Tracker.ReplayChunkSize)
}

func TestValidate_BadPort(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.Service.Port = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for negative port, got nil")
	}
}

func TestValidate_FlushThresholdExceedsBuffer(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.Service.EventBufferSize = 10
	cfg.Service.FlushThreshold = 100

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for flush threshold > buffer size, got nil")
	}

	expected := "service.flush_threshold: must not exceed event_buffer_size"
	if err.Error() != expected {
		t.Errorf("error message: got %q, want %q", err.Error(), expected)
	}
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "pulse",
		Password: "secret",
		Database: "pulse",
		SSLMode:  "require",
	}

	want := "host=db.internal port=5433 user=pulse password=secret dbname=pulse sslmode=require"
	if got := db.DSN(); got != want {
		t.Errorf("DSN: got %q, want %q", got, want)
	}
}

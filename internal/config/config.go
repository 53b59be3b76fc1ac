// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New(ctx) builds a Config with defaults; Load(ctx) layers file and env on top.
// - All functions accept context.Context as the first parameter.
// - Validation failures wrap ErrInvalidConfig, source failures wrap ErrLoadConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorageDriver selects the event store: memory or sqlite.
	StorageDriver string `koanf:"storage_driver"`
	SQLitePath    string `koanf:"sqlite_path"`

	// SessionInactivityTimeout ends sessions idle for longer than this.
	SessionInactivityTimeout time.Duration `koanf:"session_inactivity_timeout"`
	SessionReapInterval      time.Duration `koanf:"session_reap_interval"`

	ClockTickInterval    time.Duration `koanf:"clock_tick_interval"`
	DefaultPeriodMinutes int           `koanf:"default_period_minutes"`

	// DedupeTTL bounds how long a submissionId is remembered.
	DedupeTTL             time.Duration `koanf:"dedupe_ttl"`
	DedupeCleanupInterval time.Duration `koanf:"dedupe_cleanup_interval"`

	// DispatchPartitions sets the number of notification workers.
	DispatchPartitions int `koanf:"dispatch_partitions"`
	DispatchQueueSize  int `koanf:"dispatch_queue_size"`
	SubscriberBuffer   int `koanf:"subscriber_buffer"`

	MaxExtensionFields int `koanf:"max_extension_fields"`

	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                 "info",
		Addr:                     ":9080",
		StorageDriver:            DriverMemory,
		SQLitePath:               "touchline.db",
		SessionInactivityTimeout: 30 * time.Minute,
		SessionReapInterval:      time.Minute,
		ClockTickInterval:        time.Second,
		DefaultPeriodMinutes:     45,
		DedupeTTL:                10 * time.Minute,
		DedupeCleanupInterval:    5 * time.Minute,
		DispatchPartitions:       runtime.NumCPU(),
		DispatchQueueSize:        10_000,
		SubscriberBuffer:         256,
		MaxExtensionFields:       16,
		TracingExporter:          "stdout",
		TracingSampleRate:        1.0,
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate(_ context.Context) error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StorageDriver != DriverMemory && c.StorageDriver != DriverSQLite:
		return fmt.Errorf("%w: unknown storage_driver %q", ErrInvalidConfig, c.StorageDriver)
	case c.StorageDriver == DriverSQLite && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path is required for the sqlite driver", ErrInvalidConfig)
	case c.SessionInactivityTimeout <= 0, c.SessionReapInterval <= 0:
		return fmt.Errorf("%w: session timeouts must be positive", ErrInvalidConfig)
	case c.ClockTickInterval <= 0:
		return fmt.Errorf("%w: clock_tick_interval must be positive", ErrInvalidConfig)
	case c.DefaultPeriodMinutes <= 0:
		return fmt.Errorf("%w: default_period_minutes must be positive", ErrInvalidConfig)
	case c.DedupeTTL <= 0, c.DedupeCleanupInterval <= 0:
		return fmt.Errorf("%w: dedupe intervals must be positive", ErrInvalidConfig)
	case c.DispatchPartitions <= 0, c.DispatchQueueSize <= 0, c.SubscriberBuffer <= 0:
		return fmt.Errorf("%w: dispatch sizes must be positive", ErrInvalidConfig)
	case c.MaxExtensionFields < 0:
		return fmt.Errorf("%w: max_extension_fields must not be negative", ErrInvalidConfig)
	case c.TracingExporter != "stdout" && c.TracingExporter != "none":
		return fmt.Errorf("%w: unknown tracing_exporter %q", ErrInvalidConfig, c.TracingExporter)
	case c.TracingSampleRate < 0 || c.TracingSampleRate > 1:
		return fmt.Errorf("%w: tracing_sample_rate must be within [0,1]", ErrInvalidConfig)
	}
	return nil
}

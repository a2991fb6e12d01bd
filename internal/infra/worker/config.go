package worker

import (
	"fmt"
	"log/slog"
	"time"

	"callguard/internal/pkg/config"
)

// WorkerConfig holds the configuration for the worker component.
// It controls the pipeline schedule, run timeouts, task concurrency,
// and the ports the status and metrics servers listen on.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
//
// All fields have sensible defaults and validation rules so the worker
// can operate safely even with invalid or missing configuration.
//
// Example usage:
//
//	// Use defaults
//	config := DefaultConfig()
//
//	// Load from environment with fallback
//	config, err := LoadConfigFromEnv(logger, metrics)
//	if err != nil {
//	    // This should never happen with fail-open strategy
//	    log.Fatal("Unexpected configuration error: %v", err)
//	}
type WorkerConfig struct {
	// CronSchedule is the cron expression for pipeline scheduling.
	// Format: "minute hour day month weekday"
	// Example: "*/30 * * * *" (every 30 minutes)
	// Validation: Must be a valid cron expression (5 fields)
	// Default: "*/30 * * * *"
	CronSchedule string

	// Timezone is the IANA timezone name for cron scheduling.
	// Example: "UTC", "Asia/Tokyo", "America/New_York"
	// Validation: Must be a valid IANA timezone name
	// Default: "UTC"
	Timezone string

	// RunOnStart triggers one pipeline run immediately at startup,
	// before the cron schedule takes over.
	// Default: false
	RunOnStart bool

	// RunTimeout is the maximum duration for a single pipeline run.
	// After this timeout the run is cancelled.
	// Must be positive (> 0)
	// Default: 10 minutes
	RunTimeout time.Duration

	// MaxConcurrentTasks is the number of pipeline tasks executed in
	// parallel within one run.
	// Range: 1-32
	// Default: 4
	MaxConcurrentTasks int

	// StatusPort is the port for the status and health HTTP server.
	// Range: 1024-65535 (avoid privileged ports)
	// Default: 8090
	StatusPort int

	// MetricsPort is the port for the Prometheus metrics HTTP server.
	// Range: 1024-65535, must differ from StatusPort
	// Default: 9091
	MetricsPort int

	// TasksFile is the path to the YAML pipeline task file.
	// Default: "configs/pipeline.yaml"
	TasksFile string
}

// DefaultConfig returns a WorkerConfig with sensible default values.
// These defaults are optimized for:
//   - Typical usage: a pipeline run every 30 minutes
//   - Safety: 10-minute timeout prevents stuck runs
//   - Performance: 4 concurrent tasks balances throughput and upstream load
//   - Standard ports: 8090 for status, 9091 for metrics
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		CronSchedule:       "*/30 * * * *",
		Timezone:           "UTC",
		RunOnStart:         false,
		RunTimeout:         10 * time.Minute,
		MaxConcurrentTasks: 4,
		StatusPort:         8090,
		MetricsPort:        9091,
		TasksFile:          "configs/pipeline.yaml",
	}
}

// Validate checks if the configuration values are valid.
// It validates each field using the reusable validators from
// internal/pkg/config. If multiple fields are invalid, all errors are
// collected and returned together.
//
// Validation rules:
//   - CronSchedule: Must be a valid cron expression
//   - Timezone: Must be a valid IANA timezone name
//   - RunTimeout: Must be positive (> 0)
//   - MaxConcurrentTasks: Must be between 1 and 32 (inclusive)
//   - StatusPort, MetricsPort: Must be between 1024 and 65535, distinct
//   - TasksFile: Must not be empty
//
// Returns:
//   - error: nil if configuration is valid, aggregated error otherwise
func (c *WorkerConfig) Validate() error {
	var errors []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errors = append(errors, fmt.Errorf("cron schedule: %w", err))
	}

	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errors = append(errors, fmt.Errorf("timezone: %w", err))
	}

	if err := config.ValidatePositiveDuration(c.RunTimeout); err != nil {
		errors = append(errors, fmt.Errorf("run timeout: %w", err))
	}

	if err := config.ValidateIntRange(c.MaxConcurrentTasks, 1, 32); err != nil {
		errors = append(errors, fmt.Errorf("max concurrent tasks: %w", err))
	}

	if err := config.ValidateIntRange(c.StatusPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("status port: %w", err))
	}

	if err := config.ValidateIntRange(c.MetricsPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("metrics port: %w", err))
	}

	if c.StatusPort == c.MetricsPort {
		errors = append(errors, fmt.Errorf("status port and metrics port must differ, both are %d", c.StatusPort))
	}

	if c.TasksFile == "" {
		errors = append(errors, fmt.Errorf("tasks file: path cannot be empty"))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	return nil
}

// LoadConfigFromEnv loads worker configuration from environment
// variables with validation and automatic fallback to default values on
// failure.
//
// This function implements the fail-open strategy:
//  1. Start with DefaultConfig() as base
//  2. Load each field from environment variables
//  3. Validate each loaded value
//  4. If validation fails: use default value, log warning, increment metrics
//  5. Never return error - always return a valid configuration
//
// Environment variables:
//   - PIPELINE_SCHEDULE: Cron expression (default: "*/30 * * * *")
//   - WORKER_TIMEZONE: IANA timezone name (default: "UTC")
//   - PIPELINE_RUN_ON_START: Boolean (default: false)
//   - RUN_TIMEOUT: Duration string, e.g., "10m" (default: 10 minutes)
//   - MAX_CONCURRENT_TASKS: Integer 1-32 (default: 4)
//   - STATUS_PORT: Integer 1024-65535 (default: 8090)
//   - METRICS_PORT: Integer 1024-65535 (default: 9091)
//   - PIPELINE_TASKS_FILE: Path (default: "configs/pipeline.yaml")
//
// Metrics updated:
//   - ValidationErrorsTotal: Incremented for each validation failure
//   - FallbacksTotal: Incremented for each fallback applied
//   - FallbackActive: Set to 1 if any fallback is active, 0 otherwise
//   - LoadTimestamp: Set to current time after successful load
//
// Returns:
//   - *WorkerConfig: Valid configuration (never nil)
//   - error: Always nil (fail-open strategy)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	// Start with default config
	cfg := DefaultConfig()
	fallbackApplied := false

	// Load CronSchedule
	result := config.LoadEnvWithFallback("PIPELINE_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule)
	cfg.CronSchedule = result.Value.(string)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("pipeline_schedule")
		metrics.RecordFallback("pipeline_schedule")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "CronSchedule"),
				slog.String("warning", warning))
		}
	}

	// Load Timezone
	result = config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("timezone")
		metrics.RecordFallback("timezone")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "Timezone"),
				slog.String("warning", warning))
		}
	}

	// Load RunOnStart
	result = config.LoadEnvBool("PIPELINE_RUN_ON_START", cfg.RunOnStart)
	cfg.RunOnStart = result.Value.(bool)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("run_on_start")
		metrics.RecordFallback("run_on_start")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "RunOnStart"),
				slog.String("warning", warning))
		}
	}

	// Load RunTimeout (with 1m-4h range limit)
	result = config.LoadEnvDuration("RUN_TIMEOUT", cfg.RunTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Minute, 4*time.Hour)
	})
	cfg.RunTimeout = result.Value.(time.Duration)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("run_timeout")
		metrics.RecordFallback("run_timeout")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "RunTimeout"),
				slog.String("warning", warning))
		}
	}

	// Load MaxConcurrentTasks
	result = config.LoadEnvInt("MAX_CONCURRENT_TASKS", cfg.MaxConcurrentTasks, func(v int) error {
		return config.ValidateIntRange(v, 1, 32)
	})
	cfg.MaxConcurrentTasks = result.Value.(int)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("max_concurrent_tasks")
		metrics.RecordFallback("max_concurrent_tasks")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "MaxConcurrentTasks"),
				slog.String("warning", warning))
		}
	}

	// Load StatusPort
	result = config.LoadEnvInt("STATUS_PORT", cfg.StatusPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.StatusPort = result.Value.(int)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("status_port")
		metrics.RecordFallback("status_port")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "StatusPort"),
				slog.String("warning", warning))
		}
	}

	// Load MetricsPort
	result = config.LoadEnvInt("METRICS_PORT", cfg.MetricsPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.MetricsPort = result.Value.(int)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("metrics_port")
		metrics.RecordFallback("metrics_port")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", "MetricsPort"),
				slog.String("warning", warning))
		}
	}

	// The two servers cannot share a listener. Colliding ports revert
	// both to their defaults, which are guaranteed distinct.
	if cfg.StatusPort == cfg.MetricsPort {
		defaults := DefaultConfig()
		fallbackApplied = true
		metrics.RecordValidationError("ports")
		metrics.RecordFallback("ports")
		logger.Warn("Configuration fallback applied",
			slog.String("field", "StatusPort/MetricsPort"),
			slog.Int("colliding_port", cfg.StatusPort),
			slog.Int("status_port", defaults.StatusPort),
			slog.Int("metrics_port", defaults.MetricsPort))
		cfg.StatusPort = defaults.StatusPort
		cfg.MetricsPort = defaults.MetricsPort
	}

	// Load TasksFile (no validation; existence is checked when the task
	// file is read)
	cfg.TasksFile = config.LoadEnvString("PIPELINE_TASKS_FILE", cfg.TasksFile)

	// Update metrics
	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	// Always return valid config (fail-open strategy)
	return &cfg, nil
}

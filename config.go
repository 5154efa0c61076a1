package spanz

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Batch processor defaults.
const (
	DefaultMaxQueueSize       = 2048
	DefaultScheduleDelay      = 5 * time.Second
	DefaultMaxExportBatchSize = 512
	DefaultExportTimeout      = 30 * time.Second
)

// BatchConfig is the immutable configuration of a BatchSpanProcessor.
type BatchConfig struct {
	MaxQueueSize       int
	ScheduleDelay      time.Duration
	MaxExportBatchSize int
	ExportTimeout      time.Duration
}

// DefaultBatchConfig returns the documented defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxQueueSize:       DefaultMaxQueueSize,
		ScheduleDelay:      DefaultScheduleDelay,
		MaxExportBatchSize: DefaultMaxExportBatchSize,
		ExportTimeout:      DefaultExportTimeout,
	}
}

// batchEnv mirrors the OTEL_BSP_* variables. Delays are in milliseconds.
type batchEnv struct {
	MaxQueueSize       int `envconfig:"OTEL_BSP_MAX_QUEUE_SIZE" default:"2048"`
	ScheduleDelay      int `envconfig:"OTEL_BSP_SCHEDULE_DELAY" default:"5000"`
	MaxExportBatchSize int `envconfig:"OTEL_BSP_MAX_EXPORT_BATCH_SIZE" default:"512"`
	ExportTimeout      int `envconfig:"OTEL_BSP_EXPORT_TIMEOUT" default:"30000"`
}

// LoadBatchConfig reads OTEL_BSP_* overrides from the environment on top of the defaults.
func LoadBatchConfig() (BatchConfig, error) {
	var env batchEnv
	if err := envconfig.Process("", &env); err != nil {
		return DefaultBatchConfig(), fmt.Errorf("failed to load batch config: %w", err)
	}
	return BatchConfig{
		MaxQueueSize:       env.MaxQueueSize,
		ScheduleDelay:      time.Duration(env.ScheduleDelay) * time.Millisecond,
		MaxExportBatchSize: env.MaxExportBatchSize,
		ExportTimeout:      time.Duration(env.ExportTimeout) * time.Millisecond,
	}.normalize(), nil
}

// normalize replaces non-positive values with defaults and clamps the batch
// size to the queue size.
func (c BatchConfig) normalize() BatchConfig {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.ScheduleDelay <= 0 {
		c.ScheduleDelay = DefaultScheduleDelay
	}
	if c.MaxExportBatchSize <= 0 {
		c.MaxExportBatchSize = DefaultMaxExportBatchSize
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = DefaultExportTimeout
	}
	if c.MaxExportBatchSize > c.MaxQueueSize {
		c.MaxExportBatchSize = c.MaxQueueSize
	}
	return c
}

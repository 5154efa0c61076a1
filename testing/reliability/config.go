// Package reliability stresses spanz pipelines under saturation, churn and
// cancellation. Tests are skipped unless SPANZ_RELIABILITY_LEVEL is set:
//
//	basic:  CI-safe validation
//	stress: sustained load for release checks
package reliability

import (
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Levels accepted in SPANZ_RELIABILITY_LEVEL.
const (
	LevelBasic  = "basic"
	LevelStress = "stress"
)

// Config holds configuration for reliability testing.
type Config struct {
	Level            string        `envconfig:"LEVEL"`
	Duration         time.Duration `envconfig:"DURATION" default:"30s"`
	MaxGoroutines    int           `envconfig:"MAX_GOROUTINES" default:"100"`
	FailureThreshold float64       `envconfig:"FAILURE_THRESHOLD" default:"0.05"`
}

// loadConfig reads SPANZ_RELIABILITY_* and skips the test when no level is set.
func loadConfig(t *testing.T) Config {
	t.Helper()

	var cfg Config
	if err := envconfig.Process("spanz_reliability", &cfg); err != nil {
		t.Fatalf("invalid reliability config: %v", err)
	}
	switch cfg.Level {
	case LevelBasic, LevelStress:
	case "":
		t.Skip("SPANZ_RELIABILITY_LEVEL not set, skipping reliability tests")
	default:
		t.Fatalf("unknown SPANZ_RELIABILITY_LEVEL %q", cfg.Level)
	}
	return cfg
}

// Stress reports whether the stress level is selected.
func (c Config) Stress() bool {
	return c.Level == LevelStress
}

package exporters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/zoobzio/spanz"
	"github.com/zoobzio/spanz/internal/logging"
)

// ErrCircuitOpen is returned while the breaker rejects exports.
var ErrCircuitOpen = errors.New("exporters: circuit breaker open")

// BreakerConfig holds the configuration for a circuit-breaking exporter.
type BreakerConfig struct {
	// Name identifies the breaker in logs.
	Name string

	// MaxRequests is the number of trial exports allowed while half-open.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state to clear counts.
	Interval time.Duration

	// Timeout is how long the breaker stays open before a trial export.
	Timeout time.Duration

	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32

	// Logger receives state changes. Defaults to the package logger.
	Logger *zap.Logger
}

// DefaultBreakerConfig trips after five consecutive failures and retries after 30s.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Breaker wraps another exporter with a circuit breaker. While open, exports
// fail immediately with ErrCircuitOpen instead of reaching the backend.
type Breaker struct {
	next    spanz.SpanExporter
	breaker *gobreaker.CircuitBreaker
}

// NewBreaker decorates next.
func NewBreaker(next spanz.SpanExporter, cfg BreakerConfig) *Breaker {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefault().Logger
	}
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("exporter circuit breaker state changed",
				zap.String("circuit", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Breaker{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Export runs the wrapped export through the breaker.
func (b *Breaker) Export(ctx context.Context, spans []spanz.FinishedSpan) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Export(ctx, spans)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, b.breaker.Name())
	}
	return err
}

// ForceFlush delegates to the wrapped exporter.
func (b *Breaker) ForceFlush(ctx context.Context) error {
	return b.next.ForceFlush(ctx)
}

// Shutdown delegates to the wrapped exporter regardless of breaker state.
func (b *Breaker) Shutdown(ctx context.Context) error {
	return b.next.Shutdown(ctx)
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

// IsOpen reports whether exports are currently rejected.
func (b *Breaker) IsOpen() bool {
	return b.breaker.State() == gobreaker.StateOpen
}

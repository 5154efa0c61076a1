package spanz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"github.com/zoobzio/spanz/internal/logging"
)

// SimpleOption configures a SimpleSpanProcessor.
type SimpleOption func(*SimpleSpanProcessor)

// WithSimpleExportTimeout bounds each single-span export.
func WithSimpleExportTimeout(d time.Duration) SimpleOption {
	return func(p *SimpleSpanProcessor) {
		if d > 0 {
			p.exportTimeout = d
		}
	}
}

// WithSimpleClock injects the clock used for export timeouts.
func WithSimpleClock(clock clockz.Clock) SimpleOption {
	return func(p *SimpleSpanProcessor) { p.clock = clock }
}

// WithSimpleLogger sets the logger for swallowed export errors.
func WithSimpleLogger(logger *zap.Logger) SimpleOption {
	return func(p *SimpleSpanProcessor) { p.logger = logger }
}

// SimpleSpanProcessor exports every sampled span as soon as it ends.
// There is no batching and no retry.
type SimpleSpanProcessor struct {
	exporter      SpanExporter
	clock         clockz.Clock
	logger        *zap.Logger
	exportTimeout time.Duration
	// mu orders exports against shutdown: OnEnd and ForceFlush hold it for
	// reading, Run takes it for writing to flip stopped.
	mu      sync.RWMutex
	stopped bool
}

// NewSimpleSpanProcessor creates a processor exporting through exporter.
func NewSimpleSpanProcessor(exporter SpanExporter, opts ...SimpleOption) *SimpleSpanProcessor {
	p := &SimpleSpanProcessor{
		exporter:      exporter,
		clock:         clockz.RealClock,
		exportTimeout: DefaultExportTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logging.NewDefault().Logger
	}
	return p
}

// OnStart does nothing.
func (*SimpleSpanProcessor) OnStart(context.Context, Span) {}

// OnEnd exports the span immediately. Errors are logged and swallowed.
// Spans ending after the exporter was shut down are discarded.
func (p *SimpleSpanProcessor) OnEnd(span FinishedSpan) {
	if !span.IsSampled() {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return
	}
	err := exportWithTimeout(context.Background(), p.clock, p.exportTimeout, p.exporter, []FinishedSpan{span})
	switch {
	case err == nil:
	case errors.Is(err, ErrExportTimeout):
		p.logger.Warn("export timed out, dropping span", zap.Duration("timeout", p.exportTimeout))
	default:
		p.logger.Error("export failed, dropping span", zap.Error(err))
	}
}

// ForceFlush delegates to the exporter.
func (p *SimpleSpanProcessor) ForceFlush(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrProcessorShutdown
	}
	return p.exporter.ForceFlush(ctx)
}

// Run waits for ctx to be cancelled, then shuts the exporter down once.
// In-flight exports finish first; later OnEnd and ForceFlush calls are no-ops.
func (p *SimpleSpanProcessor) Run(ctx context.Context) error {
	<-ctx.Done()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	if err := p.exporter.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("exporter shutdown: %w", err)
	}
	return nil
}

package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/zoobzio/spanz"
)

// MemoryOption configures an InMemory exporter.
type MemoryOption func(*InMemory)

// WithExportDelay makes every Export wait d on the exporter's clock before
// succeeding. Cancellation of the export context ends the wait early.
func WithExportDelay(d time.Duration) MemoryOption {
	return func(e *InMemory) { e.delay = d }
}

// WithExportError makes every Export fail with err.
func WithExportError(err error) MemoryOption {
	return func(e *InMemory) { e.err = err }
}

// WithMemoryClock injects the clock used for export delays.
func WithMemoryClock(clock clockz.Clock) MemoryOption {
	return func(e *InMemory) { e.clock = clock }
}

// InMemory records exported batches. It backs tests and local debugging.
// Safe for concurrent use.
//
//nolint:govet // Field order groups configuration before recorded state
type InMemory struct {
	clock clockz.Clock
	delay time.Duration
	err   error

	mu          sync.Mutex
	batches     [][]spanz.FinishedSpan
	exports     int
	cancelled   int
	flushes     int
	shutdowns   int
	shutdownErr error
}

// NewInMemory creates an empty recorder.
func NewInMemory(opts ...MemoryOption) *InMemory {
	e := &InMemory{clock: clockz.RealClock}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export records spans as one batch, after the configured delay.
// Failed and cancelled exports are counted but not recorded.
func (e *InMemory) Export(ctx context.Context, spans []spanz.FinishedSpan) error {
	e.mu.Lock()
	e.exports++
	delay, err := e.delay, e.err
	shut := e.shutdowns > 0
	e.mu.Unlock()

	if shut {
		return ErrExporterShutdown
	}

	if delay > 0 {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.cancelled++
			e.mu.Unlock()
			return ctx.Err()
		case <-e.clock.After(delay):
		}
	}
	if err != nil {
		return err
	}

	batch := append([]spanz.FinishedSpan(nil), spans...)
	e.mu.Lock()
	e.batches = append(e.batches, batch)
	e.mu.Unlock()
	return nil
}

// ForceFlush counts the call. There is nothing buffered.
func (e *InMemory) ForceFlush(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushes++
	return nil
}

// Shutdown counts the call and rejects later exports.
func (e *InMemory) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdowns++
	return e.shutdownErr
}

// SetExportError changes the error returned by subsequent exports.
func (e *InMemory) SetExportError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// SetShutdownError makes Shutdown return err.
func (e *InMemory) SetShutdownError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdownErr = err
}

// Batches returns a copy of the successfully exported batches in order.
func (e *InMemory) Batches() [][]spanz.FinishedSpan {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]spanz.FinishedSpan, len(e.batches))
	copy(out, e.batches)
	return out
}

// Spans returns every successfully exported span, flattened in export order.
func (e *InMemory) Spans() []spanz.FinishedSpan {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []spanz.FinishedSpan
	for _, batch := range e.batches {
		out = append(out, batch...)
	}
	return out
}

// SpanCount returns the number of successfully exported spans.
func (e *InMemory) SpanCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, batch := range e.batches {
		n += len(batch)
	}
	return n
}

// ExportCalls returns the number of Export calls, successful or not.
func (e *InMemory) ExportCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}

// Cancelled returns the number of exports whose context was cancelled.
func (e *InMemory) Cancelled() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

// ForceFlushes returns the number of ForceFlush calls.
func (e *InMemory) ForceFlushes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushes
}

// Shutdowns returns the number of Shutdown calls.
func (e *InMemory) Shutdowns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdowns
}

// Reset clears recorded batches and counters.
func (e *InMemory) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = nil
	e.exports = 0
	e.cancelled = 0
	e.flushes = 0
	e.shutdowns = 0
}

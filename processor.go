package spanz

import (
	"context"
	"errors"
)

// ErrProcessorShutdown is returned by operations on a processor that has shut down.
var ErrProcessorShutdown = errors.New("spanz: processor is shut down")

// SpanProcessor receives span lifecycle events from a Tracer.
//
// The Tracer calls OnStart, OnEnd and ForceFlush from a single goroutine in
// publish order, never concurrently with each other. Run is the processor's
// own loop; it blocks until ctx is cancelled, then flushes and shuts down its
// exporter before returning.
type SpanProcessor interface {
	// OnStart is called for every started span, including dropped ones.
	OnStart(parent context.Context, span Span)
	// OnEnd is called with the snapshot of every ended recording span.
	OnEnd(span FinishedSpan)
	// ForceFlush exports everything buffered and waits for the attempts.
	ForceFlush(ctx context.Context) error
	// Run drives the processor until ctx is cancelled.
	Run(ctx context.Context) error
}

// NoOpSpanProcessor discards everything.
type NoOpSpanProcessor struct{}

// NewNoOpSpanProcessor returns a processor that ignores all events.
func NewNoOpSpanProcessor() NoOpSpanProcessor {
	return NoOpSpanProcessor{}
}

// OnStart does nothing.
func (NoOpSpanProcessor) OnStart(context.Context, Span) {}

// OnEnd does nothing.
func (NoOpSpanProcessor) OnEnd(FinishedSpan) {}

// ForceFlush does nothing.
func (NoOpSpanProcessor) ForceFlush(context.Context) error { return nil }

// Run blocks until ctx is cancelled.
func (NoOpSpanProcessor) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

package spanz

import (
	"context"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// MultiplexSpanProcessor fans every event out to its children in order.
type MultiplexSpanProcessor struct {
	processors []SpanProcessor
}

// NewMultiplexSpanProcessor wraps processors. Order is preserved for OnStart/OnEnd.
func NewMultiplexSpanProcessor(processors ...SpanProcessor) *MultiplexSpanProcessor {
	return &MultiplexSpanProcessor{processors: append([]SpanProcessor(nil), processors...)}
}

// OnStart calls OnStart on each child in order.
func (m *MultiplexSpanProcessor) OnStart(parent context.Context, span Span) {
	for _, p := range m.processors {
		p.OnStart(parent, span)
	}
}

// OnEnd calls OnEnd on each child in order.
func (m *MultiplexSpanProcessor) OnEnd(span FinishedSpan) {
	for _, p := range m.processors {
		p.OnEnd(span)
	}
}

// ForceFlush flushes every child concurrently and returns the combined errors.
func (m *MultiplexSpanProcessor) ForceFlush(ctx context.Context) error {
	errs := make([]error, len(m.processors))
	var g errgroup.Group
	for i, p := range m.processors {
		g.Go(func() error {
			errs[i] = p.ForceFlush(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(errs...)
}

// Run runs every child concurrently. It returns once all children have
// returned; the first child to return, or ctx cancellation, cancels the rest.
func (m *MultiplexSpanProcessor) Run(ctx context.Context) error {
	childCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, len(m.processors))
	var g errgroup.Group
	for i, p := range m.processors {
		g.Go(func() error {
			defer cancel()
			errs[i] = p.Run(childCtx)
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(errs...)
}

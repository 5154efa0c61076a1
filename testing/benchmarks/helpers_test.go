// Package benchmarks measures span creation, pipeline throughput and
// propagation cost.
package benchmarks

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zoobzio/spanz"
)

// discard accepts every batch and keeps nothing.
type discard struct{}

func (discard) Export(context.Context, []spanz.FinishedSpan) error { return nil }
func (discard) ForceFlush(context.Context) error                  { return nil }
func (discard) Shutdown(context.Context) error                    { return nil }

// runTracer starts tracer and stops it when the benchmark ends.
func runTracer(b *testing.B, tracer *spanz.Tracer) {
	b.Helper()
	done := make(chan error, 1)
	go func() { done <- tracer.Run(context.Background()) }()
	b.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = tracer.Shutdown(ctx)
		<-done
	})
}

// batchTracer builds a running tracer with a batch processor over exporter.
func batchTracer(b *testing.B, exporter spanz.SpanExporter, opts ...spanz.Option) (*spanz.Tracer, *spanz.BatchSpanProcessor) {
	b.Helper()
	processor := spanz.NewBatchSpanProcessor(exporter, spanz.WithBatchLogger(zap.NewNop()))
	tracer := spanz.New(processor, append([]spanz.Option{spanz.WithLogger(zap.NewNop())}, opts...)...)
	runTracer(b, tracer)
	return tracer, processor
}

package benchmarks

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/zoobzio/spanz"
)

// BenchmarkSpanCreationRate measures serial span creation through a batch pipeline.
func BenchmarkSpanCreationRate(b *testing.B) {
	tracer, _ := batchTracer(b, discard{})
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	start := time.Now()

	for i := 0; i < b.N; i++ {
		_, span := tracer.StartSpan(ctx, "rate-span")
		span.End()
	}

	b.ReportMetric(float64(b.N)/time.Since(start).Seconds(), "spans/sec")
}

// BenchmarkSpanCreationRateParallel measures span creation from many goroutines.
func BenchmarkSpanCreationRateParallel(b *testing.B) {
	tracer, _ := batchTracer(b, discard{})
	ctx := context.Background()
	var counter atomic.Int64

	b.ReportAllocs()
	b.ResetTimer()
	start := time.Now()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, span := tracer.StartSpan(ctx, "parallel-rate-span")
			span.End()
			counter.Add(1)
		}
	})

	b.ReportMetric(float64(counter.Load())/time.Since(start).Seconds(), "spans/sec")
}

// BenchmarkUnsampledSpan measures the cost of a span the sampler drops.
func BenchmarkUnsampledSpan(b *testing.B) {
	tracer, _ := batchTracer(b, discard{}, spanz.WithSampler(spanz.AlwaysOff()))
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := tracer.StartSpan(ctx, "dropped")
		span.SetAttributes(attribute.Int("i", i))
		span.End()
	}
}

// BenchmarkIDGeneration compares the random and pooled generators.
func BenchmarkIDGeneration(b *testing.B) {
	b.Run("random", func(b *testing.B) {
		gen := spanz.NewRandomIDGenerator()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				_ = gen.NewSpanID()
			}
		})
	})
	b.Run("pooled", func(b *testing.B) {
		gen := spanz.NewPooledIDGenerator(0)
		defer gen.Close()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				_ = gen.NewSpanID()
			}
		})
	})
}

// BenchmarkSpanAttributes measures attribute writes on a live span.
func BenchmarkSpanAttributes(b *testing.B) {
	tracer, _ := batchTracer(b, discard{})
	_, span := tracer.StartSpan(context.Background(), "attributes")
	defer span.End()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		span.SetAttributes(
			attribute.String("http.method", "GET"),
			attribute.Int("http.status_code", 200),
		)
	}
}

// BenchmarkSpanHierarchy measures a request with nested children.
func BenchmarkSpanHierarchy(b *testing.B) {
	tracer, _ := batchTracer(b, discard{})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctx, root := tracer.StartSpan(context.Background(), "request")
		for j := 0; j < 3; j++ {
			childCtx, child := tracer.StartSpan(ctx, "service")
			_, leaf := tracer.StartSpan(childCtx, "query")
			leaf.End()
			child.End()
		}
		root.End()
	}
}

// BenchmarkBatchProcessorOnEnd measures enqueueing finished spans directly.
func BenchmarkBatchProcessorOnEnd(b *testing.B) {
	processor := spanz.NewBatchSpanProcessor(discard{},
		spanz.WithMaxQueueSize(1<<20),
		spanz.WithMaxExportBatchSize(1<<20),
		spanz.WithBatchLogger(zap.NewNop()),
	)
	finished := spanz.FinishedSpan{
		SpanContext: spanz.NewSpanContext(spanz.SpanContextConfig{
			TraceID:    spanz.TraceID{0x01},
			SpanID:     spanz.SpanID{0x01},
			TraceFlags: spanz.FlagsSampled,
		}),
		Name:      "template",
		StartTime: time.Now(),
		EndTime:   time.Now(),
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		processor.OnEnd(finished)
		if processor.QueueLen() >= 1<<19 {
			b.StopTimer()
			_ = processor.ForceFlush(context.Background())
			b.StartTimer()
		}
	}
}

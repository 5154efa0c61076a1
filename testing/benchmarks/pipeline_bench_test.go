package benchmarks

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/zoobzio/spanz"
	"github.com/zoobzio/spanz/exporters"
)

// BenchmarkPipelineThroughput measures spans per second from StartSpan to export.
func BenchmarkPipelineThroughput(b *testing.B) {
	exporter := exporters.NewInMemory()
	processor := spanz.NewBatchSpanProcessor(exporter,
		spanz.WithMaxQueueSize(1<<16),
		spanz.WithBatchLogger(zap.NewNop()),
	)
	tracer := spanz.New(processor, spanz.WithLogger(zap.NewNop()))
	done := make(chan error, 1)
	go func() { done <- tracer.Run(context.Background()) }()

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	start := time.Now()

	for i := 0; i < b.N; i++ {
		_, span := tracer.StartSpan(ctx, "throughput")
		span.End()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_ = tracer.Shutdown(shutdownCtx)
	<-done
	elapsed := time.Since(start)

	b.ReportMetric(float64(exporter.SpanCount())/elapsed.Seconds(), "exported/sec")
	b.ReportMetric(float64(processor.Dropped()), "dropped")
}

// BenchmarkWriterExport measures JSON line encoding of finished spans.
func BenchmarkWriterExport(b *testing.B) {
	writer := exporters.NewWriter(io.Discard)
	batch := make([]spanz.FinishedSpan, 512)
	for i := range batch {
		batch[i] = spanz.FinishedSpan{
			SpanContext: spanz.NewSpanContext(spanz.SpanContextConfig{
				TraceID:    spanz.TraceID{0x01, byte(i)},
				SpanID:     spanz.SpanID{0x02, byte(i)},
				TraceFlags: spanz.FlagsSampled,
			}),
			Name:       "encode",
			StartTime:  time.Now(),
			EndTime:    time.Now().Add(time.Millisecond),
			Attributes: attribute.NewSet(attribute.String("db.system", "postgresql"), attribute.Int("rows", i)),
			Resource:   spanz.DefaultResource(),
		}
	}

	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := writer.Export(ctx, batch); err != nil {
			b.Fatal(err)
		}
	}
	b.ReportMetric(float64(b.N*len(batch))/b.Elapsed().Seconds(), "spans/sec")
}

// BenchmarkPropagation measures traceparent and tracestate handling.
func BenchmarkPropagation(b *testing.B) {
	tracer, _ := batchTracer(b, discard{})
	ctx, span := tracer.StartSpan(context.Background(), "outbound")
	defer span.End()

	b.Run("inject", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			tracer.Inject(ctx, propagation.HeaderCarrier(http.Header{}))
		}
	})

	header := http.Header{}
	tracer.Inject(ctx, propagation.HeaderCarrier(header))
	header.Set("tracestate", "vendor1=value1,vendor2=value2")

	b.Run("extract", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = tracer.Extract(context.Background(), propagation.HeaderCarrier(header))
		}
	})

	b.Run("round_trip", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			remote := tracer.Extract(context.Background(), propagation.HeaderCarrier(header))
			child, s := tracer.StartSpan(remote, "inbound")
			tracer.Inject(child, propagation.HeaderCarrier(http.Header{}))
			s.End()
		}
	})
}

package reliability

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zoobzio/spanz"
	"github.com/zoobzio/spanz/exporters"
)

// Tracer lifecycle: startup, shutdown, cancellation and goroutine cleanup.
func TestTracerLifecycle(t *testing.T) {
	cfg := loadConfig(t)

	t.Run("startup_shutdown", testStartupShutdown)
	t.Run("cancel_mid_traffic", testCancelMidTraffic)
	t.Run("no_goroutine_leak", func(t *testing.T) { testNoGoroutineLeak(t, 20) })
	if cfg.Stress() {
		t.Run("rapid_cycling", func(t *testing.T) { testNoGoroutineLeak(t, 500) })
		t.Run("concurrent_lifecycle", func(t *testing.T) { testConcurrentLifecycle(t, cfg) })
	}
}

func startPipeline(t *testing.T, ctx context.Context, opts ...spanz.Option) (*spanz.Tracer, *exporters.InMemory, chan error) {
	t.Helper()
	exporter := exporters.NewInMemory()
	processor := spanz.NewBatchSpanProcessor(exporter,
		spanz.WithScheduleDelay(5*time.Millisecond),
		spanz.WithBatchLogger(zap.NewNop()),
	)
	tracer := spanz.New(processor, append([]spanz.Option{spanz.WithLogger(zap.NewNop())}, opts...)...)

	done := make(chan error, 1)
	go func() { done <- tracer.Run(ctx) }()
	return tracer, exporter, done
}

func testStartupShutdown(t *testing.T) {
	tracer, exporter, done := startPipeline(t, context.Background(),
		spanz.WithIDGenerator(spanz.NewPooledIDGenerator(64)))

	ctx, parent := tracer.StartSpan(context.Background(), "startup")
	_, child := tracer.StartSpan(ctx, "startup.child")
	child.End()
	parent.End()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tracer.Shutdown(shutdownCtx))
	require.NoError(t, <-done)

	assert.Equal(t, 2, exporter.SpanCount())
	assert.Equal(t, 1, exporter.Shutdowns())

	// Spans after shutdown are harmless and never exported.
	assert.NotPanics(t, func() {
		_, late := tracer.StartSpan(context.Background(), "late")
		late.SetAttributes()
		late.End()
	})
	assert.Equal(t, 2, exporter.SpanCount())

	// A second shutdown is a no-op.
	require.NoError(t, tracer.Shutdown(shutdownCtx))
}

// testCancelMidTraffic cancels Run while producers are still ending spans.
func testCancelMidTraffic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tracer, exporter, done := startPipeline(t, ctx)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_, span := tracer.StartSpan(context.Background(), "traffic")
				span.End()
			}
		}()
	}

	time.Sleep(2 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	wg.Wait()

	assert.Equal(t, 1, exporter.Shutdowns())
	assert.LessOrEqual(t, exporter.SpanCount(), 8*500)
}

// testNoGoroutineLeak starts and stops pipelines repeatedly and compares goroutine counts.
func testNoGoroutineLeak(t *testing.T, cycles int) {
	runtime.GC()
	before := runtime.NumGoroutine()

	for i := 0; i < cycles; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		tracer, _, done := startPipeline(t, ctx,
			spanz.WithIDGenerator(spanz.NewPooledIDGenerator(16)))

		_, span := tracer.StartSpan(context.Background(), "cycle")
		span.End()

		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		require.NoError(t, tracer.Shutdown(shutdownCtx))
		stop()
		require.NoError(t, <-done)
		cancel()
	}

	require.Eventually(t, func() bool {
		runtime.GC()
		return runtime.NumGoroutine() <= before+2
	}, 5*time.Second, 10*time.Millisecond, "goroutines leaked across %d cycles", cycles)
}

// testConcurrentLifecycle runs independent tracers side by side.
func testConcurrentLifecycle(t *testing.T, cfg Config) {
	var wg sync.WaitGroup
	errs := make(chan error, cfg.MaxGoroutines)

	for w := 0; w < cfg.MaxGoroutines; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			exporter := exporters.NewInMemory()
			tracer := spanz.New(spanz.NewSimpleSpanProcessor(exporter, spanz.WithSimpleLogger(zap.NewNop())),
				spanz.WithLogger(zap.NewNop()))

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- tracer.Run(ctx) }()

			for i := 0; i < 100; i++ {
				_, span := tracer.StartSpan(context.Background(), "isolated")
				span.End()
			}
			cancel()
			if err := <-done; err != nil {
				errs <- err
				return
			}
			if exporter.SpanCount() != 100 {
				errs <- assert.AnError
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("tracer lifecycle failed: %v", err)
	}
}

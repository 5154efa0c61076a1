package spanz

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// recordingExporter captures exported batches for assertions.
// When blocking is set, Export waits for cancellation of its context.
//
//nolint:govet // Field order groups configuration before recorded state
type recordingExporter struct {
	mu          sync.Mutex
	blocking    bool
	err         error
	shutdownErr error
	batches     [][]FinishedSpan
	calls       int
	cancelled   int
	flushes     int
	shutdowns   int
}

func (e *recordingExporter) Export(ctx context.Context, spans []FinishedSpan) error {
	e.mu.Lock()
	e.calls++
	blocking, err := e.blocking, e.err
	e.mu.Unlock()

	if blocking {
		<-ctx.Done()
		e.mu.Lock()
		e.cancelled++
		e.mu.Unlock()
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.batches = append(e.batches, append([]FinishedSpan(nil), spans...))
	e.mu.Unlock()
	return nil
}

func (e *recordingExporter) ForceFlush(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushes++
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdowns++
	return e.shutdownErr
}

func (e *recordingExporter) setBlocking(blocking bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blocking = blocking
}

func (e *recordingExporter) batchSizes() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	sizes := make([]int, len(e.batches))
	for i, b := range e.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func (e *recordingExporter) spans() []FinishedSpan {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []FinishedSpan
	for _, b := range e.batches {
		out = append(out, b...)
	}
	return out
}

func (e *recordingExporter) spanCount() int {
	return len(e.spans())
}

func (e *recordingExporter) cancelledCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

func (e *recordingExporter) shutdownCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdowns
}

func (e *recordingExporter) flushCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushes
}

// recordingProcessor logs every event it receives as a short string.
type recordingProcessor struct {
	mu       sync.Mutex
	events   []string
	finished []FinishedSpan
	started  []Span
	runErr   error
}

func (p *recordingProcessor) OnStart(_ context.Context, span Span) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "start:"+span.Name())
	p.started = append(p.started, span)
}

func (p *recordingProcessor) OnEnd(span FinishedSpan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "end:"+span.Name)
	p.finished = append(p.finished, span)
}

func (p *recordingProcessor) ForceFlush(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "flush")
	return nil
}

func (p *recordingProcessor) Run(ctx context.Context) error {
	<-ctx.Done()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "stop")
	return p.runErr
}

func (p *recordingProcessor) eventLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *recordingProcessor) finishedSpans() []FinishedSpan {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]FinishedSpan(nil), p.finished...)
}

func (p *recordingProcessor) startedSpans() []Span {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Span(nil), p.started...)
}

// testFinishedSpan builds a finished span with a unique span ID.
func testFinishedSpan(i int, sampled bool) FinishedSpan {
	var traceID TraceID
	traceID[0] = 0xaa
	var spanID SpanID
	spanID[0] = byte(i>>8) | 0x80
	spanID[7] = byte(i)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return FinishedSpan{
		SpanContext: NewSpanContext(SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: TraceFlags(0).WithSampled(sampled),
		}),
		Name:      fmt.Sprintf("span-%d", i),
		StartTime: start,
		EndTime:   start.Add(time.Millisecond),
	}
}

// runProcessor starts p.Run and returns a stop function that cancels it and
// returns Run's error.
func runProcessor(t *testing.T, p SpanProcessor) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	var once sync.Once
	var err error
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case err = <-errCh:
			case <-time.After(5 * time.Second):
				t.Fatal("processor did not stop")
			}
		})
		return err
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}

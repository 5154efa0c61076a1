// Package integration exercises complete spanz pipelines: tracer, processors
// and exporters wired together the way applications use them.
package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zoobzio/spanz"
	"github.com/zoobzio/spanz/exporters"
)

// Pipeline is a running tracer with an in-memory exporter behind it.
//
//nolint:govet // Field alignment optimized for test helper readability
type Pipeline struct {
	Tracer   *spanz.Tracer
	Exporter *exporters.InMemory
	t        *testing.T
	cancel   context.CancelFunc
	done     chan error
	once     sync.Once
	err      error
}

// ProcessorFactory builds the processor under test around the pipeline's exporter.
type ProcessorFactory func(exporter spanz.SpanExporter) spanz.SpanProcessor

// BatchFactory returns a factory for batch processors with a short schedule delay.
func BatchFactory(opts ...spanz.BatchOption) ProcessorFactory {
	return func(exporter spanz.SpanExporter) spanz.SpanProcessor {
		all := append([]spanz.BatchOption{
			spanz.WithScheduleDelay(10 * time.Millisecond),
			spanz.WithBatchLogger(zap.NewNop()),
		}, opts...)
		return spanz.NewBatchSpanProcessor(exporter, all...)
	}
}

// SimpleFactory returns a factory for simple processors.
func SimpleFactory() ProcessorFactory {
	return func(exporter spanz.SpanExporter) spanz.SpanProcessor {
		return spanz.NewSimpleSpanProcessor(exporter, spanz.WithSimpleLogger(zap.NewNop()))
	}
}

// NewPipeline starts a tracer whose processor exports into an InMemory exporter.
// The pipeline is stopped automatically when the test ends.
func NewPipeline(t *testing.T, factory ProcessorFactory, opts ...spanz.Option) *Pipeline {
	t.Helper()

	exporter := exporters.NewInMemory()
	opts = append([]spanz.Option{spanz.WithLogger(zap.NewNop())}, opts...)
	tracer := spanz.New(factory(exporter), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		Tracer:   tracer,
		Exporter: exporter,
		t:        t,
		cancel:   cancel,
		done:     make(chan error, 1),
	}
	go func() { p.done <- tracer.Run(ctx) }()

	t.Cleanup(func() { _ = p.Stop() })
	return p
}

// Stop shuts the tracer down, waiting for queued spans to be exported.
func (p *Pipeline) Stop() error {
	p.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		p.err = p.Tracer.Shutdown(ctx)
		p.cancel()
		if p.err == nil {
			p.err = <-p.done
		}
	})
	return p.err
}

// WaitForSpans polls the exporter until at least expected spans arrived.
func (p *Pipeline) WaitForSpans(expected int, timeout time.Duration) []spanz.FinishedSpan {
	p.t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if spans := p.Exporter.Spans(); len(spans) >= expected {
			return spans
		}
		<-ticker.C
	}
	spans := p.Exporter.Spans()
	p.t.Fatalf("Timed out waiting for %d spans, got %d", expected, len(spans))
	return spans
}

// SpansByName indexes spans by name. Later spans overwrite earlier ones.
func SpansByName(spans []spanz.FinishedSpan) map[string]spanz.FinishedSpan {
	out := make(map[string]spanz.FinishedSpan, len(spans))
	for _, s := range spans {
		out[s.Name] = s
	}
	return out
}

// AssertChildOf fails the test unless child's parent is parent and both share a trace.
func AssertChildOf(t *testing.T, child, parent spanz.FinishedSpan) {
	t.Helper()

	if child.SpanContext.TraceID() != parent.SpanContext.TraceID() {
		t.Errorf("%s and %s are in different traces", child.Name, parent.Name)
	}
	parentID, ok := child.SpanContext.ParentSpanID()
	if !ok || parentID != parent.SpanContext.SpanID() {
		t.Errorf("Expected %s to be a child of %s", child.Name, parent.Name)
	}
}

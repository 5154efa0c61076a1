package spanz

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zoobzio/spanz/internal/logging"
)

// Option configures a Tracer.
type Option func(*Tracer)

// WithSampler sets the sampler. Defaults to ParentBased(AlwaysOn()).
func WithSampler(sampler Sampler) Option {
	return func(t *Tracer) { t.sampler = sampler }
}

// WithIDGenerator sets the ID generator. Defaults to a crypto-random generator.
// Generators implementing io.Closer are closed by Shutdown.
func WithIDGenerator(gen IDGenerator) Option {
	return func(t *Tracer) { t.idGenerator = gen }
}

// WithPropagator sets the propagator used by Inject and Extract. Defaults to TraceContext.
func WithPropagator(p Propagator) Option {
	return func(t *Tracer) { t.propagator = p }
}

// WithResource sets the resource attached to every finished span.
func WithResource(r *Resource) Option {
	return func(t *Tracer) { t.resource = r }
}

// WithClock injects the clock used for span timestamps.
// Enables clock injection for deterministic testing.
func WithClock(clock clockz.Clock) Option {
	return func(t *Tracer) { t.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracer) { t.logger = logger }
}

// SpanStartOption configures StartSpan.
type SpanStartOption func(*spanStartConfig)

type spanStartConfig struct {
	timestamp  time.Time
	attributes []attribute.KeyValue
	links      []Link
	kind       SpanKind
}

// WithSpanKind sets the span kind. Defaults to SpanKindInternal.
func WithSpanKind(kind SpanKind) SpanStartOption {
	return func(c *spanStartConfig) { c.kind = kind }
}

// WithStartTime sets an explicit start timestamp.
func WithStartTime(t time.Time) SpanStartOption {
	return func(c *spanStartConfig) { c.timestamp = t }
}

// WithAttributes sets initial attributes, also visible to the sampler.
func WithAttributes(kv ...attribute.KeyValue) SpanStartOption {
	return func(c *spanStartConfig) { c.attributes = append(c.attributes, kv...) }
}

// WithLinks sets initial links, also visible to the sampler.
func WithLinks(links ...Link) SpanStartOption {
	return func(c *spanStartConfig) { c.links = append(c.links, links...) }
}

// Tracer creates spans and delivers their lifecycle events to one SpanProcessor.
// Safe for concurrent use by multiple goroutines.
//
// Events are published to a single ordered stream drained by Run; nothing
// reaches the processor until Run is started.
//
//nolint:govet // Field order optimized for functionality over memory
type Tracer struct {
	processor   SpanProcessor
	sampler     Sampler
	idGenerator IDGenerator
	propagator  Propagator
	resource    *Resource
	clock       clockz.Clock
	logger      *zap.Logger
	stream      *eventStream
	done        chan struct{}
	runErr      error
	mu          sync.Mutex
	state       runState
	closed      atomic.Bool
}

// runState records who started the event loop.
type runState uint8

const (
	stateIdle runState = iota
	stateRunning
	stateShutdown
)

// New creates a tracer driving processor. A nil processor discards everything.
func New(processor SpanProcessor, opts ...Option) *Tracer {
	if processor == nil {
		processor = NewNoOpSpanProcessor()
	}
	t := &Tracer{
		processor:   processor,
		sampler:     ParentBased(AlwaysOn()),
		idGenerator: NewRandomIDGenerator(),
		propagator:  TraceContext{},
		clock:       clockz.RealClock,
		stream:      newEventStream(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.resource == nil {
		t.resource = DefaultResource()
	}
	if t.logger == nil {
		t.logger = logging.NewDefault().Logger
	}
	return t
}

// Resource returns the resource attached to finished spans.
func (t *Tracer) Resource() *Resource {
	return t.resource
}

// StartSpan creates a span and returns it along with a context containing it.
// If ctx carries a span or a remote span context, the new span is its child.
// The span is returned immediately; the processor sees the start asynchronously.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...SpanStartOption) (context.Context, Span) {
	// Handle nil context by creating a new one.
	if ctx == nil {
		ctx = context.Background()
	}

	var cfg spanStartConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	parent := SpanContextFromContext(ctx)

	var (
		traceID    TraceID
		traceState TraceState
		parentID   SpanID
	)
	if parent.IsValid() {
		traceID = parent.TraceID()
		traceState = parent.TraceState()
		parentID = parent.SpanID()
	} else {
		traceID = t.idGenerator.NewTraceID()
	}
	spanID := t.idGenerator.NewSpanID()

	result := t.sampler.ShouldSample(SamplingParameters{
		ParentContext: ctx,
		TraceID:       traceID,
		Name:          name,
		Kind:          cfg.kind,
		Attributes:    cfg.attributes,
		Links:         cfg.links,
	})

	sc := NewSpanContext(SpanContextConfig{
		TraceID:      traceID,
		SpanID:       spanID,
		ParentSpanID: parentID,
		TraceFlags:   TraceFlags(0).WithSampled(result.Decision == RecordAndSample),
		TraceState:   traceState,
	})

	var span Span
	if result.Decision == Drop {
		span = &noopSpan{spanContext: sc, name: name}
	} else {
		start := cfg.timestamp
		if start.IsZero() {
			start = t.clock.Now()
		}
		rs := newRecordingSpan(sc, name, cfg.kind, start, t.clock, t.endCallback())
		rs.SetAttributes(cfg.attributes...)
		rs.SetAttributes(result.Attributes...)
		for _, link := range cfg.links {
			rs.AddLink(link.SpanContext, link.Attributes...)
		}
		span = rs
	}

	// Processors see every start, dropped spans included.
	t.stream.publish(event{kind: eventSpanStarted, parent: ctx, span: span})

	return ContextWithSpan(ctx, span), span
}

// endCallback captures only the stream and resource, so a span never keeps
// the Tracer itself reachable.
func (t *Tracer) endCallback() func(FinishedSpan) {
	stream, resource := t.stream, t.resource
	return func(finished FinishedSpan) {
		finished.Resource = resource
		stream.publish(event{kind: eventSpanEnded, finished: finished})
	}
}

// ForceFlush asks the processor to flush. It returns immediately.
func (t *Tracer) ForceFlush() {
	t.stream.publish(event{kind: eventForceFlush})
}

// Run delivers events to the processor and runs the processor's own loop
// alongside. It returns once both have finished: after ctx is cancelled or
// Shutdown is called, queued events are drained, then the processor is
// stopped and shuts its exporter down.
//
// If Shutdown won the race and already drove the pipeline to completion, Run
// waits for that and returns its result.
func (t *Tracer) Run(ctx context.Context) error {
	t.mu.Lock()
	switch t.state {
	case stateRunning:
		t.mu.Unlock()
		return errors.New("spanz: tracer already running")
	case stateShutdown:
		t.mu.Unlock()
		<-t.done
		return t.runErr
	}
	t.state = stateRunning
	t.mu.Unlock()

	t.runErr = t.run(ctx)
	close(t.done)
	return t.runErr
}

func (t *Tracer) run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, t.stream.close)
	defer stop()

	processorCtx, cancelProcessor := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelProcessor()

	var g errgroup.Group
	g.Go(func() error {
		// The processor stops only after every published event was delivered.
		defer cancelProcessor()
		t.consume(processorCtx)
		return nil
	})
	g.Go(func() error {
		defer cancelProcessor()
		return t.processor.Run(processorCtx)
	})
	return g.Wait()
}

// consume drains the stream strictly in publish order. Once the processor's
// Run has returned (processorCtx is done) events are drained but discarded.
func (t *Tracer) consume(processorCtx context.Context) {
	for {
		events := t.stream.next()
		if events == nil {
			return
		}
		for i := range events {
			if processorCtx.Err() != nil {
				continue
			}
			t.dispatch(&events[i])
		}
	}
}

// dispatch calls the processor, recovering from panics so one bad event
// cannot stop the stream.
func (t *Tracer) dispatch(ev *event) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("span processor panicked", zap.Any("panic", r))
		}
	}()

	switch ev.kind {
	case eventSpanStarted:
		t.processor.OnStart(ev.parent, ev.span)
	case eventSpanEnded:
		t.processor.OnEnd(ev.finished)
	case eventForceFlush:
		if err := t.processor.ForceFlush(context.Background()); err != nil {
			t.logger.Warn("force flush failed", zap.Error(err))
		}
	}
}

// Shutdown closes the event stream and waits for Run to finish, bounded by ctx.
// Pending events are delivered, the processor flushes and shuts its exporter
// down, even when Run was never started. Spans ended afterwards are not
// delivered. Closable ID generators are closed.
func (t *Tracer) Shutdown(ctx context.Context) error {
	t.stream.close()

	// Run not started yet: drain what was published and stop the processor here.
	t.mu.Lock()
	if t.state == stateIdle {
		t.state = stateShutdown
		go func() {
			t.runErr = t.run(context.Background())
			close(t.done)
		}()
	}
	t.mu.Unlock()

	var err error
	select {
	case <-t.done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if t.closed.CompareAndSwap(false, true) {
		if closer, ok := t.idGenerator.(io.Closer); ok {
			if closeErr := closer.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}
	}
	return err
}

// Inject writes the span context in ctx into carrier.
func (t *Tracer) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	t.propagator.Inject(ctx, carrier)
}

// Extract returns ctx with the remote span context found in carrier as parent.
// Malformed headers are logged and ctx is returned unchanged.
func (t *Tracer) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	extracted, err := t.propagator.Extract(ctx, carrier)
	if err != nil {
		if !errors.Is(err, ErrNoTraceparent) {
			t.logger.Debug("ignoring malformed trace context", zap.Error(err))
		}
		return ctx
	}
	return extracted
}

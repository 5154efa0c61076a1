package spanz

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// SpanKind describes the relationship between a span and its callers.
type SpanKind uint8

const (
	// SpanKindInternal is the default kind for in-process work.
	SpanKindInternal SpanKind = iota
	// SpanKindServer handles a remote request.
	SpanKindServer
	// SpanKindClient issues a remote request.
	SpanKindClient
	// SpanKindProducer enqueues a message.
	SpanKindProducer
	// SpanKindConsumer handles an enqueued message.
	SpanKindConsumer
)

// String returns the OpenTelemetry name for the kind.
func (k SpanKind) String() string {
	switch k {
	case SpanKindServer:
		return "SERVER"
	case SpanKindClient:
		return "CLIENT"
	case SpanKindProducer:
		return "PRODUCER"
	case SpanKindConsumer:
		return "CONSUMER"
	default:
		return "INTERNAL"
	}
}

// exceptionEventName is the event name used by RecordError.
const exceptionEventName = "exception"

// Event is a timestamped annotation on a span.
type Event struct {
	Time       time.Time
	Name       string
	Attributes []attribute.KeyValue
}

// Link associates a span with another, possibly in a different trace.
type Link struct {
	Attributes  []attribute.KeyValue
	SpanContext SpanContext
}

// Span is the in-flight representation of an operation.
// Implementations are safe for concurrent use by multiple goroutines.
type Span interface {
	// Context returns the span's immutable identity.
	Context() SpanContext
	// IsRecording reports whether the span still accepts mutations.
	IsRecording() bool
	// Name returns the current operation name.
	Name() string
	// SetName replaces the operation name.
	SetName(name string)
	// SetAttributes merges attributes, overwriting existing keys.
	SetAttributes(kv ...attribute.KeyValue)
	// AddEvent appends an event.
	AddEvent(name string, opts ...EventOption)
	// AddLink appends a link to another span context.
	AddLink(sc SpanContext, kv ...attribute.KeyValue)
	// SetStatus transitions the status. OK is terminal.
	SetStatus(code StatusCode, description string)
	// RecordError adds an "exception" event describing err.
	RecordError(err error, opts ...EventOption)
	// End freezes the span. Only the first call takes effect.
	End(opts ...EndOption)
}

// EventOption configures AddEvent and RecordError.
type EventOption func(*eventConfig)

type eventConfig struct {
	timestamp  time.Time
	attributes []attribute.KeyValue
}

// WithEventAttributes attaches attributes to an event.
func WithEventAttributes(kv ...attribute.KeyValue) EventOption {
	return func(c *eventConfig) {
		c.attributes = append(c.attributes, kv...)
	}
}

// WithEventTime sets an explicit event timestamp.
func WithEventTime(t time.Time) EventOption {
	return func(c *eventConfig) {
		c.timestamp = t
	}
}

// EndOption configures End.
type EndOption func(*endConfig)

type endConfig struct {
	timestamp time.Time
}

// WithEndTime sets an explicit end timestamp.
func WithEndTime(t time.Time) EndOption {
	return func(c *endConfig) {
		c.timestamp = t
	}
}

// noopSpan carries a span context and ignores everything else.
// Used for dropped spans and for remote parents.
type noopSpan struct {
	spanContext SpanContext
	name        string
}

func (s *noopSpan) Context() SpanContext { return s.spanContext }
func (*noopSpan) IsRecording() bool { return false }
func (s *noopSpan) Name() string { return s.name }
func (*noopSpan) SetName(string) {}
func (*noopSpan) SetAttributes(...attribute.KeyValue) {}
func (*noopSpan) AddEvent(string, ...EventOption) {}
func (*noopSpan) AddLink(SpanContext, ...attribute.KeyValue) {}
func (*noopSpan) SetStatus(StatusCode, string) {}
func (*noopSpan) RecordError(error, ...EventOption) {}
func (*noopSpan) End(...EndOption) {}

// recordingSpan is mutable until End. Each field group has its own lock so
// independent mutations never contend; end is decided by a compare-and-swap.
//
//nolint:govet // Field order groups each lock with the state it protects
type recordingSpan struct {
	spanContext SpanContext
	startTime   time.Time
	clock       clockz.Clock
	onEnd       func(FinishedSpan)
	endTime     atomic.Pointer[time.Time]
	kind        SpanKind

	nameMu sync.Mutex
	name   string

	attrMu     sync.Mutex
	attributes map[attribute.Key]attribute.Value

	eventsMu sync.Mutex
	events   []Event

	linksMu sync.Mutex
	links   []Link

	statusMu sync.Mutex
	status   Status
}

func newRecordingSpan(sc SpanContext, name string, kind SpanKind, start time.Time, clock clockz.Clock, onEnd func(FinishedSpan)) *recordingSpan {
	return &recordingSpan{
		spanContext: sc,
		name:        name,
		kind:        kind,
		startTime:   start,
		clock:       clock,
		onEnd:       onEnd,
		attributes:  make(map[attribute.Key]attribute.Value),
	}
}

func (s *recordingSpan) Context() SpanContext {
	return s.spanContext
}

func (s *recordingSpan) IsRecording() bool {
	return s.endTime.Load() == nil
}

func (s *recordingSpan) Name() string {
	s.nameMu.Lock()
	defer s.nameMu.Unlock()
	return s.name
}

func (s *recordingSpan) SetName(name string) {
	s.nameMu.Lock()
	defer s.nameMu.Unlock()

	if !s.IsRecording() {
		return
	}
	s.name = name
}

func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) {
	s.attrMu.Lock()
	defer s.attrMu.Unlock()

	if !s.IsRecording() {
		return
	}
	for _, a := range kv {
		if !a.Valid() {
			continue
		}
		s.attributes[a.Key] = a.Value
	}
}

func (s *recordingSpan) AddEvent(name string, opts ...EventOption) {
	s.addEvent(name, nil, opts)
}

// addEvent stores base attributes first so caller-supplied ones win on collision.
func (s *recordingSpan) addEvent(name string, base []attribute.KeyValue, opts []EventOption) {
	var cfg eventConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.timestamp.IsZero() {
		cfg.timestamp = s.clock.Now()
	}

	attrs := cfg.attributes
	if len(base) > 0 {
		merged := make([]attribute.KeyValue, 0, len(base)+len(cfg.attributes))
		merged = append(merged, base...)
		merged = append(merged, cfg.attributes...)
		set := attribute.NewSet(merged...)
		attrs = set.ToSlice()
	}

	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	if !s.IsRecording() {
		return
	}
	s.events = append(s.events, Event{
		Name:       name,
		Time:       cfg.timestamp,
		Attributes: attrs,
	})
}

func (s *recordingSpan) AddLink(sc SpanContext, kv ...attribute.KeyValue) {
	s.linksMu.Lock()
	defer s.linksMu.Unlock()

	if !s.IsRecording() {
		return
	}
	s.links = append(s.links, Link{SpanContext: sc, Attributes: kv})
}

func (s *recordingSpan) SetStatus(code StatusCode, description string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	if !s.IsRecording() {
		return
	}
	s.status = s.status.next(code, description)
}

func (s *recordingSpan) RecordError(err error, opts ...EventOption) {
	if err == nil {
		return
	}
	s.addEvent(exceptionEventName, []attribute.KeyValue{
		semconv.ExceptionTypeKey.String(fmt.Sprintf("%T", err)),
		semconv.ExceptionMessageKey.String(err.Error()),
	}, opts)
}

// End records the end time, snapshots the span and notifies the owner once.
func (s *recordingSpan) End(opts ...EndOption) {
	var cfg endConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.timestamp.IsZero() {
		cfg.timestamp = s.clock.Now()
	}

	end := cfg.timestamp
	if !s.endTime.CompareAndSwap(nil, &end) {
		return
	}

	finished := s.snapshot(end)

	// Only the winning End reaches this point.
	onEnd := s.onEnd
	s.onEnd = nil
	if onEnd != nil {
		onEnd(finished)
	}
}

// snapshot reads every field under its own lock. Mutations that acquired a
// lock before End won the race are included; later ones see the span ended.
func (s *recordingSpan) snapshot(end time.Time) FinishedSpan {
	finished := FinishedSpan{
		SpanContext: s.spanContext,
		Kind:        s.kind,
		StartTime:   s.startTime,
		EndTime:     end,
	}

	s.nameMu.Lock()
	finished.Name = s.name
	s.nameMu.Unlock()

	s.attrMu.Lock()
	kvs := make([]attribute.KeyValue, 0, len(s.attributes))
	for k, v := range s.attributes {
		kvs = append(kvs, attribute.KeyValue{Key: k, Value: v})
	}
	s.attrMu.Unlock()
	finished.Attributes = attribute.NewSet(kvs...)

	s.eventsMu.Lock()
	finished.Events = append([]Event(nil), s.events...)
	s.eventsMu.Unlock()

	s.linksMu.Lock()
	finished.Links = append([]Link(nil), s.links...)
	s.linksMu.Unlock()

	s.statusMu.Lock()
	finished.Status = s.status
	s.statusMu.Unlock()

	return finished
}

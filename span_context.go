package spanz

import "context"

// spanKeyType is a private type for context keys to avoid collisions.
type spanKeyType string

const (
	spanKey spanKeyType = "spanz"
)

// SpanContextConfig holds the fields used to build a SpanContext.
type SpanContextConfig struct {
	TraceState   TraceState
	TraceID      TraceID
	SpanID       SpanID
	ParentSpanID SpanID
	TraceFlags   TraceFlags
	Remote       bool
}

// SpanContext is the immutable, propagatable identity of a span.
//
//nolint:govet // Field order mirrors SpanContextConfig
type SpanContext struct {
	traceState   TraceState
	traceID      TraceID
	spanID       SpanID
	parentSpanID SpanID
	traceFlags   TraceFlags
	remote       bool
}

// NewSpanContext builds a SpanContext from config.
// A zero ParentSpanID marks a root span.
func NewSpanContext(config SpanContextConfig) SpanContext {
	return SpanContext{
		traceID:      config.TraceID,
		spanID:       config.SpanID,
		parentSpanID: config.ParentSpanID,
		traceFlags:   config.TraceFlags,
		traceState:   config.TraceState,
		remote:       config.Remote,
	}
}

// TraceID returns the trace identifier.
func (sc SpanContext) TraceID() TraceID { return sc.traceID }

// SpanID returns the span identifier.
func (sc SpanContext) SpanID() SpanID { return sc.spanID }

// ParentSpanID returns the parent's span ID and whether one is set.
func (sc SpanContext) ParentSpanID() (SpanID, bool) {
	return sc.parentSpanID, sc.parentSpanID.IsValid()
}

// HasParent reports whether the span has a parent. Root spans return false.
func (sc SpanContext) HasParent() bool { return sc.parentSpanID.IsValid() }

// TraceFlags returns the trace flags.
func (sc SpanContext) TraceFlags() TraceFlags { return sc.traceFlags }

// TraceState returns the vendor trace state.
func (sc SpanContext) TraceState() TraceState { return sc.traceState }

// IsRemote reports whether the context was extracted from a remote carrier.
func (sc SpanContext) IsRemote() bool { return sc.remote }

// IsSampled reports whether the sampled flag is set.
func (sc SpanContext) IsSampled() bool { return sc.traceFlags.IsSampled() }

// IsValid reports whether both trace and span IDs are valid.
func (sc SpanContext) IsValid() bool {
	return sc.traceID.IsValid() && sc.spanID.IsValid()
}

// Equal compares every field, including trace state order.
func (sc SpanContext) Equal(other SpanContext) bool {
	return sc.traceID == other.traceID &&
		sc.spanID == other.spanID &&
		sc.parentSpanID == other.parentSpanID &&
		sc.traceFlags == other.traceFlags &&
		sc.remote == other.remote &&
		sc.traceState.Equal(other.traceState)
}

// ContextWithSpan returns a copy of parent carrying span.
// Spans started from the returned context become its children.
func ContextWithSpan(parent context.Context, span Span) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithValue(parent, spanKey, span)
}

// ContextWithRemoteSpanContext stores a remote span context as the current parent.
func ContextWithRemoteSpanContext(parent context.Context, sc SpanContext) context.Context {
	return ContextWithSpan(parent, &noopSpan{spanContext: sc})
}

// SpanFromContext extracts the current span from a context.
// Returns nil if no span is present.
func SpanFromContext(ctx context.Context) Span {
	if ctx == nil {
		return nil
	}
	if span, ok := ctx.Value(spanKey).(Span); ok {
		return span
	}
	return nil
}

// SpanContextFromContext returns the span context of the current span.
// Returns the zero SpanContext if none is present.
func SpanContextFromContext(ctx context.Context) SpanContext {
	if span := SpanFromContext(ctx); span != nil {
		return span.Context()
	}
	return SpanContext{}
}

package spanz

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/propagation"
)

// W3C trace context header names.
const (
	TraceparentHeader = "traceparent"
	TracestateHeader  = "tracestate"
)

const supportedVersion = "00"

// Propagation errors returned by Extract.
var (
	ErrNoTraceparent        = errors.New("spanz: no traceparent header")
	ErrMalformedTraceparent = errors.New("spanz: malformed traceparent")
	ErrUnsupportedVersion   = errors.New("spanz: unsupported traceparent version")
)

// Propagator moves a SpanContext across process boundaries through a carrier.
// Inject never fails; Extract reports parse errors and leaves ctx unchanged.
type Propagator interface {
	Inject(ctx context.Context, carrier propagation.TextMapCarrier)
	Extract(ctx context.Context, carrier propagation.TextMapCarrier) (context.Context, error)
	Fields() []string
}

// TraceContext implements the W3C traceparent/tracestate format.
type TraceContext struct{}

var _ Propagator = TraceContext{}

// Inject writes the current span context into carrier. Invalid contexts are skipped.
func (TraceContext) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	sc := SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	carrier.Set(TraceparentHeader, fmt.Sprintf("%s-%s-%s-%s",
		supportedVersion,
		sc.TraceID(),
		sc.SpanID(),
		sc.TraceFlags()&FlagsSampled,
	))
	if ts := sc.TraceState().String(); ts != "" {
		carrier.Set(TracestateHeader, ts)
	}
}

// Extract reads a remote span context from carrier and stores it as the parent in ctx.
func (tc TraceContext) Extract(ctx context.Context, carrier propagation.TextMapCarrier) (context.Context, error) {
	sc, err := tc.extract(carrier)
	if err != nil {
		return ctx, err
	}
	return ContextWithRemoteSpanContext(ctx, sc), nil
}

// Fields returns the header names this propagator touches.
func (TraceContext) Fields() []string {
	return []string{TraceparentHeader, TracestateHeader}
}

func (TraceContext) extract(carrier propagation.TextMapCarrier) (SpanContext, error) {
	header := strings.TrimSpace(carrier.Get(TraceparentHeader))
	if header == "" {
		return SpanContext{}, ErrNoTraceparent
	}

	parts := strings.Split(header, "-")
	if len(parts) < 4 {
		return SpanContext{}, fmt.Errorf("%w: %q", ErrMalformedTraceparent, header)
	}

	version := parts[0]
	if len(version) != 2 || !isLowerHex(version) {
		return SpanContext{}, fmt.Errorf("%w: bad version %q", ErrMalformedTraceparent, version)
	}
	if version == "ff" {
		return SpanContext{}, fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}
	// Version 00 has exactly four fields; future versions may append more.
	if version == supportedVersion && len(parts) != 4 {
		return SpanContext{}, fmt.Errorf("%w: %q", ErrMalformedTraceparent, header)
	}

	traceID, err := TraceIDFromHex(parts[1])
	if err != nil {
		return SpanContext{}, fmt.Errorf("%w: %w", ErrMalformedTraceparent, err)
	}
	spanID, err := SpanIDFromHex(parts[2])
	if err != nil {
		return SpanContext{}, fmt.Errorf("%w: %w", ErrMalformedTraceparent, err)
	}
	flags, err := hex.DecodeString(parts[3])
	if err != nil || len(flags) != 1 || !isLowerHex(parts[3]) {
		return SpanContext{}, fmt.Errorf("%w: bad flags %q", ErrMalformedTraceparent, parts[3])
	}

	// A bad tracestate invalidates only the tracestate, not the parent.
	state, err := ParseTraceState(carrier.Get(TracestateHeader))
	if err != nil {
		state = TraceState{}
	}

	return NewSpanContext(SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: TraceFlags(flags[0]) & FlagsSampled,
		TraceState: state,
		Remote:     true,
	}), nil
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

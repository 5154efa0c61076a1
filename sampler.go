package spanz

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// SamplingDecision is the outcome of a sampling check.
type SamplingDecision uint8

const (
	// Drop produces a non-recording span that is never exported.
	Drop SamplingDecision = iota
	// RecordOnly records the span but leaves it unsampled, so it is not exported.
	RecordOnly
	// RecordAndSample records the span and flags it for export.
	RecordAndSample
)

// String returns a readable name for the decision.
func (d SamplingDecision) String() string {
	switch d {
	case RecordOnly:
		return "record"
	case RecordAndSample:
		return "record_and_sample"
	default:
		return "drop"
	}
}

// SamplingParameters is everything a Sampler may inspect.
type SamplingParameters struct {
	ParentContext context.Context
	Name          string
	Attributes    []attribute.KeyValue
	Links         []Link
	TraceID       TraceID
	Kind          SpanKind
}

// SamplingResult carries the decision and any attributes to add to the span.
type SamplingResult struct {
	Attributes []attribute.KeyValue
	Decision   SamplingDecision
}

// Sampler decides whether a span is recorded and exported.
type Sampler interface {
	ShouldSample(params SamplingParameters) SamplingResult
	Description() string
}

type alwaysOn struct{}

// AlwaysOn samples every span.
func AlwaysOn() Sampler { return alwaysOn{} }

func (alwaysOn) ShouldSample(SamplingParameters) SamplingResult {
	return SamplingResult{Decision: RecordAndSample}
}

func (alwaysOn) Description() string { return "AlwaysOnSampler" }

type alwaysOff struct{}

// AlwaysOff drops every span.
func AlwaysOff() Sampler { return alwaysOff{} }

func (alwaysOff) ShouldSample(SamplingParameters) SamplingResult {
	return SamplingResult{Decision: Drop}
}

func (alwaysOff) Description() string { return "AlwaysOffSampler" }

type recordOnly struct{}

// RecordOnlySampler records every span without flagging it for export.
func RecordOnlySampler() Sampler { return recordOnly{} }

func (recordOnly) ShouldSample(SamplingParameters) SamplingResult {
	return SamplingResult{Decision: RecordOnly}
}

func (recordOnly) Description() string { return "RecordOnlySampler" }

type traceIDRatio struct {
	description string
	upperBound  uint64
}

// TraceIDRatioBased samples a deterministic fraction of traces keyed on the trace ID.
// Fractions >= 1 always sample; fractions <= 0 never do.
func TraceIDRatioBased(fraction float64) Sampler {
	if fraction >= 1 {
		return AlwaysOn()
	}
	if fraction <= 0 {
		fraction = 0
	}
	return traceIDRatio{
		upperBound:  uint64(fraction * (1 << 63)),
		description: fmt.Sprintf("TraceIDRatioBased{%g}", fraction),
	}
}

func (s traceIDRatio) ShouldSample(p SamplingParameters) SamplingResult {
	x := binary.BigEndian.Uint64(p.TraceID[8:16]) >> 1
	if x < s.upperBound {
		return SamplingResult{Decision: RecordAndSample}
	}
	return SamplingResult{Decision: Drop}
}

func (s traceIDRatio) Description() string { return s.description }

type parentBased struct {
	root Sampler
}

// ParentBased follows the parent's sampled flag and delegates root spans to root.
func ParentBased(root Sampler) Sampler {
	return parentBased{root: root}
}

func (s parentBased) ShouldSample(p SamplingParameters) SamplingResult {
	parent := SpanContextFromContext(p.ParentContext)
	if !parent.IsValid() {
		return s.root.ShouldSample(p)
	}
	if parent.IsSampled() {
		return SamplingResult{Decision: RecordAndSample}
	}
	return SamplingResult{Decision: Drop}
}

func (s parentBased) Description() string {
	return fmt.Sprintf("ParentBased{root:%s}", s.root.Description())
}

type rateLimiting struct {
	limiter     *rate.Limiter
	description string
}

// RateLimiting samples at most perSecond root spans per second, with a burst of
// one second's worth. Non-root spans are not treated specially.
func RateLimiting(perSecond float64) Sampler {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &rateLimiting{
		limiter:     rate.NewLimiter(rate.Limit(perSecond), burst),
		description: fmt.Sprintf("RateLimitingSampler{%g}", perSecond),
	}
}

func (s *rateLimiting) ShouldSample(SamplingParameters) SamplingResult {
	if s.limiter.Allow() {
		return SamplingResult{Decision: RecordAndSample}
	}
	return SamplingResult{Decision: Drop}
}

func (s *rateLimiting) Description() string { return s.description }

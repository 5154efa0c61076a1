package spanz

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// FinishedSpan is the immutable snapshot taken when a recording span ends.
// Processors and exporters receive spans only in this form.
//
//nolint:govet // Field order groups identity, timing, then payload
type FinishedSpan struct {
	SpanContext SpanContext
	StartTime   time.Time
	EndTime     time.Time
	Resource    *Resource
	Name        string
	Attributes  attribute.Set
	Events      []Event
	Links       []Link
	Status      Status
	Kind        SpanKind
}

// Duration returns EndTime - StartTime.
func (f FinishedSpan) Duration() time.Duration {
	return f.EndTime.Sub(f.StartTime)
}

// IsSampled reports whether the span was flagged for export.
func (f FinishedSpan) IsSampled() bool {
	return f.SpanContext.IsSampled()
}

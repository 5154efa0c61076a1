// Package exporters provides SpanExporter implementations for spanz:
// an in-memory recorder, a JSON-lines writer, an HTTP JSON client and a
// circuit-breaking decorator.
package exporters

import (
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zoobzio/spanz"
)

// ErrExporterShutdown is returned by Export after Shutdown.
var ErrExporterShutdown = errors.New("exporters: exporter is shut down")

// SpanRecord is the JSON form of a finished span.
//
//nolint:govet // Field order follows the wire layout
type SpanRecord struct {
	TraceID      string         `json:"trace_id"`
	SpanID       string         `json:"span_id"`
	ParentSpanID string         `json:"parent_span_id,omitempty"`
	TraceState   string         `json:"trace_state,omitempty"`
	Name         string         `json:"name"`
	Kind         string         `json:"kind"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time"`
	DurationNS   int64          `json:"duration_ns"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	Events       []EventRecord  `json:"events,omitempty"`
	Links        []LinkRecord   `json:"links,omitempty"`
	Status       StatusRecord   `json:"status"`
	Resource     map[string]any `json:"resource,omitempty"`
}

// EventRecord is the JSON form of a span event.
type EventRecord struct {
	Time       time.Time      `json:"time"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// LinkRecord is the JSON form of a span link.
type LinkRecord struct {
	TraceID    string         `json:"trace_id"`
	SpanID     string         `json:"span_id"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// StatusRecord is the JSON form of a span status.
type StatusRecord struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// NewSpanRecord converts a finished span to its JSON form.
func NewSpanRecord(span spanz.FinishedSpan) SpanRecord {
	sc := span.SpanContext
	record := SpanRecord{
		TraceID:    sc.TraceID().String(),
		SpanID:     sc.SpanID().String(),
		TraceState: sc.TraceState().String(),
		Name:       span.Name,
		Kind:       span.Kind.String(),
		StartTime:  span.StartTime,
		EndTime:    span.EndTime,
		DurationNS: span.Duration().Nanoseconds(),
		Attributes: attributeMap(span.Attributes.ToSlice()),
		Status: StatusRecord{
			Code:        span.Status.Code.String(),
			Description: span.Status.Description,
		},
		Resource: attributeMap(span.Resource.Attributes()),
	}
	if parent, ok := sc.ParentSpanID(); ok {
		record.ParentSpanID = parent.String()
	}
	for _, ev := range span.Events {
		record.Events = append(record.Events, EventRecord{
			Time:       ev.Time,
			Name:       ev.Name,
			Attributes: attributeMap(ev.Attributes),
		})
	}
	for _, link := range span.Links {
		record.Links = append(record.Links, LinkRecord{
			TraceID:    link.SpanContext.TraceID().String(),
			SpanID:     link.SpanContext.SpanID().String(),
			Attributes: attributeMap(link.Attributes),
		})
	}
	return record
}

// NewSpanRecords converts a batch.
func NewSpanRecords(spans []spanz.FinishedSpan) []SpanRecord {
	records := make([]SpanRecord, len(spans))
	for i := range spans {
		records[i] = NewSpanRecord(spans[i])
	}
	return records
}

func attributeMap(kvs []attribute.KeyValue) map[string]any {
	if len(kvs) == 0 {
		return nil
	}
	m := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

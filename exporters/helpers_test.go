package exporters

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/zoobzio/spanz"
)

var testStart = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func testSpan(i int) spanz.FinishedSpan {
	traceID, _ := spanz.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := spanz.SpanIDFromHex(fmt.Sprintf("00f067aa0ba902%02x", i+1))
	parentID, _ := spanz.SpanIDFromHex("00000000000000ff")

	return spanz.FinishedSpan{
		SpanContext: spanz.NewSpanContext(spanz.SpanContextConfig{
			TraceID:      traceID,
			SpanID:       spanID,
			ParentSpanID: parentID,
			TraceFlags:   spanz.FlagsSampled,
		}),
		Name:       fmt.Sprintf("op-%d", i),
		Kind:       spanz.SpanKindServer,
		StartTime:  testStart,
		EndTime:    testStart.Add(1500 * time.Microsecond),
		Attributes: attribute.NewSet(attribute.String("http.method", "GET"), attribute.Int("http.status_code", 200)),
		Events: []spanz.Event{{
			Time:       testStart.Add(time.Millisecond),
			Name:       "exception",
			Attributes: []attribute.KeyValue{semconv.ExceptionMessageKey.String("boom")},
		}},
		Status:   spanz.Status{Code: spanz.StatusError, Description: "boom"},
		Resource: spanz.NewResource(semconv.ServiceNameKey.String("checkout")),
	}
}

func testSpans(n int) []spanz.FinishedSpan {
	spans := make([]spanz.FinishedSpan, n)
	for i := range spans {
		spans[i] = testSpan(i)
	}
	return spans
}

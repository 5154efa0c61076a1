// Package spanz is a small span-tracing SDK: it creates spans, samples them,
// propagates W3C trace context, and hands finished spans to pluggable
// processors and exporters.
//
// Core Components:
//   - Tracer: Creates spans and delivers their lifecycle events, in order, to one SpanProcessor.
//   - Span: A mutable, concurrent-safe unit of work until End.
//   - FinishedSpan: The immutable snapshot produced by End.
//   - SpanProcessor: Simple, Batch, Multiplex or NoOp.
//   - SpanExporter: Delivers batches of finished spans to a backend.
//
// Basic Usage:
//
//	exporter := exporters.NewInMemory()
//	tracer := spanz.New(spanz.NewBatchSpanProcessor(exporter))
//	go tracer.Run(ctx)
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.StartSpan(ctx, "operation-name")
//	defer span.End()
//
//	span.SetAttributes(attribute.String("user.id", "123"))
//
//	// Pass context to child operations.
//	childCtx, child := tracer.StartSpan(ctx, "child-operation")
//	defer child.End()
//
// Thread Safety:
//
// Tracer, Span and every processor are safe for concurrent use.
// Processors receive OnStart, OnEnd and ForceFlush from a single goroutine,
// in the order the events were produced.
//
// Context Propagation:
//
// Spans are linked via context.Context. Child spans inherit their parent's
// trace ID and trace state and record the parent's span ID. Tracer.Inject and
// Tracer.Extract carry the same relationship across process boundaries using
// the traceparent and tracestate headers.
//
// Backpressure:
//
// The batch processor holds at most MaxQueueSize spans. Spans ending while the
// queue is full are dropped and counted, never blocking the caller.
//
// Resource Cleanup:
//
// Cancel the context passed to Tracer.Run, or call Tracer.Shutdown. Pending
// events are delivered, queued spans are flushed, and the exporter is shut down.
package spanz

package spanz

import (
	"crypto/rand"
	"runtime"
)

// IDGenerator produces trace and span identifiers.
// Implementations must be safe for concurrent use.
type IDGenerator interface {
	NewTraceID() TraceID
	NewSpanID() SpanID
}

// RandomIDGenerator draws IDs from crypto/rand and never returns the all-zero ID.
type RandomIDGenerator struct{}

// NewRandomIDGenerator returns a cryptographically random generator.
func NewRandomIDGenerator() RandomIDGenerator {
	return RandomIDGenerator{}
}

// NewTraceID returns a random, valid trace ID.
func (RandomIDGenerator) NewTraceID() TraceID {
	var id TraceID
	for !id.IsValid() {
		// crypto/rand.Read never returns an error on supported platforms.
		_, _ = rand.Read(id[:])
	}
	return id
}

// NewSpanID returns a random, valid span ID.
func (RandomIDGenerator) NewSpanID() SpanID {
	var id SpanID
	for !id.IsValid() {
		_, _ = rand.Read(id[:])
	}
	return id
}

// PooledIDGenerator serves random IDs from pre-filled pools refilled in the background.
// Tracer.Shutdown closes it when it was passed through WithIDGenerator;
// otherwise call Close to stop the refill goroutines.
type PooledIDGenerator struct {
	traceIDs *IDPool[TraceID]
	spanIDs  *IDPool[SpanID]
}

// NewPooledIDGenerator creates pools of the given capacity.
// A non-positive capacity sizes the pools by CPU count.
func NewPooledIDGenerator(capacity int) *PooledIDGenerator {
	if capacity <= 0 {
		// Pool size based on number of CPUs for optimal contention balance.
		capacity = runtime.NumCPU() * 100
	}
	random := NewRandomIDGenerator()
	return &PooledIDGenerator{
		traceIDs: NewIDPool(capacity, random.NewTraceID),
		spanIDs:  NewIDPool(capacity, random.NewSpanID),
	}
}

// NewTraceID returns a pooled random trace ID.
func (g *PooledIDGenerator) NewTraceID() TraceID {
	return g.traceIDs.Get()
}

// NewSpanID returns a pooled random span ID.
func (g *PooledIDGenerator) NewSpanID() SpanID {
	return g.spanIDs.Get()
}

// Close shuts down both refill goroutines.
func (g *PooledIDGenerator) Close() error {
	g.traceIDs.Close()
	g.spanIDs.Close()
	return nil
}

// ConstantIDGenerator always returns the same IDs. Intended for tests.
type ConstantIDGenerator struct {
	TraceID TraceID
	SpanID  SpanID
}

// NewTraceID returns the configured trace ID.
func (g ConstantIDGenerator) NewTraceID() TraceID { return g.TraceID }

// NewSpanID returns the configured span ID.
func (g ConstantIDGenerator) NewSpanID() SpanID { return g.SpanID }

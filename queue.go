package spanz

import (
	"sync"
	"sync/atomic"
)

// spanQueue buffers finished spans for batch export.
// Bounded FIFO, safe for concurrent use. Spans leave only through take/drain.
//
//nolint:govet // Field alignment optimized for readability over memory efficiency
type spanQueue struct {
	spans    []FinishedSpan
	capacity int
	dropped  atomic.Int64
	mu       sync.Mutex
}

// newSpanQueue creates a queue holding at most capacity spans.
func newSpanQueue(capacity int) *spanQueue {
	return &spanQueue{
		capacity: capacity,
		spans:    make([]FinishedSpan, 0, min(capacity, 32)), // Start with small capacity.
	}
}

// push appends span and returns the resulting length.
// ok is false when the queue was already full and the span was dropped.
func (q *spanQueue) push(span FinishedSpan) (size int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.spans) >= q.capacity {
		q.dropped.Add(1)
		return len(q.spans), false
	}
	q.spans = append(q.spans, span)
	return len(q.spans), true
}

// take removes up to n spans from the front.
// When full is true, nothing is removed unless n spans are available.
func (q *spanQueue) take(n int, full bool) []FinishedSpan {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.spans) == 0 || (full && len(q.spans) < n) {
		return nil
	}
	if n > len(q.spans) {
		n = len(q.spans)
	}

	batch := make([]FinishedSpan, n)
	copy(batch, q.spans[:n])

	// Shift the remainder down so the backing array is reused.
	remaining := copy(q.spans, q.spans[n:])
	clear(q.spans[remaining:])
	q.spans = q.spans[:remaining]
	q.shrink()

	return batch
}

// drain removes every queued span.
func (q *spanQueue) drain() []FinishedSpan {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.spans) == 0 {
		return nil
	}
	all := q.spans
	q.spans = make([]FinishedSpan, 0, min(q.capacity, 32))
	return all
}

// shrink releases an oversized backing array. Caller holds mu.
func (q *spanQueue) shrink() {
	// Only shrink if buffer is very oversized to avoid allocation churn.
	if cap(q.spans) > 256 && len(q.spans) < cap(q.spans)/8 {
		newCap := cap(q.spans) / 4
		if newCap < 32 {
			newCap = 32
		}
		shrunk := make([]FinishedSpan, len(q.spans), newCap)
		copy(shrunk, q.spans)
		q.spans = shrunk
	}
}

// len returns the current number of buffered spans.
func (q *spanQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.spans)
}

// droppedCount returns the total number of spans dropped because the queue was full.
func (q *spanQueue) droppedCount() int64 {
	return q.dropped.Load()
}

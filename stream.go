package spanz

import (
	"context"
	"sync"
)

type eventKind uint8

const (
	eventSpanStarted eventKind = iota
	eventSpanEnded
	eventForceFlush
)

// event is one entry on the Tracer's ordered stream.
//
//nolint:govet // Field order optimized for readability
type event struct {
	parent   context.Context
	span     Span
	finished FinishedSpan
	kind     eventKind
}

// eventStream is an unbounded, ordered, multi-producer single-consumer queue.
// Publishing never blocks; the consumer wakes through a one-slot channel.
type eventStream struct {
	events []event
	ready  chan struct{}
	mu     sync.Mutex
	closed bool
}

func newEventStream() *eventStream {
	return &eventStream{
		events: make([]event, 0, 64),
		ready:  make(chan struct{}, 1),
	}
}

// publish appends ev. Returns false once the stream is closed.
func (s *eventStream) publish(ev event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.events = append(s.events, ev)
	s.mu.Unlock()

	s.wake()
	return true
}

// close stops accepting events. Already published events are still delivered.
func (s *eventStream) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wake()
}

func (s *eventStream) wake() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// next blocks until events are available and returns them in publish order.
// Returns nil once the stream is closed and drained.
func (s *eventStream) next() []event {
	for {
		s.mu.Lock()
		if len(s.events) > 0 {
			batch := s.events
			s.events = make([]event, 0, min(cap(batch), 1024))
			s.mu.Unlock()
			return batch
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return nil
		}
		<-s.ready
	}
}

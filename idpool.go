package spanz

import (
	"sync"
)

// IDPool keeps up to capacity IDs generated ahead of time so that StartSpan
// rarely waits on crypto/rand. A background goroutine tops the pool up until
// Close. Pools behind a PooledIDGenerator handed to a Tracer are closed by
// Tracer.Shutdown; IDs requested after that are generated on demand.
type IDPool[T any] struct {
	factory func() T
	ids     chan T
	stopCh  chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewIDPool starts a pool of the given capacity filled from factory.
func NewIDPool[T any](capacity int, factory func() T) *IDPool[T] {
	pool := &IDPool[T]{
		ids:     make(chan T, capacity),
		factory: factory,
		stopCh:  make(chan struct{}),
	}
	go pool.refill()
	return pool
}

// Get returns a pooled ID, or a freshly generated one when the pool is drained.
func (p *IDPool[T]) Get() T {
	select {
	case id := <-p.ids:
		return id
	default:
		return p.factory()
	}
}

func (p *IDPool[T]) refill() {
	for {
		next := p.factory()
		select {
		case <-p.stopCh:
			return
		case p.ids <- next:
		}
	}
}

// Close stops the refill goroutine. Get keeps working afterwards.
// Safe to call more than once.
func (p *IDPool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		close(p.stopCh)
		p.closed = true
	}
}

package fastpath

import (
	"sync/atomic"
)

// BufferSize must be a power of 2 for fast modulo
const BufferSize = 1024 * 8
const indexMask = BufferSize - 1

// Ring is a wait-free single-producer single-consumer ring buffer
// carrying FastEvents from the gateway handler to the engine worker.
// Padding isolates the producer and consumer indices onto separate
// cache lines.
type Ring struct {
	data [BufferSize]FastEvent

	_ [64]byte

	// Producer write index, only modified by the gateway handler
	head uint64

	_ [56]byte

	// Consumer read index, only modified by the worker
	tail uint64

	_ [56]byte
}

// NewRing creates an empty ring
func NewRing() *Ring {
	return &Ring{}
}

// Push adds an event. Single producer only. Returns false when full;
// the caller drops the event and bumps a metric rather than blocking
// the gateway reader.
func (r *Ring) Push(e *FastEvent) bool {
	head := atomic.LoadUint64(&r.head)
	tail := atomic.LoadUint64(&r.tail)
	if head-tail >= BufferSize {
		return false
	}

	r.data[head&indexMask] = *e
	atomic.StoreUint64(&r.head, head+1)
	return true
}

// Pop returns the next event. Single consumer only.
func (r *Ring) Pop() (FastEvent, bool) {
	tail := atomic.LoadUint64(&r.tail)
	head := atomic.LoadUint64(&r.head)
	if tail >= head {
		return FastEvent{}, false
	}

	item := r.data[tail&indexMask]
	atomic.StoreUint64(&r.tail, tail+1)
	return item, true
}

// Len returns the approximate backlog; racy but fine for metrics
func (r *Ring) Len() uint64 {
	return atomic.LoadUint64(&r.head) - atomic.LoadUint64(&r.tail)
}

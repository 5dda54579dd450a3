package spinqueue

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// cell represents one slot in the ring buffer.
type cell[T any] struct {
	sequence atomic.Uint64
	value    T
}

// Queue is a bounded, lock‑free, multi‑producer/multi‑consumer queue.
// Instead of parking on a condition variable, Put and Get spin with
// runtime.Gosched while the ring is full or empty.
type Queue[T any] struct {
	enqueuePos atomic.Uint64
	_          cpu.CacheLinePad
	dequeuePos atomic.Uint64
	_          cpu.CacheLinePad
	buffer     []cell[T]
	mask       uint64
	capacity   uint64
}

// New creates a Queue with the given capacity rounded up to a power of 2.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		panic("spinqueue: capacity must be positive")
	}
	size := uint64(1)
	for size < uint64(capacity) {
		size <<= 1
	}
	q := &Queue[T]{
		buffer:   make([]cell[T], size),
		mask:     size - 1,
		capacity: size,
	}
	for i := uint64(0); i < size; i++ {
		q.buffer[i].sequence.Store(i)
	}
	return q
}

// Put inserts a value, spinning until a slot is available.
func (q *Queue[T]) Put(val T) {
	for !q.TryPut(val) {
		runtime.Gosched()
	}
}

// Get removes the oldest value, spinning until one is available.
func (q *Queue[T]) Get() T {
	for {
		if v, ok := q.TryGet(); ok {
			return v
		}
		runtime.Gosched()
	}
}

// TryPut claims the next slot if it is free.
func (q *Queue[T]) TryPut(val T) bool {
	for {
		pos := q.enqueuePos.Load()
		c := &q.buffer[pos&q.mask]
		seq := c.sequence.Load()
		switch diff := int64(seq) - int64(pos); {
		case diff == 0:
			if q.enqueuePos.CompareAndSwap(pos, pos+1) {
				c.value = val
				c.sequence.Store(pos + 1)
				return true
			}
			// Lost the race for this slot, try the next one.
		case diff < 0:
			return false
		default:
			// Another producer advanced enqueuePos; reload.
		}
	}
}

// TryGet removes the oldest value if one is ready.
func (q *Queue[T]) TryGet() (T, bool) {
	for {
		pos := q.dequeuePos.Load()
		c := &q.buffer[pos&q.mask]
		seq := c.sequence.Load()
		switch diff := int64(seq) - int64(pos+1); {
		case diff == 0:
			if q.dequeuePos.CompareAndSwap(pos, pos+1) {
				v := c.value
				var zero T
				c.value = zero
				c.sequence.Store(pos + q.capacity)
				return v, true
			}
		case diff < 0:
			var zero T
			return zero, false
		default:
		}
	}
}

// Len returns an approximate count of used slots.
func (q *Queue[T]) Len() int {
	enq := q.enqueuePos.Load()
	deq := q.dequeuePos.Load()
	if deq > enq {
		return 0
	}
	return int(enq - deq)
}

// Cap returns the rounded-up capacity.
func (q *Queue[T]) Cap() int {
	return int(q.capacity)
}

// Package boundedqueue implements a fixed-capacity FIFO ring buffer guarded
// by a monitor: one mutex and two condition variables. Put blocks while the
// buffer is full and Get blocks while it is empty.
package boundedqueue

import (
	"fmt"
	"sync"
)

// State describes how full a queue is.
type State int

const (
	Empty State = iota
	Partial
	Full
)

func (s State) String() string {
	switch s {
	case Empty:
		return "EMPTY"
	case Partial:
		return "PARTIAL"
	case Full:
		return "FULL"
	default:
		return "UNKNOWN"
	}
}

// Queue is a bounded, blocking, multi-producer/multi-consumer FIFO queue.
// The zero value is not usable; create queues with New or NewFilled.
type Queue[T any] struct {
	mu       sync.Mutex
	notFull  sync.Cond
	notEmpty sync.Cond

	buf   []T
	head  int // next slot to read
	tail  int // next slot to write
	count int
}

// New creates an empty queue holding at most capacity items.
// It panics if capacity is less than 1.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		panic(fmt.Sprintf("boundedqueue: capacity must be positive, got %d", capacity))
	}
	q := &Queue[T]{buf: make([]T, capacity)}
	q.notFull.L = &q.mu
	q.notEmpty.L = &q.mu
	return q
}

// NewFilled creates a full queue whose capacity is len(items). Items are
// returned by Get in the order given.
func NewFilled[T any](items ...T) *Queue[T] {
	q := New[T](len(items))
	copy(q.buf, items)
	q.count = len(items)
	// tail wraps to 0 on a full buffer.
	return q
}

// Put appends item, blocking while the queue is full.
func (q *Queue[T]) Put(item T) {
	q.mu.Lock()
	for q.count == len(q.buf) {
		q.notFull.Wait()
	}
	q.push(item)
	q.mu.Unlock()
	q.notEmpty.Signal()
}

// Get removes and returns the oldest item, blocking while the queue is empty.
func (q *Queue[T]) Get() T {
	q.mu.Lock()
	for q.count == 0 {
		q.notEmpty.Wait()
	}
	item := q.pop()
	q.mu.Unlock()
	q.notFull.Signal()
	return item
}

// TryPut appends item if there is a free slot and reports whether it did.
func (q *Queue[T]) TryPut(item T) bool {
	q.mu.Lock()
	if q.count == len(q.buf) {
		q.mu.Unlock()
		return false
	}
	q.push(item)
	q.mu.Unlock()
	q.notEmpty.Signal()
	return true
}

// TryGet removes the oldest item if there is one.
func (q *Queue[T]) TryGet() (T, bool) {
	q.mu.Lock()
	if q.count == 0 {
		q.mu.Unlock()
		var zero T
		return zero, false
	}
	item := q.pop()
	q.mu.Unlock()
	q.notFull.Signal()
	return item, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the capacity fixed at construction.
func (q *Queue[T]) Cap() int {
	return len(q.buf)
}

// FreeSlots returns how many more items can be put before Put blocks.
func (q *Queue[T]) FreeSlots() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf) - q.count
}

// State reports whether the queue is empty, partially filled or full.
func (q *Queue[T]) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch q.count {
	case 0:
		return Empty
	case len(q.buf):
		return Full
	default:
		return Partial
	}
}

// push and pop must be called with q.mu held.
func (q *Queue[T]) push(item T) {
	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
	q.check()
}

func (q *Queue[T]) pop() T {
	var zero T
	item := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.check()
	return item
}

func (q *Queue[T]) check() {
	n := len(q.buf)
	if q.count < 0 || q.count > n {
		panic(fmt.Sprintf("boundedqueue: count %d outside [0, %d]", q.count, n))
	}
	if q.head < 0 || q.head >= n || q.tail < 0 || q.tail >= n {
		panic(fmt.Sprintf("boundedqueue: head %d / tail %d outside [0, %d)", q.head, q.tail, n))
	}
	if (q.head+q.count)%n != q.tail {
		panic(fmt.Sprintf("boundedqueue: head %d + count %d does not reach tail %d", q.head, q.count, q.tail))
	}
}

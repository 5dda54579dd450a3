package buffered

// Queue is a bounded queue backed by a buffered channel. It is the baseline
// the monitor queue is compared against in cmd/bench.
type Queue[T any] struct {
	ch chan T
}

func New[T any](capacity int) *Queue[T] {
	// A zero-capacity channel is a rendezvous, not a buffer.
	if capacity < 1 {
		panic("buffered: capacity must be positive")
	}
	return &Queue[T]{
		ch: make(chan T, capacity),
	}
}

func (q *Queue[T]) Put(val T) {
	q.ch <- val
}

func (q *Queue[T]) Get() T {
	return <-q.ch
}

func (q *Queue[T]) TryPut(val T) bool {
	select {
	case q.ch <- val:
		return true
	default:
		return false
	}
}

func (q *Queue[T]) TryGet() (val T, ok bool) {
	select {
	case val = <-q.ch:
		return val, true
	default:
		return val, false
	}
}

func (q *Queue[T]) Len() int {
	return len(q.ch)
}

func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}

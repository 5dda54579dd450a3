package queue

// Interface is the contract every queue in this repository satisfies.
// Drivers (the worker pool, the producer/consumer testbench and the
// benchmark) are written against it and never against a concrete queue.
type Interface[T any] interface {
	// Put adds an element to the queue and blocks while the queue is full.
	Put(T)

	// Get removes and returns the oldest element, blocking while the queue is empty.
	Get() T

	// TryPut adds an element if there is room and reports whether it did.
	TryPut(T) bool

	// TryGet removes and returns the oldest element if there is one.
	// If the queue is empty it returns the zero T and false.
	TryGet() (T, bool)

	// Len returns how many elements are currently queued.
	Len() int

	// Cap returns the fixed capacity of the queue.
	Cap() int
}

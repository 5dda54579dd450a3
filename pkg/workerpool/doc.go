// Package workerpool runs a fixed number of workers that share a single
// bounded queue as their only coordination point.
//
// Each worker loops:
//
//	work(ctx, w, Outside, zero)  // e.g. walk around the park
//	item := q.Get()              // blocks while the queue is empty
//	work(ctx, w, Inside, item)   // e.g. ride the car
//	q.Put(item)                  // blocks while the queue is full
//
// # Lifetime
//
// With Config.Iterations > 0 every worker stops after that many cycles and
// Wait returns once all of them have. With Iterations == 0 workers run until
// the context passed to Start is cancelled; a worker holding an item when
// that happens puts it back before exiting.
//
// The queue itself has no cancellation. When the context can be cancelled,
// workers acquire by polling TryGet with a short capped backoff instead of
// parking in Get, so a cancelled pool returns even if the queue never
// refills. With a context that is never done (context.Background) workers
// park in Get; if items are lost to failures such a pool can block forever.
//
// # Failures
//
// A work function error other than the context's own ends only that worker.
// If the worker held an item at the time, the item is not returned to the
// queue and Dropped counts it. Wait reports every failure through errors.Join.
package workerpool

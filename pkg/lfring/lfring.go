// Package lfring adapts the sharded lock-free ring from
// github.com/randomizedcoder/go-lock-free-ring to the blocking queue
// contract used throughout this module.
//
// The underlying ring is multi-producer/single-consumer and orders items
// per shard only, so the adapter serialises readers with a mutex and makes
// no global FIFO promise when more than one shard is configured.
//
// The shard count must be a power of two and every shard holds
// capacity/shards items, so the usable capacity is rounded down to a
// multiple of the shard count. Producers pick shards round-robin, so
// TryPut can report a full queue while other shards still have room.
package lfring

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	ring "github.com/randomizedcoder/go-lock-free-ring"
)

// shardedRing is the subset of the ring API the adapter relies on.
type shardedRing interface {
	Write(producerID uint64, value any) bool
	TryRead() (any, bool)
}

// Queue is a bounded queue on top of a sharded lock-free ring.
type Queue[T any] struct {
	r        shardedRing
	shards   uint64
	capacity int

	next   atomic.Uint64 // round-robin shard selector for producers
	count  atomic.Int64
	readMu sync.Mutex
}

// New creates a queue of about capacity items split over shards.
// It panics unless shards is a power of two no larger than capacity.
func New[T any](capacity, shards int) *Queue[T] {
	if shards < 1 || shards&(shards-1) != 0 {
		panic(fmt.Sprintf("lfring: shards %d must be a power of two", shards))
	}
	if capacity < shards {
		panic(fmt.Sprintf("lfring: capacity %d is smaller than shards %d", capacity, shards))
	}
	capacity -= capacity % shards
	r, err := ring.NewShardedRing(uint64(capacity), uint64(shards))
	if err != nil {
		panic(fmt.Sprintf("lfring: %v", err))
	}
	return &Queue[T]{r: r, shards: uint64(shards), capacity: capacity}
}

func (q *Queue[T]) Put(val T) {
	for !q.TryPut(val) {
		runtime.Gosched()
	}
}

func (q *Queue[T]) Get() T {
	for {
		if v, ok := q.TryGet(); ok {
			return v
		}
		runtime.Gosched()
	}
}

func (q *Queue[T]) TryPut(val T) bool {
	if !q.r.Write(q.next.Add(1)%q.shards, val) {
		return false
	}
	q.count.Add(1)
	return true
}

func (q *Queue[T]) TryGet() (T, bool) {
	q.readMu.Lock()
	v, ok := q.r.TryRead()
	q.readMu.Unlock()
	if !ok {
		var zero T
		return zero, false
	}
	q.count.Add(-1)
	return v.(T), true
}

// Len is approximate while producers and consumers are running.
func (q *Queue[T]) Len() int {
	n := q.count.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Cap returns the usable capacity after rounding to whole shards.
func (q *Queue[T]) Cap() int {
	return q.capacity
}

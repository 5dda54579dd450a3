// Package barrier provides a reusable rendezvous point for a fixed number
// of goroutines, built on the same mutex plus condition variable monitor as
// the bounded queue.
package barrier

import (
	"fmt"
	"sync"
)

// Barrier blocks callers of Wait until parties of them have arrived.
type Barrier struct {
	mu         sync.Mutex
	cond       sync.Cond
	parties    int
	arrived    int
	generation uint64
}

// New creates a barrier for parties goroutines. It panics if parties < 1.
func New(parties int) *Barrier {
	if parties < 1 {
		panic(fmt.Sprintf("barrier: parties must be positive, got %d", parties))
	}
	b := &Barrier{parties: parties}
	b.cond.L = &b.mu
	return b
}

// Wait blocks until all parties of the current generation have called it.
// It returns the caller's 1-based arrival order; the last arrival releases
// everyone and starts a new generation.
func (b *Barrier) Wait() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.arrived++
	order := b.arrived
	if b.arrived == b.parties {
		b.arrived = 0
		b.generation++
		b.cond.Broadcast()
		return order
	}

	gen := b.generation
	for gen == b.generation {
		b.cond.Wait()
	}
	return order
}

// Parties returns the number of goroutines the barrier waits for.
func (b *Barrier) Parties() int {
	return b.parties
}

// Waiting returns how many goroutines are blocked in the current generation.
func (b *Barrier) Waiting() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.arrived
}

package testbench

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/i5heu/GoMonitorQueue/internal/queue"
)

// Config is only about concurrency: how many producers, how many consumers.
type Config struct {
	NumProducers int
	NumConsumers int
}

// RunCounted spawns NumProducers producers that each put itemsPerProducer
// values made by gen, and NumConsumers consumers that together take exactly
// NumProducers*itemsPerProducer values with blocking Get; the last consumer
// takes the remainder. consume is called for every value taken. RunCounted
// returns once every producer and consumer has finished.
func RunCounted[T any, Q queue.Interface[T]](
	q Q,
	cfg Config,
	itemsPerProducer int,
	gen func(producer, seq int) T,
	consume func(consumer int, item T),
) {
	if cfg.NumProducers < 1 || cfg.NumConsumers < 1 || itemsPerProducer < 0 {
		panic("testbench: need at least one producer, one consumer and a non-negative item count")
	}
	total := cfg.NumProducers * itemsPerProducer

	var prodWg sync.WaitGroup
	prodWg.Add(cfg.NumProducers)
	for p := 1; p <= cfg.NumProducers; p++ {
		go func(p int) {
			defer prodWg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				q.Put(gen(p, i))
			}
		}(p)
	}

	perConsumer := total / cfg.NumConsumers
	remainder := total % cfg.NumConsumers

	var consWg sync.WaitGroup
	consWg.Add(cfg.NumConsumers)
	for c := 1; c <= cfg.NumConsumers; c++ {
		count := perConsumer
		if c == cfg.NumConsumers {
			count += remainder
		}
		go func(c, count int) {
			defer consWg.Done()
			for i := 0; i < count; i++ {
				item := q.Get()
				if consume != nil {
					consume(c, item)
				}
			}
		}(c, count)
	}

	prodWg.Wait()
	consWg.Wait()
}

// RunTimedTest spawns producers and consumers that run for the specified
// duration, measuring how many messages are actually put/taken in that
// window. Once the context expires, producers stop and consumers drain any
// remaining messages in the queue.
// Returns the total messages put, total consumed, and the actual elapsed time.
func RunTimedTest[T any, Q queue.Interface[T]](
	q Q,
	cfg Config,
	testDuration time.Duration,
	valueGenerator func(int) T,
) (producedCount int64, consumedCount int64, elapsed time.Duration) {

	ctx, cancel := context.WithTimeout(context.Background(), testDuration)
	defer cancel()

	var totalProduced int64
	var totalConsumed int64

	start := time.Now()

	var msgIndex int64
	var prodWg sync.WaitGroup
	prodWg.Add(cfg.NumProducers)

	// productionDone is set to 1 when the test duration expires,
	// producersExited once every producer has returned.
	var productionDone, producersExited int32

	go func() {
		<-ctx.Done()
		atomic.StoreInt32(&productionDone, 1)
	}()

	// Producers use TryPut so a full queue cannot pin them past the deadline.
	for i := 0; i < cfg.NumProducers; i++ {
		go func() {
			defer prodWg.Done()
			for atomic.LoadInt32(&productionDone) == 0 {
				idx := atomic.AddInt64(&msgIndex, 1) - 1
				msg := valueGenerator(int(idx))
				for !q.TryPut(msg) {
					if atomic.LoadInt32(&productionDone) == 1 {
						return
					}
					runtime.Gosched()
				}
				atomic.AddInt64(&totalProduced, 1)
			}
		}()
	}

	var consWg sync.WaitGroup
	consWg.Add(cfg.NumConsumers)
	for i := 0; i < cfg.NumConsumers; i++ {
		go func() {
			defer consWg.Done()
			for {
				if _, ok := q.TryGet(); ok {
					atomic.AddInt64(&totalConsumed, 1)
					continue
				}
				// Empty: stop only once no producer can put anything more.
				if atomic.LoadInt32(&producersExited) == 1 {
					if _, ok := q.TryGet(); ok {
						atomic.AddInt64(&totalConsumed, 1)
						continue
					}
					return
				}
				runtime.Gosched()
			}
		}()
	}

	<-ctx.Done()
	prodWg.Wait()
	atomic.StoreInt32(&producersExited, 1)
	consWg.Wait()

	elapsed = time.Since(start)
	producedCount = atomic.LoadInt64(&totalProduced)
	consumedCount = atomic.LoadInt64(&totalConsumed)
	return producedCount, consumedCount, elapsed
}

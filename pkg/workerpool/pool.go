package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/i5heu/GoMonitorQueue/internal/metrics"
	"github.com/i5heu/GoMonitorQueue/internal/queue"
)

var (
	ErrInvalidConfig  = errors.New("workerpool: invalid config")
	ErrAlreadyStarted = errors.New("workerpool: already started")
	ErrNotStarted     = errors.New("workerpool: not started")
)

// Phase tells a WorkFunc which side of the queue it is running on.
type Phase int

const (
	// Outside is the work done before acquiring an item.
	Outside Phase = iota
	// Inside is the work done while holding an item.
	Inside
)

func (p Phase) String() string {
	if p == Inside {
		return "inside"
	}
	return "outside"
}

// Worker identifies one execution unit. ID is its 1-based spawn ordinal;
// Iteration counts completed get/put cycles.
type Worker struct {
	ID        int
	Iteration int
}

// WorkFunc is the unit of work performed between queue operations. For the
// Outside phase item is the zero value. It must not touch the queue.
type WorkFunc[T any] func(ctx context.Context, w Worker, phase Phase, item T) error

// Config sets the size and lifetime of a pool.
type Config struct {
	Workers    int // number of workers, at least 1
	Iterations int // get/put cycles per worker; 0 runs until the context is done
}

// Pool drives a fixed set of workers that share one queue.
type Pool[T any] struct {
	name  string
	cfg   Config
	q     queue.Interface[T]
	work  WorkFunc[T]
	log   *slog.Logger
	stats *metrics.Pool
	obs   Observer[T]

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
	errs    []error

	active  atomic.Int64
	inUse   atomic.Int64
	dropped atomic.Int64
}

// New validates cfg and prepares a pool. No goroutine runs until Start.
func New[T any](q queue.Interface[T], work WorkFunc[T], cfg Config, opts ...Option) (*Pool[T], error) {
	if q == nil || work == nil {
		return nil, fmt.Errorf("%w: queue and work function are required", ErrInvalidConfig)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, cfg.Workers)
	}
	if cfg.Iterations < 0 {
		return nil, fmt.Errorf("%w: iterations must be non-negative, got %d", ErrInvalidConfig, cfg.Iterations)
	}

	o := options{name: "pool", log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pool[T]{
		name:  o.name,
		cfg:   cfg,
		q:     q,
		work:  work,
		log:   o.log,
		stats: o.metrics,
	}
	if obs, ok := o.observer.(Observer[T]); ok {
		p.obs = obs
	}
	p.stats.SetCapacity(p.name, q.Cap())
	return p, nil
}

// Start spawns the workers and returns immediately.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	p.wg.Add(p.cfg.Workers)
	for id := 1; id <= p.cfg.Workers; id++ {
		p.active.Add(1)
		p.stats.WorkerStarted(p.name)
		go p.worker(ctx, id)
	}
	p.log.Debug("worker pool started", "pool", p.name, "workers", p.cfg.Workers, "iterations", p.cfg.Iterations)
	return nil
}

// Wait blocks until every worker has finished and returns their failures.
func (p *Pool[T]) Wait() error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

// Run starts the pool and waits for it.
func (p *Pool[T]) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	return p.Wait()
}

// Active returns the number of running workers.
func (p *Pool[T]) Active() int {
	return int(p.active.Load())
}

// InUse returns the number of items currently held by workers.
func (p *Pool[T]) InUse() int {
	return int(p.inUse.Load())
}

// Dropped returns the number of items lost with failed workers.
func (p *Pool[T]) Dropped() int {
	return int(p.dropped.Load())
}

// Name returns the label used in logs and metrics.
func (p *Pool[T]) Name() string {
	return p.name
}

func (p *Pool[T]) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	err := p.loop(ctx, id)

	p.active.Add(-1)
	p.stats.WorkerStopped(p.name, err != nil)
	if p.obs != nil {
		p.obs.Stopped(id, err)
	}
	if err != nil {
		p.log.Warn("worker stopped", "pool", p.name, "worker", id, "err", err)
		p.mu.Lock()
		p.errs = append(p.errs, err)
		p.mu.Unlock()
		return
	}
	p.log.Debug("worker finished", "pool", p.name, "worker", id)
}

func (p *Pool[T]) loop(ctx context.Context, id int) error {
	w := Worker{ID: id}
	var zero T
	for ; p.cfg.Iterations == 0 || w.Iteration < p.cfg.Iterations; w.Iteration++ {
		if ctx.Err() != nil {
			return nil
		}
		if err := p.work(ctx, w, Outside, zero); err != nil {
			if isContextErr(ctx, err) {
				return nil
			}
			return fmt.Errorf("worker %d: %s work: %w", id, Outside, err)
		}
		if ctx.Err() != nil {
			return nil
		}

		start := time.Now()
		item, ok := p.acquire(ctx)
		if !ok {
			return nil
		}
		p.inUse.Add(1)
		p.stats.ObserveAcquire(p.name, time.Since(start), p.q.Len())
		if p.obs != nil {
			p.obs.Acquired(id, item)
		}

		err := p.work(ctx, w, Inside, item)
		if err != nil && !isContextErr(ctx, err) {
			// The item leaves with the failed worker.
			p.dropped.Add(1)
			p.inUse.Add(-1)
			p.stats.ObserveDrop(p.name)
			return fmt.Errorf("worker %d: %s work: %w", id, Inside, err)
		}

		p.q.Put(item)
		p.inUse.Add(-1)
		p.stats.ObserveRelease(p.name, p.q.Len())
		if p.obs != nil {
			p.obs.Released(id, item)
		}
		if err != nil {
			return nil
		}
	}
	return nil
}

const (
	minAcquireBackoff = 50 * time.Microsecond
	maxAcquireBackoff = 5 * time.Millisecond
)

// acquire takes an item from the queue. With a context that can never be
// cancelled it parks in q.Get. Otherwise it polls with TryGet and a capped
// exponential backoff so that cancellation is noticed even when the queue
// stays empty forever; ok is false once ctx is done.
func (p *Pool[T]) acquire(ctx context.Context) (item T, ok bool) {
	if ctx.Done() == nil {
		return p.q.Get(), true
	}
	if item, ok = p.q.TryGet(); ok {
		return item, true
	}

	backoff := minAcquireBackoff
	t := time.NewTimer(backoff)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return item, false
		case <-t.C:
		}
		if item, ok = p.q.TryGet(); ok {
			return item, true
		}
		backoff = min(2*backoff, maxAcquireBackoff)
		t.Reset(backoff)
	}
}

func isContextErr(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

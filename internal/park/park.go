// Package park simulates riders sharing a fleet of bumper cars. Cars are
// the items of a bounded queue, riders are workers of a pool: a rider walks
// around, queues for a car, rides it and hands it back.
package park

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/i5heu/GoMonitorQueue/internal/events"
	"github.com/i5heu/GoMonitorQueue/internal/metrics"
	"github.com/i5heu/GoMonitorQueue/pkg/boundedqueue"
	"github.com/i5heu/GoMonitorQueue/pkg/workerpool"
)

var ErrInvalidConfig = errors.New("park: invalid config")

// Car identifies a bumper car, numbered from 1.
type Car int

// Span is an inclusive range of durations a walk or ride may take.
type Span struct {
	Min time.Duration
	Max time.Duration
}

// Pick returns a random duration within the span.
func (s Span) Pick() time.Duration {
	if s.Max <= s.Min {
		return s.Min
	}
	return s.Min + rand.N(s.Max-s.Min+1)
}

// Config describes a park.
type Config struct {
	Cars   int
	Riders int
	Walk   Span
	Ride   Span
}

// DefaultConfig mirrors the classic exercise: walks of 1-10s, rides of 1-5s.
func DefaultConfig() Config {
	return Config{
		Cars:   3,
		Riders: 5,
		Walk:   Span{Min: time.Second, Max: 10 * time.Second},
		Ride:   Span{Min: time.Second, Max: 5 * time.Second},
	}
}

// Validate checks the fleet, the crowd and both spans.
func (c Config) Validate() error {
	if c.Cars < 1 {
		return fmt.Errorf("%w: cars must be at least 1, got %d", ErrInvalidConfig, c.Cars)
	}
	if c.Riders < 1 {
		return fmt.Errorf("%w: riders must be at least 1, got %d", ErrInvalidConfig, c.Riders)
	}
	for name, s := range map[string]Span{"walk": c.Walk, "ride": c.Ride} {
		if s.Min < 0 || s.Max < s.Min {
			return fmt.Errorf("%w: %s span [%s, %s] is not a valid range", ErrInvalidConfig, name, s.Min, s.Max)
		}
	}
	return nil
}

// Snapshot is a point-in-time view of the park.
// IdleCars + CarsInUse + LostCars always equals Cars.
type Snapshot struct {
	Cars         int   `json:"cars"`
	Riders       int   `json:"riders"`
	IdleCars     int   `json:"idle_cars"`
	CarsInUse    int   `json:"cars_in_use"`
	LostCars     int   `json:"lost_cars"`
	ActiveRiders int   `json:"active_riders"`
	Rides        int64 `json:"rides"`
}

// Park owns the car queue and the rider pool.
type Park struct {
	cfg   Config
	cars  *boundedqueue.Queue[Car]
	pool  *workerpool.Pool[Car]
	log   *slog.Logger
	bus   *events.Bus
	sleep func(ctx context.Context, d time.Duration) error

	rides atomic.Int64
}

// Option configures a Park.
type Option func(*Park)

func WithLogger(l *slog.Logger) Option {
	return func(p *Park) {
		if l != nil {
			p.log = l
		}
	}
}

// WithEvents publishes rider activity on bus.
func WithEvents(bus *events.Bus) Option {
	return func(p *Park) { p.bus = bus }
}

// WithSleeper replaces the context-aware sleep used for walks and rides.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Park) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// New validates cfg and parks every car. m may be nil.
func New(cfg Config, m *metrics.Pool, opts ...Option) (*Park, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fleet := make([]Car, cfg.Cars)
	for i := range fleet {
		fleet[i] = Car(i + 1)
	}

	p := &Park{
		cfg:   cfg,
		cars:  boundedqueue.NewFilled(fleet...),
		log:   slog.New(slog.DiscardHandler),
		sleep: Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}

	pool, err := workerpool.New[Car](p.cars, p.visit, workerpool.Config{Workers: cfg.Riders},
		workerpool.WithName("bumpercars"),
		workerpool.WithLogger(p.log),
		workerpool.WithMetrics(m),
		workerpool.WithObserver[Car](p),
	)
	if err != nil {
		return nil, fmt.Errorf("park: %w", err)
	}
	p.pool = pool
	return p, nil
}

// Run opens the park and blocks until ctx is done and every rider has
// handed back their car.
func (p *Park) Run(ctx context.Context) error {
	p.log.Info("park open", "cars", p.cfg.Cars, "riders", p.cfg.Riders)
	err := p.pool.Run(ctx)
	p.log.Info("park closed", "rides", p.rides.Load(), "idle_cars", p.cars.Len())
	return err
}

// Snapshot reports the current occupancy. A car is idle while queued, lost
// once its rider failed and in use otherwise.
func (p *Park) Snapshot() Snapshot {
	idle := p.cars.Len()
	lost := p.pool.Dropped()
	return Snapshot{
		Cars:         p.cfg.Cars,
		Riders:       p.cfg.Riders,
		IdleCars:     idle,
		CarsInUse:    max(p.cfg.Cars-idle-lost, 0),
		LostCars:     lost,
		ActiveRiders: p.pool.Active(),
		Rides:        p.rides.Load(),
	}
}

// visit is the rider's work outside and inside a car.
func (p *Park) visit(ctx context.Context, w workerpool.Worker, phase workerpool.Phase, car Car) error {
	if phase == workerpool.Outside {
		d := p.cfg.Walk.Pick()
		p.log.Info(fmt.Sprintf("Rider %d is walking around the park.", w.ID), "rider", w.ID, "for", d)
		p.bus.Publish(events.New(events.RiderWalking, w.ID, 0).WithDuration(d))
		return p.sleep(ctx, d)
	}

	// Closing time: the car goes straight back without a ride.
	if err := ctx.Err(); err != nil {
		return err
	}
	d := p.cfg.Ride.Pick()
	p.log.Info(fmt.Sprintf("Rider %d is now riding in car %d.", w.ID, car), "rider", w.ID, "car", int(car), "for", d)
	p.bus.Publish(events.New(events.RiderRiding, w.ID, int(car)).WithDuration(d))
	if err := p.sleep(ctx, d); err != nil {
		return err
	}
	p.rides.Add(1)
	return nil
}

// Acquired, Released and Stopped make Park a workerpool.Observer.
func (p *Park) Acquired(int, Car) {}

func (p *Park) Released(rider int, car Car) {
	p.log.Info(fmt.Sprintf("Rider %d returned car %d.", rider, car), "rider", rider, "car", int(car))
	p.bus.Publish(events.New(events.RiderReturned, rider, int(car)))
}

func (p *Park) Stopped(rider int, err error) {
	p.bus.Publish(events.New(events.RiderStopped, rider, 0).WithError(err))
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

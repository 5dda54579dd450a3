package park

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i5heu/GoMonitorQueue/internal/events"
	"github.com/i5heu/GoMonitorQueue/internal/logger"
	"github.com/i5heu/GoMonitorQueue/internal/metrics"
	"github.com/i5heu/GoMonitorQueue/pkg/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		Cars:   3,
		Riders: 5,
		Walk:   Span{Min: time.Millisecond, Max: 3 * time.Millisecond},
		Ride:   Span{Min: time.Millisecond, Max: 2 * time.Millisecond},
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := []Config{
		{Cars: 0, Riders: 1},
		{Cars: 1, Riders: 0},
		{Cars: 1, Riders: 1, Walk: Span{Min: time.Second, Max: time.Millisecond}},
		{Cars: 1, Riders: 1, Ride: Span{Min: -time.Second}},
	}
	for _, c := range bad {
		assert.ErrorIs(t, c.Validate(), ErrInvalidConfig, "%+v", c)
		_, err := New(c, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}
}

func TestSpanPick(t *testing.T) {
	s := Span{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond}
	for i := 0; i < 1000; i++ {
		d := s.Pick()
		require.GreaterOrEqual(t, d, s.Min)
		require.LessOrEqual(t, d, s.Max)
	}
	assert.Equal(t, time.Second, Span{Min: time.Second, Max: time.Second}.Pick())
}

func TestParkReturnsEveryCar(t *testing.T) {
	cfg := fastConfig()
	reg := prometheus.NewRegistry()
	m := metrics.NewPool(reg)

	p, err := New(cfg, m)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	var maxInCar, samples atomic.Int64
	var broken *Snapshot // written by the sampler only
	stop := make(chan struct{})
	sampled := make(chan struct{})
	go func() {
		defer close(sampled)
		for {
			select {
			case <-stop:
				return
			default:
			}
			s := p.Snapshot()
			samples.Add(1)
			if broken == nil && s.IdleCars+s.CarsInUse+s.LostCars != cfg.Cars {
				broken = &s
			}
			if n := int64(s.CarsInUse); n > maxInCar.Load() {
				maxInCar.Store(n)
			}
			runtime.Gosched()
		}
	}()

	require.NoError(t, p.Run(ctx))
	close(stop)
	<-sampled

	assert.Nil(t, broken, "fleet total drifted during the run")
	assert.Positive(t, samples.Load())

	s := p.Snapshot()
	assert.Equal(t, cfg.Cars, s.IdleCars)
	assert.Zero(t, s.LostCars)
	assert.Zero(t, s.CarsInUse)
	assert.Zero(t, s.ActiveRiders)
	assert.Positive(t, s.Rides)
	assert.LessOrEqual(t, maxInCar.Load(), int64(cfg.Cars))
	// a ride cut short at closing still hands its car back
	assert.LessOrEqual(t, float64(s.Rides), testutil.ToFloat64(m.Released.WithLabelValues("bumpercars")))
}

func TestParkNarration(t *testing.T) {
	var buf bytes.Buffer
	cfg := fastConfig()
	cfg.Cars, cfg.Riders = 1, 2

	bus := events.NewBus()
	sub := bus.Subscribe()

	p, err := New(cfg, nil,
		WithLogger(logger.New(&buf, slog.LevelInfo)),
		WithEvents(bus),
		WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	out := buf.String()
	assert.Contains(t, out, "is walking around the park.")
	assert.Contains(t, out, "is now riding in car 1.")
	assert.Contains(t, out, "returned car 1.")

	kinds := map[events.Type]bool{}
	for len(sub) > 0 {
		kinds[(<-sub).Type] = true
	}
	assert.True(t, kinds[events.RiderWalking])
	assert.True(t, kinds[events.RiderRiding])
	assert.True(t, kinds[events.RiderReturned])
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}

func TestBrokenCarDoesNotHangClosing(t *testing.T) {
	const rideTime = 7 * time.Millisecond
	cfg := Config{
		Cars:   1,
		Riders: 2,
		Walk:   Span{Min: time.Millisecond, Max: time.Millisecond},
		Ride:   Span{Min: rideTime, Max: rideTime},
	}
	breakdown := errors.New("engine fire")

	p, err := New(cfg, nil, WithSleeper(func(ctx context.Context, d time.Duration) error {
		if d == rideTime {
			return breakdown
		}
		return Sleep(ctx, d)
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, breakdown)
	case <-time.After(5 * time.Second):
		t.Fatal("park never closed")
	}

	s := p.Snapshot()
	assert.Equal(t, 1, s.LostCars)
	assert.Zero(t, s.IdleCars)
	assert.Zero(t, s.CarsInUse)
	assert.Zero(t, s.Rides)
}

func TestNoRideAfterClosing(t *testing.T) {
	var buf bytes.Buffer
	bus := events.NewBus()
	sub := bus.Subscribe()

	p, err := New(fastConfig(), nil, WithLogger(logger.New(&buf, slog.LevelInfo)), WithEvents(bus))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.visit(ctx, workerpool.Worker{ID: 4}, workerpool.Inside, Car(2))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, buf.String(), "is now riding")
	assert.Empty(t, sub)
	assert.Zero(t, p.Snapshot().Rides)
}

package workerpool

import (
	"log/slog"

	"github.com/i5heu/GoMonitorQueue/internal/metrics"
)

// Observer is notified as items move between the queue and workers.
// Callbacks run on the worker goroutine, outside the queue lock.
type Observer[T any] interface {
	Acquired(worker int, item T)
	Released(worker int, item T)
	Stopped(worker int, err error)
}

type options struct {
	name     string
	log      *slog.Logger
	metrics  *metrics.Pool
	observer any
}

// Option configures a Pool.
type Option func(*options)

// WithName sets the pool label used in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func WithMetrics(m *metrics.Pool) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithObserver registers an observer. Its item type must match the pool's.
func WithObserver[T any](obs Observer[T]) Option {
	return func(o *options) {
		o.observer = obs
	}
}

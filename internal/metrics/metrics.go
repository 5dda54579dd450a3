package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pool holds the Prometheus collectors for worker pools and the queues
// they share. Every series is labelled with the pool name.
type Pool struct {
	Acquired     *prometheus.CounterVec
	Released     *prometheus.CounterVec
	Dropped      *prometheus.CounterVec
	WorkerErrors *prometheus.CounterVec
	AcquireWait  *prometheus.HistogramVec
	InUse        *prometheus.GaugeVec
	Active       *prometheus.GaugeVec
	QueueLen     *prometheus.GaugeVec
	QueueCap     *prometheus.GaugeVec
}

// NewPool creates the collectors and registers them with reg.
// Use a fresh prometheus.NewRegistry() per test to avoid duplicate registration.
func NewPool(reg prometheus.Registerer) *Pool {
	f := promauto.With(reg)
	return &Pool{
		Acquired: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitorqueue_items_acquired_total",
				Help: "Items taken from the queue by workers",
			},
			[]string{"pool_name"},
		),
		Released: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitorqueue_items_released_total",
				Help: "Items put back into the queue by workers",
			},
			[]string{"pool_name"},
		),
		Dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitorqueue_items_dropped_total",
				Help: "Items never returned because their worker failed while holding them",
			},
			[]string{"pool_name"},
		),
		WorkerErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitorqueue_worker_failures_total",
				Help: "Workers terminated by an error from their work function",
			},
			[]string{"pool_name"},
		),
		AcquireWait: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "monitorqueue_acquire_wait_seconds",
				Help:    "Time workers spent blocked in Get",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"pool_name"},
		),
		InUse: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "monitorqueue_items_in_use",
				Help: "Items currently held by workers",
			},
			[]string{"pool_name"},
		),
		Active: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "monitorqueue_active_workers",
				Help: "Workers currently running",
			},
			[]string{"pool_name"},
		),
		QueueLen: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "monitorqueue_queue_length",
				Help: "Items sitting in the queue, sampled after each operation",
			},
			[]string{"pool_name"},
		),
		QueueCap: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "monitorqueue_queue_capacity",
				Help: "Capacity of the queue",
			},
			[]string{"pool_name"},
		),
	}
}

// ObserveAcquire records a successful Get.
func (m *Pool) ObserveAcquire(pool string, waited time.Duration, queueLen int) {
	if m == nil {
		return
	}
	m.Acquired.WithLabelValues(pool).Inc()
	m.AcquireWait.WithLabelValues(pool).Observe(waited.Seconds())
	m.InUse.WithLabelValues(pool).Inc()
	m.QueueLen.WithLabelValues(pool).Set(float64(queueLen))
}

// ObserveRelease records a Put of a previously acquired item.
func (m *Pool) ObserveRelease(pool string, queueLen int) {
	if m == nil {
		return
	}
	m.Released.WithLabelValues(pool).Inc()
	m.InUse.WithLabelValues(pool).Dec()
	m.QueueLen.WithLabelValues(pool).Set(float64(queueLen))
}

// ObserveDrop records an item lost with its failed worker.
func (m *Pool) ObserveDrop(pool string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(pool).Inc()
	m.InUse.WithLabelValues(pool).Dec()
}

// WorkerStarted and WorkerStopped track the active worker gauge.
func (m *Pool) WorkerStarted(pool string) {
	if m == nil {
		return
	}
	m.Active.WithLabelValues(pool).Inc()
}

func (m *Pool) WorkerStopped(pool string, failed bool) {
	if m == nil {
		return
	}
	m.Active.WithLabelValues(pool).Dec()
	if failed {
		m.WorkerErrors.WithLabelValues(pool).Inc()
	}
}

// SetCapacity publishes the queue capacity.
func (m *Pool) SetCapacity(pool string, capacity int) {
	if m == nil {
		return
	}
	m.QueueCap.WithLabelValues(pool).Set(float64(capacity))
}

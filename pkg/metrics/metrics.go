// Package metrics exports pool behaviour as Prometheus metrics.
//
// PoolMetrics implements pool.Observer: every lifecycle event increments a
// counter and the instance counts carried by the event are mirrored into
// gauges.
//
//	pooling_pool_events_total{pool, event}
//	pooling_pool_instances{pool, state}   state = all | active | passive
//	pooling_request_latency_nanoseconds{pool, operation}
//	pooling_throughput_ops_per_second{pool}
//
// Collectors are registered on the Registerer given to NewPoolMetrics, so
// tests and servers can keep them on a private registry:
//
//	m := metrics.NewPoolMetrics(reg)
//	p, err := pool.New[*Frame]("frames", factory, cfg, pool.WithObserver(m.Observer("frames")))
package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/pooling/pkg/pool"
)

const namespace = "pooling"

// latencyBuckets span a passive hit (~100ns) to an async wait (~1s).
var latencyBuckets = prometheus.ExponentialBuckets(100, 10, 8)

// PoolMetrics holds the collectors shared by every pool of a process.
type PoolMetrics struct {
	events     *prometheus.CounterVec
	instances  *prometheus.GaugeVec
	latency    *prometheus.HistogramVec
	throughput *prometheus.GaugeVec
}

// NewPoolMetrics registers the pool collectors on reg.
func NewPoolMetrics(reg prometheus.Registerer) *PoolMetrics {
	f := promauto.With(reg)
	return &PoolMetrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_events_total",
			Help:      "Total number of pool lifecycle events",
		}, []string{"pool", "event"}),
		instances: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_instances",
			Help:      "Number of instances owned by the pool",
		}, []string{"pool", "state"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_nanoseconds",
			Help:      "Pool operation latency in nanoseconds",
			Buckets:   latencyBuckets,
		}, []string{"pool", "operation"}),
		throughput: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throughput_ops_per_second",
			Help:      "Pool operations per second over the last measured window",
		}, []string{"pool"}),
	}
}

// Observer returns a pool.Observer reporting under the pool name.
func (m *PoolMetrics) Observer(name string) pool.Observer {
	return pool.ObserverFunc(func(e pool.Event) {
		m.events.WithLabelValues(name, e.Type.String()).Inc()
		m.instances.WithLabelValues(name, "all").Set(float64(e.Stats.All))
		m.instances.WithLabelValues(name, "active").Set(float64(e.Stats.Active))
		m.instances.WithLabelValues(name, "passive").Set(float64(e.Stats.Passive))
	})
}

// ObserveLatency records the duration of one operation on the named pool.
func (m *PoolMetrics) ObserveLatency(name, operation string, d time.Duration) {
	m.latency.WithLabelValues(name, operation).Observe(float64(d.Nanoseconds()))
}

// Forget deletes every series of the named pool.
func (m *PoolMetrics) Forget(name string) {
	labels := prometheus.Labels{"pool": name}
	m.events.DeletePartialMatch(labels)
	m.instances.DeletePartialMatch(labels)
	m.latency.DeletePartialMatch(labels)
	m.throughput.DeletePartialMatch(labels)
}

// ThroughputTracker counts operations and publishes their rate to the
// throughput gauge of one pool. Increment is lock free.
type ThroughputTracker struct {
	count atomic.Int64
	gauge prometheus.Gauge

	mu    sync.Mutex
	since time.Time
}

// NewThroughputTracker returns a tracker for the named pool, starting its
// first window now.
func (m *PoolMetrics) NewThroughputTracker(name string) *ThroughputTracker {
	return &ThroughputTracker{gauge: m.throughput.WithLabelValues(name), since: time.Now()}
}

// Increment adds n operations to the current window.
func (t *ThroughputTracker) Increment(n int64) { t.count.Add(n) }

// GetAndReset closes the current window, publishes its rate and returns it.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(t.since)
	if elapsed <= 0 {
		return 0
	}
	rate := float64(t.count.Swap(0)) / elapsed.Seconds()
	t.since = now
	t.gauge.Set(rate)
	return rate
}

// LatencyTracker keeps the last N latencies in a ring for percentile
// queries. It is safe for concurrent use.
type LatencyTracker struct {
	mu   sync.Mutex
	ring []time.Duration
	next int
	full bool
}

// NewLatencyTracker keeps up to size samples, at least one.
func NewLatencyTracker(size int) *LatencyTracker {
	return &LatencyTracker{ring: make([]time.Duration, max(size, 1))}
}

// Record adds d, overwriting the oldest sample once the ring is full.
func (l *LatencyTracker) Record(d time.Duration) {
	l.mu.Lock()
	l.ring[l.next] = d
	l.next++
	if l.next == len(l.ring) {
		l.next, l.full = 0, true
	}
	l.mu.Unlock()
}

// Count returns the number of retained samples.
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return len(l.ring)
	}
	return l.next
}

// GetPercentile returns the nearest-rank p-th percentile (0-100) of the
// retained samples, or zero without samples.
func (l *LatencyTracker) GetPercentile(p float64) time.Duration {
	l.mu.Lock()
	n := l.next
	if l.full {
		n = len(l.ring)
	}
	samples := slices.Clone(l.ring[:n])
	l.mu.Unlock()

	if len(samples) == 0 {
		return 0
	}
	slices.Sort(samples)
	i := int(float64(len(samples)) * p / 100)
	return samples[min(max(i, 0), len(samples)-1)]
}

package metrics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pooling/pkg/metrics"
	"github.com/ajitpratap0/pooling/pkg/pool"
)

type frame struct{ n int }

func newObservedPool(t *testing.T, m *metrics.PoolMetrics) *pool.ObjectPool[*frame] {
	t.Helper()
	p, err := pool.New[*frame]("frames",
		pool.NewFuncs(func() *frame { return &frame{} }),
		pool.NewConfig(pool.WithMaxCapacity(2), pool.WithOverflowStrategy(pool.OverflowThrow)),
		pool.WithObserver(m.Observer("frames")),
	)
	require.NoError(t, err)
	return p
}

func TestPoolMetricsCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPoolMetrics(reg)
	p := newObservedPool(t, m)

	a, err := p.Request()
	require.NoError(t, err)
	_, err = p.Request()
	require.NoError(t, err)
	_, err = p.Request()
	require.ErrorIs(t, err, pool.ErrPoolOverflowed)
	require.NoError(t, p.Release(a))

	expected := `
# HELP pooling_pool_events_total Total number of pool lifecycle events
# TYPE pooling_pool_events_total counter
pooling_pool_events_total{event="created",pool="frames"} 2
pooling_pool_events_total{event="overflow",pool="frames"} 1
pooling_pool_events_total{event="released",pool="frames"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "pooling_pool_events_total"))

	expected = `
# HELP pooling_pool_instances Number of instances owned by the pool
# TYPE pooling_pool_instances gauge
pooling_pool_instances{pool="frames",state="active"} 1
pooling_pool_instances{pool="frames",state="all"} 2
pooling_pool_instances{pool="frames",state="passive"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "pooling_pool_instances"))
}

func TestPoolMetricsDispose(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPoolMetrics(reg)
	p := newObservedPool(t, m)
	require.NoError(t, p.WarmUp(2))

	p.Dispose()

	count, err := testutil.GatherAndCount(reg, "pooling_pool_events_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count, "created, released, destroyed, disposed")

	m.Forget("frames")
	count, err = testutil.GatherAndCount(reg, "pooling_pool_events_total", "pooling_pool_instances")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestObserveLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPoolMetrics(reg)

	m.ObserveLatency("frames", "request", 500*time.Nanosecond)
	m.ObserveLatency("frames", "request", 2*time.Millisecond)

	count, err := testutil.GatherAndCount(reg, "pooling_request_latency_nanoseconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestThroughputTracker(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPoolMetrics(reg)
	tracker := m.NewThroughputTracker("frames")

	tracker.Increment(100)
	time.Sleep(5 * time.Millisecond)
	got := tracker.GetAndReset()

	assert.Greater(t, got, 0.0)
	count, err := testutil.GatherAndCount(reg, "pooling_throughput_ops_per_second")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLatencyTrackerPartialRing(t *testing.T) {
	l := metrics.NewLatencyTracker(10)
	l.Record(3 * time.Millisecond)
	l.Record(time.Millisecond)

	assert.Equal(t, 2, l.Count())
	assert.Equal(t, time.Millisecond, l.GetPercentile(0))
	assert.Equal(t, 3*time.Millisecond, l.GetPercentile(99))
}

func TestLatencyTrackerPercentiles(t *testing.T) {
	l := metrics.NewLatencyTracker(100)
	for i := 100; i >= 1; i-- {
		l.Record(time.Duration(i) * time.Millisecond)
	}

	assert.Equal(t, 100, l.Count())
	assert.Equal(t, 51*time.Millisecond, l.GetPercentile(50))
	assert.Equal(t, 100*time.Millisecond, l.GetPercentile(100))
	assert.Equal(t, time.Millisecond, l.GetPercentile(0))

	// the newest sample replaces the oldest, 100ms
	l.Record(500 * time.Millisecond)
	assert.Equal(t, 100, l.Count())
	assert.Equal(t, 500*time.Millisecond, l.GetPercentile(100))
	assert.Equal(t, 51*time.Millisecond, l.GetPercentile(50))
	assert.Zero(t, metrics.NewLatencyTracker(0).GetPercentile(99))
}

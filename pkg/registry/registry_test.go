package registry_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pooling/pkg/errors"
	"github.com/ajitpratap0/pooling/pkg/pool"
	"github.com/ajitpratap0/pooling/pkg/registry"
	"github.com/ajitpratap0/pooling/pkg/testutil"
)

func newPool[T comparable](t *testing.T, key any, factory pool.Factory[T]) *pool.ObjectPool[T] {
	t.Helper()
	p, err := pool.New[T](key, factory, pool.NewConfig(pool.WithMaxCapacity(4)))
	require.NoError(t, err)
	return p
}

func TestRegisterAndRequest(t *testing.T) {
	s := registry.New(registry.WithLogger(testutil.TestLogger(t)))
	f := testutil.NewRecordingFactory()
	require.NoError(t, s.Register(1, newPool[*testutil.Object](t, "objects", f)))

	obj, err := s.Request(1)
	require.NoError(t, err)
	require.IsType(t, &testutil.Object{}, obj)
	assert.Equal(t, 1, obj.(*testutil.Object).Creates)

	require.NoError(t, s.Release(1, obj))

	p, ok := s.Lookup(1)
	require.True(t, ok)
	testutil.AssertCounts(t, p, 1, 0, 1)
	assert.Equal(t, 1, f.KeyCount("objects"))
}

func TestRegisterDuplicate(t *testing.T) {
	s := registry.New()
	require.NoError(t, s.Register(7, newPool[*testutil.Object](t, nil, testutil.NewRecordingFactory())))

	err := s.Register(7, newPool[*testutil.Object](t, nil, testutil.NewRecordingFactory()))
	require.ErrorIs(t, err, registry.ErrAlreadyRegistered)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	assert.ErrorIs(t, s.Register(8, nil), pool.ErrInvalidArgument)
}

func TestUnknownKey(t *testing.T) {
	s := registry.New()

	_, err := s.Request(42)
	require.ErrorIs(t, err, registry.ErrPoolNotRegistered)
	assert.Contains(t, err.Error(), "pool with key 42 is not registered")

	assert.ErrorIs(t, s.Release(42, &testutil.Object{}), registry.ErrPoolNotRegistered)
	assert.ErrorIs(t, s.WarmUp(42, 1), registry.ErrPoolNotRegistered)
	_, err = s.Unregister(42)
	assert.ErrorIs(t, err, registry.ErrPoolNotRegistered)
	_, err = registry.RequestAs[*testutil.Object](s, 42)
	assert.ErrorIs(t, err, registry.ErrPoolNotRegistered)
}

func TestRequestAs(t *testing.T) {
	s := registry.New()
	buffers := newPool[*bytes.Buffer](t, "buffers", pool.NewFuncs(func() *bytes.Buffer { return new(bytes.Buffer) }))
	require.NoError(t, s.Register(2, buffers))

	buf, err := registry.RequestAs[*bytes.Buffer](s, 2)
	require.NoError(t, err)
	buf.WriteString("ok")
	require.NoError(t, s.Release(2, buf))

	_, err = registry.RequestAs[*testutil.Object](s, 2)
	require.ErrorIs(t, err, pool.ErrInvalidArgument)
	assert.Zero(t, buffers.CountActive(), "mismatched object returned to its pool")
}

func TestReleaseWrongType(t *testing.T) {
	s := registry.New()
	require.NoError(t, s.Register(1, newPool[*testutil.Object](t, nil, testutil.NewRecordingFactory())))

	assert.ErrorIs(t, s.Release(1, "not an object"), pool.ErrInvalidArgument)
}

func TestWarmUpAndIteration(t *testing.T) {
	s := registry.New()
	for _, key := range []int{3, 1, 2} {
		require.NoError(t, s.Register(key, newPool[*testutil.Object](t, key, testutil.NewRecordingFactory())))
	}
	require.NoError(t, s.WarmUp(2, 3))

	assert.Equal(t, []int{1, 2, 3}, s.Keys())
	assert.Equal(t, 3, s.Len())

	var seen []int
	for key, p := range s.All() {
		seen = append(seen, key)
		if key == 2 {
			assert.Equal(t, 3, p.CountAll())
		}
	}
	assert.Equal(t, []int{1, 2, 3}, seen)

	for key := range s.All() {
		if key == 1 {
			break
		}
	}
}

func TestSnapshot(t *testing.T) {
	s := registry.New()
	require.NoError(t, s.Register(5, newPool[*testutil.Object](t, "b", testutil.NewRecordingFactory())))
	require.NoError(t, s.Register(4, newPool[*testutil.Object](t, "a", testutil.NewRecordingFactory())))
	require.NoError(t, s.WarmUp(5, 2))
	_, err := s.Request(5)
	require.NoError(t, err)

	assert.Equal(t, []registry.Info{
		{Key: 4, Pool: "a"},
		{Key: 5, Pool: "b", All: 2, Active: 1, Passive: 1},
	}, s.Snapshot())
}

func TestUnregister(t *testing.T) {
	s := registry.New()
	p := newPool[*testutil.Object](t, nil, testutil.NewRecordingFactory())
	require.NoError(t, s.Register(1, p))

	got, err := s.Unregister(1)
	require.NoError(t, err)
	assert.Same(t, p, got)
	_, ok := s.Lookup(1)
	assert.False(t, ok)

	// the pool is still usable
	_, err = p.Request()
	assert.NoError(t, err)
}

func TestClearDisposesPools(t *testing.T) {
	s := registry.New()
	f := testutil.NewRecordingFactory()
	require.NoError(t, s.Register(1, newPool[*testutil.Object](t, nil, f)))
	require.NoError(t, s.WarmUp(1, 2))
	obj, err := s.Request(1)
	require.NoError(t, err)

	s.Clear()
	assert.Zero(t, s.Len())
	assert.Equal(t, 2, f.DestroyedTotal())
	assert.Equal(t, 1, f.DestroyCount(obj.(*testutil.Object)))
}

func TestConcurrentRequests(t *testing.T) {
	s := registry.New()
	require.NoError(t, s.Register(1, newPool[*testutil.Object](t, nil, testutil.NewRecordingFactory())))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				obj, err := registry.RequestAs[*testutil.Object](s, 1)
				if !assert.NoError(t, err) {
					return
				}
				assert.NoError(t, s.Release(1, obj))
			}
		}()
	}
	wg.Wait()

	p, _ := s.Lookup(1)
	assert.Zero(t, p.CountActive())
}

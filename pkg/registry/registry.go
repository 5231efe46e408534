// Package registry keeps pools under integer keys so callers can request and
// release objects without holding a reference to the pool itself.
package registry

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pooling/pkg/errors"
	"github.com/ajitpratap0/pooling/pkg/logger"
	"github.com/ajitpratap0/pooling/pkg/pool"
)

var (
	// ErrPoolNotRegistered is returned for keys without a pool.
	ErrPoolNotRegistered = errors.Sentinel(errors.ErrorTypeNotFound, "pool not registered")
	// ErrAlreadyRegistered is returned when a key is registered twice.
	ErrAlreadyRegistered = errors.Sentinel(errors.ErrorTypeConflict, "pool already registered")
)

func notRegistered(key int) error {
	return errors.Wrapf(ErrPoolNotRegistered, errors.ErrorTypeNotFound,
		"pool with key %d is not registered", key).WithDetail("key", key)
}

// Service maps integer keys to pools. It is safe for concurrent use; calls
// into one pool are serialized by the service.
type Service struct {
	mu    sync.Mutex
	pools map[int]pool.Pool
	log   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for registration events.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New creates an empty service.
func New(opts ...Option) *Service {
	s := &Service{
		pools: make(map[int]pool.Pool, 32),
		log:   logger.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds p under key.
func (s *Service) Register(key int, p pool.Pool) error {
	if p == nil {
		return errors.Wrap(pool.ErrInvalidArgument, errors.ErrorTypeValidation, "pool is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[key]; ok {
		return errors.Wrapf(ErrAlreadyRegistered, errors.ErrorTypeConflict,
			"pool with key %d is already registered", key).WithDetail("key", key)
	}
	s.pools[key] = p
	s.log.Debug("pool registered", zap.Int("key", key), zap.String("pool", fmt.Sprint(p.Key())))
	return nil
}

// Unregister removes the pool under key without disposing it.
func (s *Service) Unregister(key int) (pool.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[key]
	if !ok {
		return nil, notRegistered(key)
	}
	delete(s.pools, key)
	return p, nil
}

// Lookup returns the pool under key.
func (s *Service) Lookup(key int) (pool.Pool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[key]
	return p, ok
}

// Request takes an object from the pool under key.
func (s *Service) Request(key int) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[key]
	if !ok {
		return nil, notRegistered(key)
	}
	return p.RequestPooled()
}

// RequestAs takes an object from the pool under key and asserts its type.
// On a type mismatch the object goes back to the pool.
func RequestAs[T any](s *Service, key int) (T, error) {
	var zero T
	obj, err := s.Request(key)
	if err != nil {
		return zero, err
	}
	typed, ok := obj.(T)
	if !ok {
		err := errors.Wrapf(pool.ErrInvalidArgument, errors.ErrorTypeValidation,
			"pool with key %d holds %T, not %T", key, obj, zero)
		return zero, errors.Join(err, s.Release(key, obj))
	}
	return typed, nil
}

// Release returns obj to the pool under key.
func (s *Service) Release(key int, obj any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[key]
	if !ok {
		return notRegistered(key)
	}
	return p.ReleasePooled(obj)
}

// WarmUp pre-creates n objects in the pool under key.
func (s *Service) WarmUp(key int, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[key]
	if !ok {
		return notRegistered(key)
	}
	return pool.WarmUpPooled(p, n)
}

// Keys returns the registered keys in ascending order.
func (s *Service) Keys() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.pools))
}

// All iterates over a snapshot of the registered pools in key order.
func (s *Service) All() iter.Seq2[int, pool.Pool] {
	s.mu.Lock()
	snapshot := maps.Clone(s.pools)
	s.mu.Unlock()
	return func(yield func(int, pool.Pool) bool) {
		for _, key := range slices.Sorted(maps.Keys(snapshot)) {
			if !yield(key, snapshot[key]) {
				return
			}
		}
	}
}

// Info describes a registered pool.
type Info struct {
	Key     int    `json:"key"`
	Pool    string `json:"pool"`
	All     int    `json:"all"`
	Active  int    `json:"active"`
	Passive int    `json:"passive"`
}

// Snapshot returns the counters of every pool in key order. The counters are
// read under the service lock, so they are consistent with Request and
// Release calls made through the service.
func (s *Service) Snapshot() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Info, 0, len(s.pools))
	for _, key := range slices.Sorted(maps.Keys(s.pools)) {
		p := s.pools[key]
		out = append(out, Info{
			Key:     key,
			Pool:    fmt.Sprint(p.Key()),
			All:     p.CountAll(),
			Active:  p.CountActive(),
			Passive: p.CountPassive(),
		})
	}
	return out
}

// Len returns the number of registered pools.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pools)
}

// Clear disposes and removes every pool.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, p := range s.pools {
		p.Dispose()
		delete(s.pools, key)
	}
	s.log.Debug("registry cleared")
}

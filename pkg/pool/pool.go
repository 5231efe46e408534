package pool

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ajitpratap0/pooling/pkg/borrow"
	"github.com/ajitpratap0/pooling/pkg/errors"
)

// Pool is the type-erased view of an ObjectPool, used by registries and by
// objects that return themselves through PooledObject.
type Pool interface {
	Key() any
	RequestPooled() (any, error)
	ReleasePooled(obj any) error
	CountAll() int
	CountActive() int
	CountPassive() int
	Dispose()
}

// Lease is the result of Acquire.
//
// Shared is true when REUSE overflow handed out an object another caller
// already holds. Both holders then work on the same value, which is unsafe
// for objects with mutable state unless the callers coordinate. Each holder
// still releases the object exactly once.
type Lease[T comparable] struct {
	Object T
	Shared bool
	inst   *Instance[T]
}

// Metadata returns the metadata of the leased instance as of Acquire.
func (l Lease[T]) Metadata() Metadata {
	if l.inst == nil {
		return Metadata{}
	}
	return l.inst.meta
}

// Release returns the leased object to its pool.
func (l Lease[T]) Release() error {
	if l.inst == nil {
		return invalidArgument("empty lease")
	}
	return l.inst.Release()
}

type options struct {
	rand     *rand.Rand
	observer Observer
	clock    func() time.Time
}

// Option configures an ObjectPool.
type Option func(*options)

// WithRand sets the random source of a RANDOM passive buffer.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		o.rand = r
	}
}

// WithObserver registers an observer for lifecycle events.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithClock replaces time.Now for activation timestamps and events.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// ObjectPool hands out objects created by a Factory and recycles them on
// release.
//
// Passive instances wait in a buffer chosen by the borrow strategy. Active
// instances are tracked in a ring capped at the maximum capacity so REUSE
// overflow can find the oldest one. CountAll is the only stored counter;
// CountPassive is the buffer size and CountActive the difference.
//
// ObjectPool is not safe for concurrent use. Wrap it with asyncpool or
// guard it with a mutex when several goroutines share it.
type ObjectPool[T comparable] struct {
	key      any
	factory  Factory[T]
	cfg      Config
	passive  borrow.Buffer[*Instance[T]]
	active   *borrow.Circular[*Instance[T]]
	index    map[T]*Instance[T]
	countAll int
	stats    Stats
	observer Observer
	now      func() time.Time
	disposed bool
}

// New creates a pool. A nil key makes the pool its own key.
func New[T comparable](key any, factory Factory[T], cfg Config, opts ...Option) (*ObjectPool[T], error) {
	if factory == nil {
		return nil, invalidArgument("factory must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	var bufOpts []borrow.Option
	if o.rand != nil {
		bufOpts = append(bufOpts, borrow.WithRand(o.rand))
	}
	passive, err := borrow.New[*Instance[T]](cfg.BorrowStrategy(),
		min(cfg.InitCapacity(), cfg.MaxCapacity()), bufOpts...)
	if err != nil {
		return nil, err
	}

	p := &ObjectPool[T]{
		key:      key,
		factory:  factory,
		cfg:      cfg,
		passive:  passive,
		active:   borrow.NewCircular(max(1, cfg.MaxCapacity()), (*Instance[T]).Equal),
		index:    make(map[T]*Instance[T], cfg.InitCapacity()),
		observer: o.observer,
		now:      o.clock,
	}
	if p.key == nil {
		p.key = p
	}
	return p, nil
}

// Key returns the key passed to the factory.
func (p *ObjectPool[T]) Key() any { return p.key }

// Config returns the pool configuration.
func (p *ObjectPool[T]) Config() Config { return p.cfg }

// CountAll returns the number of instances the pool currently owns.
func (p *ObjectPool[T]) CountAll() int { return p.countAll }

// CountPassive returns the number of instances waiting in the pool.
func (p *ObjectPool[T]) CountPassive() int { return p.passive.Count() }

// CountActive returns the number of instances handed out.
func (p *ObjectPool[T]) CountActive() int { return p.countAll - p.passive.Count() }

// Stats returns a snapshot of the pool counters.
func (p *ObjectPool[T]) Stats() Stats {
	s := p.stats
	s.All = p.countAll
	s.Passive = p.passive.Count()
	s.Active = s.All - s.Passive
	return s
}

// Instance looks up the instance wrapping obj.
func (p *ObjectPool[T]) Instance(obj T) (*Instance[T], bool) {
	inst, ok := p.index[obj]
	return inst, ok
}

// Request hands out an object. See Acquire for the full protocol.
func (p *ObjectPool[T]) Request() (T, error) {
	lease, err := p.Acquire()
	return lease.Object, err
}

// Acquire hands out an object:
//
//  1. a passive instance if one is waiting,
//  2. otherwise a new one while CountActive is below MaxCapacity,
//  3. otherwise whatever the overflow strategy decides.
//
// Factory errors are returned unchanged and leave the counters untouched.
func (p *ObjectPool[T]) Acquire() (Lease[T], error) {
	if p.disposed {
		return Lease[T]{}, ErrDisposed
	}

	var (
		inst   *Instance[T]
		shared bool
		reused bool
		err    error
	)
	switch {
	case p.passive.Count() > 0:
		inst = p.passive.Next()
		reused = true
		p.stats.Reused++
		if h, ok := any(inst.obj).(Pooled); ok {
			h.OnPoolReuse()
		}
	case p.CountActive() < p.cfg.MaxCapacity():
		inst, err = p.create()
	default:
		inst, shared, err = p.overflow()
	}
	if err != nil {
		return Lease[T]{}, err
	}

	inst.activate(p.now())
	inst.holders++
	if h, ok := any(inst.obj).(Pooled); ok {
		h.OnPoolGet()
	}
	p.factory.OnEnable(p.key, inst.obj)

	switch {
	case shared:
		p.notify(EventShared, inst)
	case p.active.Full():
		// extra REQUEST overflow instances stay untracked
	default:
		p.active.Add(inst)
		inst.tracked = true
	}
	if reused {
		p.notify(EventReused, inst)
	}

	return Lease[T]{Object: inst.obj, Shared: shared, inst: inst}, nil
}

func (p *ObjectPool[T]) create() (*Instance[T], error) {
	obj, err := p.factory.Create(p.key)
	if err != nil {
		return nil, err
	}
	var zero T
	if obj == zero {
		return nil, errors.New(errors.ErrorTypeInternal, "factory returned a zero object").
			WithDetail("key", p.key)
	}
	if _, exists := p.index[obj]; exists {
		return nil, errors.New(errors.ErrorTypeConflict, "factory returned an object the pool already owns").
			WithDetail("key", p.key)
	}

	inst := newInstance(obj, p)
	p.index[obj] = inst
	p.countAll++
	p.stats.Created++
	if h, ok := any(obj).(Pooled); ok {
		h.OnPoolCreate(p)
	}
	p.notify(EventCreated, inst)
	return inst, nil
}

func (p *ObjectPool[T]) overflow() (*Instance[T], bool, error) {
	p.stats.Overflows++
	p.notify(EventOverflow, nil)

	switch p.cfg.OverflowStrategy() {
	case OverflowRequest:
		inst, err := p.create()
		return inst, false, err
	case OverflowReuse:
		if p.active.Count() == 0 {
			return nil, false, overflowed(p.key)
		}
		// oldest out, back in as newest
		inst := p.active.Next()
		p.active.Add(inst)
		p.stats.Shared++
		return inst, true, nil
	default:
		return nil, false, overflowed(p.key)
	}
}

// Release returns obj to the pool.
//
// An object the pool does not know is adopted: it is counted and then
// passivated like any other. Releasing an idle object fails with
// ErrNotInUse. A shared object goes back to the pool only when its last
// holder releases it. When the passive buffer already holds MaxCapacity
// instances, the object is destroyed instead of kept.
func (p *ObjectPool[T]) Release(obj T) error {
	var zero T
	if obj == zero {
		return invalidArgument("released object must not be zero")
	}
	if p.disposed {
		return ErrDisposed
	}

	inst, ok := p.index[obj]
	if !ok {
		inst = p.adopt(obj)
	}
	if err := p.checkInUse(inst); err != nil {
		return err
	}

	inst.holders--
	if inst.holders > 0 {
		p.stats.Released++
		p.notify(EventReleased, inst)
		return nil
	}

	p.deactivate(inst)
	p.stats.Released++
	if inst.doomed {
		p.destroy(inst)
		return nil
	}
	if p.passive.Count() < p.cfg.MaxCapacity() {
		p.passive.Add(inst)
		p.notify(EventReleased, inst)
		return nil
	}
	p.notify(EventDropped, inst)
	p.destroy(inst)
	return nil
}

// Discard destroys a handed-out object instead of returning it. When other
// holders share the object, it is destroyed once the last of them lets go.
func (p *ObjectPool[T]) Discard(obj T) error {
	var zero T
	if obj == zero {
		return invalidArgument("discarded object must not be zero")
	}
	if p.disposed {
		return ErrDisposed
	}

	inst, ok := p.index[obj]
	if !ok {
		return errors.Wrap(ErrUnknownObject, errors.ErrorTypeNotFound, "discard").
			WithDetail("id", identityOf(obj))
	}
	if err := p.checkInUse(inst); err != nil {
		return err
	}

	inst.holders--
	if inst.holders > 0 {
		inst.doomed = true
		return nil
	}
	p.deactivate(inst)
	p.destroy(inst)
	return nil
}

func (p *ObjectPool[T]) checkInUse(inst *Instance[T]) error {
	switch inst.meta.State {
	case StateIdle:
		return errors.Wrap(ErrNotInUse, errors.ErrorTypeConflict, "release").
			WithDetail("id", inst.meta.ID)
	case StateDisposed:
		return errors.Wrap(ErrDisposed, errors.ErrorTypeClosed, "release").
			WithDetail("id", inst.meta.ID)
	}
	return nil
}

func (p *ObjectPool[T]) adopt(obj T) *Instance[T] {
	inst := newInstance(obj, p)
	inst.activate(p.now())
	inst.holders = 1
	p.index[obj] = inst
	p.countAll++
	p.stats.Adopted++
	if h, ok := any(obj).(Pooled); ok {
		h.OnPoolCreate(p)
	}
	p.notify(EventAdopted, inst)
	return inst
}

// deactivate stops tracking inst and runs the return hooks.
func (p *ObjectPool[T]) deactivate(inst *Instance[T]) {
	if inst.tracked {
		p.active.Remove(inst)
		inst.tracked = false
	}
	inst.passivate()
	if h, ok := any(inst.obj).(Pooled); ok {
		h.OnPoolSleep()
	}
	p.factory.OnDisable(p.key, inst.obj)
}

func (p *ObjectPool[T]) destroy(inst *Instance[T]) {
	p.factory.Destroy(p.key, inst.obj)
	inst.dispose()
	delete(p.index, inst.obj)
	p.countAll--
	p.stats.Destroyed++
	p.notify(EventDestroyed, inst)
}

// WarmUp requests n objects and releases them again, so that n instances
// wait in the passive buffer. Objects obtained before a failure are
// released before the error is returned.
func (p *ObjectPool[T]) WarmUp(n int) error {
	objs, err := p.RequestRange(n)
	if rerr := p.ReleaseRange(objs); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}

// RequestRange requests n objects. On failure it returns the objects
// obtained so far together with the error.
func (p *ObjectPool[T]) RequestRange(n int) ([]T, error) {
	objs := make([]T, 0, max(n, 0))
	for range n {
		obj, err := p.Request()
		if err != nil {
			return objs, err
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

// ReleaseRange releases every object and joins the errors.
func (p *ObjectPool[T]) ReleaseRange(objs []T) error {
	var errs []error
	for _, obj := range objs {
		if err := p.Release(obj); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispose disables and destroys every instance the pool owns, passive,
// active and untracked alike, exactly once each, and zeroes the counters.
// Later calls do nothing; later requests fail with ErrDisposed.
func (p *ObjectPool[T]) Dispose() {
	if p.disposed {
		return
	}
	teardown := func(inst *Instance[T]) {
		if inst.meta.State == StateDisposed {
			return
		}
		p.factory.OnDisable(p.key, inst.obj)
		p.factory.Destroy(p.key, inst.obj)
		inst.tracked = false
		inst.dispose()
		delete(p.index, inst.obj)
		p.stats.Destroyed++
		p.notify(EventDestroyed, inst)
	}
	p.passive.Dispose(teardown)
	p.active.Dispose(teardown)
	for _, inst := range p.index {
		teardown(inst)
	}
	p.countAll = 0
	p.disposed = true
	p.notify(EventDisposed, nil)
}

// RequestPooled implements Pool.
func (p *ObjectPool[T]) RequestPooled() (any, error) {
	obj, err := p.Request()
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// ReleasePooled implements Pool.
func (p *ObjectPool[T]) ReleasePooled(obj any) error {
	typed, ok := obj.(T)
	if !ok {
		return invalidArgument(fmt.Sprintf("pool of %T cannot release %T", *new(T), obj))
	}
	return p.Release(typed)
}

func (p *ObjectPool[T]) notify(t EventType, inst *Instance[T]) {
	if p.observer == nil {
		return
	}
	e := Event{Type: t, Key: p.key, Time: p.now(), Stats: p.Stats()}
	if inst != nil {
		e.ID = inst.meta.ID
	}
	p.observer.Observe(e)
}

// WarmUpPooled warms up a type-erased pool.
func WarmUpPooled(p Pool, n int) error {
	objs, err := RequestRangePooled(p, n)
	if rerr := ReleaseRangePooled(p, objs); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}

// RequestRangePooled requests n objects from a type-erased pool.
func RequestRangePooled(p Pool, n int) ([]any, error) {
	objs := make([]any, 0, max(n, 0))
	for range n {
		obj, err := p.RequestPooled()
		if err != nil {
			return objs, err
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

// ReleaseRangePooled releases every object into a type-erased pool.
func ReleaseRangePooled(p Pool, objs []any) error {
	var errs []error
	for _, obj := range objs {
		if err := p.ReleasePooled(obj); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

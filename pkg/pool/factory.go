package pool

// Factory creates and tears down pooled objects. The pool calls Create only
// on the creation path, Destroy only when an instance leaves the pool for
// good, and OnEnable/OnDisable around every hand-out and return.
type Factory[T any] interface {
	Create(key any) (T, error)
	Destroy(key any, obj T)
	OnEnable(key any, obj T)
	OnDisable(key any, obj T)
}

// Pooled is implemented by objects that want to observe their own pool
// lifecycle. It is optional.
//
// OnPoolCreate fires once when the pool takes ownership, OnPoolReuse when
// the object comes back out of the passive buffer (never together with
// OnPoolCreate), OnPoolGet on every hand-out and OnPoolSleep on every return.
type Pooled interface {
	OnPoolCreate(p Pool)
	OnPoolGet()
	OnPoolSleep()
	OnPoolReuse()
}

// Funcs adapts plain functions to Factory. Only New is required.
type Funcs[T any] struct {
	New     func(key any) (T, error)
	Free    func(key any, obj T)
	Enable  func(key any, obj T)
	Disable func(key any, obj T)
}

// NewFuncs returns a Funcs whose New calls fn.
func NewFuncs[T any](fn func() T) Funcs[T] {
	return Funcs[T]{New: func(any) (T, error) { return fn(), nil }}
}

// Create implements Factory.
func (f Funcs[T]) Create(key any) (T, error) {
	if f.New == nil {
		var zero T
		return zero, invalidArgument("factory has no New function")
	}
	return f.New(key)
}

// Destroy implements Factory.
func (f Funcs[T]) Destroy(key any, obj T) {
	if f.Free != nil {
		f.Free(key, obj)
	}
}

// OnEnable implements Factory.
func (f Funcs[T]) OnEnable(key any, obj T) {
	if f.Enable != nil {
		f.Enable(key, obj)
	}
}

// OnDisable implements Factory.
func (f Funcs[T]) OnDisable(key any, obj T) {
	if f.Disable != nil {
		f.Disable(key, obj)
	}
}

// PooledObject is an embeddable Pooled implementation that remembers the
// owning pool. Embed it by value in a struct used through a pointer.
type PooledObject struct {
	pool Pool
}

// OnPoolCreate records the owning pool.
func (o *PooledObject) OnPoolCreate(p Pool) { o.pool = p }

// OnPoolGet does nothing.
func (o *PooledObject) OnPoolGet() {}

// OnPoolSleep does nothing.
func (o *PooledObject) OnPoolSleep() {}

// OnPoolReuse does nothing.
func (o *PooledObject) OnPoolReuse() {}

// Pool returns the owning pool, or nil before the object joined one.
func (o *PooledObject) Pool() Pool { return o.pool }

// ReturnToPool releases self into the owning pool. self must be the
// object embedding o.
func (o *PooledObject) ReturnToPool(self any) error {
	if o.pool == nil {
		return invalidArgument("object does not belong to a pool")
	}
	return o.pool.ReleasePooled(self)
}

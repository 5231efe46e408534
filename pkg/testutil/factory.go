package testutil

import (
	"sync"

	"github.com/ajitpratap0/pooling/pkg/pool"
)

// Object is a pooled test object that counts its own lifecycle hooks.
type Object struct {
	pool.PooledObject

	Serial  int
	Creates int
	Gets    int
	Sleeps  int
	Reuses  int
}

// OnPoolCreate implements pool.Pooled.
func (o *Object) OnPoolCreate(p pool.Pool) {
	o.PooledObject.OnPoolCreate(p)
	o.Creates++
}

// OnPoolGet implements pool.Pooled.
func (o *Object) OnPoolGet() { o.Gets++ }

// OnPoolSleep implements pool.Pooled.
func (o *Object) OnPoolSleep() { o.Sleeps++ }

// OnPoolReuse implements pool.Pooled.
func (o *Object) OnPoolReuse() { o.Reuses++ }

// RecordingFactory is a pool.Factory that numbers the objects it creates and
// records every hook call.
type RecordingFactory struct {
	mu        sync.Mutex
	serial    int
	created   []*Object
	destroyed map[*Object]int
	enabled   int
	disabled  int
	keys      map[any]int
	failWith  error
}

// NewRecordingFactory returns an empty factory.
func NewRecordingFactory() *RecordingFactory {
	return &RecordingFactory{
		destroyed: make(map[*Object]int),
		keys:      make(map[any]int),
	}
}

// FailWith makes every following Create return err. Pass nil to recover.
func (f *RecordingFactory) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

// Create implements pool.Factory.
func (f *RecordingFactory) Create(key any) (*Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.serial++
	f.keys[key]++
	obj := &Object{Serial: f.serial}
	f.created = append(f.created, obj)
	return obj, nil
}

// Destroy implements pool.Factory.
func (f *RecordingFactory) Destroy(_ any, obj *Object) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed[obj]++
}

// OnEnable implements pool.Factory.
func (f *RecordingFactory) OnEnable(any, *Object) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled++
}

// OnDisable implements pool.Factory.
func (f *RecordingFactory) OnDisable(any, *Object) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled++
}

// Created returns the objects created so far, oldest first.
func (f *RecordingFactory) Created() []*Object {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Object(nil), f.created...)
}

// CreateCount returns the number of successful Create calls.
func (f *RecordingFactory) CreateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

// DestroyCount returns how often obj was destroyed.
func (f *RecordingFactory) DestroyCount(obj *Object) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed[obj]
}

// DestroyedTotal returns the number of Destroy calls.
func (f *RecordingFactory) DestroyedTotal() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.destroyed {
		total += n
	}
	return total
}

// Enabled returns the number of OnEnable calls.
func (f *RecordingFactory) Enabled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

// Disabled returns the number of OnDisable calls.
func (f *RecordingFactory) Disabled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disabled
}

// KeyCount returns how many objects were created for key.
func (f *RecordingFactory) KeyCount(key any) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[key]
}

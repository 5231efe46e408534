package pool

import (
	"fmt"
	"hash/maphash"
	"reflect"
	"time"
	"weak"
)

// State is the lifecycle state of a pooled instance.
//
//	Idle ⇄ InUse
//	Idle, InUse → Disposed (terminal)
type State uint8

const (
	// StateIdle means the instance rests inside the pool.
	StateIdle State = iota
	// StateInUse means the instance is handed out to at least one caller.
	StateInUse
	// StateDisposed means the factory destroyed the object.
	StateDisposed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInUse:
		return "in_use"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Metadata describes a pooled instance.
type Metadata struct {
	// ID is derived once from the wrapped object and never changes.
	ID uint64
	// State is the current lifecycle state.
	State State
	// ActivatedAt is the time of the latest hand-out; zero while idle.
	ActivatedAt time.Time
}

// Instance wraps a pooled object with its lifecycle metadata.
//
// The owner reference is weak: an instance never keeps its pool alive, it
// only routes Release and Discard back to it.
type Instance[T comparable] struct {
	obj     T
	meta    Metadata
	holders int
	tracked bool
	doomed  bool
	owner   weak.Pointer[ObjectPool[T]]
}

var identitySeed = maphash.MakeSeed()

// identityOf returns the address of reference kinds and a seeded hash of
// the value for everything else.
func identityOf[T comparable](obj T) uint64 {
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan:
		return uint64(v.Pointer())
	}
	return maphash.Comparable(identitySeed, obj)
}

func newInstance[T comparable](obj T, owner *ObjectPool[T]) *Instance[T] {
	return &Instance[T]{
		obj:   obj,
		meta:  Metadata{ID: identityOf(obj), State: StateIdle},
		owner: weak.Make(owner),
	}
}

// Object returns the wrapped object.
func (i *Instance[T]) Object() T { return i.obj }

// Metadata returns a copy of the instance metadata.
func (i *Instance[T]) Metadata() Metadata { return i.meta }

// ID returns the identity of the wrapped object.
func (i *Instance[T]) ID() uint64 { return i.meta.ID }

// State returns the current lifecycle state.
func (i *Instance[T]) State() State { return i.meta.State }

// Holders returns how many callers currently hold the object. It exceeds
// one only after REUSE overflow.
func (i *Instance[T]) Holders() int { return i.holders }

// Equal reports whether both instances wrap the same object.
func (i *Instance[T]) Equal(other *Instance[T]) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.meta.ID == other.meta.ID && i.obj == other.obj
}

// Release returns the object to its pool. It is the same as calling
// Release on the owning pool with Object().
func (i *Instance[T]) Release() error {
	p := i.owner.Value()
	if p == nil {
		return ErrDisposed
	}
	return p.Release(i.obj)
}

// Discard destroys the object instead of returning it to its pool.
func (i *Instance[T]) Discard() error {
	p := i.owner.Value()
	if p == nil {
		return ErrDisposed
	}
	return p.Discard(i.obj)
}

func (i *Instance[T]) activate(now time.Time) {
	if i.meta.State == StateDisposed {
		return
	}
	i.meta.State = StateInUse
	i.meta.ActivatedAt = now
}

func (i *Instance[T]) passivate() {
	if i.meta.State == StateDisposed {
		return
	}
	i.meta.State = StateIdle
	i.meta.ActivatedAt = time.Time{}
}

func (i *Instance[T]) dispose() {
	i.meta.State = StateDisposed
	i.meta.ActivatedAt = time.Time{}
	i.holders = 0
}

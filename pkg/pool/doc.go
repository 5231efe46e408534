// Package pool implements a reusable-object pool. It hands out objects
// created by a caller-supplied Factory, reclaims them on release and keeps
// them for the next request instead of allocating fresh ones.
//
// Architecture
//
// An ObjectPool owns two containers from package borrow:
//
//   - a passive buffer of idle instances, LIFO, FIFO or RANDOM
//   - a circular tracker of active instances, capped at MaxCapacity
//
// Every object is wrapped in an Instance carrying its identity, its state
// (idle, in use, disposed) and its last activation time. CountAll is the
// only stored counter; CountPassive is the size of the passive buffer and
// CountActive the difference.
//
// Request Protocol
//
// Request takes an idle instance when one is waiting and creates a new one
// while fewer than MaxCapacity are handed out. Past that point the overflow
// strategy decides:
//
//	OverflowRequest  create anyway, the cap is a soft hint
//	OverflowReuse    hand out the oldest active object again (shared)
//	OverflowThrow    fail with ErrPoolOverflowed
//
// REUSE breaks single ownership. Acquire returns a Lease whose Shared flag
// tells the caller that somebody else holds the same object.
//
// Release returns an object. When the passive buffer is already full the
// object is destroyed through the factory rather than silently dropped.
//
// Basic usage:
//
//	p, err := pool.New[*bytes.Buffer]("buffers",
//		pool.NewFuncs(func() *bytes.Buffer { return new(bytes.Buffer) }),
//		pool.NewConfig(pool.WithBorrowStrategy(borrow.LIFO)),
//	)
//	if err != nil {
//		return err
//	}
//	defer p.Dispose()
//
//	buf, err := p.Request()
//	if err != nil {
//		return err
//	}
//	defer p.Release(buf)
//
// Concurrency
//
// ObjectPool is single-threaded. Callers serialize access themselves, use
// package asyncpool for a goroutine-owned pool with batch requests, or
// package registry for a mutex-guarded set of keyed pools.
package pool

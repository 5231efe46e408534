package borrow

import "github.com/eapache/queue"

// Queue is a FIFO buffer backed by a growable ring.
type Queue[E any] struct {
	ring *queue.Queue
}

// NewQueue creates an empty queue.
func NewQueue[E any]() *Queue[E] {
	return &Queue[E]{ring: queue.New()}
}

// Add enqueues e.
func (q *Queue[E]) Add(e E) {
	q.ring.Add(e)
}

// Next dequeues the least recently added element.
func (q *Queue[E]) Next() E {
	if q.ring.Length() == 0 {
		panic(ErrEmptyBuffer)
	}
	return q.ring.Remove().(E)
}

// Count returns the number of stored elements.
func (q *Queue[E]) Count() int {
	return q.ring.Length()
}

// Dispose tears down every element in queue order.
func (q *Queue[E]) Dispose(teardown func(E)) {
	if teardown != nil {
		for i := 0; i < q.ring.Length(); i++ {
			teardown(q.ring.Get(i).(E))
		}
	}
	q.ring = queue.New()
}

package borrow

import "math/rand/v2"

// Bag is a buffer that returns a uniformly random element.
// Removal swaps the chosen element with the last one, so Next is O(1).
type Bag[E any] struct {
	values []E
	rand   *rand.Rand
}

// NewBag creates a bag drawing from r. Pass a seeded source (see NewRand)
// for reproducible draws.
func NewBag[E any](capacity int, r *rand.Rand) *Bag[E] {
	if capacity < 0 {
		capacity = 0
	}
	if r == nil {
		r = NewRand(0)
	}
	return &Bag[E]{
		values: make([]E, 0, capacity),
		rand:   r,
	}
}

// Add stores e.
func (b *Bag[E]) Add(e E) {
	b.values = append(b.values, e)
}

// Next removes and returns a random element.
func (b *Bag[E]) Next() E {
	n := len(b.values)
	if n == 0 {
		panic(ErrEmptyBuffer)
	}
	i := b.rand.IntN(n)
	e := b.values[i]
	last := n - 1
	b.values[i] = b.values[last]
	var zero E
	b.values[last] = zero
	b.values = b.values[:last]
	return e
}

// Count returns the number of stored elements.
func (b *Bag[E]) Count() int {
	return len(b.values)
}

// Dispose tears down every element.
func (b *Bag[E]) Dispose(teardown func(E)) {
	if teardown != nil {
		for _, e := range b.values {
			teardown(e)
		}
	}
	clear(b.values)
	b.values = b.values[:0]
}

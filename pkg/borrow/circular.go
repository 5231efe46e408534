package borrow

import "fmt"

// Circular is a fixed-capacity ring indexed by head and tail cursors.
//
// Add on a full ring overwrites the oldest element. That element is gone
// from the ring without any teardown; callers that own what they store must
// check Count against Cap first, or use Push to receive the evicted element.
type Circular[E any] struct {
	values []E
	head   int
	tail   int
	count  int
	equal  func(a, b E) bool
}

// NewCircular creates a ring holding at most capacity elements. equal
// decides identity for Remove and Extract. It panics if capacity is not
// positive or equal is nil.
func NewCircular[E any](capacity int, equal func(a, b E) bool) *Circular[E] {
	if capacity <= 0 {
		panic(fmt.Sprintf("borrow: circular capacity must be positive, got %d", capacity))
	}
	if equal == nil {
		panic("borrow: circular equality function must be provided")
	}
	return &Circular[E]{
		values: make([]E, capacity),
		equal:  equal,
	}
}

// Add appends e at the tail, dropping the oldest element when full.
func (c *Circular[E]) Add(e E) {
	c.Push(e)
}

// Push appends e at the tail. When the ring was full, the dropped oldest
// element is returned with evicted set to true.
func (c *Circular[E]) Push(e E) (dropped E, evicted bool) {
	if c.count == len(c.values) {
		dropped = c.values[c.head]
		evicted = true
		c.head = (c.head + 1) % len(c.values)
	} else {
		c.count++
	}
	c.values[c.tail] = e
	c.tail = (c.tail + 1) % len(c.values)
	return dropped, evicted
}

// Next removes and returns the oldest element.
func (c *Circular[E]) Next() E {
	if c.count == 0 {
		panic(ErrEmptyBuffer)
	}
	var zero E
	e := c.values[c.head]
	c.values[c.head] = zero
	c.head = (c.head + 1) % len(c.values)
	c.count--
	return e
}

// Remove deletes the element equal to e, keeping the order of the rest.
// It reports whether such an element was stored.
func (c *Circular[E]) Remove(e E) bool {
	_, ok := c.Extract(e)
	return ok
}

// Extract deletes and returns the stored element equal to e. The run
// between the found slot and the tail shifts one slot toward the head to
// close the gap.
func (c *Circular[E]) Extract(e E) (E, bool) {
	n := len(c.values)
	for i := 0; i < c.count; i++ {
		idx := (c.head + i) % n
		if !c.equal(c.values[idx], e) {
			continue
		}
		found := c.values[idx]
		for j := i; j < c.count-1; j++ {
			c.values[(c.head+j)%n] = c.values[(c.head+j+1)%n]
		}
		var zero E
		c.tail = (c.tail - 1 + n) % n
		c.values[c.tail] = zero
		c.count--
		return found, true
	}
	var zero E
	return zero, false
}

// Count returns the number of stored elements.
func (c *Circular[E]) Count() int {
	return c.count
}

// Cap returns the fixed capacity of the ring.
func (c *Circular[E]) Cap() int {
	return len(c.values)
}

// Full reports whether the next Add would overwrite an element.
func (c *Circular[E]) Full() bool {
	return c.count == len(c.values)
}

// Dispose tears down every element, oldest first.
func (c *Circular[E]) Dispose(teardown func(E)) {
	n := len(c.values)
	if teardown != nil {
		for i := 0; i < c.count; i++ {
			teardown(c.values[(c.head+i)%n])
		}
	}
	clear(c.values)
	c.head, c.tail, c.count = 0, 0, 0
}

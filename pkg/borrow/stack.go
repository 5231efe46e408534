package borrow

// Stack is a LIFO buffer.
type Stack[E any] struct {
	values []E
}

// NewStack creates a stack with room for capacity elements before growing.
func NewStack[E any](capacity int) *Stack[E] {
	if capacity < 0 {
		capacity = 0
	}
	return &Stack[E]{values: make([]E, 0, capacity)}
}

// Add pushes e on top of the stack.
func (s *Stack[E]) Add(e E) {
	s.values = append(s.values, e)
}

// Next pops the most recently added element.
func (s *Stack[E]) Next() E {
	last := len(s.values) - 1
	if last < 0 {
		panic(ErrEmptyBuffer)
	}
	e := s.values[last]
	var zero E
	s.values[last] = zero
	s.values = s.values[:last]
	return e
}

// Count returns the number of stored elements.
func (s *Stack[E]) Count() int {
	return len(s.values)
}

// Dispose tears down every element, top of the stack first.
func (s *Stack[E]) Dispose(teardown func(E)) {
	if teardown != nil {
		for i := len(s.values) - 1; i >= 0; i-- {
			teardown(s.values[i])
		}
	}
	clear(s.values)
	s.values = s.values[:0]
}

package borrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intRing(capacity int) *Circular[int] {
	return NewCircular[int](capacity, func(a, b int) bool { return a == b })
}

func drain(c *Circular[int]) []int {
	out := make([]int, 0, c.Count())
	for c.Count() > 0 {
		out = append(out, c.Next())
	}
	return out
}

func TestCircularKeepsInsertionOrder(t *testing.T) {
	c := intRing(4)
	c.Add(1)
	c.Add(2)
	c.Add(3)

	assert.Equal(t, 3, c.Count())
	assert.Equal(t, 4, c.Cap())
	assert.False(t, c.Full())
	assert.Equal(t, []int{1, 2, 3}, drain(c))
}

func TestCircularOverwritesOldestWhenFull(t *testing.T) {
	c := intRing(3)
	for i := 1; i <= 3; i++ {
		_, evicted := c.Push(i)
		require.False(t, evicted)
	}
	require.True(t, c.Full())

	dropped, evicted := c.Push(4)
	assert.True(t, evicted)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 3, c.Count())
	assert.Equal(t, []int{2, 3, 4}, drain(c))
}

func TestCircularRemoveClosesGap(t *testing.T) {
	c := intRing(5)
	for i := 1; i <= 5; i++ {
		c.Add(i)
	}

	assert.True(t, c.Remove(3))
	assert.False(t, c.Remove(3))
	assert.Equal(t, 4, c.Count())

	c.Add(6)
	assert.Equal(t, []int{1, 2, 4, 5, 6}, drain(c))
}

func TestCircularRemoveAcrossWrap(t *testing.T) {
	c := intRing(4)
	for i := 1; i <= 6; i++ {
		c.Add(i)
	}
	// ring holds 3 4 5 6 with head past the start of the backing slice
	assert.True(t, c.Remove(4))
	assert.True(t, c.Remove(6))
	assert.Equal(t, []int{3, 5}, drain(c))
}

func TestCircularExtractReturnsStoredElement(t *testing.T) {
	type item struct {
		id   int
		name string
	}
	c := NewCircular[item](2, func(a, b item) bool { return a.id == b.id })
	c.Add(item{id: 1, name: "first"})
	c.Add(item{id: 2, name: "second"})

	got, ok := c.Extract(item{id: 2})
	require.True(t, ok)
	assert.Equal(t, "second", got.name)

	_, ok = c.Extract(item{id: 7})
	assert.False(t, ok)
}

func TestCircularDisposeOldestFirst(t *testing.T) {
	c := intRing(3)
	for i := 1; i <= 4; i++ {
		c.Add(i)
	}

	var torn []int
	c.Dispose(func(v int) { torn = append(torn, v) })
	assert.Equal(t, []int{2, 3, 4}, torn)
	assert.Equal(t, 0, c.Count())

	c.Add(8)
	assert.Equal(t, 8, c.Next())
}

func TestNewCircularValidatesArguments(t *testing.T) {
	assert.Panics(t, func() { intRing(0) })
	assert.Panics(t, func() { NewCircular[int](2, nil) })
}

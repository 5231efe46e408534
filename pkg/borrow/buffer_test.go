package borrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackIsLIFO(t *testing.T) {
	s := NewStack[int](2)
	for i := 1; i <= 5; i++ {
		s.Add(i)
	}
	require.Equal(t, 5, s.Count())

	for want := 5; want >= 1; want-- {
		assert.Equal(t, want, s.Next())
	}
	assert.Equal(t, 0, s.Count())
}

func TestQueueIsFIFO(t *testing.T) {
	q := NewQueue[string]()
	for _, v := range []string{"a", "b", "c"} {
		q.Add(v)
	}

	assert.Equal(t, "a", q.Next())
	q.Add("d")
	assert.Equal(t, "b", q.Next())
	assert.Equal(t, "c", q.Next())
	assert.Equal(t, "d", q.Next())
	assert.Equal(t, 0, q.Count())
}

func TestQueueGrowsPastInitialRing(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 100; i++ {
		q.Add(i)
	}
	for i := 0; i < 100; i++ {
		require.Equal(t, i, q.Next())
	}
}

func TestBagReturnsEveryElementOnce(t *testing.T) {
	b := NewBag[int](0, NewRand(42))
	for i := 0; i < 50; i++ {
		b.Add(i)
	}

	seen := make(map[int]bool)
	for b.Count() > 0 {
		v := b.Next()
		assert.False(t, seen[v], "element %d returned twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, 50)
}

func TestBagIsReproducibleWithSeed(t *testing.T) {
	draw := func() []int {
		b := NewBag[int](0, NewRand(7))
		for i := 0; i < 20; i++ {
			b.Add(i)
		}
		out := make([]int, 0, 20)
		for b.Count() > 0 {
			out = append(out, b.Next())
		}
		return out
	}
	assert.Equal(t, draw(), draw())
}

func TestNextOnEmptyPanics(t *testing.T) {
	buffers := map[string]Buffer[int]{
		"stack":    NewStack[int](0),
		"queue":    NewQueue[int](),
		"bag":      NewBag[int](0, NewRand(1)),
		"circular": NewCircular[int](3, func(a, b int) bool { return a == b }),
	}
	for name, buf := range buffers {
		t.Run(name, func(t *testing.T) {
			assert.PanicsWithValue(t, ErrEmptyBuffer, func() { buf.Next() })
		})
	}
}

func TestDisposeTearsDownEverything(t *testing.T) {
	for _, strategy := range []Strategy{LIFO, FIFO, RANDOM} {
		t.Run(strategy.String(), func(t *testing.T) {
			buf, err := New[int](strategy, 4, WithRand(NewRand(3)))
			require.NoError(t, err)
			for i := 0; i < 4; i++ {
				buf.Add(i)
			}

			var torn []int
			buf.Dispose(func(v int) { torn = append(torn, v) })

			assert.ElementsMatch(t, []int{0, 1, 2, 3}, torn)
			assert.Equal(t, 0, buf.Count())

			buf.Add(9)
			assert.Equal(t, 9, buf.Next())
		})
	}
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	_, err := New[int](Strategy(99), 0)
	require.Error(t, err)
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{in: "LIFO", want: LIFO},
		{in: "fifo", want: FIFO},
		{in: " Random ", want: RANDOM},
		{in: "stack", want: LIFO},
		{in: "circular", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStrategyTextRoundTrip(t *testing.T) {
	var s Strategy
	require.NoError(t, s.UnmarshalText([]byte("random")))
	assert.Equal(t, RANDOM, s)

	text, err := FIFO.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "fifo", string(text))

	assert.Error(t, s.UnmarshalText([]byte("nope")))
}

// Package borrow provides the containers a pool keeps its instances in.
//
// A Buffer stores instances and hands exactly one back on every Next call,
// chosen by the buffer's removal policy:
//
//   - LIFO (Stack): the most recently added element. Best cache locality,
//     the usual choice for short bursty workloads.
//   - FIFO (Queue): the least recently added element. Ages elements
//     uniformly, which equalizes wear across instances.
//   - RANDOM (Bag): a uniformly random element drawn from an injected,
//     seedable source.
//
// Circular is a fixed-capacity ring used to track borrowed instances. It
// supports removal by identity and overwrites its oldest element when full.
//
// Buffers are not safe for concurrent use.
package borrow

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/ajitpratap0/pooling/pkg/errors"
)

// ErrEmptyBuffer is the panic value raised by Next on an empty buffer.
// Taking from an empty buffer is an invariant violation, never a
// recoverable condition.
var ErrEmptyBuffer = errors.Sentinel(errors.ErrorTypeInternal, "borrow: Next called on empty buffer")

// Buffer is a container of borrowable elements.
type Buffer[E any] interface {
	// Add stores one element.
	Add(e E)

	// Next removes and returns one element chosen by the buffer's policy.
	// It panics with ErrEmptyBuffer when Count is zero.
	Next() E

	// Count returns the number of stored elements.
	Count() int

	// Dispose calls teardown for every stored element and clears the
	// buffer. teardown may be nil.
	Dispose(teardown func(E))
}

// Strategy selects the removal policy of a Buffer.
type Strategy uint8

const (
	// LIFO returns the most recently added element (stack).
	LIFO Strategy = iota
	// FIFO returns the least recently added element (queue).
	FIFO
	// RANDOM returns a uniformly random element.
	RANDOM
)

// String implements fmt.Stringer.
func (s Strategy) String() string {
	switch s {
	case LIFO:
		return "lifo"
	case FIFO:
		return "fifo"
	case RANDOM:
		return "random"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

// ParseStrategy converts a case-insensitive name into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lifo", "stack":
		return LIFO, nil
	case "fifo", "queue":
		return FIFO, nil
	case "random", "bag":
		return RANDOM, nil
	default:
		return 0, errors.New(errors.ErrorTypeValidation, "unknown borrow strategy").
			WithDetail("strategy", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type options struct {
	rand *rand.Rand
}

// Option configures buffers built by New.
type Option func(*options)

// WithRand sets the random source used by the RANDOM strategy.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		o.rand = r
	}
}

// New builds a buffer for the given strategy. capacity is a preallocation
// hint; the returned buffers grow as needed.
func New[E any](strategy Strategy, capacity int, opts ...Option) (Buffer[E], error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	switch strategy {
	case LIFO:
		return NewStack[E](capacity), nil
	case FIFO:
		return NewQueue[E](), nil
	case RANDOM:
		r := o.rand
		if r == nil {
			r = NewRand(uint64(time.Now().UnixNano()))
		}
		return NewBag[E](capacity, r), nil
	default:
		return nil, errors.New(errors.ErrorTypeValidation, "unsupported borrow strategy").
			WithDetail("strategy", strategy.String())
	}
}

// NewRand returns a deterministic random source for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

package pool

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/pooling/pkg/borrow"
	"github.com/ajitpratap0/pooling/pkg/errors"
)

const (
	// DefaultInitCapacity is the passive buffer preallocation used when none is set.
	DefaultInitCapacity = 10
	// DefaultMaxCapacity is the ceiling applied when none, or a negative one, is set.
	DefaultMaxCapacity = 1000
)

// OverflowStrategy decides what Request does when no passive instance is
// left and the active count has reached the maximum capacity.
type OverflowStrategy uint8

const (
	// OverflowReuse hands out the oldest active instance again. The object
	// then has two or more live holders; see Lease.Shared.
	OverflowReuse OverflowStrategy = iota
	// OverflowRequest creates a new instance regardless of the cap.
	OverflowRequest
	// OverflowThrow fails with ErrPoolOverflowed.
	OverflowThrow
)

// String implements fmt.Stringer.
func (s OverflowStrategy) String() string {
	switch s {
	case OverflowReuse:
		return "reuse"
	case OverflowRequest:
		return "request"
	case OverflowThrow:
		return "throw"
	default:
		return fmt.Sprintf("overflow(%d)", uint8(s))
	}
}

// ParseOverflowStrategy converts a case-insensitive name into an OverflowStrategy.
func ParseOverflowStrategy(name string) (OverflowStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "reuse":
		return OverflowReuse, nil
	case "request":
		return OverflowRequest, nil
	case "throw":
		return OverflowThrow, nil
	default:
		return 0, errors.New(errors.ErrorTypeValidation, "unknown overflow strategy").
			WithDetail("strategy", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s OverflowStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *OverflowStrategy) UnmarshalText(text []byte) error {
	parsed, err := ParseOverflowStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Config is the immutable policy bundle of a pool. Build it with NewConfig.
type Config struct {
	initCapacity int
	maxCapacity  int
	borrow       borrow.Strategy
	overflow     OverflowStrategy
}

// ConfigOption sets one field of a Config.
type ConfigOption func(*Config)

// WithInitCapacity sets the passive buffer preallocation. Negative values become zero.
func WithInitCapacity(n int) ConfigOption {
	return func(c *Config) {
		if n < 0 {
			n = 0
		}
		c.initCapacity = n
	}
}

// WithMaxCapacity sets the maximum number of active instances and of
// passive instances kept for reuse. Negative values select DefaultMaxCapacity.
func WithMaxCapacity(n int) ConfigOption {
	return func(c *Config) {
		if n < 0 {
			n = DefaultMaxCapacity
		}
		c.maxCapacity = n
	}
}

// WithBorrowStrategy sets the removal policy of the passive buffer.
func WithBorrowStrategy(s borrow.Strategy) ConfigOption {
	return func(c *Config) {
		c.borrow = s
	}
}

// WithOverflowStrategy sets the overflow policy.
func WithOverflowStrategy(s OverflowStrategy) ConfigOption {
	return func(c *Config) {
		c.overflow = s
	}
}

// DefaultConfig returns init capacity 10, max capacity 1000, FIFO borrowing
// and REUSE overflow.
func DefaultConfig() Config {
	return Config{
		initCapacity: DefaultInitCapacity,
		maxCapacity:  DefaultMaxCapacity,
		borrow:       borrow.FIFO,
		overflow:     OverflowReuse,
	}
}

// NewConfig applies opts on top of DefaultConfig.
func NewConfig(opts ...ConfigOption) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// InitCapacity returns the passive buffer preallocation.
func (c Config) InitCapacity() int { return c.initCapacity }

// MaxCapacity returns the capacity ceiling.
func (c Config) MaxCapacity() int { return c.maxCapacity }

// BorrowStrategy returns the passive buffer policy.
func (c Config) BorrowStrategy() borrow.Strategy { return c.borrow }

// OverflowStrategy returns the overflow policy.
func (c Config) OverflowStrategy() OverflowStrategy { return c.overflow }

// Validate checks that both strategies are known values.
func (c Config) Validate() error {
	switch c.borrow {
	case borrow.LIFO, borrow.FIFO, borrow.RANDOM:
	default:
		return invalidArgument("unsupported borrow strategy").WithDetail("strategy", c.borrow.String())
	}
	switch c.overflow {
	case OverflowReuse, OverflowRequest, OverflowThrow:
	default:
		return invalidArgument("unsupported overflow strategy").WithDetail("strategy", c.overflow.String())
	}
	return nil
}

// String implements fmt.Stringer.
func (c Config) String() string {
	return fmt.Sprintf("init=%d max=%d borrow=%s overflow=%s",
		c.initCapacity, c.maxCapacity, c.borrow, c.overflow)
}

package config

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/pooling/pkg/borrow"
	"github.com/ajitpratap0/pooling/pkg/errors"
	"github.com/ajitpratap0/pooling/pkg/logger"
	"github.com/ajitpratap0/pooling/pkg/pool"
)

// Config is the root of a pooling configuration file.
type Config struct {
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version" mapstructure:"version"`

	// Logging configures the global zap logger
	Logging logger.Config `yaml:"logging" json:"logging" mapstructure:"logging"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics" mapstructure:"metrics"`

	// Tracing configures OpenTelemetry
	Tracing TracingConfig `yaml:"tracing" json:"tracing" mapstructure:"tracing"`

	// Async configures pools served through asyncpool
	Async AsyncConfig `yaml:"async" json:"async" mapstructure:"async"`

	// Pools lists every pool the process serves
	Pools []PoolSpec `yaml:"pools" json:"pools" mapstructure:"pools"`
}

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	// Enabled activates metrics collection
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	// Address is the listen address of the HTTP server
	Address string `yaml:"address" json:"address" mapstructure:"address"`
	// Path is the scrape path
	Path string `yaml:"path" json:"path" mapstructure:"path"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled activates tracing
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	// ServiceName is reported as the service.name resource attribute
	ServiceName string `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
	// SampleRate controls trace sampling (0.0-1.0)
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate" mapstructure:"sample_rate"`
}

// AsyncConfig contains settings of asynchronous pools.
type AsyncConfig struct {
	// RequestTimeout bounds how long a batch request waits for capacity
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout" mapstructure:"request_timeout"`
}

// PoolSpec describes one pool.
type PoolSpec struct {
	// Name identifies the pool in logs, metrics and the HTTP API
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	// Key is the registry key of the pool
	Key int `yaml:"key" json:"key" mapstructure:"key"`
	// InitCapacity preallocates the passive buffer; nil selects the default
	InitCapacity *int `yaml:"init_capacity,omitempty" json:"init_capacity,omitempty" mapstructure:"init_capacity"`
	// MaxCapacity caps active and passive instances; nil selects the default
	MaxCapacity *int `yaml:"max_capacity,omitempty" json:"max_capacity,omitempty" mapstructure:"max_capacity"`
	// Borrow is lifo, fifo or random
	Borrow string `yaml:"borrow,omitempty" json:"borrow,omitempty" mapstructure:"borrow"`
	// Overflow is reuse, request or throw
	Overflow string `yaml:"overflow,omitempty" json:"overflow,omitempty" mapstructure:"overflow"`
	// WarmUp is the number of instances created at startup
	WarmUp int `yaml:"warm_up,omitempty" json:"warm_up,omitempty" mapstructure:"warm_up"`
}

// New returns a Config with sensible defaults and no pools.
func New() *Config {
	return &Config{
		Version: "1",
		Logging: logger.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "pooling",
			SampleRate:  0.1,
		},
		Async: AsyncConfig{
			RequestTimeout: 5 * time.Second,
		},
	}
}

// Validate checks the file for correctness.
// It returns the first problem found, nil otherwise.
func (c *Config) Validate() error {
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return errors.New(errors.ErrorTypeConfig, "tracing.sample_rate must be within [0, 1]")
	}
	if c.Async.RequestTimeout < 0 {
		return errors.New(errors.ErrorTypeConfig, "async.request_timeout cannot be negative")
	}

	names := make(map[string]bool, len(c.Pools))
	keys := make(map[int]string, len(c.Pools))
	for i := range c.Pools {
		p := &c.Pools[i]
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeConfig, "pools[%d]", i)
		}
		if names[p.Name] {
			return errors.New(errors.ErrorTypeConfig, "duplicate pool name").WithDetail("name", p.Name)
		}
		if other, ok := keys[p.Key]; ok {
			return errors.New(errors.ErrorTypeConfig, "duplicate pool key").
				WithDetail("key", p.Key).
				WithDetail("pools", []string{other, p.Name})
		}
		names[p.Name] = true
		keys[p.Key] = p.Name
	}
	return nil
}

// Pool returns the spec with the given name.
func (c *Config) Pool(name string) (PoolSpec, bool) {
	for _, p := range c.Pools {
		if p.Name == name {
			return p, true
		}
	}
	return PoolSpec{}, false
}

// Validate checks a single pool spec.
func (p *PoolSpec) Validate() error {
	if p.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "name is required")
	}
	if p.InitCapacity != nil && *p.InitCapacity < 0 {
		return errors.New(errors.ErrorTypeConfig, "init_capacity cannot be negative").WithDetail("pool", p.Name)
	}
	if p.WarmUp < 0 {
		return errors.New(errors.ErrorTypeConfig, "warm_up cannot be negative").WithDetail("pool", p.Name)
	}
	cfg, err := p.ToConfig()
	if err != nil {
		return err
	}
	if p.WarmUp > cfg.MaxCapacity() {
		return errors.New(errors.ErrorTypeConfig, "warm_up exceeds max_capacity").
			WithDetail("pool", p.Name).
			WithDetail("warm_up", p.WarmUp).
			WithDetail("max_capacity", cfg.MaxCapacity())
	}
	return nil
}

// ToConfig converts the spec into a pool configuration. Missing fields
// take the pool package defaults.
func (p PoolSpec) ToConfig() (pool.Config, error) {
	opts := make([]pool.ConfigOption, 0, 4)
	if p.InitCapacity != nil {
		opts = append(opts, pool.WithInitCapacity(*p.InitCapacity))
	}
	if p.MaxCapacity != nil {
		opts = append(opts, pool.WithMaxCapacity(*p.MaxCapacity))
	}
	if p.Borrow != "" {
		s, err := borrow.ParseStrategy(p.Borrow)
		if err != nil {
			return pool.Config{}, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("pool %q", p.Name))
		}
		opts = append(opts, pool.WithBorrowStrategy(s))
	}
	if p.Overflow != "" {
		s, err := pool.ParseOverflowStrategy(p.Overflow)
		if err != nil {
			return pool.Config{}, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("pool %q", p.Name))
		}
		opts = append(opts, pool.WithOverflowStrategy(s))
	}
	return pool.NewConfig(opts...), nil
}

// IntPtr returns a pointer to n, for building specs in code.
func IntPtr(n int) *int {
	return &n
}

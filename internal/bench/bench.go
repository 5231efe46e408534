// Package bench runs concurrent request/release workloads against a pool and
// reports throughput and latency percentiles.
package bench

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	concpool "github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/pooling/pkg/asyncpool"
	"github.com/ajitpratap0/pooling/pkg/errors"
	"github.com/ajitpratap0/pooling/pkg/logger"
	"github.com/ajitpratap0/pooling/pkg/metrics"
	"github.com/ajitpratap0/pooling/pkg/pool"
)

// Mode selects how workers share the pool.
type Mode string

const (
	// ModeAsync routes every call through an asyncpool executor. Overflowed
	// requests wait for releases.
	ModeAsync Mode = "async"
	// ModeLocked guards the pool with a mutex. Overflowed requests are
	// retried with exponential backoff.
	ModeLocked Mode = "locked"
)

// Config describes one benchmark run.
type Config struct {
	Name       string        `json:"name"`
	Mode       Mode          `json:"mode"`
	Workers    int           `json:"workers"`
	Operations int           `json:"operations"` // per worker
	BatchSize  int           `json:"batch_size"`
	Hold       time.Duration `json:"hold"`        // time an object is kept before release
	Rate       float64       `json:"rate"`        // operations per second across workers, 0 = unlimited
	WarmUp     int           `json:"warm_up"`     // instances created before the run
	ObjectSize int           `json:"object_size"` // payload bytes per object
	MaxRetry   time.Duration `json:"max_retry"`   // retry budget per operation in locked mode
	Timeout    time.Duration `json:"timeout"`     // wait budget per request in async mode, 0 = unbounded
	Pool       pool.Config   `json:"-"`
}

// DefaultConfig mirrors a warmed pool of 1000 instances cycled by one worker
// per CPU.
func DefaultConfig() Config {
	return Config{
		Name:       "bench",
		Mode:       ModeAsync,
		Workers:    4,
		Operations: 10000,
		BatchSize:  1,
		WarmUp:     1000,
		ObjectSize: 1024,
		MaxRetry:   time.Second,
		Pool:       pool.DefaultConfig(),
	}
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	switch {
	case c.Mode != ModeAsync && c.Mode != ModeLocked:
		return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("unknown mode %q", c.Mode))
	case c.Workers <= 0:
		return errors.New(errors.ErrorTypeValidation, "workers must be positive")
	case c.Operations <= 0:
		return errors.New(errors.ErrorTypeValidation, "operations must be positive")
	case c.BatchSize <= 0:
		return errors.New(errors.ErrorTypeValidation, "batch size must be positive")
	case c.Rate < 0:
		return errors.New(errors.ErrorTypeValidation, "rate must not be negative")
	case c.WarmUp < 0 || c.ObjectSize < 0 || c.Timeout < 0:
		return errors.New(errors.ErrorTypeValidation, "warm up, object size and timeout must not be negative")
	}
	return c.Pool.Validate()
}

// Result summarises a run.
type Result struct {
	RunID      string        `json:"run_id"`
	Name       string        `json:"name"`
	Mode       Mode          `json:"mode"`
	Pool       string        `json:"pool"`
	Operations int64         `json:"operations"`
	Errors     int64         `json:"errors"`
	Retries    int64         `json:"retries"`
	Duration   time.Duration `json:"duration"`
	Throughput float64       `json:"throughput"` // operations per second
	P50        time.Duration `json:"p50"`
	P95        time.Duration `json:"p95"`
	P99        time.Duration `json:"p99"`
	Stats      pool.Stats    `json:"stats"`
}

// Payload is the pooled object of a benchmark run.
type Payload struct {
	pool.PooledObject
	Data []byte
	Uses int
}

// OnPoolGet implements pool.Pooled.
func (p *Payload) OnPoolGet() { p.Uses++ }

// checksum reads the whole payload. Shared objects may be read by several
// workers at once, so it never writes.
func (p *Payload) checksum() byte {
	var sum byte
	for _, b := range p.Data {
		sum += b
	}
	return sum
}

// client is the pool access path shared by the workers.
type client interface {
	acquire(ctx context.Context, n int) ([]*Payload, error)
	release(ctx context.Context, objs []*Payload) error
	stats(ctx context.Context) (pool.Stats, error)
	close()
}

type asyncClient struct {
	pool *asyncpool.AsyncPool[*Payload]
}

func (c asyncClient) acquire(ctx context.Context, n int) ([]*Payload, error) {
	return c.pool.RequestBatch(ctx, n)
}

func (c asyncClient) release(ctx context.Context, objs []*Payload) error {
	return c.pool.Release(ctx, objs...)
}

func (c asyncClient) stats(ctx context.Context) (pool.Stats, error) { return c.pool.Stats(ctx) }

func (c asyncClient) close() { c.pool.Close() }

type lockedClient struct {
	mu       sync.Mutex
	pool     *pool.ObjectPool[*Payload]
	maxRetry time.Duration
	retries  *atomic.Int64
}

func (c *lockedClient) acquire(ctx context.Context, n int) ([]*Payload, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Microsecond
	b.MaxInterval = 10 * time.Millisecond

	return backoff.Retry(ctx, func() ([]*Payload, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		objs, err := c.pool.RequestRange(n)
		if err == nil {
			return objs, nil
		}
		err = errors.Join(err, c.pool.ReleaseRange(objs))
		if errors.IsRetryable(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(c.maxRetry),
		backoff.WithNotify(func(error, time.Duration) { c.retries.Add(1) }),
	)
}

func (c *lockedClient) release(_ context.Context, objs []*Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool.ReleaseRange(objs)
}

func (c *lockedClient) stats(context.Context) (pool.Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool.Stats(), nil
}

func (c *lockedClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pool.Dispose()
}

// Runner executes benchmark runs.
type Runner struct {
	log     *zap.Logger
	metrics *metrics.PoolMetrics
}

// NewRunner creates a runner. m may be nil.
func NewRunner(log *zap.Logger, m *metrics.PoolMetrics) *Runner {
	if log == nil {
		log = logger.L()
	}
	return &Runner{log: log, metrics: m}
}

func (r *Runner) newClient(cfg Config, retries *atomic.Int64) (client, error) {
	factory := pool.Funcs[*Payload]{
		New: func(any) (*Payload, error) {
			return &Payload{Data: make([]byte, cfg.ObjectSize)}, nil
		},
	}
	var opts []pool.Option
	if r.metrics != nil {
		opts = append(opts, pool.WithObserver(r.metrics.Observer(cfg.Name)))
	}
	core, err := pool.New[*Payload](cfg.Name, factory, cfg.Pool, opts...)
	if err != nil {
		return nil, err
	}
	if err := core.WarmUp(min(cfg.WarmUp, cfg.Pool.MaxCapacity())); err != nil {
		core.Dispose()
		return nil, err
	}

	if cfg.Mode == ModeLocked {
		return &lockedClient{pool: core, maxRetry: cfg.MaxRetry, retries: retries}, nil
	}
	asyncOpts := []asyncpool.Option{
		asyncpool.WithLogger(r.log),
		asyncpool.WithRequestTimeout(cfg.Timeout),
	}
	if r.metrics != nil {
		asyncOpts = append(asyncOpts, asyncpool.WithMetrics(r.metrics, cfg.Name))
	}
	return asyncClient{pool: asyncpool.New(core, asyncOpts...)}, nil
}

// Run executes cfg and returns its summary. Failed operations are counted,
// not returned; Run fails only on setup errors or when ctx ends.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = logger.ContextWithRunID(ctx, runID)
	ctx = logger.ContextWithPool(ctx, cfg.Name)
	log := logger.FromContext(ctx, r.log)

	var retries, ops, failures atomic.Int64
	c, err := r.newClient(cfg, &retries)
	if err != nil {
		return nil, err
	}
	defer c.close()

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), max(1, cfg.Workers))
	}
	latencies := metrics.NewLatencyTracker(100_000)
	var throughput *metrics.ThroughputTracker
	if r.metrics != nil {
		throughput = r.metrics.NewThroughputTracker(cfg.Name)
	}

	log.Info("benchmark started",
		zap.String("mode", string(cfg.Mode)),
		zap.Int("workers", cfg.Workers),
		zap.Int("operations", cfg.Operations),
		zap.Stringer("pool", cfg.Pool))

	start := time.Now()
	workers := concpool.New().WithContext(ctx).WithMaxGoroutines(cfg.Workers)
	for range cfg.Workers {
		workers.Go(func(ctx context.Context) error {
			for range cfg.Operations {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return err
					}
				}
				began := time.Now()
				if err := cycle(ctx, c, cfg); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					failures.Add(1)
					log.Debug("operation failed", zap.Error(err))
					continue
				}
				latencies.Record(time.Since(began))
				ops.Add(1)
				if throughput != nil {
					throughput.Increment(1)
				}
			}
			return nil
		})
	}
	if err := workers.Wait(); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	stats, err := c.stats(ctx)
	if err != nil {
		return nil, err
	}
	res := &Result{
		RunID:      runID,
		Name:       cfg.Name,
		Mode:       cfg.Mode,
		Pool:       cfg.Pool.String(),
		Operations: ops.Load(),
		Errors:     failures.Load(),
		Retries:    retries.Load(),
		Duration:   elapsed,
		P50:        latencies.GetPercentile(50),
		P95:        latencies.GetPercentile(95),
		P99:        latencies.GetPercentile(99),
		Stats:      stats,
	}
	if elapsed > 0 {
		res.Throughput = float64(res.Operations) / elapsed.Seconds()
	}
	if throughput != nil {
		throughput.GetAndReset()
	}

	log.Info("benchmark finished",
		zap.Int64("operations", res.Operations),
		zap.Int64("errors", res.Errors),
		zap.Float64("ops_per_second", res.Throughput),
		zap.Duration("p99", res.P99))
	return res, nil
}

// cycle requests a batch, uses it and returns it.
func cycle(ctx context.Context, c client, cfg Config) error {
	objs, err := c.acquire(ctx, cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, obj := range objs {
		obj.checksum()
	}
	if cfg.Hold > 0 {
		select {
		case <-time.After(cfg.Hold):
		case <-ctx.Done():
		}
	}
	// release even when ctx ended so the pool stays balanced
	return c.release(context.WithoutCancel(ctx), objs)
}

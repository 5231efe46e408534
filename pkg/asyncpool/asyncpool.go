// Package asyncpool serves batch requests against an ObjectPool from many
// goroutines.
//
// The synchronous pool is not safe for concurrent use. An AsyncPool starts a
// single executor goroutine that owns the pool; every operation is shipped
// to it as a job, so the pool itself needs no locks.
//
// When a batch cannot be filled because the pool overflowed (THROW overflow
// strategy, or REUSE with nothing to share), the request keeps the objects
// it already holds and waits in a FIFO queue. Every release retries the
// queue head first. A request whose context ends while waiting gets no
// objects: whatever it held is returned to the pool, including a batch that
// was completed concurrently with the cancellation.
package asyncpool

import (
	"context"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pooling/pkg/errors"
	"github.com/ajitpratap0/pooling/pkg/logger"
	"github.com/ajitpratap0/pooling/pkg/metrics"
	"github.com/ajitpratap0/pooling/pkg/observability"
	"github.com/ajitpratap0/pooling/pkg/pool"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.Sentinel(errors.ErrorTypeClosed, "async pool closed")

type result[T comparable] struct {
	objs []T
	err  error
}

// waiter is a pending batch request. Only the executor touches objs and done.
type waiter[T comparable] struct {
	id    string
	n     int
	objs  []T
	done  bool
	reply chan result[T] // buffered, receives exactly one value
}

type options struct {
	tracer  trace.Tracer
	log     *zap.Logger
	metrics *metrics.PoolMetrics
	name    string
	timeout time.Duration
}

// Option configures an AsyncPool.
type Option func(*options)

// WithTracer sets the tracer for request spans. The global otel tracer is used
// by default.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithLogger sets the logger. Logging is disabled by default.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics records request and release latency under name.
func WithMetrics(m *metrics.PoolMetrics, name string) Option {
	return func(o *options) {
		o.metrics = m
		o.name = name
	}
}

// WithRequestTimeout bounds requests whose context has no deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// AsyncPool is a concurrency-safe front for a pool.ObjectPool.
type AsyncPool[T comparable] struct {
	core    *pool.ObjectPool[T]
	opts    options
	jobs    chan func()
	closing chan struct{}
	stopped chan struct{}

	closeOnce sync.Once

	// owned by the executor
	waiters *queue.Queue
}

// New starts the executor for core. The caller must not use core directly
// afterwards; Close disposes it.
func New[T comparable](core *pool.ObjectPool[T], opts ...Option) *AsyncPool[T] {
	o := options{
		tracer: otel.Tracer("github.com/ajitpratap0/pooling/pkg/asyncpool"),
		log:    logger.L(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	a := &AsyncPool[T]{
		core:    core,
		opts:    o,
		jobs:    make(chan func()),
		closing: make(chan struct{}),
		stopped: make(chan struct{}),
		waiters: queue.New(),
	}
	go a.run()
	return a
}

func (a *AsyncPool[T]) run() {
	defer close(a.stopped)
	for {
		select {
		case job := <-a.jobs:
			job()
		case <-a.closing:
			a.shutdown()
			return
		}
	}
}

// do runs fn on the executor and waits for it to finish. An accepted job
// always runs to completion, even if ctx ends meanwhile.
func (a *AsyncPool[T]) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	job := func() {
		defer close(finished)
		fn()
	}
	select {
	case a.jobs <- job:
	case <-a.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Request returns a single object.
func (a *AsyncPool[T]) Request(ctx context.Context) (T, error) {
	objs, err := a.RequestBatch(ctx, 1)
	if err != nil {
		var zero T
		return zero, err
	}
	return objs[0], nil
}

// RequestBatch returns n objects, waiting for releases while the pool is
// overflowed. It returns either all n objects or none.
func (a *AsyncPool[T]) RequestBatch(ctx context.Context, n int) ([]T, error) {
	if n < 0 {
		return nil, errors.Wrap(pool.ErrInvalidArgument, errors.ErrorTypeValidation, "batch size must not be negative")
	}
	if n == 0 {
		return []T{}, nil
	}
	if cfg := a.core.Config(); cfg.OverflowStrategy() == pool.OverflowThrow && n > cfg.MaxCapacity() {
		return nil, errors.Wrapf(pool.ErrInvalidArgument, errors.ErrorTypeValidation,
			"batch of %d exceeds max capacity %d", n, cfg.MaxCapacity())
	}
	if _, ok := ctx.Deadline(); !ok && a.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.timeout)
		defer cancel()
	}

	w := &waiter[T]{
		id:    uuid.NewString(),
		n:     n,
		objs:  make([]T, 0, n),
		reply: make(chan result[T], 1),
	}
	ctx, span := a.opts.tracer.Start(ctx, "asyncpool.request_batch", trace.WithAttributes(
		attribute.String("request.id", w.id),
		observability.BatchSizeKey.Int(n),
	))
	defer span.End()
	log := a.opts.log.With(zap.String("request_id", w.id))
	start := time.Now()

	var queued bool
	if err := a.do(ctx, func() { queued = a.enqueue(w) }); err != nil {
		// Request was never called for this waiter.
		return nil, a.fail(span, err)
	}
	if queued {
		span.AddEvent("waiting")
		log.Debug("batch request waiting for releases", zap.Int("size", n))
	}

	select {
	case r := <-w.reply:
		a.observe("request", start)
		if r.err != nil {
			return nil, a.fail(span, r.err)
		}
		observability.RecordResult(span, nil)
		return r.objs, nil
	case <-ctx.Done():
	}

	// Cancelled: withdraw the request, returning whatever it holds.
	err := a.do(context.WithoutCancel(ctx), func() { a.withdraw(w) })
	if err != nil && !errors.Is(err, ErrClosed) {
		log.Warn("failed to withdraw cancelled request", zap.Error(err))
	}
	log.Debug("batch request cancelled", zap.Error(ctx.Err()))
	return nil, a.fail(span, contextError(ctx))
}

// enqueue serves w immediately when possible. It reports whether w had to
// wait. Runs on the executor.
func (a *AsyncPool[T]) enqueue(w *waiter[T]) bool {
	// Earlier waiters keep their place.
	if a.waiters.Length() > 0 {
		a.waiters.Add(w)
		return true
	}
	if a.fill(w) {
		return false
	}
	a.waiters.Add(w)
	return true
}

// fill requests objects for w until it is complete or the pool overflows.
// It reports whether w was answered. Runs on the executor.
func (a *AsyncPool[T]) fill(w *waiter[T]) bool {
	for len(w.objs) < w.n {
		obj, err := a.core.Request()
		if errors.Is(err, pool.ErrPoolOverflowed) {
			return false
		}
		if err != nil {
			a.answer(w, result[T]{err: errors.Join(err, a.core.ReleaseRange(w.objs))})
			return true
		}
		w.objs = append(w.objs, obj)
	}
	a.answer(w, result[T]{objs: w.objs})
	return true
}

func (a *AsyncPool[T]) answer(w *waiter[T], r result[T]) {
	w.done = true
	w.objs = nil
	w.reply <- r
}

// pump serves queued waiters in order until the head cannot be completed.
// Runs on the executor.
func (a *AsyncPool[T]) pump() {
	for a.waiters.Length() > 0 {
		w := a.waiters.Peek().(*waiter[T])
		if !w.done && !a.fill(w) {
			return
		}
		a.waiters.Remove()
	}
}

// withdraw drops a cancelled waiter and gives back its objects. Runs on the
// executor.
func (a *AsyncPool[T]) withdraw(w *waiter[T]) {
	var objs []T
	if w.done {
		// answered concurrently with the cancellation
		if r := <-w.reply; r.err == nil {
			objs = r.objs
		}
	} else {
		objs = w.objs
		w.done = true
		w.objs = nil
	}
	if err := a.core.ReleaseRange(objs); err != nil {
		a.opts.log.Warn("failed to release objects of cancelled request",
			zap.String("request_id", w.id), zap.Error(err))
	}
	a.pump()
}

// Release returns objects to the pool and serves waiting requests.
func (a *AsyncPool[T]) Release(ctx context.Context, objs ...T) error {
	start := time.Now()
	var err error
	if doErr := a.do(ctx, func() {
		err = a.core.ReleaseRange(objs)
		a.pump()
	}); doErr != nil {
		return doErr
	}
	a.observe("release", start)
	return err
}

// WarmUp pre-creates n instances.
func (a *AsyncPool[T]) WarmUp(ctx context.Context, n int) error {
	var err error
	if doErr := a.do(ctx, func() {
		err = a.core.WarmUp(n)
		a.pump()
	}); doErr != nil {
		return doErr
	}
	return err
}

// Stats returns a snapshot of the pool counters.
func (a *AsyncPool[T]) Stats(ctx context.Context) (pool.Stats, error) {
	var s pool.Stats
	err := a.do(ctx, func() { s = a.core.Stats() })
	return s, err
}

// Waiting returns the number of queued requests.
func (a *AsyncPool[T]) Waiting(ctx context.Context) (int, error) {
	var n int
	err := a.do(ctx, func() {
		for i := range a.waiters.Length() {
			if !a.waiters.Get(i).(*waiter[T]).done {
				n++
			}
		}
	})
	return n, err
}

// Close answers every waiting request with ErrClosed, disposes the pool and
// stops the executor. It is safe to call more than once.
func (a *AsyncPool[T]) Close() {
	a.closeOnce.Do(func() { close(a.closing) })
	<-a.stopped
}

func (a *AsyncPool[T]) shutdown() {
	for a.waiters.Length() > 0 {
		w := a.waiters.Remove().(*waiter[T])
		if w.done {
			continue
		}
		_ = a.core.ReleaseRange(w.objs)
		a.answer(w, result[T]{err: ErrClosed})
	}
	a.core.Dispose()
	a.opts.log.Debug("async pool closed", zap.Any("key", a.core.Key()))
}

func (a *AsyncPool[T]) observe(op string, start time.Time) {
	if a.opts.metrics != nil {
		a.opts.metrics.ObserveLatency(a.opts.name, op, time.Since(start))
	}
}

func (a *AsyncPool[T]) fail(span trace.Span, err error) error {
	observability.RecordResult(span, err)
	return err
}

// contextError classifies a finished context as a timeout or cancellation.
func contextError(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrorTypeTimeout, "request timed out")
	}
	return err
}

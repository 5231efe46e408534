// Package pooling is a generic engine for reusable objects: it hands objects
// out, takes them back on release and recycles instances instead of
// allocating fresh ones.
//
// A pool combines three policies:
//
//  1. Borrow strategy: which passive instance the next request receives
//     (LIFO, FIFO or RANDOM, plus a bounded CIRCULAR buffer).
//
//  2. Overflow strategy: what happens once the pool holds its maximum number
//     of instances and none is passive. REUSE hands out the oldest active
//     instance again, REQUEST creates one beyond the cap and THROW fails with
//     pool.ErrPoolOverflowed.
//
//  3. Lifecycle: every instance moves through create, activate, passivate,
//     reuse and destroy, with factory and object hooks at each step.
//
// # Quick Start
//
//	p, err := pool.New[*bytes.Buffer]("buffers",
//	    pool.Funcs[*bytes.Buffer]{
//	        New:     func(any) (*bytes.Buffer, error) { return new(bytes.Buffer), nil },
//	        Disable: func(_ any, b *bytes.Buffer) { b.Reset() },
//	    },
//	    pool.NewConfig(pool.WithMaxCapacity(64), pool.WithOverflowStrategy(pool.OverflowThrow)))
//	if err != nil {
//	    return err
//	}
//	defer p.Dispose()
//
//	buf, err := p.Request()
//	if err != nil {
//	    return err
//	}
//	defer p.Release(buf)
//
// The core ObjectPool is not safe for concurrent use. Share it between
// goroutines through asyncpool, which serializes all calls on one executor
// goroutine and lets overflowed batch requests wait for releases.
//
// # Key Packages
//
//	pkg/borrow        - Passive instance buffers (LIFO, FIFO, RANDOM, CIRCULAR)
//	pkg/pool          - ObjectPool, instances, configuration and observers
//	pkg/asyncpool     - Concurrent batch requests above a pool
//	pkg/registry      - Pools kept under integer keys
//	pkg/compression   - Pooled compression codecs
//	pkg/json          - Pooled JSON encoders
//	pkg/config        - YAML pool configuration files
//	pkg/errors        - Structured error handling
//	pkg/logger        - Structured logging
//	pkg/metrics       - Prometheus pool metrics
//	pkg/observability - OpenTelemetry tracing and event logging
//
// # Command Line
//
//	pooling validate --config pools.yaml
//	pooling bench --workers 8 --max-capacity 64 --overflow throw --mode locked
//	pooling serve --config pools.yaml --addr :9090
//
// Every flag can also be set through a POOLING_<FLAG> environment variable,
// and configuration files support ${VAR_NAME} substitution.
package pooling

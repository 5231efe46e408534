package compression

import (
	"io"
	"sync"

	"github.com/ajitpratap0/pooling/pkg/errors"
	"github.com/ajitpratap0/pooling/pkg/pool"
)

// codecFactory creates codecs of one configuration for an ObjectPool.
type codecFactory struct {
	config *Config
}

func (f codecFactory) Create(any) (*Codec, error) { return NewCodec(f.config) }

func (f codecFactory) Destroy(_ any, c *Codec) { _ = c.Close() }

func (f codecFactory) OnEnable(any, *Codec) {}

func (f codecFactory) OnDisable(_ any, c *Codec) { c.trim(f.config.MaxRetainedBuffer) }

// CodecPool recycles codecs of one algorithm and level. It is safe for
// concurrent use: the underlying pool is guarded by a mutex while each
// borrowed codec is used by a single goroutine.
type CodecPool struct {
	mu     sync.Mutex
	config *Config
	pool   *pool.ObjectPool[*Codec]
}

// NewCodecPool creates a codec pool and warms it up to the pool's initial
// capacity. A codec cannot be shared by two callers, so the REUSE overflow
// strategy is rejected.
func NewCodecPool(config *Config, poolConfig pool.Config, opts ...pool.Option) (*CodecPool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if poolConfig.OverflowStrategy() == pool.OverflowReuse {
		return nil, errors.Wrap(pool.ErrInvalidArgument, errors.ErrorTypeValidation,
			"codec pools cannot use the reuse overflow strategy")
	}
	probe, err := NewCodec(config)
	if err != nil {
		return nil, err
	}
	_ = probe.Close()

	p, err := pool.New[*Codec](config.Algorithm, codecFactory{config: config}, poolConfig, opts...)
	if err != nil {
		return nil, err
	}
	if err := p.WarmUp(min(poolConfig.InitCapacity(), poolConfig.MaxCapacity())); err != nil {
		p.Dispose()
		return nil, err
	}
	return &CodecPool{config: config, pool: p}, nil
}

// Algorithm returns the algorithm of the pooled codecs.
func (cp *CodecPool) Algorithm() Algorithm { return cp.config.Algorithm }

// Get borrows a codec. It must be returned with Put.
func (cp *CodecPool) Get() (*Codec, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.pool.Request()
}

// Put returns a codec borrowed with Get.
func (cp *CodecPool) Put(c *Codec) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.pool.Release(c)
}

// With runs fn with a borrowed codec and returns it afterwards.
func (cp *CodecPool) With(fn func(*Codec) error) error {
	c, err := cp.Get()
	if err != nil {
		return err
	}
	fnErr := fn(c)
	return errors.Join(fnErr, cp.Put(c))
}

// Compress compresses data using a pooled codec
func (cp *CodecPool) Compress(data []byte) (out []byte, err error) {
	err = cp.With(func(c *Codec) error {
		out, err = c.Compress(data)
		return err
	})
	return out, err
}

// Decompress decompresses data using a pooled codec
func (cp *CodecPool) Decompress(data []byte) (out []byte, err error) {
	err = cp.With(func(c *Codec) error {
		out, err = c.Decompress(data)
		return err
	})
	return out, err
}

// CompressStream compresses src into dst using a pooled codec
func (cp *CodecPool) CompressStream(dst io.Writer, src io.Reader) error {
	return cp.With(func(c *Codec) error {
		return c.CompressStream(dst, src)
	})
}

// DecompressStream decompresses src into dst using a pooled codec
func (cp *CodecPool) DecompressStream(dst io.Writer, src io.Reader) error {
	return cp.With(func(c *Codec) error {
		return c.DecompressStream(dst, src)
	})
}

// Stats returns a snapshot of the underlying pool counters.
func (cp *CodecPool) Stats() pool.Stats {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.pool.Stats()
}

// Close closes every codec. Later calls fail with pool.ErrDisposed.
func (cp *CodecPool) Close() {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.pool.Dispose()
}

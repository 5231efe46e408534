// Package json provides JSON serialization backed by pooled encoders.
//
// Encoders are held in a pool.ObjectPool and each owns a scratch buffer, so
// repeated encoding reuses both the goccy/go-json encoder and its memory.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/pooling/pkg/borrow"
	"github.com/ajitpratap0/pooling/pkg/errors"
	"github.com/ajitpratap0/pooling/pkg/pool"
)

// DefaultMaxRetained is the largest scratch buffer kept by a pooled encoder.
const DefaultMaxRetained = 1024 * 1024

// Encoder is a JSON encoder writing into its own scratch buffer.
type Encoder struct {
	buf *bytes.Buffer
	enc *gojson.Encoder
}

// NewEncoder creates an encoder with an initial buffer of size bytes.
func NewEncoder(size int) *Encoder {
	buf := bytes.NewBuffer(make([]byte, 0, size))
	enc := gojson.NewEncoder(buf)
	// Configure for performance
	enc.SetEscapeHTML(false)
	return &Encoder{buf: buf, enc: enc}
}

// Encode appends v and a trailing newline to the buffer.
func (e *Encoder) Encode(v any) error {
	n := e.buf.Len()
	if err := e.enc.Encode(v); err != nil {
		e.buf.Truncate(n)
		return err
	}
	return nil
}

// Bytes returns the buffered output. It is only valid until the next call.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

// Len returns the number of buffered bytes.
func (e *Encoder) Len() int { return e.buf.Len() }

// Cap returns the capacity of the scratch buffer.
func (e *Encoder) Cap() int { return e.buf.Cap() }

// Reset discards the buffered output.
func (e *Encoder) Reset() { e.buf.Reset() }

// trimNewline drops the newline written by Encode.
func (e *Encoder) trimNewline() {
	if n := e.buf.Len(); n > 0 && e.buf.Bytes()[n-1] == '\n' {
		e.buf.Truncate(n - 1)
	}
}

// EncoderPool shares encoders between goroutines.
type EncoderPool struct {
	mu          sync.Mutex
	pool        *pool.ObjectPool[*Encoder]
	maxRetained int
}

// NewEncoderPool creates an encoder pool. Encoders whose buffer grew beyond
// maxRetained are destroyed instead of pooled. An encoder cannot be shared,
// so the reuse overflow strategy is rejected.
func NewEncoderPool(cfg pool.Config, maxRetained int) (*EncoderPool, error) {
	if cfg.OverflowStrategy() == pool.OverflowReuse {
		return nil, errors.Wrap(pool.ErrInvalidArgument, errors.ErrorTypeValidation,
			"encoder pools cannot use the reuse overflow strategy")
	}
	if maxRetained <= 0 {
		maxRetained = DefaultMaxRetained
	}
	p, err := pool.New[*Encoder]("json", pool.Funcs[*Encoder]{
		New:     func(any) (*Encoder, error) { return NewEncoder(4096), nil },
		Disable: func(_ any, e *Encoder) { e.Reset() },
	}, cfg)
	if err != nil {
		return nil, err
	}
	return &EncoderPool{pool: p, maxRetained: maxRetained}, nil
}

// Get borrows an empty encoder.
func (ep *EncoderPool) Get() (*Encoder, error) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.pool.Request()
}

// Put returns an encoder. Oversized encoders are destroyed.
func (ep *EncoderPool) Put(e *Encoder) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if e.Cap() > ep.maxRetained {
		return ep.pool.Discard(e)
	}
	return ep.pool.Release(e)
}

// Stats returns a snapshot of the pool counters.
func (ep *EncoderPool) Stats() pool.Stats {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.pool.Stats()
}

// Close disposes the pool.
func (ep *EncoderPool) Close() {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.pool.Dispose()
}

// with runs fn with a borrowed encoder.
func (ep *EncoderPool) with(fn func(*Encoder) error) error {
	e, err := ep.Get()
	if err != nil {
		return err
	}
	return errors.Join(fn(e), ep.Put(e))
}

// MarshalToWriter encodes v followed by a newline into w.
func (ep *EncoderPool) MarshalToWriter(w io.Writer, v any) error {
	return ep.with(func(e *Encoder) error {
		if err := e.Encode(v); err != nil {
			return err
		}
		_, err := w.Write(e.Bytes())
		return err
	})
}

// MarshalArray encodes values as a JSON array.
func (ep *EncoderPool) MarshalArray(values []any) (out []byte, err error) {
	if len(values) == 0 {
		return []byte("[]"), nil
	}
	err = ep.with(func(e *Encoder) error {
		e.buf.WriteByte('[')
		for i, v := range values {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			if err := e.Encode(v); err != nil {
				return err
			}
			e.trimNewline()
		}
		e.buf.WriteByte(']')
		out = bytes.Clone(e.Bytes())
		return nil
	})
	return out, err
}

// MarshalLines encodes values as newline delimited JSON.
func (ep *EncoderPool) MarshalLines(values []any) (out []byte, err error) {
	err = ep.with(func(e *Encoder) error {
		for _, v := range values {
			if err := e.Encode(v); err != nil {
				return err
			}
		}
		out = bytes.Clone(e.Bytes())
		return nil
	})
	return out, err
}

var defaultPool = func() *EncoderPool {
	ep, err := NewEncoderPool(pool.NewConfig(
		pool.WithInitCapacity(0),
		pool.WithMaxCapacity(64),
		pool.WithBorrowStrategy(borrow.LIFO),
		pool.WithOverflowStrategy(pool.OverflowRequest),
	), DefaultMaxRetained)
	if err != nil {
		panic(err)
	}
	return ep
}()

// Default returns the process wide encoder pool.
func Default() *EncoderPool { return defaultPool }

// Marshal is a high-performance drop-in replacement for json.Marshal
func Marshal(v any) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a high-performance drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v any) error {
	return gojson.Unmarshal(data, v)
}

// MarshalIndent is a high-performance replacement for json.MarshalIndent
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// MarshalToWriter encodes v into w with a pooled encoder.
func MarshalToWriter(w io.Writer, v any) error {
	return defaultPool.MarshalToWriter(w, v)
}

// MarshalArray encodes values as a JSON array with a pooled encoder.
func MarshalArray(values []any) ([]byte, error) {
	return defaultPool.MarshalArray(values)
}

// MarshalLines encodes values as newline delimited JSON with a pooled encoder.
func MarshalLines(values []any) ([]byte, error) {
	return defaultPool.MarshalLines(values)
}

// StreamingEncoder writes a sequence of values to w, either as one JSON
// array or as newline delimited JSON.
type StreamingEncoder struct {
	writer  io.Writer
	pool    *EncoderPool
	encoder *Encoder
	first   bool
	isArray bool
}

// NewStreamingEncoder borrows an encoder from the default pool. Close
// returns it.
func NewStreamingEncoder(w io.Writer, isArray bool) (*StreamingEncoder, error) {
	e, err := defaultPool.Get()
	if err != nil {
		return nil, err
	}
	se := &StreamingEncoder{
		writer:  w,
		pool:    defaultPool,
		encoder: e,
		first:   true,
		isArray: isArray,
	}
	if isArray {
		if _, err := w.Write([]byte{'['}); err != nil {
			_ = defaultPool.Put(e)
			return nil, err
		}
	}
	return se, nil
}

// Encode writes a single value
func (se *StreamingEncoder) Encode(v any) error {
	if se.encoder == nil {
		return errors.New(errors.ErrorTypeClosed, "streaming encoder closed")
	}
	se.encoder.Reset()
	if se.isArray && !se.first {
		se.encoder.buf.WriteByte(',')
	}
	if err := se.encoder.Encode(v); err != nil {
		return err
	}
	if se.isArray {
		se.encoder.trimNewline()
	}
	se.first = false
	_, err := se.writer.Write(se.encoder.Bytes())
	return err
}

// Close finalizes the output and returns the encoder to its pool.
func (se *StreamingEncoder) Close() error {
	if se.encoder == nil {
		return nil
	}
	var err error
	if se.isArray {
		_, err = se.writer.Write([]byte{']'})
	}
	e := se.encoder
	se.encoder = nil
	return errors.Join(err, se.pool.Put(e))
}

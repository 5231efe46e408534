// Package compression provides reusable compression codecs and a pool that
// recycles them.
//
// A Codec owns the encoder, decoder and scratch buffer of one algorithm at
// one level. Building those is the expensive part of compressing small
// payloads, so codecs are meant to be borrowed from a CodecPool rather than
// created per call:
//
//	codecs, err := compression.NewCodecPool(
//	    &compression.Config{Algorithm: compression.Zstd, Level: compression.Default},
//	    pool.NewConfig(pool.WithInitCapacity(4), pool.WithMaxCapacity(16),
//	        pool.WithOverflowStrategy(pool.OverflowRequest)))
//	if err != nil {
//	    return err
//	}
//	defer codecs.Close()
//
//	packed, err := codecs.Compress(data)
//
// Snappy, S2 and Zstd compress whole buffers in their block format; the
// other algorithms produce a complete stream in memory. The Stream methods
// always use the framed stream format.
package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/pooling/pkg/errors"
)

// Algorithm names a compression format.
type Algorithm string

const (
	None    Algorithm = "none"
	Gzip    Algorithm = "gzip"
	Snappy  Algorithm = "snappy"
	LZ4     Algorithm = "lz4"
	Zstd    Algorithm = "zstd"
	S2      Algorithm = "s2"
	Deflate Algorithm = "deflate"
)

// Algorithms lists every supported algorithm.
var Algorithms = []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate}

// Level trades speed for ratio. Algorithms without levels ignore it, S2
// switches to its better mode from Better up.
type Level int

const (
	Fastest Level = 1
	Default Level = 5
	Better  Level = 7
	Best    Level = 9
)

func (l Level) String() string {
	switch l {
	case Fastest:
		return "fastest"
	case Default:
		return "default"
	case Better:
		return "better"
	case Best:
		return "best"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Config selects the codecs built by NewCodec and NewCodecPool.
type Config struct {
	Algorithm Algorithm
	Level     Level
	// BufferSize is the initial capacity of the scratch buffer.
	BufferSize int
	// MaxRetainedBuffer caps the scratch buffer a pooled codec keeps when it
	// goes back to its pool. Zero keeps any size.
	MaxRetainedBuffer int
}

// DefaultConfig returns a Snappy configuration with a 64KiB scratch buffer.
func DefaultConfig() *Config {
	return &Config{
		Algorithm:         Snappy,
		Level:             Default,
		BufferSize:        64 << 10,
		MaxRetainedBuffer: 1 << 20,
	}
}

// engine is the per-algorithm part of a Codec. Writers and readers are
// reset onto the given stream and stay owned by the engine.
type engine interface {
	writer(dst io.Writer) (io.WriteCloser, error)
	reader(src io.Reader) (io.Reader, error)
	close() error
}

// blockEngine compresses whole buffers without going through a stream.
type blockEngine interface {
	encode(src []byte) []byte
	decode(src []byte) ([]byte, error)
}

// Codec compresses and decompresses with one algorithm. A Codec is not safe
// for concurrent use.
type Codec struct {
	algorithm Algorithm
	level     Level
	eng       engine
	scratch   *bytes.Buffer
}

// NewCodec builds a codec for cfg, or for DefaultConfig when cfg is nil. A
// zero Level means Default.
func NewCodec(cfg *Config) (*Codec, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	level := cfg.Level
	if level == 0 {
		level = Default
	}
	eng, err := newEngine(cfg.Algorithm, level)
	if err != nil {
		return nil, err
	}
	return &Codec{
		algorithm: cfg.Algorithm,
		level:     level,
		eng:       eng,
		scratch:   bytes.NewBuffer(make([]byte, 0, max(cfg.BufferSize, 0))),
	}, nil
}

func newEngine(alg Algorithm, level Level) (engine, error) {
	switch alg {
	case None:
		return identity{}, nil
	case Gzip:
		w, err := gzip.NewWriterLevel(io.Discard, deflateLevel(level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "gzip level")
		}
		return &gzipEngine{w: w, r: new(gzip.Reader)}, nil
	case Deflate:
		w, err := flate.NewWriter(io.Discard, deflateLevel(level))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "deflate level")
		}
		return &flateEngine{w: w, r: flate.NewReader(bytes.NewReader(nil))}, nil
	case LZ4:
		w := lz4.NewWriter(nil)
		if err := w.Apply(lz4.CompressionLevelOption(lz4Level(level))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "lz4 level")
		}
		return &lz4Engine{w: w, r: lz4.NewReader(nil)}, nil
	case Zstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevel(level)), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "zstd encoder")
		}
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			_ = enc.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "zstd decoder")
		}
		return &zstdEngine{enc: enc, dec: dec}, nil
	case Snappy:
		return snappyEngine{}, nil
	case S2:
		return s2Engine{better: level >= Better}, nil
	}
	return nil, errors.New(errors.ErrorTypeValidation, "unsupported compression algorithm").
		WithDetail("algorithm", alg)
}

// Algorithm returns the codec's algorithm.
func (c *Codec) Algorithm() Algorithm { return c.algorithm }

// Level returns the codec's level.
func (c *Codec) Level() Level { return c.level }

// Compress returns data compressed. The result does not alias codec memory.
func (c *Codec) Compress(data []byte) ([]byte, error) {
	if b, ok := c.eng.(blockEngine); ok {
		return b.encode(data), nil
	}
	c.scratch.Reset()
	if err := c.CompressStream(c.scratch, bytes.NewReader(data)); err != nil {
		c.scratch.Reset()
		return nil, err
	}
	return c.drain(), nil
}

// Decompress reverses Compress.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	if b, ok := c.eng.(blockEngine); ok {
		out, err := b.decode(data)
		if err != nil {
			return nil, c.corrupt(err)
		}
		return out, nil
	}
	c.scratch.Reset()
	if err := c.DecompressStream(c.scratch, bytes.NewReader(data)); err != nil {
		c.scratch.Reset()
		return nil, err
	}
	return c.drain(), nil
}

// CompressStream compresses src into dst and terminates the stream.
func (c *Codec) CompressStream(dst io.Writer, src io.Reader) error {
	w, err := c.eng.writer(dst)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeInternal, "%s writer", c.algorithm)
	}
	if _, err := io.Copy(w, src); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeInternal, "%s compress", c.algorithm)
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeInternal, "%s flush", c.algorithm)
	}
	return nil
}

// DecompressStream decompresses src into dst.
func (c *Codec) DecompressStream(dst io.Writer, src io.Reader) error {
	r, err := c.eng.reader(src)
	if err != nil {
		return c.corrupt(err)
	}
	if _, err := io.Copy(dst, r); err != nil { //nolint:gosec // G110: callers bound their own inputs
		return c.corrupt(err)
	}
	return nil
}

// Close releases the encoder and decoder. The codec is unusable afterwards.
func (c *Codec) Close() error { return c.eng.close() }

func (c *Codec) corrupt(err error) error {
	return errors.Wrapf(err, errors.ErrorTypeValidation, "%s input", c.algorithm).
		WithDetail("algorithm", c.algorithm)
}

// drain copies the scratch contents out and empties the buffer.
func (c *Codec) drain() []byte {
	out := bytes.Clone(c.scratch.Bytes())
	c.scratch.Reset()
	return out
}

// trim drops the scratch buffer once it grew past limit.
func (c *Codec) trim(limit int) {
	c.scratch.Reset()
	if limit > 0 && c.scratch.Cap() > limit {
		c.scratch = new(bytes.Buffer)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type identity struct{}

func (identity) writer(dst io.Writer) (io.WriteCloser, error) { return nopWriteCloser{dst}, nil }
func (identity) reader(src io.Reader) (io.Reader, error)      { return src, nil }
func (identity) close() error                                 { return nil }
func (identity) encode(src []byte) []byte                     { return bytes.Clone(src) }
func (identity) decode(src []byte) ([]byte, error)            { return bytes.Clone(src), nil }

type gzipEngine struct {
	w *gzip.Writer
	r *gzip.Reader
}

func (e *gzipEngine) writer(dst io.Writer) (io.WriteCloser, error) {
	e.w.Reset(dst)
	return e.w, nil
}

func (e *gzipEngine) reader(src io.Reader) (io.Reader, error) {
	if err := e.r.Reset(src); err != nil {
		return nil, err
	}
	return e.r, nil
}

func (e *gzipEngine) close() error { return nil }

type flateEngine struct {
	w *flate.Writer
	r io.ReadCloser
}

func (e *flateEngine) writer(dst io.Writer) (io.WriteCloser, error) {
	e.w.Reset(dst)
	return e.w, nil
}

func (e *flateEngine) reader(src io.Reader) (io.Reader, error) {
	if err := e.r.(flate.Resetter).Reset(src, nil); err != nil {
		return nil, err
	}
	return e.r, nil
}

func (e *flateEngine) close() error { return e.r.Close() }

type lz4Engine struct {
	w *lz4.Writer
	r *lz4.Reader
}

// writer keeps the level applied at construction across resets.
func (e *lz4Engine) writer(dst io.Writer) (io.WriteCloser, error) {
	e.w.Reset(dst)
	return e.w, nil
}

func (e *lz4Engine) reader(src io.Reader) (io.Reader, error) {
	e.r.Reset(src)
	return e.r, nil
}

func (e *lz4Engine) close() error { return nil }

type zstdEngine struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func (e *zstdEngine) writer(dst io.Writer) (io.WriteCloser, error) {
	e.enc.Reset(dst)
	return e.enc, nil
}

func (e *zstdEngine) reader(src io.Reader) (io.Reader, error) {
	if err := e.dec.Reset(src); err != nil {
		return nil, err
	}
	return e.dec, nil
}

func (e *zstdEngine) encode(src []byte) []byte { return e.enc.EncodeAll(src, nil) }

func (e *zstdEngine) decode(src []byte) ([]byte, error) { return e.dec.DecodeAll(src, nil) }

func (e *zstdEngine) close() error {
	e.dec.Close()
	return e.enc.Close()
}

type snappyEngine struct{}

func (snappyEngine) writer(dst io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(dst), nil
}
func (snappyEngine) reader(src io.Reader) (io.Reader, error) { return snappy.NewReader(src), nil }
func (snappyEngine) close() error                            { return nil }
func (snappyEngine) encode(src []byte) []byte                { return snappy.Encode(nil, src) }
func (snappyEngine) decode(src []byte) ([]byte, error)       { return snappy.Decode(nil, src) }

type s2Engine struct{ better bool }

func (e s2Engine) writer(dst io.Writer) (io.WriteCloser, error) {
	if e.better {
		return s2.NewWriter(dst, s2.WriterBetterCompression()), nil
	}
	return s2.NewWriter(dst), nil
}

func (s2Engine) reader(src io.Reader) (io.Reader, error) { return s2.NewReader(src), nil }
func (s2Engine) close() error                            { return nil }

func (e s2Engine) encode(src []byte) []byte {
	if e.better {
		return s2.EncodeBetter(nil, src)
	}
	return s2.Encode(nil, src)
}

func (s2Engine) decode(src []byte) ([]byte, error) { return s2.Decode(nil, src) }

// deflateLevel serves gzip and raw deflate, which share their level scale.
func deflateLevel(l Level) int {
	switch {
	case l <= Fastest:
		return flate.BestSpeed
	case l >= Best:
		return flate.BestCompression
	}
	return flate.DefaultCompression
}

func lz4Level(l Level) lz4.CompressionLevel {
	switch {
	case l <= Fastest:
		return lz4.Fast
	case l >= Best:
		return lz4.Level9
	}
	return lz4.Level5
}

func zstdLevel(l Level) zstd.EncoderLevel {
	switch {
	case l <= Fastest:
		return zstd.SpeedFastest
	case l >= Best:
		return zstd.SpeedBestCompression
	case l >= Better:
		return zstd.SpeedBetterCompression
	}
	return zstd.SpeedDefault
}

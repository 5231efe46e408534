// Package logger builds the zap loggers used across the pooling engine and
// holds the process-wide default.
//
// Libraries in this module take a *zap.Logger option and fall back to L(),
// which discards everything until the command installs a logger with Set.
package logger

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/pooling/pkg/errors"
)

var global atomic.Pointer[zap.Logger]

func init() { global.Store(zap.NewNop()) }

// Config selects level, encoding and outputs of a logger.
type Config struct {
	Level       string   `yaml:"level" json:"level" mapstructure:"level"`
	Development bool     `yaml:"development" json:"development" mapstructure:"development"`
	Encoding    string   `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	OutputPaths []string `yaml:"output_paths" json:"output_paths" mapstructure:"output_paths"`
}

// DefaultConfig logs info and above as JSON to stdout.
func DefaultConfig() Config {
	return Config{Level: "info", Encoding: "json", OutputPaths: []string{"stdout"}}
}

// New builds a logger from cfg. Empty fields take the DefaultConfig values.
// Development loggers color their levels and attach stacks to errors.
func New(cfg Config) (*zap.Logger, error) {
	def := DefaultConfig()
	if cfg.Level == "" {
		cfg.Level = def.Level
	}
	if cfg.Encoding == "" {
		cfg.Encoding = def.Encoding
	}
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = def.OutputPaths
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "logging.level").
			WithDetail("level", cfg.Level)
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	opts := []zap.Option{zap.AddStacktrace(zapcore.PanicLevel)}
	if cfg.Development {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		opts = []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	}

	zc := zap.Config{
		Level:             level,
		Development:       cfg.Development,
		DisableStacktrace: true,
		Encoding:          cfg.Encoding,
		EncoderConfig:     enc,
		OutputPaths:       cfg.OutputPaths,
		ErrorOutputPaths:  []string{"stderr"},
	}
	log, err := zc.Build(opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "building logger")
	}
	return log, nil
}

// L returns the process-wide logger.
func L() *zap.Logger { return global.Load() }

// Set installs log as the process-wide logger. A nil log restores the no-op
// logger.
func Set(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	global.Store(log)
}

type ctxKey int

const (
	poolKey ctxKey = iota
	runIDKey
)

// ContextWithPool stores the name of the pool being served in ctx.
func ContextWithPool(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, poolKey, name)
}

// ContextWithRunID stores a benchmark run id in ctx.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// FromContext returns base with the pool and run id stored in ctx.
func FromContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	var fields []zap.Field
	if name, ok := ctx.Value(poolKey).(string); ok {
		fields = append(fields, zap.String("pool", name))
	}
	if id, ok := ctx.Value(runIDKey).(string); ok {
		fields = append(fields, zap.String("run_id", id))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// Package observability wires OpenTelemetry tracing and zap event logging
// into pools.
//
// Initialize installs a global tracer provider; until then GetTracer returns
// a no-op tracer, so pool spans cost nothing in processes that never enable
// tracing.
package observability

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pooling/pkg/errors"
)

// Exporters understood by Initialize.
const (
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

var (
	mu       sync.RWMutex
	tracer   trace.Tracer = noop.NewTracerProvider().Tracer("pooling")
	provider *sdktrace.TracerProvider
)

// TracingConfig describes the tracer provider built by Initialize.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// SamplingRate is the sampled fraction of root spans, clamped to [0, 1].
	SamplingRate float64
	// ExporterType is ExporterStdout or ExporterNone.
	ExporterType string
	// Writer receives stdout spans, os.Stdout when nil.
	Writer io.Writer

	BatchTimeout   time.Duration
	MaxExportBatch int
	MaxQueueSize   int
}

// DefaultTracingConfig samples a tenth of the traces to stdout. ENVIRONMENT
// and TRACING_EXPORTER override the environment and the exporter.
func DefaultTracingConfig() TracingConfig {
	cfg := TracingConfig{
		ServiceName:    "pooling",
		ServiceVersion: "dev",
		Environment:    "development",
		SamplingRate:   0.1,
		ExporterType:   ExporterStdout,
		BatchTimeout:   5 * time.Second,
		MaxExportBatch: 512,
		MaxQueueSize:   2048,
	}
	if env, ok := os.LookupEnv("ENVIRONMENT"); ok && env != "" {
		cfg.Environment = env
	}
	if exp, ok := os.LookupEnv("TRACING_EXPORTER"); ok && exp != "" {
		cfg.ExporterType = exp
	}
	return cfg
}

// Initialize replaces the global tracer provider, shutting the previous one
// down. log may be nil.
func Initialize(cfg TracingConfig, log *zap.Logger) error {
	tp, err := newProvider(cfg)
	if err != nil {
		return err
	}

	mu.Lock()
	prev := provider
	provider = tp
	tracer = tp.Tracer(cfg.ServiceName)
	mu.Unlock()

	if prev != nil {
		_ = prev.Shutdown(context.Background())
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if log != nil {
		log.Info("tracing initialized",
			zap.String("service", cfg.ServiceName),
			zap.String("exporter", cfg.ExporterType),
			zap.Float64("sampling_rate", cfg.SamplingRate))
	}
	return nil
}

func newProvider(cfg TracingConfig) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.SamplingRate))),
	}

	switch cfg.ExporterType {
	case ExporterNone:
	case ExporterStdout, "":
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "creating stdout exporter")
		}
		opts = append(opts, sdktrace.WithBatcher(exp, batchOptions(cfg)...))
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "unknown trace exporter").
			WithDetail("exporter", cfg.ExporterType)
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func sampler(rate float64) sdktrace.Sampler {
	if rate <= 0 {
		return sdktrace.NeverSample()
	}
	if rate >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.TraceIDRatioBased(rate)
}

func batchOptions(cfg TracingConfig) []sdktrace.BatchSpanProcessorOption {
	var opts []sdktrace.BatchSpanProcessorOption
	if cfg.BatchTimeout > 0 {
		opts = append(opts, sdktrace.WithBatchTimeout(cfg.BatchTimeout))
	}
	if cfg.MaxExportBatch > 0 {
		opts = append(opts, sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatch))
	}
	if cfg.MaxQueueSize > 0 {
		opts = append(opts, sdktrace.WithMaxQueueSize(cfg.MaxQueueSize))
	}
	return opts
}

// GetTracer returns the tracer installed by Initialize.
func GetTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return tracer
}

// Shutdown flushes and stops the tracer provider. Later spans go to the
// no-op tracer. Calling Shutdown without a provider is a no-op.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp := provider
	provider = nil
	tracer = noop.NewTracerProvider().Tracer("pooling")
	mu.Unlock()

	if tp == nil {
		return nil
	}
	if err := tp.Shutdown(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "shutting down tracer provider")
	}
	return nil
}

package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/pooling/pkg/pool"
)

// TraceFields returns the trace and span ids of the span in ctx, if any
func TraceFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	}
}

// WithTrace decorates log with the trace ids found in ctx
func WithTrace(ctx context.Context, log *zap.Logger) *zap.Logger {
	if fields := TraceFields(ctx); fields != nil {
		return log.With(fields...)
	}
	return log
}

// LoggingObserver logs pool events. Routine events go to debug, overflows
// and drops to warn, so production loggers only see capacity pressure.
func LoggingObserver(log *zap.Logger, poolName string) pool.Observer {
	log = log.With(zap.String("pool", poolName))
	return pool.ObserverFunc(func(e pool.Event) {
		level := zapcore.DebugLevel
		switch e.Type {
		case pool.EventOverflow, pool.EventDropped:
			level = zapcore.WarnLevel
		case pool.EventDisposed:
			level = zapcore.InfoLevel
		}

		ce := log.Check(level, "pool event")
		if ce == nil {
			return
		}
		fields := []zap.Field{
			zap.String("event", e.Type.String()),
			zap.Int("all", e.Stats.All),
			zap.Int("active", e.Stats.Active),
			zap.Int("passive", e.Stats.Passive),
		}
		if e.ID != 0 {
			fields = append(fields, zap.Uint64("id", e.ID))
		}
		ce.Write(fields...)
	})
}

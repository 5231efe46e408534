package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/pooling/pkg/errors"
)

// Attribute keys of pool spans.
const (
	PoolNameKey      = attribute.Key("pool.name")
	PoolOperationKey = attribute.Key("pool.operation")
	BatchSizeKey     = attribute.Key("pool.batch_size")
	ErrorTypeKey     = attribute.Key("pool.error_type")
	RetryableKey     = attribute.Key("pool.retryable")
)

// PoolTracer starts spans named "pool.<name>.<operation>" on the tracer
// installed by Initialize.
type PoolTracer struct {
	name string
}

// NewPoolTracer returns a tracer for the named pool.
func NewPoolTracer(poolName string) *PoolTracer {
	return &PoolTracer{name: poolName}
}

// Start starts a span for operation.
func (pt *PoolTracer) Start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, PoolNameKey.String(pt.name), PoolOperationKey.String(operation))
	return GetTracer().Start(ctx, "pool."+pt.name+"."+operation, trace.WithAttributes(attrs...))
}

// TraceBatch runs fn inside a span covering size objects and records its
// result.
func (pt *PoolTracer) TraceBatch(ctx context.Context, operation string, size int, fn func(context.Context) error) error {
	ctx, span := pt.Start(ctx, operation, BatchSizeKey.Int(size))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if elapsed := time.Since(start); err == nil && elapsed > 0 {
		span.SetAttributes(attribute.Float64("pool.objects_per_second", float64(size)/elapsed.Seconds()))
	}
	RecordResult(span, err)
	return err
}

// RecordResult sets the span status from err. Errors are recorded with their
// pool error type and whether a retry may succeed.
func RecordResult(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err, trace.WithAttributes(
		ErrorTypeKey.String(string(errors.TypeOf(err))),
		RetryableKey.Bool(errors.IsRetryable(err)),
	))
	span.SetStatus(codes.Error, err.Error())
}

// TracingMiddleware traces HTTP requests. Spans are renamed after the chi
// route pattern once the request is routed, so /pools/1 and /pools/2 share
// the span name "GET /pools/{key}".
func TracingMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			prop := otel.GetTextMapPropagator()
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := GetTracer().Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPMethod(r.Method),
					semconv.HTTPTarget(r.URL.RequestURI()),
					semconv.ServiceName(serviceName),
				))
			defer span.End()
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					span.SetName(r.Method + " " + pattern)
					span.SetAttributes(semconv.HTTPRoute(pattern))
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			span.SetAttributes(semconv.HTTPStatusCode(status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
		})
	}
}

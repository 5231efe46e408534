package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	perrors "github.com/ajitpratap0/pooling/pkg/errors"
	"github.com/ajitpratap0/pooling/pkg/pool"
)

// useRecorder swaps the package tracer for one backed by a span recorder.
func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	mu.Lock()
	prev := tracer
	tracer = tp.Tracer("test")
	mu.Unlock()

	t.Cleanup(func() {
		mu.Lock()
		tracer = prev
		mu.Unlock()
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestInitializeAndShutdown(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.SamplingRate = 1
	cfg.ExporterType = "stdout"
	cfg.Writer = &out

	require.NoError(t, Initialize(cfg, zap.NewNop()))

	_, span := NewPoolTracer("frames").Start(context.Background(), "warm_up")
	span.End()

	require.NoError(t, Shutdown(context.Background()))
	assert.Contains(t, out.String(), `"Name":"pool.frames.warm_up"`)
	assert.Contains(t, out.String(), "pooling")

	// second shutdown has nothing left to flush
	require.NoError(t, Shutdown(context.Background()))

	_, span = GetTracer().Start(context.Background(), "after")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid(), "tracer is a no-op after Shutdown")
}

func TestInitializeUnknownExporter(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.ExporterType = "jaeger"
	err := Initialize(cfg, nil)
	require.Error(t, err)
	exporter, ok := perrors.Detail(err, "exporter")
	require.True(t, ok)
	assert.Equal(t, "jaeger", exporter)
}

func TestNeverSample(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.SamplingRate = 0
	cfg.ExporterType = ExporterNone
	require.NoError(t, Initialize(cfg, nil))
	defer Shutdown(context.Background())

	_, span := GetTracer().Start(context.Background(), "ignored")
	defer span.End()
	assert.False(t, span.SpanContext().IsSampled())
}

func TestPoolTracerTraceBatch(t *testing.T) {
	rec := useRecorder(t)
	pt := NewPoolTracer("frames")

	require.NoError(t, pt.TraceBatch(context.Background(), "warm_up", 4, func(context.Context) error {
		return nil
	}))
	boom := errors.New("boom")
	err := pt.TraceBatch(context.Background(), "request_range", 2, func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "pool.frames.warm_up", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "frames", attrs["pool.name"])
	assert.Equal(t, "warm_up", attrs["pool.operation"])
	assert.Equal(t, int64(4), attrs["pool.batch_size"])

	assert.Equal(t, "pool.frames.request_range", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
}

func TestRecordResultPoolError(t *testing.T) {
	rec := useRecorder(t)

	_, span := NewPoolTracer("frames").Start(context.Background(), "request")
	RecordResult(span, perrors.Wrap(pool.ErrPoolOverflowed, perrors.ErrorTypeOverflow, "max capacity 1"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	events := spans[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "exception", events[0].Name)
	attrs := attrMap(events[0].Attributes)
	assert.Equal(t, "overflow", attrs["pool.error_type"])
	assert.Equal(t, true, attrs["pool.retryable"])
}

func TestTracingMiddleware(t *testing.T) {
	rec := useRecorder(t)

	var sawSpan bool
	h := TracingMiddleware("pooling")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawSpan = len(TraceFields(r.Context())) == 2
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, sawSpan)
	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "GET /stats", rec.Ended()[0].Name())
}

func TestTracingMiddlewareRoutePattern(t *testing.T) {
	rec := useRecorder(t)

	r := chi.NewRouter()
	r.Use(TracingMiddleware("pooling"))
	r.Route("/pools/{key}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pools/7", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /pools/{key}", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "/pools/{key}", attrs["http.route"])
	assert.Equal(t, int64(http.StatusServiceUnavailable), attrs["http.status_code"])
}

func attrMap(kvs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

func TestWithTrace(t *testing.T) {
	useRecorder(t)
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	WithTrace(context.Background(), log).Info("no span")
	ctx, span := GetTracer().Start(context.Background(), "op")
	WithTrace(ctx, log).Info("in span")
	span.End()

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[0].ContextMap(), "trace_id")
	assert.Contains(t, entries[1].ContextMap(), "trace_id")
	assert.Contains(t, entries[1].ContextMap(), "span_id")
}

func TestLoggingObserver(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	obs := LoggingObserver(zap.New(core), "frames")

	p, err := pool.New[*bytes.Buffer]("frames",
		pool.NewFuncs(func() *bytes.Buffer { return new(bytes.Buffer) }),
		pool.NewConfig(pool.WithMaxCapacity(1), pool.WithOverflowStrategy(pool.OverflowThrow)),
		pool.WithObserver(obs),
	)
	require.NoError(t, err)

	_, err = p.Request()
	require.NoError(t, err)
	_, err = p.Request()
	require.ErrorIs(t, err, pool.ErrPoolOverflowed)
	p.Dispose()

	warn := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warn, 1)
	assert.Equal(t, "overflow", warn[0].ContextMap()["event"])
	assert.Equal(t, "frames", warn[0].ContextMap()["pool"])

	created := logs.FilterField(zap.String("event", "created")).All()
	require.Len(t, created, 1)
	assert.Equal(t, zapcore.DebugLevel, created[0].Level)
	assert.Equal(t, int64(1), created[0].ContextMap()["active"])

	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.InfoLevel).Len(), "disposed")
}

func TestLoggingObserverRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	obs := LoggingObserver(zap.New(core), "frames")

	obs.Observe(pool.Event{Type: pool.EventCreated, ID: 1})
	obs.Observe(pool.Event{Type: pool.EventDropped, ID: 1})

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "dropped", logs.All()[0].ContextMap()["event"])
}

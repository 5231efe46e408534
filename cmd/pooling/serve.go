package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pooling/pkg/config"
	"github.com/ajitpratap0/pooling/pkg/errors"
	"github.com/ajitpratap0/pooling/pkg/json"
	"github.com/ajitpratap0/pooling/pkg/metrics"
	"github.com/ajitpratap0/pooling/pkg/observability"
	"github.com/ajitpratap0/pooling/pkg/pool"
	"github.com/ajitpratap0/pooling/pkg/registry"
)

const maxCycle = 1024

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured pools over HTTP",
		Long: `Serve the pools of the --config file. Every pool holds reusable byte
buffers and is registered under its key.

Endpoints:
  GET  /healthz                 liveness
  GET  /metrics                 Prometheus metrics (metrics.path)
  GET  /stats                   counters of every pool
  GET  /pools/{key}             counters of one pool
  POST /pools/{key}/warmup?n=   pre-create n buffers
  POST /pools/{key}/cycle?n=    request n buffers and release them`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.setup()
			if err != nil {
				return err
			}
			if addr := a.v.GetString("addr"); addr != "" {
				cfg.Metrics.Address = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := newServer(cfg, a.log)
			if err != nil {
				return err
			}
			defer s.close()
			return s.run(ctx, cfg.Metrics.Address)
		},
	}
	cmd.Flags().String("addr", "", "Listen address, overrides metrics.address")
	return cmd
}

type server struct {
	log         *zap.Logger
	pools       *registry.Service
	metrics     *metrics.PoolMetrics
	gatherer    prometheus.Gatherer
	metricsPath string
	serviceName string
	tracers     map[int]*observability.PoolTracer
	codecs      *contentCodecs
}

func newServer(cfg *config.Config, log *zap.Logger) (*server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s := &server{
		log:         log,
		pools:       registry.New(registry.WithLogger(log)),
		metrics:     metrics.NewPoolMetrics(reg),
		gatherer:    reg,
		metricsPath: cfg.Metrics.Path,
		serviceName: cfg.Tracing.ServiceName,
		tracers:     make(map[int]*observability.PoolTracer, len(cfg.Pools)),
	}
	if s.metricsPath == "" {
		s.metricsPath = "/metrics"
	}
	codecs, err := newContentCodecs()
	if err != nil {
		return nil, err
	}
	s.codecs = codecs
	for _, spec := range cfg.Pools {
		if err := s.addPool(spec); err != nil {
			s.close()
			return nil, err
		}
	}
	return s, nil
}

// addPool builds a buffer pool from spec, warms it up and registers it.
func (s *server) addPool(spec config.PoolSpec) error {
	poolCfg, err := spec.ToConfig()
	if err != nil {
		return err
	}
	factory := pool.Funcs[*bytes.Buffer]{
		New:     func(any) (*bytes.Buffer, error) { return new(bytes.Buffer), nil },
		Disable: func(_ any, b *bytes.Buffer) { b.Reset() },
	}
	p, err := pool.New[*bytes.Buffer](spec.Name, factory, poolCfg, pool.WithObserver(pool.Observers(
		s.metrics.Observer(spec.Name),
		observability.LoggingObserver(s.log, spec.Name),
	)))
	if err != nil {
		return err
	}
	if err := p.WarmUp(spec.WarmUp); err != nil {
		p.Dispose()
		return err
	}
	if err := s.pools.Register(spec.Key, p); err != nil {
		p.Dispose()
		return err
	}
	s.tracers[spec.Key] = observability.NewPoolTracer(spec.Name)
	s.log.Info("pool ready",
		zap.String("pool", spec.Name),
		zap.Int("key", spec.Key),
		zap.Stringer("config", poolCfg))
	return nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(observability.TracingMiddleware(s.serviceName))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, r, http.StatusOK, map[string]any{"status": "ok", "pools": s.pools.Len()})
	})
	r.Method(http.MethodGet, s.metricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, r, http.StatusOK, s.pools.Snapshot())
	})
	r.Route("/pools/{key}", func(r chi.Router) {
		r.Get("/", s.handlePool)
		r.Post("/warmup", s.handleWarmUp)
		r.Post("/cycle", s.handleCycle)
	})
	return r
}

func (s *server) run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("server listening", zap.String("addr", addr), zap.Int("pools", s.pools.Len()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// close disposes every pool and then drops its metric series.
func (s *server) close() {
	infos := s.pools.Snapshot()
	s.pools.Clear()
	for _, info := range infos {
		s.metrics.Forget(info.Pool)
	}
	if s.codecs != nil {
		s.codecs.close()
	}
}

func (s *server) handlePool(w http.ResponseWriter, r *http.Request) {
	key, err := urlKey(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeInfo(w, r, key)
}

func (s *server) handleWarmUp(w http.ResponseWriter, r *http.Request) {
	key, n, err := keyAndCount(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	err = s.trace(r.Context(), key, "warm_up", n, func(context.Context) error {
		return s.pools.WarmUp(key, n)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeInfo(w, r, key)
}

// handleCycle requests n buffers and releases them, the HTTP form of a
// benchmark cycle.
func (s *server) handleCycle(w http.ResponseWriter, r *http.Request) {
	key, n, err := keyAndCount(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	err = s.trace(r.Context(), key, "cycle", n, func(context.Context) error {
		return s.cycle(key, n)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeInfo(w, r, key)
}

func (s *server) cycle(key, n int) error {
	var err error
	held := make([]any, 0, n)
	for range n {
		obj, rerr := s.pools.Request(key)
		if rerr != nil {
			err = rerr
			break
		}
		held = append(held, obj)
	}
	for _, obj := range held {
		err = errors.Join(err, s.pools.Release(key, obj))
	}
	return err
}

// trace runs fn in a span of the pool under key. Unknown keys run untraced
// and report their error from fn.
func (s *server) trace(ctx context.Context, key int, op string, n int, fn func(context.Context) error) error {
	pt, ok := s.tracers[key]
	if !ok {
		return fn(ctx)
	}
	return pt.TraceBatch(ctx, op, n, fn)
}

func (s *server) writeInfo(w http.ResponseWriter, r *http.Request, key int) {
	for _, info := range s.pools.Snapshot() {
		if info.Key == key {
			s.writeJSON(w, r, http.StatusOK, info)
			return
		}
	}
	s.writeError(w, r, errors.Wrapf(registry.ErrPoolNotRegistered, errors.ErrorTypeNotFound,
		"pool with key %d is not registered", key))
}

func urlKey(r *http.Request) (int, error) {
	key, err := strconv.Atoi(chi.URLParam(r, "key"))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeValidation, "pool key must be an integer")
	}
	return key, nil
}

func keyAndCount(r *http.Request) (int, int, error) {
	key, err := urlKey(r)
	if err != nil {
		return 0, 0, err
	}
	n := 1
	if raw := r.URL.Query().Get("n"); raw != "" {
		if n, err = strconv.Atoi(raw); err != nil {
			return 0, 0, errors.Wrap(err, errors.ErrorTypeValidation, "n must be an integer")
		}
	}
	if n < 0 || n > maxCycle {
		return 0, 0, errors.New(errors.ErrorTypeValidation, "n out of range").
			WithDetail("n", n).
			WithDetail("max", maxCycle)
	}
	return key, n, nil
}

// writeJSON encodes v with a pooled encoder. Bodies of minCompressSize bytes
// or more are compressed when the client accepts zstd or gzip.
func (s *server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	encoders := json.Default()
	enc, err := encoders.Get()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer func() { _ = encoders.Put(enc) }()
	if err := enc.Encode(v); err != nil {
		s.log.Warn("failed to encode response", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	body := enc.Bytes()
	h := w.Header()
	h.Set("Content-Type", "application/json")
	if len(body) >= minCompressSize {
		h.Add("Vary", "Accept-Encoding")
		if name, codecs, ok := s.codecs.negotiate(r.Header.Get("Accept-Encoding")); ok {
			packed, err := codecs.Compress(body)
			if err == nil {
				h.Set("Content-Encoding", name)
				body = packed
			} else {
				s.log.Warn("failed to compress response", zap.String("encoding", name), zap.Error(err))
			}
		}
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.log.Debug("failed to write response", zap.Error(err))
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeJSON(w, r, httpStatus(err), map[string]string{"error": err.Error()})
}

func httpStatus(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeNotFound:
		return http.StatusNotFound
	case errors.ErrorTypeValidation:
		return http.StatusBadRequest
	case errors.ErrorTypeOverflow:
		return http.StatusTooManyRequests
	case errors.ErrorTypeClosed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// logRequests logs each request through zap.
func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)))
	})
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/janisto/probe-responder/internal/config"
	"github.com/janisto/probe-responder/internal/http/routes"
	applog "github.com/janisto/probe-responder/internal/platform/logging"
	"github.com/janisto/probe-responder/internal/platform/metrics"
	appmiddleware "github.com/janisto/probe-responder/internal/platform/middleware"
	"github.com/janisto/probe-responder/internal/platform/respond"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

const apiTitle = "Probe Responder"

func main() {
	defer func() {
		if err := applog.Sync(); err != nil {
			applog.LogError(context.Background(), "logger sync error", err)
		}
	}()
	if err := applog.Err(); err != nil {
		applog.LogError(context.Background(), "logger init error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		applog.LogError(context.Background(), "config load failed", err)
		os.Exit(1)
	}
	if err := applog.SetLevel(cfg.LogLevel); err != nil {
		applog.LogError(context.Background(), "invalid log level", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, reg); err != nil {
		applog.LogError(context.Background(), "server failed", err)
		_ = applog.Sync()
		os.Exit(1)
	}
	applog.LogInfo(context.Background(), "server exited")
}

// run serves the public router until ctx is done or the main listener fails.
// Only a main listener failure is returned; the metrics listener is best effort.
func run(ctx context.Context, cfg *config.Config, reg *prometheus.Registry) error {
	collector, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(cfg, collector),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    64 << 10, // 64 KB
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return listenError{addr: srv.Addr, err: err}
	}
	applog.LogInfo(ctx, "server listening", zap.String("addr", ln.Addr().String()))

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- listenError{addr: srv.Addr, err: err}
		}
	}()

	var metricsSrv *http.Server
	if addr := cfg.MetricsAddr(); addr != "" {
		metricsSrv = startMetricsServer(ctx, addr, reg)
	}

	var runErr error
	select {
	case runErr = <-serveErr:
	case <-ctx.Done():
		applog.LogInfo(context.Background(), "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		applog.LogError(shutdownCtx, "server shutdown error", err, zap.String("addr", srv.Addr))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			applog.LogError(shutdownCtx, "metrics shutdown error", err, zap.String("addr", metricsSrv.Addr))
		}
	}
	return runErr
}

// newRouter builds the public handler: shared middleware, problem-details
// fallbacks and the huma-registered routes.
func newRouter(cfg *config.Config, m *metrics.Collector) http.Handler {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	router.Use(
		appmiddleware.Security(),
		appmiddleware.Vary(),
		appmiddleware.CORS(),
		appmiddleware.RequestID(),
		// RealIP trusts X-Real-IP / X-Forwarded-For; only run behind a trusted proxy.
		chimiddleware.RealIP,
		chimiddleware.RequestSize(1<<20), // 1 MB limit
		applog.RequestLogger(),
		applog.AccessLogger(routes.ProbePaths...),
	)
	if m != nil {
		router.Use(m.Middleware())
	}
	router.Use(respond.Recoverer())

	api := humachi.New(router, routes.APIConfig(apiTitle, Version))
	routes.Register(api, cfg.Greeting)

	return router
}

// startMetricsServer binds and serves the metrics listener. Failures are
// logged as warnings and yield a nil server.
func startMetricsServer(ctx context.Context, addr string, g prometheus.Gatherer) *http.Server {
	ms := newMetricsServer(addr, g)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		applog.LogWarn(ctx, "metrics listener disabled", zap.String("addr", addr), zap.Error(err))
		return nil
	}
	applog.LogInfo(ctx, "metrics listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := ms.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.LogWarn(context.Background(), "metrics listener stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return ms
}

// newMetricsServer exposes the registry on its own listener so the public
// route set stays limited to the greeting and probe routes.
func newMetricsServer(addr string, g prometheus.Gatherer) *http.Server {
	router := chi.NewRouter()
	router.Method(http.MethodGet, "/metrics", metrics.Handler(g))
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
	}
}

type listenError struct {
	addr string
	err  error
}

func (e listenError) Error() string { return e.addr + ": " + e.err.Error() }

func (e listenError) Unwrap() error { return e.err }

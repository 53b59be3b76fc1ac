package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/touchline/internal/adapters/http/api"
	"github.com/okian/touchline/internal/adapters/http/swagger"
	"github.com/okian/touchline/internal/adapters/repository"
	app "github.com/okian/touchline/internal/app"
	"github.com/okian/touchline/internal/config"
	"github.com/okian/touchline/pkg/logger"
	"github.com/okian/touchline/pkg/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants. Event streams clear their own write
// deadline.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Runtime metrics are collected by the service on its own registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "touchline exited", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logger.Get()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		svc.Stop()
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	srv := newHTTPServer(ctx, cfg.Addr, svc)

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// buildService opens the configured store and tracer and wires the service.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	var store repository.EventStore
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		s, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		store = s
	default:
		store = repository.NewMemoryStore()
	}

	tp, err := tracing.NewProvider(tracing.Config{
		Enabled:    cfg.TracingEnabled,
		Exporter:   cfg.TracingExporter,
		SampleRate: cfg.TracingSampleRate,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	log.Info(ctx, "service configured",
		logger.String("storage_driver", cfg.StorageDriver),
		logger.Bool("tracing", cfg.TracingEnabled))

	return app.New(
		app.WithLogger(log),
		app.WithStore(store),
		app.WithTracing(tp),
		app.WithSessionTimeout(cfg.SessionInactivityTimeout, cfg.SessionReapInterval),
		app.WithClockTick(cfg.ClockTickInterval),
		app.WithDefaultPeriodMinutes(cfg.DefaultPeriodMinutes),
		app.WithDedupe(cfg.DedupeTTL, cfg.DedupeCleanupInterval),
		app.WithDispatch(cfg.DispatchPartitions, cfg.DispatchQueueSize),
		app.WithSubscriberBuffer(cfg.SubscriberBuffer),
		app.WithMaxExtensionFields(cfg.MaxExtensionFields),
	), nil
}

// newHTTPServer builds the API server. Shutdown closes observer streams so
// it does not wait on them until the deadline.
func newHTTPServer(ctx context.Context, addr string, svc *app.Service) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newHandler(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	srv.RegisterOnShutdown(svc.CloseSubscriptions)
	return srv
}

// newHandler registers the API documentation and business routes.
func newHandler(ctx context.Context, svc *app.Service) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	return mux
}

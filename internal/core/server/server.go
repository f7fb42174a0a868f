// Package server wires the HTTP router and runs it until the context ends.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/airmap/internal/core/config"
	"github.com/mohammed-shakir/airmap/internal/core/health"
	middleware "github.com/mohammed-shakir/airmap/internal/core/middleware"
)

type Options struct {
	Logger *slog.Logger
	// Metrics is mounted at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string
	Ready       health.ReadinessReporter
	Checks      []health.Check
	// Mount adds the application routes.
	Mount func(r chi.Router)
}

func NewRouter(cfg config.Config, opts Options) chi.Router {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recover(opts.Logger))
	r.Use(middleware.Logging(opts.Logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(opts.Ready, opts.Checks...))
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, opts.Metrics)
	}
	if opts.Mount != nil {
		opts.Mount(r)
	}
	return r
}

// Run serves h on addr and shuts down gracefully when ctx is done.
func Run(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/airmap/internal/api"
	"github.com/mohammed-shakir/airmap/internal/app"
	"github.com/mohammed-shakir/airmap/internal/core/config"
	"github.com/mohammed-shakir/airmap/internal/core/health"
	"github.com/mohammed-shakir/airmap/internal/core/observability"
	"github.com/mohammed-shakir/airmap/internal/core/server"
	"github.com/mohammed-shakir/airmap/internal/ingest"
	"github.com/mohammed-shakir/airmap/internal/logger"
	"github.com/mohammed-shakir/airmap/internal/metrics"
	"github.com/mohammed-shakir/airmap/pkg/invalidation/kafka"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "airmap",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := metrics.Init(metrics.Config{
		Enabled: cfg.MetricsEnabled,
		Addr:    cfg.MetricsAddr,
		Path:    "/metrics",
		Service: "airmap",
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	var reg prometheus.Registerer
	if cfg.MetricsEnabled {
		reg = p.Registerer()
	}
	observability.Init(reg, cfg.MetricsEnabled)
	if p.Separate() {
		go func() {
			if err := p.Serve(ctx, appLog); err != nil {
				appLog.Error("metrics server exited", "err", err)
			}
		}()
	}

	appLog.Info("starting airmap",
		"addr", cfg.Addr,
		"version", Version,
		"redis", cfg.RedisAddr,
		"h3_res", cfg.H3Res,
		"ingest", cfg.IngestEnabled)

	a, err := app.New(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("startup failed", "err", err)
		return 1
	}
	defer func() { _ = a.Close() }()

	runner := kafka.New(kafka.FromConfig(cfg.Invalidation), []kafka.Purger{a.Nearest}, kafka.Options{
		Logger:   appLog,
		Register: reg,
	})
	if err := runner.Start(ctx); err != nil {
		appLog.Error("invalidation runner failed to start", "err", err)
		return 1
	}
	defer runner.Stop()

	if cfg.IngestEnabled {
		if err := a.SeedIfEmpty(ctx); err != nil {
			appLog.Warn("initial seed failed", "err", err)
		}
		sched := ingest.NewScheduler(ctx, a.Jobs, appLog)
		if err := sched.AddAll(cfg.Cron); err != nil {
			appLog.Error("scheduler setup failed", "err", err)
			return 1
		}
		sched.Start()
		defer sched.Stop()
	}

	h := api.New(api.Deps{
		Observatories: a.Nearest,
		AirStations:   a.Stores.AirStations,
		Averages:      a.Stores.Averages,
	}, api.Options{
		Logger:          appLog,
		DefaultRadiusKm: cfg.SearchRadiusKm,
		WeatherRadiusKm: 50,
		RatePerMinute:   cfg.RateLimitPerMinute,
	})

	opts := server.Options{
		Logger: appLog,
		Ready:  runner,
		Checks: []health.Check{{Name: "redis", Fn: a.Redis.Ping}},
		Mount:  func(r chi.Router) { h.Routes(r) },
	}
	if cfg.MetricsEnabled && !p.Separate() {
		opts.Metrics = p.Handler()
		opts.MetricsPath = p.Path()
	}

	if err := server.Run(ctx, cfg.Addr, server.NewRouter(cfg, opts), appLog); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

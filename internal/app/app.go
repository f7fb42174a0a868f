// Package app assembles the stores, resolver and ingestion jobs from config.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/airmap/internal/archive"
	"github.com/mohammed-shakir/airmap/internal/cache/redisstore"
	"github.com/mohammed-shakir/airmap/internal/core/config"
	"github.com/mohammed-shakir/airmap/internal/core/httpclient"
	"github.com/mohammed-shakir/airmap/internal/events"
	"github.com/mohammed-shakir/airmap/internal/ingest"
	"github.com/mohammed-shakir/airmap/internal/invalidation"
	h3mapper "github.com/mohammed-shakir/airmap/internal/mapper/h3"
	"github.com/mohammed-shakir/airmap/internal/proximity"
	"github.com/mohammed-shakir/airmap/internal/store"
)

type App struct {
	Redis     *redisstore.Client
	Stores    ingest.Stores
	Nearest   *proximity.CachedResolver
	Jobs      *ingest.Jobs
	Publisher *events.Publisher

	log *slog.Logger
}

// New connects to Redis and builds everything on top of it. The Kafka
// publisher is only started when events are enabled.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	rc, err := redisstore.New(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	a, err := build(ctx, cfg, rc, log)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg config.Config, rc *redisstore.Client, log *slog.Logger) (*App, error) {
	m := h3mapper.New()
	opts := store.Options{Res: cfg.H3Res, MaxIndexedSpan: cfg.MaxIndexedSpan, OpTimeout: cfg.StoreOpTimeout}
	st := ingest.Stores{
		Observatories: store.NewObservatoryStore(rc, m, opts, log),
		AirStations:   store.NewAirStationStore(rc, m, opts, log),
		Averages:      store.NewAverageStore(rc, opts, log),
		Cities:        store.NewCityDirectory(rc),
	}
	nearest := proximity.NewCachedResolver(
		proximity.NewResolver(st.Observatories, log),
		store.LayerObservatory, cfg.ResolveCacheSize, cfg.ResolveCacheTTL)

	a := &App{Redis: rc, Stores: st, Nearest: nearest, log: log}

	notifiers := []events.Notifier{events.NotifierFunc(a.purgeLocal)}
	if cfg.Events.Enabled && len(cfg.Events.Brokers) > 0 {
		pub, err := events.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic, 256, log)
		if err != nil {
			return nil, err
		}
		a.Publisher = pub
		notifiers = append(notifiers, pub)
	}

	sink, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		log.Warn("archive sink unavailable", "driver", cfg.Archive.Driver, "err", err)
		sink = nil
	}

	hc := httpclient.NewOutbound(cfg.UpstreamTimeout)
	a.Jobs = ingest.NewJobs(
		ingest.NewAirKoreaClient(cfg.AirKoreaBaseURL, cfg.ServiceKey, hc, log),
		ingest.NewKMAClient(cfg.KMABaseURL, cfg.ServiceKey, hc, log),
		st,
		ingest.Options{
			Logger:          log,
			Notifier:        events.Multi(notifiers...),
			Sink:            sink,
			AverageInterval: cfg.AverageFetchInterval,
		},
	)
	return a, nil
}

func (a *App) purgeLocal(ctx context.Context, ev invalidation.Event) {
	if n := a.Nearest.Purge(ev.Layer); n > 0 {
		a.log.DebugContext(ctx, "resolve cache purged", "layer", ev.Layer, "entries", n)
	}
}

// SeedIfEmpty loads the bundled observatories when none are stored yet.
func (a *App) SeedIfEmpty(ctx context.Context) error {
	all, err := a.Stores.Observatories.All(ctx)
	if err != nil {
		return err
	}
	if len(all) > 0 {
		return nil
	}
	return a.Jobs.Run(ctx, ingest.JobSeed)
}

func (a *App) Close() error {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.log.Warn("publisher close", "err", err)
		}
	}
	return a.Redis.Close()
}

package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/mohammed-shakir/airmap/internal/core/config"
)

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, kv ...any) { l.log.Debug("cron: "+msg, kv...) }

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kv, "err", err)...)
}

// Runner is what the scheduler triggers; *Jobs satisfies it.
type Runner interface {
	Run(ctx context.Context, name string) error
}

// Scheduler runs ingestion jobs on cron schedules in Korean time. Overlapping
// runs of the same job are skipped and a failing job never stops the others.
type Scheduler struct {
	c   *cron.Cron
	run Runner
	ctx context.Context
	log *slog.Logger
}

func NewScheduler(ctx context.Context, run Runner, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	cl := cronLogger{log: log.With("component", "scheduler")}
	return &Scheduler{
		c: cron.New(
			cron.WithLocation(kst),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		run: run,
		ctx: ctx,
		log: log,
	}
}

// Add registers job under expr. An empty expr leaves the job unscheduled.
func (s *Scheduler) Add(expr, job string) error {
	if expr == "" {
		return nil
	}
	_, err := s.c.AddFunc(expr, func() {
		if err := s.run.Run(s.ctx, job); err != nil {
			s.log.Warn("scheduled job failed", "job", job, "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", job, expr, err)
	}
	return nil
}

// AddAll registers every job with its configured schedule.
func (s *Scheduler) AddAll(c config.CronCfg) error {
	for _, e := range []struct{ expr, job string }{
		{c.Pollution, JobPollution},
		{c.Average, JobAverages},
		{c.Stations, JobStations},
		{c.Weather, JobWeather},
		{c.Archive, JobArchive},
	} {
		if err := s.Add(e.expr, e.job); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) Len() int { return len(s.c.Entries()) }

func (s *Scheduler) Start() {
	s.c.Start()
	s.log.Info("ingest scheduler started", "entries", s.Len())
}

// Stop prevents new runs and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
	s.log.Info("ingest scheduler stopped")
}

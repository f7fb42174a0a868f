// Command ingest runs one ingestion job once and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/airmap/internal/app"
	"github.com/mohammed-shakir/airmap/internal/core/config"
	"github.com/mohammed-shakir/airmap/internal/ingest"
	"github.com/mohammed-shakir/airmap/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	job := flag.String("job", "", "job to run: "+strings.Join(ingest.JobNames, "|"))
	flag.Parse()
	if *job == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest -job="+strings.Join(ingest.JobNames, "|"))
		return 2
	}

	cfg := config.FromEnv()
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "airmap",
		Component: "ingest",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("startup failed", "err", err)
		return 1
	}
	defer func() { _ = a.Close() }()

	if err := a.Jobs.Run(ctx, *job); err != nil {
		return 1
	}
	return 0
}

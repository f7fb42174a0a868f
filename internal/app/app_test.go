package app

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/airmap/internal/core/config"
	"github.com/mohammed-shakir/airmap/internal/core/model"
)

func testConfig(t *testing.T, addr string) config.Config {
	cfg := config.FromEnv()
	cfg.RedisAddr = addr
	cfg.Events.Enabled = false
	cfg.Archive = config.ArchiveCfg{Driver: "file", Dir: t.TempDir()}
	cfg.ResolveCacheTTL = time.Minute
	return cfg
}

func TestApp_SeedAndLocalPurge(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	a, err := New(ctx, testConfig(t, mr.Addr()), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.SeedIfEmpty(ctx); err != nil {
		t.Fatalf("SeedIfEmpty: %v", err)
	}
	all, err := a.Stores.Observatories.All(ctx)
	if err != nil || len(all) == 0 {
		t.Fatalf("observatories=%d err=%v", len(all), err)
	}

	// Seoul station 108
	res, ok, err := a.Nearest.ResolveNearest(ctx, model.Point{Lat: 37.57, Lng: 126.97}, 50)
	if err != nil || !ok || res.Station.ID != "108" {
		t.Fatalf("resolve = %+v ok=%v err=%v", res, ok, err)
	}
	if a.Nearest.Len() != 1 {
		t.Fatalf("cache len=%d want 1", a.Nearest.Len())
	}

	// seeding again is a no-op; running the job bumps the layer and purges
	if err := a.SeedIfEmpty(ctx); err != nil {
		t.Fatalf("second SeedIfEmpty: %v", err)
	}
	if a.Nearest.Len() != 1 {
		t.Fatalf("cache purged without a change")
	}
	if err := a.Jobs.Run(ctx, "seed"); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	if a.Nearest.Len() != 0 {
		t.Fatalf("cache len=%d after layer change, want 0", a.Nearest.Len())
	}
}

func TestNew_RedisDown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := New(ctx, testConfig(t, "127.0.0.1:1"), nil); err == nil {
		t.Fatalf("expected error for unreachable redis")
	}
}

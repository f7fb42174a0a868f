package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"H3_RES", "SEARCH_RADIUS_KM", "CRON_POLLUTION", "CORS_ORIGINS", "KAFKA_TOPIC"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()

	if cfg.H3Res != 5 {
		t.Fatalf("H3Res = %d, want 5", cfg.H3Res)
	}
	if cfg.SearchRadiusKm != 50 {
		t.Fatalf("SearchRadiusKm = %v, want 50", cfg.SearchRadiusKm)
	}
	if cfg.Cron.Pollution != "*/10 * * * *" {
		t.Fatalf("Cron.Pollution = %q", cfg.Cron.Pollution)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.Events.Topic != cfg.Invalidation.Topic {
		t.Fatalf("events topic %q != invalidation topic %q", cfg.Events.Topic, cfg.Invalidation.Topic)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("H3_RES", "7")
	t.Setenv("SEARCH_RADIUS_KM", "12.5")
	t.Setenv("RESOLVE_CACHE_TTL", "30s")
	t.Setenv("INGEST_ENABLED", "yes")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ARCHIVE_DRIVER", "S3")

	cfg := FromEnv()
	if cfg.H3Res != 7 {
		t.Fatalf("H3Res = %d", cfg.H3Res)
	}
	if cfg.SearchRadiusKm != 12.5 {
		t.Fatalf("SearchRadiusKm = %v", cfg.SearchRadiusKm)
	}
	if cfg.ResolveCacheTTL != 30*time.Second {
		t.Fatalf("ResolveCacheTTL = %v", cfg.ResolveCacheTTL)
	}
	if !cfg.IngestEnabled {
		t.Fatalf("IngestEnabled should be true")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.Archive.Driver != "s3" {
		t.Fatalf("Archive.Driver = %q", cfg.Archive.Driver)
	}
}

func TestFromEnv_InvalidFallsBack(t *testing.T) {
	t.Setenv("H3_RES", "99")
	t.Setenv("SEARCH_RADIUS_KM", "-3")
	t.Setenv("STORE_OP_TIMEOUT", "soon")

	cfg := FromEnv()
	if cfg.H3Res != 5 {
		t.Fatalf("H3Res = %d, want fallback 5", cfg.H3Res)
	}
	if cfg.SearchRadiusKm != 50 {
		t.Fatalf("SearchRadiusKm = %v, want fallback 50", cfg.SearchRadiusKm)
	}
	if cfg.StoreOpTimeout != 500*time.Millisecond {
		t.Fatalf("StoreOpTimeout = %v", cfg.StoreOpTimeout)
	}
}

func TestFromEnv_BrokersList(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	cfg := FromEnv()
	if len(cfg.Invalidation.Brokers) != 2 || cfg.Invalidation.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.Invalidation.Brokers)
	}
}

func TestFromEnv_InstanceAndSampling(t *testing.T) {
	t.Setenv("INSTANCE_ID", "")
	t.Setenv("LOG_SAMPLE_N", "")
	cfg := FromEnv()
	if cfg.Invalidation.InstanceID == "" {
		t.Fatalf("InstanceID should default to the hostname")
	}
	if cfg.LogSampleN != 0 {
		t.Fatalf("LogSampleN = %d, want 0", cfg.LogSampleN)
	}

	t.Setenv("INSTANCE_ID", "pod-7")
	t.Setenv("LOG_SAMPLE_N", "10")
	cfg = FromEnv()
	if cfg.Invalidation.InstanceID != "pod-7" {
		t.Fatalf("InstanceID = %q", cfg.Invalidation.InstanceID)
	}
	if cfg.LogSampleN != 10 {
		t.Fatalf("LogSampleN = %d", cfg.LogSampleN)
	}
}

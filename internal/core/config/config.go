package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers []string
	GroupID string

	// InstanceID tells replicas apart; each one consumes in its own group.
	InstanceID string
}

type EventsCfg struct {
	Enabled bool
	Topic   string
	Brokers []string
}

type CronCfg struct {
	Pollution string
	Average   string
	Stations  string
	Weather   string
	Archive   string
}

type ArchiveCfg struct {
	Driver    string // file or s3
	Dir       string
	Bucket    string
	AWSRegion string
}

type Config struct {
	Addr             string
	LogLevel         string
	LogConsole       bool
	LogSampleN       int
	RedisAddr        string
	H3Res            int
	SearchRadiusKm   float64
	MaxIndexedSpan   float64
	ResolveCacheSize int
	ResolveCacheTTL  time.Duration
	StoreOpTimeout   time.Duration

	ServiceKey      string
	AirKoreaBaseURL string
	KMABaseURL      string
	UpstreamTimeout time.Duration

	IngestEnabled        bool
	Cron                 CronCfg
	AverageFetchInterval time.Duration
	Archive              ArchiveCfg

	Events       EventsCfg
	Invalidation InvalidationCfg

	MetricsEnabled     bool
	MetricsAddr        string
	RateLimitPerMinute int
	CORSOrigins        []string
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "local"
	}
	return h
}

func FromEnv() Config {
	res := getint("H3_RES", 5)
	if res < 0 || res > 15 {
		res = 5
	}
	radius := getfloat("SEARCH_RADIUS_KM", 50)
	if radius <= 0 {
		radius = 50
	}
	brokers := splitList(getenv("KAFKA_BROKERS", "localhost:9092"))
	topic := getenv("KAFKA_TOPIC", "airmap-layer-changes")

	return Config{
		Addr:             getenv("ADDR", ":8090"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogConsole:       getbool("LOG_CONSOLE", false),
		LogSampleN:       getint("LOG_SAMPLE_N", 0),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		H3Res:            res,
		SearchRadiusKm:   radius,
		MaxIndexedSpan:   getfloat("MAX_INDEXED_SPAN_DEG2", 25),
		ResolveCacheSize: getint("RESOLVE_CACHE_SIZE", 4096),
		ResolveCacheTTL:  getduration("RESOLVE_CACHE_TTL", 10*time.Minute),
		StoreOpTimeout:   getduration("STORE_OP_TIMEOUT", 500*time.Millisecond),

		ServiceKey:      getenv("SERVICE_KEY", ""),
		AirKoreaBaseURL: getenv("AIRKOREA_BASE_URL", "http://apis.data.go.kr/B552584"),
		KMABaseURL:      getenv("KMA_BASE_URL", "http://apis.data.go.kr/1360000"),
		UpstreamTimeout: getduration("UPSTREAM_TIMEOUT", 15*time.Second),

		IngestEnabled: getbool("INGEST_ENABLED", false),
		Cron: CronCfg{
			Pollution: getenv("CRON_POLLUTION", "*/10 * * * *"),
			Average:   getenv("CRON_AVERAGE", "*/30 * * * *"),
			Stations:  getenv("CRON_STATIONS", "0 2 * * *"),
			Weather:   getenv("CRON_WEATHER", "5 * * * *"),
			Archive:   getenv("CRON_ARCHIVE", "0 1 1 * *"),
		},
		AverageFetchInterval: getduration("AVERAGE_FETCH_INTERVAL", 5*time.Second),
		Archive: ArchiveCfg{
			Driver:    strings.ToLower(getenv("ARCHIVE_DRIVER", "file")),
			Dir:       getenv("ARCHIVE_DIR", "./archive"),
			Bucket:    getenv("ARCHIVE_BUCKET", ""),
			AWSRegion: getenv("AWS_REGION", "ap-northeast-2"),
		},

		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Topic:   topic,
			Brokers: brokers,
		},
		Invalidation: InvalidationCfg{
			Enabled:    getbool("INVALIDATION_ENABLED", false),
			Topic:      topic,
			Brokers:    brokers,
			GroupID:    getenv("KAFKA_GROUP_ID", "airmap-resolver"),
			InstanceID: getenv("INSTANCE_ID", hostname()),
		},

		MetricsEnabled:     getbool("METRICS_ENABLED", true),
		MetricsAddr:        getenv("METRICS_ADDR", ""),
		RateLimitPerMinute: getint("RATE_LIMIT_PER_MINUTE", 600),
		CORSOrigins:        splitList(getenv("CORS_ORIGINS", "*")),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "a, b,c" into a trimmed list
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

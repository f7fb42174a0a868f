package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/mohammed-shakir/airmap/internal/cache/keys"
	"github.com/mohammed-shakir/airmap/internal/cache/redisstore"
)

type Grades struct {
	PM10 string `json:"PM10"`
	PM25 string `json:"PM25"`
	NO2  string `json:"NO2"`
	O3   string `json:"O3"`
	CO   string `json:"CO"`
	SO2  string `json:"SO2"`
}

// Average is the hourly pollutant average of one city, mapped to the
// administrative codes it covers.
type Average struct {
	CityName  string `json:"cityName"`
	SidoName  string `json:"sidoName"`
	DataTime  string `json:"dataTime"`
	CityCodes []int  `json:"cityCodes"`
	Grades    Grades `json:"grades"`
}

// AverageStore keeps one JSON document per province in a hash.
type AverageStore struct {
	rc        *redisstore.Client
	opTimeout time.Duration
	log       *slog.Logger
}

func NewAverageStore(rc *redisstore.Client, opts Options, log *slog.Logger) *AverageStore {
	if log == nil {
		log = slog.Default()
	}
	return &AverageStore{rc: rc, opTimeout: opts.OpTimeout, log: log.With("layer", LayerAverage)}
}

func (s *AverageStore) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// ReplaceProvince swaps the stored averages of one province.
func (s *AverageStore) ReplaceProvince(ctx context.Context, sido string, rows []Average) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode averages %s: %w", sido, err)
	}
	return s.rc.Tx(ctx, "average_put", func(p redis.Pipeliner) error {
		p.HSet(ctx, keys.Blob("averages"), sido, body)
		return nil
	})
}

// All returns every stored average ordered by province then city.
func (s *AverageStore) All(ctx context.Context) ([]Average, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	raw, err := s.rc.HGetAll(ctx, keys.Blob("averages"))
	if err != nil {
		return nil, fmt.Errorf("load averages: %w", err)
	}
	var out []Average
	for sido, body := range raw {
		var rows []Average
		if err := json.Unmarshal([]byte(body), &rows); err != nil {
			s.log.WarnContext(ctx, "skipping undecodable averages", "sido", sido, "err", err)
			continue
		}
		out = append(out, rows...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SidoName != out[j].SidoName {
			return out[i].SidoName < out[j].SidoName
		}
		return out[i].CityName < out[j].CityName
	})
	return out, nil
}

func (s *AverageStore) BumpVersion(ctx context.Context) (int64, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	v, err := s.rc.Incr(ctx, keys.Version(LayerAverage))
	if err != nil {
		return 0, fmt.Errorf("average version: %w", err)
	}
	return v, nil
}

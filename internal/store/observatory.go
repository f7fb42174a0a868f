package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/airmap/internal/cache/redisstore"
	"github.com/mohammed-shakir/airmap/internal/core/model"
	"github.com/mohammed-shakir/airmap/internal/mapper"
)

type observatoryRecord struct {
	model.Station
}

func (o observatoryRecord) RecordID() string      { return o.ID }
func (o observatoryRecord) RecordName() string    { return o.Name }
func (o observatoryRecord) Position() model.Point { return o.Point() }

// ObservatoryStore holds weather observatories and their latest reading.
type ObservatoryStore struct {
	idx *geoIndex[observatoryRecord]
}

func NewObservatoryStore(rc *redisstore.Client, m mapper.Interface, opts Options, log *slog.Logger) *ObservatoryStore {
	return &ObservatoryStore{idx: newGeoIndex[observatoryRecord](rc, m, LayerObservatory, opts, log)}
}

// Upsert writes the station; a nil Weather keeps the stored reading.
func (s *ObservatoryStore) Upsert(ctx context.Context, st model.Station) error {
	if st.Weather == nil {
		cur, err := s.idx.get(ctx, st.ID)
		switch {
		case err == nil:
			st.Weather = cur.Weather
		case !errors.Is(err, ErrNotFound):
			return err
		}
	}
	return s.idx.put(ctx, observatoryRecord{Station: st})
}

func (s *ObservatoryStore) SetWeather(ctx context.Context, id string, w model.Weather) error {
	cur, err := s.idx.get(ctx, id)
	if err != nil {
		return fmt.Errorf("set weather: %w", err)
	}
	cur.Weather = &w
	return s.idx.put(ctx, cur)
}

func (s *ObservatoryStore) Get(ctx context.Context, id string) (model.Station, error) {
	rec, err := s.idx.get(ctx, id)
	if err != nil {
		return model.Station{}, err
	}
	return rec.Station, nil
}

func (s *ObservatoryStore) All(ctx context.Context) ([]model.Station, error) {
	recs, err := s.idx.all(ctx)
	if err != nil {
		return nil, err
	}
	return unwrapStations(recs), nil
}

// FindStationsInBounds returns observatories inside box, edges inclusive,
// ordered by id.
func (s *ObservatoryStore) FindStationsInBounds(ctx context.Context, box model.BoundingBox) ([]model.Station, error) {
	recs, err := s.idx.inBounds(ctx, box)
	if err != nil {
		return nil, err
	}
	return unwrapStations(recs), nil
}

func (s *ObservatoryStore) BumpVersion(ctx context.Context) (int64, error) {
	return s.idx.bumpVersion(ctx)
}

func unwrapStations(recs []observatoryRecord) []model.Station {
	out := make([]model.Station, len(recs))
	for i, r := range recs {
		out[i] = r.Station
	}
	return out
}

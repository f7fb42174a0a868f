package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mohammed-shakir/airmap/internal/cache/keys"
	"github.com/mohammed-shakir/airmap/internal/cache/redisstore"
	"github.com/mohammed-shakir/airmap/internal/core/model"
	"github.com/mohammed-shakir/airmap/internal/mapper"
)

// Reading is a raw upstream value and its grade.
type Reading struct {
	Value string `json:"value"`
	Grade string `json:"grade"`
}

// Pollution is the latest measurement of an air station.
type Pollution struct {
	DataTime string  `json:"dataTime"`
	PM10     Reading `json:"pm10"`
	PM25     Reading `json:"pm25"`
	NO2      Reading `json:"no2"`
	O3       Reading `json:"o3"`
	SO2      Reading `json:"so2"`
	CO       Reading `json:"co"`
}

// AirStation is an air-quality monitoring site.
type AirStation struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Sido      string     `json:"sido"`
	Addr      string     `json:"addr"`
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	MangName  string     `json:"mangName,omitempty"`
	Item      string     `json:"item,omitempty"`
	Pollution *Pollution `json:"pollution,omitempty"`
}

func (a AirStation) RecordID() string      { return a.ID }
func (a AirStation) RecordName() string    { return a.Name }
func (a AirStation) Position() model.Point { return model.Point{Lat: a.Lat, Lng: a.Lng} }

// AddrSub is the second word of the address, usually the gu or si.
func (a AirStation) AddrSub() string {
	parts := strings.Fields(a.Addr)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

type AirStationStore struct {
	idx *geoIndex[AirStation]
}

func NewAirStationStore(rc *redisstore.Client, m mapper.Interface, opts Options, log *slog.Logger) *AirStationStore {
	return &AirStationStore{idx: newGeoIndex[AirStation](rc, m, LayerAirStation, opts, log)}
}

// UpsertStation inserts st unless a station with the same name exists.
// An empty ID is derived from the name.
func (s *AirStationStore) UpsertStation(ctx context.Context, st AirStation) (bool, error) {
	if st.Name == "" {
		return false, fmt.Errorf("airstation: empty name")
	}
	if _, ok, err := s.idx.idByName(ctx, st.Name); err != nil {
		return false, err
	} else if ok {
		return false, nil
	}
	if st.ID == "" {
		st.ID = keys.StationID(st.Name)
	}
	if err := s.idx.put(ctx, st); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AirStationStore) FindByName(ctx context.Context, name string) (AirStation, error) {
	id, ok, err := s.idx.idByName(ctx, name)
	if err != nil {
		return AirStation{}, err
	}
	if !ok {
		return AirStation{}, fmt.Errorf("airstation %q: %w", name, ErrNotFound)
	}
	return s.idx.get(ctx, id)
}

// SetPollution replaces the single latest reading of the named station.
func (s *AirStationStore) SetPollution(ctx context.Context, name string, p Pollution) error {
	st, err := s.FindByName(ctx, name)
	if err != nil {
		return err
	}
	st.Pollution = &p
	return s.idx.put(ctx, st)
}

// InBounds returns stations inside box that have a reading, ordered by id.
func (s *AirStationStore) InBounds(ctx context.Context, box model.BoundingBox) ([]AirStation, error) {
	recs, err := s.idx.inBounds(ctx, box)
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, r := range recs {
		if r.Pollution != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *AirStationStore) All(ctx context.Context) ([]AirStation, error) {
	return s.idx.all(ctx)
}

func (s *AirStationStore) BumpVersion(ctx context.Context) (int64, error) {
	return s.idx.bumpVersion(ctx)
}

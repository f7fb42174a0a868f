package store

import (
	"context"
	"embed"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/airmap/internal/core/model"
)

//go:embed seed/observatories.json seed/cities.json
var seedFS embed.FS

// SeedObservatories returns the bundled ASOS observatory list.
func SeedObservatories() ([]model.Station, error) {
	b, err := seedFS.ReadFile("seed/observatories.json")
	if err != nil {
		return nil, fmt.Errorf("read observatory seed: %w", err)
	}
	var out []model.Station
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode observatory seed: %w", err)
	}
	return out, nil
}

// SeedCities returns the bundled administrative district list.
func SeedCities() ([]City, error) {
	b, err := seedFS.ReadFile("seed/cities.json")
	if err != nil {
		return nil, fmt.Errorf("read city seed: %w", err)
	}
	var out []City
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode city seed: %w", err)
	}
	return out, nil
}

// Seed loads the bundled observatories and cities. Existing observatory
// weather is kept.
func Seed(ctx context.Context, obs *ObservatoryStore, cities *CityDirectory) (int, error) {
	stations, err := SeedObservatories()
	if err != nil {
		return 0, err
	}
	for _, st := range stations {
		if err := obs.Upsert(ctx, st); err != nil {
			return 0, fmt.Errorf("seed observatory %s: %w", st.ID, err)
		}
	}
	cs, err := SeedCities()
	if err != nil {
		return 0, err
	}
	if err := cities.Load(ctx, cs); err != nil {
		return 0, fmt.Errorf("seed cities: %w", err)
	}
	return len(stations) + len(cs), nil
}

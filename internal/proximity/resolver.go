// Package proximity finds the observation station nearest to a point.
package proximity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/airmap/internal/core/model"
	"github.com/mohammed-shakir/airmap/internal/core/observability"
	"github.com/mohammed-shakir/airmap/internal/geo"
)

// StationFinder returns the stations inside box, edges inclusive.
type StationFinder interface {
	FindStationsInBounds(ctx context.Context, box model.BoundingBox) ([]model.Station, error)
}

type Result struct {
	Station    model.Station `json:"station"`
	DistanceKm float64       `json:"distanceKm"`
}

// NearestStation returns the candidate closest to p. Ties keep the first
// candidate in slice order. ok is false for an empty slice.
func NearestStation(p model.Point, candidates []model.Station) (Result, bool) {
	if len(candidates) == 0 {
		return Result{}, false
	}
	best := Result{Station: candidates[0], DistanceKm: geo.GreatCircleDistanceKm(p, candidates[0].Point())}
	for _, c := range candidates[1:] {
		if d := geo.GreatCircleDistanceKm(p, c.Point()); d < best.DistanceKm {
			best = Result{Station: c, DistanceKm: d}
		}
	}
	return best, true
}

type Resolver struct {
	finder StationFinder
	log    *slog.Logger
}

func NewResolver(finder StationFinder, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{finder: finder, log: log}
}

// ResolveNearest builds the box around p, fetches the candidates inside it
// and picks the nearest. Nothing in the box gives ok == false and a nil
// error. Invalid input returns geo.ErrDegenerateInput without a lookup.
func (r *Resolver) ResolveNearest(ctx context.Context, p model.Point, radiusKm float64) (Result, bool, error) {
	box, err := geo.BoundingBoxAround(p, radiusKm)
	if err != nil {
		observability.ObserveResolve("invalid")
		return Result{}, false, err
	}

	candidates, err := r.finder.FindStationsInBounds(ctx, box)
	if err != nil {
		observability.ObserveResolve("error")
		return Result{}, false, fmt.Errorf("find stations in %s: %w", box, err)
	}

	res, ok := NearestStation(p, candidates)
	if !ok {
		observability.ObserveResolve("absent")
		r.log.DebugContext(ctx, "no station in box", "box", box.String(), "radius_km", radiusKm)
		return Result{}, false, nil
	}
	observability.ObserveResolve("hit")
	return res, true, nil
}

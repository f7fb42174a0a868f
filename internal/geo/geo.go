// Package geo holds the spherical math used for proximity searches.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/mohammed-shakir/airmap/internal/core/model"
)

const EarthRadiusKm = 6371.0

// ErrDegenerateInput is returned for a non-positive radius, a non-finite
// coordinate, or a latitude at or beyond a pole.
var ErrDegenerateInput = errors.New("geo: degenerate input")

// Round8 rounds x to 8 decimal places.
func Round8(x float64) float64 {
	return math.Round(x*1e8) / 1e8
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ValidatePoint rejects non-finite coordinates, |lat| >= 90 and |lng| > 180.
func ValidatePoint(p model.Point) error {
	if !finite(p.Lat, p.Lng) {
		return fmt.Errorf("%w: non-finite point (%v, %v)", ErrDegenerateInput, p.Lat, p.Lng)
	}
	if math.Abs(p.Lat) >= 90 {
		return fmt.Errorf("%w: latitude %v at or beyond a pole", ErrDegenerateInput, p.Lat)
	}
	if math.Abs(p.Lng) > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrDegenerateInput, p.Lng)
	}
	return nil
}

// DegreeDeltaForRadius converts a radius in km into latitude and longitude
// degree deltas at the given latitude. Both are rounded to 8 decimals.
func DegreeDeltaForRadius(lat, radiusKm float64) (latDelta, lngDelta float64, err error) {
	if !finite(lat, radiusKm) || radiusKm <= 0 {
		return 0, 0, fmt.Errorf("%w: radius %v at latitude %v", ErrDegenerateInput, radiusKm, lat)
	}
	if math.Abs(lat) >= 90 {
		return 0, 0, fmt.Errorf("%w: latitude %v at or beyond a pole", ErrDegenerateInput, lat)
	}

	latDelta = Round8(radiusKm / EarthRadiusKm * (180 / math.Pi))

	kmPerDegreeLng := EarthRadiusKm * math.Cos(lat*math.Pi/180) * (2 * math.Pi / 360)
	if kmPerDegreeLng <= 0 {
		return 0, 0, fmt.Errorf("%w: latitude %v at or beyond a pole", ErrDegenerateInput, lat)
	}
	lngDelta = Round8(radiusKm / kmPerDegreeLng)
	return latDelta, lngDelta, nil
}

// BoundingBoxAround returns the box of half-extent radiusKm centred on p.
// Edges are not wrapped at the antimeridian nor clamped at the poles.
func BoundingBoxAround(p model.Point, radiusKm float64) (model.BoundingBox, error) {
	if err := ValidatePoint(p); err != nil {
		return model.BoundingBox{}, err
	}
	latDelta, lngDelta, err := DegreeDeltaForRadius(p.Lat, radiusKm)
	if err != nil {
		return model.BoundingBox{}, err
	}
	return model.BoundingBox{
		MinLat: Round8(p.Lat - latDelta),
		MaxLat: Round8(p.Lat + latDelta),
		MinLng: Round8(p.Lng - lngDelta),
		MaxLng: Round8(p.Lng + lngDelta),
	}, nil
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// GreatCircleDistanceKm is the haversine distance between two points.
func GreatCircleDistanceKm(from, to model.Point) float64 {
	lat1 := toRad(from.Lat)
	lat2 := toRad(to.Lat)
	dLat := toRad(to.Lat - from.Lat)
	dLng := toRad(to.Lng - from.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	a := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	if a > 1 {
		a = 1
	}
	return 2 * math.Asin(math.Sqrt(a)) * EarthRadiusKm
}

// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"time"
)

// Point is a WGS84 position in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BoundingBox edges are inclusive.
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLng float64 `json:"minLng"`
	MaxLng float64 `json:"maxLng"`
}

func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// Span is the box area in square degrees.
func (b BoundingBox) Span() float64 {
	return (b.MaxLat - b.MinLat) * (b.MaxLng - b.MinLng)
}

func (b BoundingBox) Valid() bool {
	return b.MinLat <= b.MaxLat && b.MinLng <= b.MaxLng
}

// String representation matching wfs/wms bbox order (lng,lat)
func (b BoundingBox) String() string {
	return fmt.Sprintf("%.8f,%.8f,%.8f,%.8f", b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
}

type Weather struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	MeasuredAt  time.Time `json:"measuredAt"`
}

// Station is a fixed-location observation point.
type Station struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
	Weather *Weather `json:"weather,omitempty"`
}

func (s Station) Point() Point { return Point{Lat: s.Lat, Lng: s.Lng} }

type Cells []string

package h3mapper

import (
	"errors"
	"fmt"
	"math"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/airmap/internal/core/model"
)

// ErrCoverTooLarge is returned when a box would need too many cells or
// boundary samples at the requested resolution; callers fall back to a full
// scan.
var ErrCoverTooLarge = errors.New("h3 cover too large")

// average hexagon edge length in km, indexed by resolution
var avgEdgeKm = [16]float64{
	1281.256011, 483.0568391, 182.5129565, 68.97922179,
	26.07175968, 9.854090990, 3.724532667, 1.406475763,
	0.531414010, 0.200786148, 0.075863783, 0.028663897,
	0.010830188, 0.004092010, 0.001546100, 0.000584169,
}

const (
	kmPerDegLat = 111.19492664455873 // 6371 * pi / 180
	maxSamples  = 4096
	maxCells    = 20000
)

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

func (m *Mapper) CellForPoint(p model.Point, res int) (string, error) {
	if err := validateRes(res); err != nil {
		return "", err
	}
	c, err := h3.LatLngToCell(h3.LatLng{Lat: p.Lat, Lng: p.Lng}, res)
	if err != nil {
		return "", fmt.Errorf("h3 cell for (%v, %v): %w", p.Lat, p.Lng, err)
	}
	return c.String(), nil
}

// CellsForBox polyfills the box and adds the 1-ring around points sampled
// along its edges, so cells whose centres fall outside the box but whose
// area overlaps it are included.
func (m *Mapper) CellsForBox(box model.BoundingBox, res int) (model.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	if !box.Valid() {
		return nil, fmt.Errorf("invalid box %s", box)
	}

	if n := estimateCells(box, res); n > maxCells {
		return nil, fmt.Errorf("%w: ~%.0f cells at res %d", ErrCoverTooLarge, n, res)
	}
	samples, err := boundarySamples(box, res)
	if err != nil {
		return nil, err
	}

	seen := make(map[h3.Cell]struct{})

	if box.MaxLat > box.MinLat && box.MaxLng > box.MinLng {
		outer := h3.GeoLoop{
			{Lat: box.MinLat, Lng: box.MinLng},
			{Lat: box.MinLat, Lng: box.MaxLng},
			{Lat: box.MaxLat, Lng: box.MaxLng},
			{Lat: box.MaxLat, Lng: box.MinLng},
		}
		cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, res)
		if err != nil {
			return nil, fmt.Errorf("h3 polyfill: %w", err)
		}
		for _, c := range cells {
			seen[c] = struct{}{}
		}
	}

	for _, p := range samples {
		c, err := h3.LatLngToCell(p, res)
		if err != nil {
			return nil, fmt.Errorf("h3 cell for sample: %w", err)
		}
		ring, err := h3.GridDisk(c, 1)
		if err != nil {
			return nil, fmt.Errorf("h3 grid disk: %w", err)
		}
		for _, r := range ring {
			seen[r] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c.String())
	}
	sort.Strings(out)
	return out, nil
}

// --- helpers ---

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// estimateCells bounds the polyfill size by box area over hexagon area, taking
// the box width at the latitude closest to the equator.
func estimateCells(box model.BoundingBox, res int) float64 {
	minAbsLat := 0.0
	if box.MinLat > 0 || box.MaxLat < 0 {
		minAbsLat = math.Min(math.Abs(box.MinLat), math.Abs(box.MaxLat))
	}
	heightKm := (box.MaxLat - box.MinLat) * kmPerDegLat
	widthKm := (box.MaxLng - box.MinLng) * kmPerDegLat * math.Cos(minAbsLat*math.Pi/180)
	edge := avgEdgeKm[res]
	hexKm2 := 3 * math.Sqrt(3) / 2 * edge * edge
	return heightKm * widthKm / hexKm2
}

// boundarySamples walks the four edges at a third of the cell edge length,
// plus the centre.
func boundarySamples(box model.BoundingBox, res int) ([]h3.LatLng, error) {
	stepKm := avgEdgeKm[res] / 3
	latStep := stepKm / kmPerDegLat

	maxAbsLat := math.Max(math.Abs(box.MinLat), math.Abs(box.MaxLat))
	cosLat := math.Max(math.Cos(maxAbsLat*math.Pi/180), 0.01)
	lngStep := latStep / cosLat

	nLat := int(math.Ceil((box.MaxLat-box.MinLat)/latStep)) + 1
	nLng := int(math.Ceil((box.MaxLng-box.MinLng)/lngStep)) + 1
	if 2*(nLat+nLng) > maxSamples {
		return nil, fmt.Errorf("%w: %d samples at res %d", ErrCoverTooLarge, 2*(nLat+nLng), res)
	}

	out := make([]h3.LatLng, 0, 2*(nLat+nLng)+1)
	for i := 0; i <= nLng; i++ {
		lng := math.Min(box.MinLng+float64(i)*lngStep, box.MaxLng)
		out = append(out,
			h3.LatLng{Lat: box.MinLat, Lng: lng},
			h3.LatLng{Lat: box.MaxLat, Lng: lng},
		)
	}
	for i := 0; i <= nLat; i++ {
		lat := math.Min(box.MinLat+float64(i)*latStep, box.MaxLat)
		out = append(out,
			h3.LatLng{Lat: lat, Lng: box.MinLng},
			h3.LatLng{Lat: lat, Lng: box.MaxLng},
		)
	}
	out = append(out, h3.LatLng{
		Lat: (box.MinLat + box.MaxLat) / 2,
		Lng: (box.MinLng + box.MaxLng) / 2,
	})
	return out, nil
}

package store

import (
	"context"
	"sync"

	"github.com/mohammed-shakir/airmap/internal/core/model"
)

// MemoryFinder is an in-process station set with the same bounds semantics
// as ObservatoryStore. Err, when set, is returned from every lookup.
type MemoryFinder struct {
	mu       sync.RWMutex
	stations []model.Station
	calls    int
	Err      error
}

func NewMemoryFinder(stations ...model.Station) *MemoryFinder {
	return &MemoryFinder{stations: append([]model.Station(nil), stations...)}
}

func (m *MemoryFinder) Add(st model.Station) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stations = append(m.stations, st)
}

// Calls reports how many lookups reached the finder.
func (m *MemoryFinder) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// FindStationsInBounds keeps insertion order, unlike the Redis store.
func (m *MemoryFinder) FindStationsInBounds(ctx context.Context, box model.BoundingBox) ([]model.Station, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Station
	for _, st := range m.stations {
		if box.Contains(st.Point()) {
			out = append(out, st)
		}
	}
	return out, nil
}

package api

import (
	"net/http"

	"github.com/mohammed-shakir/airmap/internal/core/model"
	"github.com/mohammed-shakir/airmap/internal/store"
)

type observatoryQuery struct {
	Lat    *float64 `validate:"required,gt=-90,lt=90"`
	Lng    *float64 `validate:"required,gte=-180,lte=180"`
	Radius *float64 `validate:"omitempty,gt=0,lte=1000"`
}

type observatoryData struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Location   location       `json:"location"`
	DistanceKm float64        `json:"distanceKm"`
	Weather    *model.Weather `json:"weather"`
}

type location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (h *Handler) getObservatory(w http.ResponseWriter, r *http.Request) {
	var q observatoryQuery
	var err error
	if q.Lat, err = floatParam(r, "lat"); err != nil {
		h.fail(w, r, err)
		return
	}
	if q.Lng, err = floatParam(r, "lng"); err != nil {
		h.fail(w, r, err)
		return
	}
	if q.Radius, err = floatParam(r, "radius"); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.check(q); err != nil {
		h.fail(w, r, err)
		return
	}
	radius := h.opts.DefaultRadiusKm
	if q.Radius != nil {
		radius = *q.Radius
	}

	res, found, err := h.deps.Observatories.ResolveNearest(r.Context(), model.Point{Lat: *q.Lat, Lng: *q.Lng}, radius)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !found {
		h.fail(w, r, store.ErrNotFound)
		return
	}
	st := res.Station
	h.ok(w, "nearest observatory", observatoryData{
		ID:         st.ID,
		Name:       st.Name,
		Location:   location{Latitude: st.Lat, Longitude: st.Lng},
		DistanceKm: res.DistanceKm,
		Weather:    st.Weather,
	})
}

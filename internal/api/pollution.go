package api

import (
	"net/http"

	"github.com/mohammed-shakir/airmap/internal/airquality"
	"github.com/mohammed-shakir/airmap/internal/core/model"
	"github.com/mohammed-shakir/airmap/internal/store"
)

type boxQuery struct {
	MinLat *float64 `validate:"required,gte=-90,lte=90"`
	MaxLat *float64 `validate:"required,gte=-90,lte=90"`
	MinLng *float64 `validate:"required,gte=-180,lte=180"`
	MaxLng *float64 `validate:"required,gte=-180,lte=180"`
}

type pollutionValue struct {
	Data  string `json:"data"`
	Grade string `json:"grade"`
}

type airData struct {
	PM10 pollutionValue `json:"PM10"`
	PM25 pollutionValue `json:"PM25"`
	NO2  pollutionValue `json:"NO2"`
	O3   pollutionValue `json:"O3"`
	SO2  pollutionValue `json:"SO2"`
	CO   pollutionValue `json:"CO"`
	TP   *float64       `json:"TP"`
	HM   *float64       `json:"HM"`
}

type pollutionItem struct {
	Location     location `json:"location"`
	Station      string   `json:"station"`
	AddressTitle string   `json:"addressTitle"`
	AddressSub   string   `json:"addressSub"`
	Date         string   `json:"date"`
	AirData      airData  `json:"airData"`
}

func (h *Handler) getPollution(w http.ResponseWriter, r *http.Request) {
	var q boxQuery
	for _, p := range []struct {
		name string
		dst  **float64
	}{
		{"minLat", &q.MinLat}, {"maxLat", &q.MaxLat}, {"minLng", &q.MinLng}, {"maxLng", &q.MaxLng},
	} {
		v, err := floatParam(r, p.name)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		*p.dst = v
	}
	if err := h.check(q); err != nil {
		h.fail(w, r, err)
		return
	}
	box := model.BoundingBox{MinLat: *q.MinLat, MaxLat: *q.MaxLat, MinLng: *q.MinLng, MaxLng: *q.MaxLng}
	if !box.Valid() {
		h.fail(w, r, &paramError{name: "bounds", msg: "min must not exceed max"})
		return
	}

	stations, err := h.deps.AirStations.InBounds(r.Context(), box)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]pollutionItem, 0, len(stations))
	for _, st := range stations {
		item := pollutionItem{
			Location:     location{Latitude: st.Lat, Longitude: st.Lng},
			Station:      st.Name,
			AddressTitle: st.Sido,
			AddressSub:   st.AddrSub(),
		}
		if p := st.Pollution; p != nil {
			item.Date = p.DataTime
			item.AirData.PM10 = value(airquality.PM10, p.PM10)
			item.AirData.PM25 = value(airquality.PM25, p.PM25)
			item.AirData.NO2 = value(airquality.NO2, p.NO2)
			item.AirData.O3 = value(airquality.O3, p.O3)
			item.AirData.SO2 = value(airquality.SO2, p.SO2)
			item.AirData.CO = value(airquality.CO, p.CO)
		}
		h.attachWeather(r, st, &item.AirData)
		out = append(out, item)
	}
	h.ok(w, "air pollution in bounds", out)
}

func value(p airquality.Pollutant, rd store.Reading) pollutionValue {
	return pollutionValue{Data: airquality.Round(p, rd.Value), Grade: rd.Grade}
}

// attachWeather copies the nearest observatory's weather. A lookup failure
// leaves TP and HM null rather than failing the whole response.
func (h *Handler) attachWeather(r *http.Request, st store.AirStation, ad *airData) {
	res, found, err := h.deps.Observatories.ResolveNearest(r.Context(), model.Point{Lat: st.Lat, Lng: st.Lng}, h.opts.WeatherRadiusKm)
	if err != nil {
		h.log.WarnContext(r.Context(), "weather lookup failed", "station", st.Name, "err", err)
		return
	}
	if !found || res.Station.Weather == nil {
		return
	}
	tp, hm := res.Station.Weather.Temperature, res.Station.Weather.Humidity
	ad.TP, ad.HM = &tp, &hm
}

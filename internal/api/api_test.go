package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/airmap/internal/core/model"
	"github.com/mohammed-shakir/airmap/internal/proximity"
	"github.com/mohammed-shakir/airmap/internal/store"
)

type fakeAir struct {
	stations []store.AirStation
	err      error
	lastBox  model.BoundingBox
}

func (f *fakeAir) InBounds(_ context.Context, box model.BoundingBox) ([]store.AirStation, error) {
	f.lastBox = box
	return f.stations, f.err
}

type fakeAvg struct{ rows []store.Average }

func (f fakeAvg) All(context.Context) ([]store.Average, error) { return f.rows, nil }

var measured = time.Date(2024, 9, 24, 4, 0, 0, 0, time.UTC)

func newTestRouter(finder *store.MemoryFinder, air *fakeAir, avg fakeAvg) http.Handler {
	h := New(Deps{
		Observatories: proximity.NewResolver(finder, nil),
		AirStations:   air,
		Averages:      avg,
	}, Options{})
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return rr, body
}

func seongnam() model.Station {
	return model.Station{ID: "572", Name: "성남", Lat: 37.4200, Lng: 127.1265,
		Weather: &model.Weather{Temperature: 21.5, Humidity: 60, MeasuredAt: measured}}
}

func TestObservatory_Nearest(t *testing.T) {
	h := newTestRouter(store.NewMemoryFinder(seongnam()), &fakeAir{}, fakeAvg{})

	rr, body := do(t, h, "/map/observatory?lat=37.45&lng=127.13")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%v", rr.Code, body)
	}
	data := body["data"].(map[string]any)
	if data["id"] != "572" {
		t.Fatalf("id=%v", data["id"])
	}
	if d := data["distanceKm"].(float64); d <= 0 || d > 5 {
		t.Fatalf("distanceKm=%v", d)
	}
	if w := data["weather"].(map[string]any); w["temperature"].(float64) != 21.5 {
		t.Fatalf("weather=%v", w)
	}
}

func TestObservatory_BadInput(t *testing.T) {
	finder := store.NewMemoryFinder(seongnam())
	h := newTestRouter(finder, &fakeAir{}, fakeAvg{})

	for _, target := range []string{
		"/map/observatory?lng=127",
		"/map/observatory?lat=abc&lng=127",
		"/map/observatory?lat=95&lng=127",
		"/map/observatory?lat=37&lng=127&radius=-1",
	} {
		rr, _ := do(t, h, target)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d want 400", target, rr.Code)
		}
	}
	if finder.Calls() != 0 {
		t.Fatalf("store queried %d times for invalid input", finder.Calls())
	}
}

func TestObservatory_AbsentIs404(t *testing.T) {
	h := newTestRouter(store.NewMemoryFinder(seongnam()), &fakeAir{}, fakeAvg{})
	rr, body := do(t, h, "/map/observatory?lat=33.5&lng=126.5&radius=10")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rr.Code)
	}
	if body["data"] != nil {
		t.Fatalf("data=%v want null", body["data"])
	}
}

func TestObservatory_StoreFailureIs502(t *testing.T) {
	finder := store.NewMemoryFinder(seongnam())
	finder.Err = errors.New("redis down")
	h := newTestRouter(finder, &fakeAir{}, fakeAvg{})
	rr, _ := do(t, h, "/map/observatory?lat=37.45&lng=127.13")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d want 502", rr.Code)
	}
}

func TestPollution_ShapeAndWeather(t *testing.T) {
	air := &fakeAir{stations: []store.AirStation{{
		ID: "a", Name: "종로구", Sido: "서울", Addr: "서울 종로구 종로35가길 19",
		Lat: 37.572016, Lng: 127.005007,
		Pollution: &store.Pollution{
			DataTime: "2024-09-24 13:00",
			PM10:     store.Reading{Value: "45.4", Grade: "2"},
			CO:       store.Reading{Value: "0.44", Grade: "1"},
		},
	}}}
	obs := model.Station{ID: "108", Name: "서울", Lat: 37.5714, Lng: 126.9658,
		Weather: &model.Weather{Temperature: 22, Humidity: 55, MeasuredAt: measured}}
	h := newTestRouter(store.NewMemoryFinder(obs), air, fakeAvg{})

	rr, body := do(t, h, "/map/pollution?minLat=37&maxLat=38&minLng=126.5&maxLng=127.5")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%v", rr.Code, body)
	}
	if air.lastBox.MinLat != 37 || air.lastBox.MaxLng != 127.5 {
		t.Fatalf("box=%+v", air.lastBox)
	}
	rows := body["data"].([]any)
	if len(rows) != 1 {
		t.Fatalf("rows=%d", len(rows))
	}
	row := rows[0].(map[string]any)
	if row["station"] != "종로구" || row["addressTitle"] != "서울" || row["addressSub"] != "종로구" {
		t.Fatalf("row=%v", row)
	}
	ad := row["airData"].(map[string]any)
	pm10 := ad["PM10"].(map[string]any)
	if pm10["data"] != "45" || pm10["grade"] != "2" {
		t.Fatalf("PM10=%v", pm10)
	}
	if co := ad["CO"].(map[string]any); co["data"] != "0.4" {
		t.Fatalf("CO=%v", co)
	}
	if ad["TP"].(float64) != 22 || ad["HM"].(float64) != 55 {
		t.Fatalf("weather TP=%v HM=%v", ad["TP"], ad["HM"])
	}
}

func TestPollution_NoObservatoryLeavesWeatherNull(t *testing.T) {
	air := &fakeAir{stations: []store.AirStation{{ID: "a", Name: "x", Lat: 33.5, Lng: 126.5, Pollution: &store.Pollution{}}}}
	h := newTestRouter(store.NewMemoryFinder(seongnam()), air, fakeAvg{})

	_, body := do(t, h, "/map/pollution?minLat=33&maxLat=34&minLng=126&maxLng=127")
	ad := body["data"].([]any)[0].(map[string]any)["airData"].(map[string]any)
	if ad["TP"] != nil || ad["HM"] != nil {
		t.Fatalf("TP=%v HM=%v want null", ad["TP"], ad["HM"])
	}
}

func TestPollution_BadBox(t *testing.T) {
	h := newTestRouter(store.NewMemoryFinder(), &fakeAir{}, fakeAvg{})
	for _, target := range []string{
		"/map/pollution?minLat=38&maxLat=37&minLng=126&maxLng=127",
		"/map/pollution?minLat=37&maxLat=38&minLng=126",
		"/map/pollution?minLat=37&maxLat=38&minLng=126&maxLng=200",
	} {
		rr, _ := do(t, h, target)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d want 400", target, rr.Code)
		}
	}
}

func TestPollution_StoreFailure(t *testing.T) {
	h := newTestRouter(store.NewMemoryFinder(), &fakeAir{err: context.DeadlineExceeded}, fakeAvg{})
	rr, _ := do(t, h, "/map/pollution?minLat=37&maxLat=38&minLng=126&maxLng=127")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", rr.Code)
	}
}

func TestAverage_FlattensCityCodes(t *testing.T) {
	avg := fakeAvg{rows: []store.Average{{
		CityName: "수원시", SidoName: "경기", DataTime: "2024-09-24 13:00",
		CityCodes: []int{41111, 41113},
		Grades:    store.Grades{PM10: "2", PM25: "1", NO2: "1", O3: "2", CO: "1", SO2: "1"},
	}}}
	h := newTestRouter(store.NewMemoryFinder(), &fakeAir{}, avg)

	rr, body := do(t, h, "/map/average")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	rows := body["data"].([]any)
	if len(rows) != 2 {
		t.Fatalf("rows=%d want 2", len(rows))
	}
	second := rows[1].(map[string]any)
	if second["cityCode"].(float64) != 41113 || second["pm10Grade"] != "2" || second["o3Grade"] != "2" {
		t.Fatalf("row=%v", second)
	}
}

func TestRoutes_RateLimited(t *testing.T) {
	h := New(Deps{
		Observatories: proximity.NewResolver(store.NewMemoryFinder(), nil),
		AirStations:   &fakeAir{},
		Averages:      fakeAvg{},
	}, Options{RatePerMinute: 1})
	r := chi.NewRouter()
	h.Routes(r)

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/map/average", nil))
	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/map/average", nil))
	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Fatalf("codes=%d,%d want 200,429", first.Code, second.Code)
	}
}

package api

import "net/http"

type averageItem struct {
	CityCode  int    `json:"cityCode"`
	CityName  string `json:"cityName"`
	SidoName  string `json:"sidoName"`
	DataTime  string `json:"dataTime"`
	PM10Grade string `json:"pm10Grade"`
	PM25Grade string `json:"pm25Grade"`
	NO2Grade  string `json:"no2Grade"`
	O3Grade   string `json:"o3Grade"`
	COGrade   string `json:"coGrade"`
	SO2Grade  string `json:"so2Grade"`
}

// getAverage returns one row per city code.
func (h *Handler) getAverage(w http.ResponseWriter, r *http.Request) {
	avgs, err := h.deps.Averages.All(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]averageItem, 0, len(avgs))
	for _, a := range avgs {
		for _, code := range a.CityCodes {
			out = append(out, averageItem{
				CityCode:  code,
				CityName:  a.CityName,
				SidoName:  a.SidoName,
				DataTime:  a.DataTime,
				PM10Grade: a.Grades.PM10,
				PM25Grade: a.Grades.PM25,
				NO2Grade:  a.Grades.NO2,
				O3Grade:   a.Grades.O3,
				COGrade:   a.Grades.CO,
				SO2Grade:  a.Grades.SO2,
			})
		}
	}
	h.ok(w, "city air pollution averages", out)
}

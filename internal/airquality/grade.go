// Package airquality grades pollutant readings on the Korean CAI scale.
package airquality

import (
	"math"
	"strconv"
	"strings"
)

type Pollutant string

const (
	PM10 Pollutant = "PM10"
	PM25 Pollutant = "PM25"
	NO2  Pollutant = "NO2"
	O3   Pollutant = "O3"
	CO   Pollutant = "CO"
	SO2  Pollutant = "SO2"
)

// Pollutants in response order.
var Pollutants = []Pollutant{PM10, PM25, NO2, O3, CO, SO2}

const NoGrade = "none"

// upper bounds of grades 1..3; anything above the last is grade 4
var thresholds = map[Pollutant][3]float64{
	PM10: {30, 80, 150},
	PM25: {15, 35, 75},
	NO2:  {0.030, 0.060, 0.200},
	O3:   {0.030, 0.090, 0.150},
	CO:   {2, 9, 15},
	SO2:  {0.020, 0.050, 0.150},
}

// Grade maps a raw upstream value to "1".."4". Unknown pollutants,
// unparsable or negative values give NoGrade.
func Grade(p Pollutant, raw string) string {
	bounds, ok := thresholds[p]
	if !ok {
		return NoGrade
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return NoGrade
	}
	for i, hi := range bounds {
		if v <= hi {
			return strconv.Itoa(i + 1)
		}
	}
	return "4"
}

// IsMissing reports the upstream placeholders for absent data.
func IsMissing(v string) bool {
	switch strings.TrimSpace(v) {
	case "", "-", "통신장애":
		return true
	}
	return false
}

func HasMissing(vs ...string) bool {
	for _, v := range vs {
		if IsMissing(v) {
			return true
		}
	}
	return false
}

// Round formats a raw value for display: integers for particulate matter,
// three decimals for gases.
func Round(p Pollutant, raw string) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return raw
	}
	switch p {
	case PM10, PM25:
		return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	case CO:
		return strconv.FormatFloat(math.Round(v*10)/10, 'f', 1, 64)
	default:
		return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', 3, 64)
	}
}

// Provinces are the sido names accepted by the province average endpoint.
var Provinces = []string{
	"서울", "부산", "대구", "인천", "광주", "대전", "울산", "경기", "강원",
	"충북", "충남", "전북", "전남", "경북", "경남", "제주", "세종",
}

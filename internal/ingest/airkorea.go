package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

// envelope is the response wrapper shared by every data.go.kr service.
type envelope[T any] struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			TotalCount int `json:"totalCount"`
			Items      []T `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

func decodeEnvelope[T any](b []byte) ([]T, error) {
	var env envelope[T]
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrUpstream, err)
	}
	if code := env.Response.Header.ResultCode; code != "00" {
		return nil, fmt.Errorf("%w: result %s %s", ErrUpstream, code, env.Response.Header.ResultMsg)
	}
	return env.Response.Body.Items, nil
}

// RealtimeItem is one station's latest hourly measurement.
type RealtimeItem struct {
	DataTime    string `json:"dataTime"`
	SidoName    string `json:"sidoName"`
	StationName string `json:"stationName"`
	PM10Value   string `json:"pm10Value"`
	PM25Value   string `json:"pm25Value"`
	NO2Value    string `json:"no2Value"`
	O3Value     string `json:"o3Value"`
	SO2Value    string `json:"so2Value"`
	COValue     string `json:"coValue"`
}

// StationItem describes a monitoring site. DmX is the latitude and DmY the longitude.
type StationItem struct {
	StationName string `json:"stationName"`
	Addr        string `json:"addr"`
	DmX         string `json:"dmX"`
	DmY         string `json:"dmY"`
	MangName    string `json:"mangName"`
	Item        string `json:"item"`
}

// AverageItem is the hourly average of one city within a province.
type AverageItem struct {
	DataTime  string `json:"dataTime"`
	SidoName  string `json:"sidoName"`
	CityName  string `json:"cityName"`
	PM10Value string `json:"pm10Value"`
	PM25Value string `json:"pm25Value"`
	NO2Value  string `json:"no2Value"`
	O3Value   string `json:"o3Value"`
	SO2Value  string `json:"so2Value"`
	COValue   string `json:"coValue"`
}

type AirKoreaClient struct {
	base       string
	serviceKey string
	up         *upstream
}

func NewAirKoreaClient(base, serviceKey string, hc *http.Client, log *slog.Logger) *AirKoreaClient {
	return &AirKoreaClient{
		base:       strings.TrimRight(base, "/"),
		serviceKey: serviceKey,
		up:         newUpstream("airkorea", hc, log),
	}
}

func (c *AirKoreaClient) url(path string, q url.Values) string {
	q.Set("serviceKey", c.serviceKey)
	q.Set("returnType", "json")
	return c.base + path + "?" + q.Encode()
}

// RawRealtime returns the nationwide realtime response body untouched.
func (c *AirKoreaClient) RawRealtime(ctx context.Context) ([]byte, error) {
	q := url.Values{}
	q.Set("sidoName", "전국")
	q.Set("pageNo", "1")
	q.Set("numOfRows", "661")
	q.Set("ver", "1.0")
	return c.up.get(ctx, c.url("/ArpltnInforInqireSvc/getCtprvnRltmMesureDnsty", q))
}

func (c *AirKoreaClient) RealtimeByProvince(ctx context.Context, sido string) ([]RealtimeItem, error) {
	q := url.Values{}
	q.Set("sidoName", sido)
	q.Set("pageNo", "1")
	q.Set("numOfRows", "661")
	q.Set("ver", "1.0")
	b, err := c.up.get(ctx, c.url("/ArpltnInforInqireSvc/getCtprvnRltmMesureDnsty", q))
	if err != nil {
		return nil, err
	}
	return decodeEnvelope[RealtimeItem](b)
}

func (c *AirKoreaClient) StationList(ctx context.Context) ([]StationItem, error) {
	q := url.Values{}
	q.Set("pageNo", "1")
	q.Set("numOfRows", "1000")
	b, err := c.up.get(ctx, c.url("/MsrstnInfoInqireSvc/getMsrstnList", q))
	if err != nil {
		return nil, err
	}
	return decodeEnvelope[StationItem](b)
}

func (c *AirKoreaClient) ProvinceAverages(ctx context.Context, sido string) ([]AverageItem, error) {
	q := url.Values{}
	q.Set("sidoName", sido)
	q.Set("searchCondition", "HOUR")
	q.Set("pageNo", "1")
	q.Set("numOfRows", "100")
	b, err := c.up.get(ctx, c.url("/ArpltnStatsSvc/getCtprvnMesureSidoLIst", q))
	if err != nil {
		return nil, err
	}
	return decodeEnvelope[AverageItem](b)
}

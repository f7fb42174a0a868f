package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/airmap/internal/core/model"
)

var kst = time.FixedZone("KST", 9*3600)

type asosItem struct {
	TM string `json:"tm"`
	TA string `json:"ta"`
	HM string `json:"hm"`
}

// the ASOS service nests items one level deeper than AirKorea
type asosEnvelope struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items struct {
				Item []asosItem `json:"item"`
			} `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

// KMAClient reads hourly ASOS observations from the weather agency.
type KMAClient struct {
	base       string
	serviceKey string
	up         *upstream
}

func NewKMAClient(base, serviceKey string, hc *http.Client, log *slog.Logger) *KMAClient {
	return &KMAClient{
		base:       strings.TrimRight(base, "/"),
		serviceKey: serviceKey,
		up:         newUpstream("kma", hc, log),
	}
}

// HourlyObservation returns temperature and humidity of station stnID for
// the hour containing at.
func (c *KMAClient) HourlyObservation(ctx context.Context, stnID string, at time.Time) (model.Weather, error) {
	local := at.In(kst)
	day := local.Format("20060102")
	hour := local.Format("15")

	q := url.Values{}
	q.Set("serviceKey", c.serviceKey)
	q.Set("dataType", "JSON")
	q.Set("dataCd", "ASOS")
	q.Set("dateCd", "HR")
	q.Set("pageNo", "1")
	q.Set("numOfRows", "1")
	q.Set("startDt", day)
	q.Set("startHh", hour)
	q.Set("endDt", day)
	q.Set("endHh", hour)
	q.Set("stnIds", stnID)

	b, err := c.up.get(ctx, c.base+"/AsosHourlyInfoService/getWthrDataList?"+q.Encode())
	if err != nil {
		return model.Weather{}, err
	}

	var env asosEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return model.Weather{}, fmt.Errorf("%w: decode: %w", ErrUpstream, err)
	}
	if code := env.Response.Header.ResultCode; code != "00" {
		return model.Weather{}, fmt.Errorf("%w: result %s %s", ErrUpstream, code, env.Response.Header.ResultMsg)
	}
	items := env.Response.Body.Items.Item
	if len(items) == 0 {
		return model.Weather{}, fmt.Errorf("%w: no observation for %s at %s%s", ErrUpstream, stnID, day, hour)
	}
	return parseASOS(items[len(items)-1])
}

func parseASOS(it asosItem) (model.Weather, error) {
	ta, err := strconv.ParseFloat(strings.TrimSpace(it.TA), 64)
	if err != nil {
		return model.Weather{}, fmt.Errorf("%w: temperature %q", ErrUpstream, it.TA)
	}
	hm, err := strconv.ParseFloat(strings.TrimSpace(it.HM), 64)
	if err != nil {
		return model.Weather{}, fmt.Errorf("%w: humidity %q", ErrUpstream, it.HM)
	}
	tm, err := time.ParseInLocation("2006-01-02 15:04", it.TM, kst)
	if err != nil {
		return model.Weather{}, fmt.Errorf("%w: time %q", ErrUpstream, it.TM)
	}
	return model.Weather{Temperature: ta, Humidity: hm, MeasuredAt: tm}, nil
}

package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/mohammed-shakir/airmap/internal/airquality"
	"github.com/mohammed-shakir/airmap/internal/archive"
	"github.com/mohammed-shakir/airmap/internal/core/observability"
	"github.com/mohammed-shakir/airmap/internal/events"
	"github.com/mohammed-shakir/airmap/internal/invalidation"
	"github.com/mohammed-shakir/airmap/internal/logger"
	"github.com/mohammed-shakir/airmap/internal/store"
)

const (
	JobStations  = "stations"
	JobPollution = "pollution"
	JobAverages  = "averages"
	JobWeather   = "weather"
	JobArchive   = "archive"
	JobSeed      = "seed"
)

// JobNames lists every job Run accepts.
var JobNames = []string{JobStations, JobPollution, JobAverages, JobWeather, JobArchive, JobSeed}

type Stores struct {
	Observatories *store.ObservatoryStore
	AirStations   *store.AirStationStore
	Averages      *store.AverageStore
	Cities        *store.CityDirectory
}

type Options struct {
	Logger *slog.Logger
	// Notifier hears about every layer whose version was bumped.
	Notifier        events.Notifier
	Sink            archive.Sink
	AverageInterval time.Duration
	Now             func() time.Time
}

type Jobs struct {
	air     *AirKoreaClient
	kma     *KMAClient
	st      Stores
	sink    archive.Sink
	notify  events.Notifier
	limiter *rate.Limiter
	now     func() time.Time
	log     *slog.Logger
}

func NewJobs(air *AirKoreaClient, kma *KMAClient, st Stores, opts Options) *Jobs {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = events.Nop
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.AverageInterval > 0 {
		lim = rate.NewLimiter(rate.Every(opts.AverageInterval), 1)
	}
	return &Jobs{
		air:     air,
		kma:     kma,
		st:      st,
		sink:    opts.Sink,
		notify:  opts.Notifier,
		limiter: lim,
		now:     opts.Now,
		log:     opts.Logger,
	}
}

// Run executes one job by name and records its outcome.
func (j *Jobs) Run(ctx context.Context, name string) error {
	var fn func(context.Context) (int, error)
	switch name {
	case JobStations:
		fn = j.SyncStations
	case JobPollution:
		fn = j.SyncPollution
	case JobAverages:
		fn = j.SyncAverages
	case JobWeather:
		fn = j.SyncWeather
	case JobArchive:
		fn = j.Archive
	case JobSeed:
		fn = j.Seed
	default:
		return fmt.Errorf("unknown job %q", name)
	}

	ctx = logger.WithJob(logger.WithComponent(ctx, "ingest"), name)
	start := time.Now()
	n, err := fn(ctx)
	dur := time.Since(start)
	observability.ObserveJob(name, err, dur, n)
	if err != nil {
		j.log.ErrorContext(ctx, "job failed", "items", n, "dur_ms", dur.Milliseconds(), "err", err)
		return fmt.Errorf("job %s: %w", name, err)
	}
	j.log.InfoContext(ctx, "job done", "items", n, "dur_ms", dur.Milliseconds())
	return nil
}

func (j *Jobs) changed(ctx context.Context, layer, op string, bump func(context.Context) (int64, error), ids []string) {
	v, err := bump(ctx)
	if err != nil {
		j.log.WarnContext(ctx, "layer version bump failed", "layer", layer, "err", err)
		return
	}
	j.notify.Notify(ctx, invalidation.Event{
		Layer:   layer,
		Version: v,
		TS:      j.now().UTC(),
		Op:      op,
		IDs:     ids,
		Source:  "ingest",
	})
}

// SyncStations inserts stations that are not stored yet. Known stations are
// never overwritten.
func (j *Jobs) SyncStations(ctx context.Context) (int, error) {
	items, err := j.air.StationList(ctx)
	if err != nil {
		return 0, err
	}
	var inserted []string
	for _, it := range items {
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(it.DmX), 64)
		lng, errLng := strconv.ParseFloat(strings.TrimSpace(it.DmY), 64)
		if errLat != nil || errLng != nil || strings.TrimSpace(it.StationName) == "" {
			j.log.DebugContext(ctx, "station skipped", "station", it.StationName, "dmX", it.DmX, "dmY", it.DmY)
			continue
		}
		st := store.AirStation{
			Name:     it.StationName,
			Sido:     firstField(it.Addr),
			Addr:     it.Addr,
			Lat:      lat,
			Lng:      lng,
			MangName: it.MangName,
			Item:     it.Item,
		}
		ok, err := j.st.AirStations.UpsertStation(ctx, st)
		if err != nil {
			return len(inserted), err
		}
		if ok {
			inserted = append(inserted, it.StationName)
		}
	}
	if len(inserted) > 0 {
		j.changed(ctx, store.LayerAirStation, invalidation.OpInsert, j.st.AirStations.BumpVersion, inserted)
	}
	return len(inserted), nil
}

// SyncPollution grades the nationwide realtime readings and stores the
// latest one per known station.
func (j *Jobs) SyncPollution(ctx context.Context) (int, error) {
	items, err := j.air.RealtimeByProvince(ctx, "전국")
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, it := range items {
		if airquality.HasMissing(it.DataTime, it.SidoName, it.StationName,
			it.PM10Value, it.PM25Value, it.NO2Value, it.O3Value, it.SO2Value, it.COValue) {
			continue
		}
		p := store.Pollution{
			DataTime: it.DataTime,
			PM10:     reading(airquality.PM10, it.PM10Value),
			PM25:     reading(airquality.PM25, it.PM25Value),
			NO2:      reading(airquality.NO2, it.NO2Value),
			O3:       reading(airquality.O3, it.O3Value),
			SO2:      reading(airquality.SO2, it.SO2Value),
			CO:       reading(airquality.CO, it.COValue),
		}
		err := j.st.AirStations.SetPollution(ctx, it.StationName, p)
		switch {
		case errors.Is(err, store.ErrNotFound):
			j.log.DebugContext(ctx, "reading for unknown station", "station", it.StationName)
		case err != nil:
			return updated, err
		default:
			updated++
		}
	}
	if updated > 0 {
		j.changed(ctx, store.LayerAirStation, invalidation.OpUpdate, j.st.AirStations.BumpVersion, nil)
	}
	return updated, nil
}

func reading(p airquality.Pollutant, raw string) store.Reading {
	return store.Reading{Value: strings.TrimSpace(raw), Grade: airquality.Grade(p, raw)}
}

// SyncAverages refreshes city averages province by province. A province that
// fails keeps its previous averages.
func (j *Jobs) SyncAverages(ctx context.Context) (int, error) {
	total, failed := 0, 0
	var lastErr error
	for _, sido := range airquality.Provinces {
		if err := j.limiter.Wait(ctx); err != nil {
			return total, err
		}
		rows, err := j.provinceAverages(ctx, sido)
		if err != nil {
			failed++
			lastErr = err
			j.log.WarnContext(ctx, "province averages failed", "sido", sido, "err", err)
			continue
		}
		if err := j.st.Averages.ReplaceProvince(ctx, sido, rows); err != nil {
			return total, err
		}
		total += len(rows)
	}
	if failed == len(airquality.Provinces) {
		return 0, lastErr
	}
	j.changed(ctx, store.LayerAverage, invalidation.OpReplace, j.st.Averages.BumpVersion, nil)
	return total, nil
}

func (j *Jobs) provinceAverages(ctx context.Context, sido string) ([]store.Average, error) {
	items, err := j.air.ProvinceAverages(ctx, sido)
	if err != nil {
		return nil, err
	}
	rows := make([]store.Average, 0, len(items))
	for _, it := range items {
		if airquality.HasMissing(it.DataTime, it.SidoName, it.CityName,
			it.PM10Value, it.PM25Value, it.NO2Value, it.O3Value, it.SO2Value, it.COValue) {
			continue
		}
		codes, err := j.st.Cities.Codes(ctx, it.SidoName, it.CityName)
		if errors.Is(err, store.ErrNotFound) {
			j.log.DebugContext(ctx, "city not in directory", "sido", it.SidoName, "city", it.CityName)
			continue
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, store.Average{
			CityName:  it.CityName,
			SidoName:  it.SidoName,
			DataTime:  it.DataTime,
			CityCodes: codes,
			Grades: store.Grades{
				PM10: airquality.Grade(airquality.PM10, it.PM10Value),
				PM25: airquality.Grade(airquality.PM25, it.PM25Value),
				NO2:  airquality.Grade(airquality.NO2, it.NO2Value),
				O3:   airquality.Grade(airquality.O3, it.O3Value),
				CO:   airquality.Grade(airquality.CO, it.COValue),
				SO2:  airquality.Grade(airquality.SO2, it.SO2Value),
			},
		})
	}
	return rows, nil
}

// SyncWeather refreshes the last full hour of every observatory.
func (j *Jobs) SyncWeather(ctx context.Context) (int, error) {
	stations, err := j.st.Observatories.All(ctx)
	if err != nil {
		return 0, err
	}
	at := j.now().Truncate(time.Hour).Add(-time.Hour)
	var ids []string
	var lastErr error
	for _, st := range stations {
		w, err := j.kma.HourlyObservation(ctx, st.ID, at)
		if err != nil {
			lastErr = err
			j.log.WarnContext(ctx, "observation failed", "station", st.ID, "err", err)
			continue
		}
		if err := j.st.Observatories.SetWeather(ctx, st.ID, w); err != nil {
			return len(ids), err
		}
		ids = append(ids, st.ID)
	}
	if len(ids) == 0 && lastErr != nil {
		return 0, lastErr
	}
	if len(ids) > 0 {
		j.changed(ctx, store.LayerObservatory, invalidation.OpUpdate, j.st.Observatories.BumpVersion, ids)
	}
	return len(ids), nil
}

// ArchiveName is the file name of a snapshot taken at t.
func ArchiveName(t time.Time) string {
	return t.In(kst).Format("2006-01-02 15:04:05") + ".json"
}

// Archive stores the raw nationwide realtime response, indented.
func (j *Jobs) Archive(ctx context.Context) (int, error) {
	if j.sink == nil {
		return 0, errors.New("archive sink not configured")
	}
	raw, err := j.air.RawRealtime(ctx)
	if err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return 0, fmt.Errorf("%w: archive body is not json: %w", ErrUpstream, err)
	}
	loc, err := j.sink.Put(ctx, ArchiveName(j.now()), buf.Bytes())
	if err != nil {
		return 0, err
	}
	j.log.InfoContext(ctx, "archive written", "location", loc, "bytes", buf.Len())
	return 1, nil
}

// Seed loads the bundled observatories and city directory.
func (j *Jobs) Seed(ctx context.Context) (int, error) {
	n, err := store.Seed(ctx, j.st.Observatories, j.st.Cities)
	if err != nil {
		return n, err
	}
	j.changed(ctx, store.LayerObservatory, invalidation.OpReplace, j.st.Observatories.BumpVersion, nil)
	return n, nil
}

func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

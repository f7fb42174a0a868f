// Package api serves the public map endpoints.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/airmap/internal/core/model"
	"github.com/mohammed-shakir/airmap/internal/geo"
	"github.com/mohammed-shakir/airmap/internal/proximity"
	"github.com/mohammed-shakir/airmap/internal/store"
)

type NearestResolver interface {
	ResolveNearest(ctx context.Context, p model.Point, radiusKm float64) (proximity.Result, bool, error)
}

type AirStations interface {
	InBounds(ctx context.Context, box model.BoundingBox) ([]store.AirStation, error)
}

type Averages interface {
	All(ctx context.Context) ([]store.Average, error)
}

type Deps struct {
	Observatories NearestResolver
	AirStations   AirStations
	Averages      Averages
}

type Options struct {
	Logger *slog.Logger
	// DefaultRadiusKm is used when a request carries no radius.
	DefaultRadiusKm float64
	// WeatherRadiusKm bounds the observatory search behind each pollution row.
	WeatherRadiusKm float64
	RatePerMinute   int
}

type Handler struct {
	deps     Deps
	opts     Options
	validate *validator.Validate
	log      *slog.Logger
}

func New(deps Deps, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultRadiusKm <= 0 {
		opts.DefaultRadiusKm = 50
	}
	if opts.WeatherRadiusKm <= 0 {
		opts.WeatherRadiusKm = 50
	}
	return &Handler{
		deps:     deps,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      opts.Logger,
	}
}

// Routes mounts the map endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/map", func(r chi.Router) {
		if h.opts.RatePerMinute > 0 {
			r.Use(httprate.LimitByIP(h.opts.RatePerMinute, time.Minute))
		}
		r.Get("/observatory", h.getObservatory)
		r.Get("/pollution", h.getPollution)
		r.Get("/average", h.getAverage)
	})
}

type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) ok(w http.ResponseWriter, msg string, data any) {
	writeJSON(w, http.StatusOK, envelope{Message: msg, Data: data})
}

// errBadRequest marks request parsing failures.
var errBadRequest = errors.New("bad request")

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, geo.ErrDegenerateInput):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		// client went away
		return
	}
	if status >= 500 {
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, envelope{Message: err.Error(), Data: nil})
}

// floatParam parses name from the query. A missing parameter yields nil.
func floatParam(r *http.Request, name string) (*float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, &paramError{name: name, msg: "must be a number"}
	}
	return &v, nil
}

type paramError struct {
	name string
	msg  string
}

func (e *paramError) Error() string { return e.name + " " + e.msg }
func (e *paramError) Unwrap() error { return errBadRequest }

func (h *Handler) check(v any) error {
	if err := h.validate.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return &paramError{name: ve[0].Field(), msg: "failed " + ve[0].Tag()}
		}
		return &paramError{name: "query", msg: err.Error()}
	}
	return nil
}

// Package alertapi exposes transit detection and alert generation over HTTP.
package alertapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/orrery/internal/alert"
	"github.com/linnemanlabs/orrery/internal/natal"
	"github.com/linnemanlabs/orrery/internal/transit"
)

// Detector finds transits for a user on a date.
type Detector interface {
	Detect(ctx context.Context, userID string, date time.Time, opts transit.Options) ([]transit.Transit, error)
}

// AlertService defines the alert operations alertapi needs.
type AlertService interface {
	GenerateBatch(ctx context.Context, userID string, transits []transit.Transit, opts alert.Options) ([]*alert.Alert, error)
	List(ctx context.Context, userID string, activeOnly bool) ([]*alert.Alert, error)
	Stats(ctx context.Context, userID string) (*alert.Stats, error)
}

// ChartWriter stores natal records.
type ChartWriter interface {
	Put(ctx context.Context, r *natal.Record) error
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger   log.Logger
	detector Detector
	svc      AlertService
	charts   ChartWriter
	now      func() time.Time
}

// New creates a new API handler. charts may be nil, in which case the chart
// upload route is not registered.
func New(logger log.Logger, detector Detector, svc AlertService, charts ChartWriter) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if detector == nil {
		panic(xerrors.New("transit detector is required"))
	}
	if svc == nil {
		panic(xerrors.New("alert service is required"))
	}
	return &API{
		logger:   logger,
		detector: detector,
		svc:      svc,
		charts:   charts,
		now:      time.Now,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/users/{userID}", func(r chi.Router) {
		r.Post("/transits:detect", a.handleDetect)
		r.Post("/alerts:scan", a.handleScan)
		r.Post("/alerts", a.handleGenerate)
		r.Get("/alerts", a.handleList)
		r.Get("/alerts/stats", a.handleStats)
		if a.charts != nil {
			r.Put("/chart", a.handlePutChart)
		}
	})
}

// userID reads the path parameter and tags the request span with it.
func userID(r *http.Request) string {
	id := chi.URLParam(r, "userID")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("orrery.user.id", id))
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func isInvalidInput(err error) bool {
	return errors.Is(err, transit.ErrInvalidOptions) ||
		errors.Is(err, alert.ErrInvalidOptions) ||
		errors.Is(err, natal.ErrInvalidChart)
}

// parseDate reads YYYY-MM-DD, defaulting to today in UTC.
func (a *API) parseDate(s string) (time.Time, error) {
	if s == "" {
		y, m, d := a.now().UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(time.DateOnly, s)
}

func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

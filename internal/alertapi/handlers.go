package alertapi

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/orrery/internal/alert"
	"github.com/linnemanlabs/orrery/internal/astro"
	"github.com/linnemanlabs/orrery/internal/natal"
	"github.com/linnemanlabs/orrery/internal/transit"
)

type detectRequest struct {
	Date string `json:"date,omitempty"`
	transit.Options
}

type generateRequest struct {
	Transits []transit.Transit `json:"transits"`
	Options  alert.Options     `json:"options"`
}

type scanRequest struct {
	Date     string          `json:"date,omitempty"`
	Detect   transit.Options `json:"detect"`
	Generate alert.Options   `json:"generate"`
}

type scanResponse struct {
	Error    string            `json:"error,omitempty"`
	Transits []transit.Transit `json:"transits"`
	Alerts   []*alert.Alert    `json:"alerts"`
}

// interruptedResponse carries the alerts a batch persisted before it stopped.
type interruptedResponse struct {
	Error  string         `json:"error"`
	Alerts []*alert.Alert `json:"alerts"`
}

type chartRequest struct {
	Planets         map[astro.Body]astro.Position `json:"planets"`
	AscendantDegree *float64                      `json:"ascendant_degree"`
	FullName        string                        `json:"full_name,omitempty"`
	BirthLocation   string                        `json:"birth_location,omitempty"`
}

func (a *API) handleDetect(w http.ResponseWriter, r *http.Request) {
	id := userID(r)

	var req detectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	date, err := a.parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	transits, err := a.detector.Detect(r.Context(), id, date, req.Options)
	if err != nil {
		if isInvalidInput(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error(r.Context(), err, "detection failed", "user_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if transits == nil {
		transits = []transit.Transit{}
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int("orrery.transits", len(transits)))
	writeJSON(w, http.StatusOK, transits)
}

func (a *API) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id := userID(r)

	var req generateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if len(req.Transits) == 0 {
		writeError(w, http.StatusBadRequest, "transits are required")
		return
	}

	alerts, err := a.svc.GenerateBatch(r.Context(), id, req.Transits, req.Options)
	if err != nil {
		if isInvalidInput(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error(r.Context(), err, "batch generation interrupted", "user_id", id, "produced", len(alerts))
		if alerts == nil {
			alerts = []*alert.Alert{}
		}
		writeJSON(w, http.StatusServiceUnavailable, interruptedResponse{Error: "generation interrupted", Alerts: alerts})
		return
	}
	writeJSON(w, http.StatusCreated, alerts)
}

func (a *API) handleScan(w http.ResponseWriter, r *http.Request) {
	id := userID(r)

	var req scanRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	date, err := a.parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}
	if err := req.Generate.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	transits, err := a.detector.Detect(r.Context(), id, date, req.Detect)
	if err != nil {
		if isInvalidInput(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error(r.Context(), err, "detection failed", "user_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if transits == nil {
		transits = []transit.Transit{}
	}
	resp := scanResponse{Transits: transits, Alerts: []*alert.Alert{}}
	if len(transits) > 0 {
		alerts, err := a.svc.GenerateBatch(r.Context(), id, transits, req.Generate)
		if err != nil {
			a.logger.Error(r.Context(), err, "batch generation interrupted", "user_id", id, "produced", len(alerts))
			resp.Error = "generation interrupted"
			if alerts != nil {
				resp.Alerts = alerts
			}
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Alerts = alerts
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	id := userID(r)
	active := r.URL.Query().Get("active") == "true"

	alerts, err := a.svc.List(r.Context(), id, active)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list alerts", "user_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if alerts == nil {
		alerts = []*alert.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	id := userID(r)

	st, err := a.svc.Stats(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to compute alert stats", "user_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handlePutChart(w http.ResponseWriter, r *http.Request) {
	id := userID(r)

	var req chartRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.AscendantDegree == nil {
		writeError(w, http.StatusBadRequest, "ascendant_degree is required")
		return
	}

	rec := &natal.Record{
		Chart: astro.NatalChart{
			UserID:          id,
			Planets:         req.Planets,
			AscendantDegree: *req.AscendantDegree,
		},
		Profile: alert.Profile{FullName: req.FullName, BirthLocation: req.BirthLocation},
	}
	if err := a.charts.Put(r.Context(), rec); err != nil {
		if isInvalidInput(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error(r.Context(), err, "failed to store natal chart", "user_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package alert

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/driftwatch/pkg/detect"
	"github.com/HerbHall/driftwatch/pkg/plugin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/alerts", Handler: m.handleCreateAlert},
		{Method: "GET", Path: "/alerts", Handler: m.handleListAlerts},
		{Method: "GET", Path: "/alerts/{id}", Handler: m.handleGetAlert},
		{Method: "PUT", Path: "/alerts/{id}", Handler: m.handleUpdateAlert},
		{Method: "DELETE", Path: "/alerts/{id}", Handler: m.handleDeleteAlert},
		{Method: "POST", Path: "/alerts/{id}/evaluate", Handler: m.handleEvaluateAlert},
		{Method: "POST", Path: "/alerts/{id}/breach-points", Handler: m.handleBreachPoints},
		{Method: "GET", Path: "/alerts/{id}/breaches", Handler: m.handleAlertBreaches},
		{Method: "POST", Path: "/evaluate", Handler: m.handleEvaluateAdHoc},
		{Method: "GET", Path: "/breaches", Handler: m.handleListBreaches},
	}
}

// alertRequest is the body for creating or updating an alert.
type alertRequest struct {
	Name    string             `json:"name"`
	Label   string             `json:"label"`
	Enabled *bool              `json:"enabled"`
	Config  detect.AlertConfig `json:"config"`
}

// seriesRequest is the body for the evaluation endpoints.
type seriesRequest struct {
	Values     []float64 `json:"values"`
	Timestamps []string  `json:"timestamps"`
	CheckIndex *int      `json:"check_index"`
}

// adHocRequest evaluates an inline configuration without a stored alert.
type adHocRequest struct {
	Config detect.AlertConfig `json:"config"`
	Label  string             `json:"label"`
	seriesRequest
}

func (m *Module) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := m.validateConfig(req.Config); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	a := &Alert{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Label:     req.Label,
		Enabled:   true,
		Config:    req.Config,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}

	if err := m.store.InsertAlert(r.Context(), a); err != nil {
		m.logger.Error("failed to create alert", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create alert")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (m *Module) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := m.store.ListAlerts(r.Context())
	if err != nil {
		m.logger.Error("failed to list alerts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (m *Module) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	a, ok := m.fetchAlert(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (m *Module) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	a, ok := m.fetchAlert(w, r)
	if !ok {
		return
	}

	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := m.validateConfig(req.Config); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a.Name = req.Name
	a.Label = req.Label
	a.Config = req.Config
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}
	a.UpdatedAt = time.Now().UTC()

	if err := m.store.UpdateAlert(r.Context(), a); err != nil {
		m.logger.Error("failed to update alert", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update alert")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (m *Module) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := m.store.DeleteAlert(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to delete alert", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete alert")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvaluateAlert runs a stored alert's detector tree against the
// submitted series. A breaching result is recorded and published on the
// bus; a disabled alert is evaluated but not recorded.
func (m *Module) handleEvaluateAlert(w http.ResponseWriter, r *http.Request) {
	a, ok := m.fetchAlert(w, r)
	if !ok {
		return
	}

	req, ok := m.decodeSeries(w, r)
	if !ok {
		return
	}

	res, ok := m.evaluate(w, a.Config, req, a.Label)
	if !ok {
		return
	}

	if res.IsBreaching && a.Enabled {
		m.recordBreach(r, a, res)
	}
	writeJSON(w, http.StatusOK, res)
}

// handleBreachPoints re-evaluates the alert at every index of the series
// and returns the breaching indices, for visualization overlays.
func (m *Module) handleBreachPoints(w http.ResponseWriter, r *http.Request) {
	a, ok := m.fetchAlert(w, r)
	if !ok {
		return
	}

	req, ok := m.decodeSeries(w, r)
	if !ok {
		return
	}

	indices, err := detect.AllBreachPointsWith(m.registry, a.Config, req.Values, req.Timestamps, a.Label)
	if err != nil {
		writeEvalError(w, err)
		return
	}
	if indices == nil {
		indices = []int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"indices": indices})
}

// handleEvaluateAdHoc evaluates an inline configuration without storing
// anything. Pure engine passthrough.
func (m *Module) handleEvaluateAdHoc(w http.ResponseWriter, r *http.Request) {
	var req adHocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Values) > m.cfg.MaxDataPoints {
		writeError(w, http.StatusBadRequest, "too many data points")
		return
	}

	res, ok := m.evaluate(w, req.Config, &req.seriesRequest, req.Label)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (m *Module) handleAlertBreaches(w http.ResponseWriter, r *http.Request) {
	a, ok := m.fetchAlert(w, r)
	if !ok {
		return
	}
	m.listBreaches(w, r, a.ID)
}

func (m *Module) handleListBreaches(w http.ResponseWriter, r *http.Request) {
	m.listBreaches(w, r, "")
}

// -- helpers --

// fetchAlert loads the alert named in the path, writing the error response
// itself when it fails.
func (m *Module) fetchAlert(w http.ResponseWriter, r *http.Request) (*Alert, bool) {
	id := r.PathValue("id")
	a, err := m.store.GetAlert(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "alert not found")
		return nil, false
	}
	if err != nil {
		m.logger.Error("failed to load alert", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load alert")
		return nil, false
	}
	return a, true
}

func (m *Module) decodeSeries(w http.ResponseWriter, r *http.Request) (*seriesRequest, bool) {
	var req seriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	if len(req.Values) > m.cfg.MaxDataPoints {
		writeError(w, http.StatusBadRequest, "too many data points")
		return nil, false
	}
	return &req, true
}

type evalOutcome struct {
	res detect.DetectorResult
	err error
}

// evaluate runs the detector tree and records metrics. On error it writes
// the response itself and returns ok=false. The evaluation runs in a
// worker goroutine so a pathological config cannot hold the request past
// the configured timeout; an abandoned worker finishes in the background.
func (m *Module) evaluate(w http.ResponseWriter, cfg detect.AlertConfig, req *seriesRequest, label string) (detect.DetectorResult, bool) {
	timeout := m.cfg.EvaluationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	start := time.Now()
	done := make(chan evalOutcome, 1)
	go func() {
		res, err := detect.EvaluateWith(m.registry, cfg, req.Values, req.Timestamps, label, req.CheckIndex)
		done <- evalOutcome{res, err}
	}()

	var out evalOutcome
	select {
	case out = <-done:
	case <-time.After(timeout):
		evaluationDuration.Observe(time.Since(start).Seconds())
		evaluationsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusServiceUnavailable, "evaluation timed out")
		return detect.DetectorResult{}, false
	}
	evaluationDuration.Observe(time.Since(start).Seconds())

	res, err := out.res, out.err
	if err != nil {
		evaluationsTotal.WithLabelValues("error").Inc()
		writeEvalError(w, err)
		return detect.DetectorResult{}, false
	}

	if res.IsBreaching {
		evaluationsTotal.WithLabelValues("breaching").Inc()
	} else {
		evaluationsTotal.WithLabelValues("ok").Inc()
	}
	return res, true
}

// recordBreach persists a breach row and publishes the breach event.
func (m *Module) recordBreach(r *http.Request, a *Alert, res detect.DetectorResult) {
	b := &Breach{
		ID:         uuid.NewString(),
		AlertID:    a.ID,
		Value:      res.Value,
		Message:    res.Message,
		Indices:    res.BreachIndices,
		DetectedAt: time.Now().UTC(),
	}
	if b.Indices == nil {
		b.Indices = []int{}
	}

	if err := m.store.InsertBreach(r.Context(), b); err != nil {
		m.logger.Warn("failed to record breach",
			zap.String("alert_id", a.ID),
			zap.Error(err),
		)
	}

	m.logger.Info("alert breach detected",
		zap.String("alert_id", a.ID),
		zap.String("alert", a.Name),
		zap.String("message", res.Message),
	)

	if m.bus != nil {
		m.bus.PublishAsync(r.Context(), plugin.Event{
			Topic:     TopicBreachDetected,
			Source:    "alert",
			Timestamp: b.DetectedAt,
			Payload: BreachEvent{
				AlertID:   a.ID,
				AlertName: a.Name,
				Label:     a.Label,
				Value:     res.Value,
				Message:   res.Message,
				Indices:   b.Indices,
			},
		})
	}
}

func (m *Module) listBreaches(w http.ResponseWriter, r *http.Request, alertID string) {
	limit := parseLimit(r, 50)
	breaches, err := m.store.ListBreaches(r.Context(), alertID, limit)
	if err != nil {
		m.logger.Error("failed to list breaches", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list breaches")
		return
	}
	if breaches == nil {
		breaches = []Breach{}
	}
	writeJSON(w, http.StatusOK, breaches)
}

// writeEvalError maps configuration errors to 400 and everything else to 500.
func writeEvalError(w http.ResponseWriter, err error) {
	var cfgErr *detect.ConfigError
	if errors.As(err, &cfgErr) {
		writeError(w, http.StatusBadRequest, cfgErr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "evaluation failed")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	title := http.StatusText(status)
	slug := strings.ReplaceAll(strings.ToLower(title), " ", "-")
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://driftwatch.dev/problems/" + slug,
		"title":  title,
		"status": status,
		"detail": detail,
	})
}

func parseLimit(r *http.Request, defaultLimit int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLimit
}

package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"aeria-sms/config"
	"aeria-sms/core/safety"
	"aeria-sms/core/store"
)

type SafetyHandler struct {
	cfg    *config.AppConfig
	engine *safety.Engine
	logger *logrus.Logger
}

func NewSafetyHandler(cfg *config.AppConfig, engine *safety.Engine, logger *logrus.Logger) *SafetyHandler {
	return &SafetyHandler{cfg: cfg, engine: engine, logger: logger}
}

func windowParams(r *http.Request) (*time.Time, *time.Time) {
	var from, to *time.Time
	if v, err := time.Parse(time.RFC3339, r.URL.Query().Get("from")); err == nil {
		from = &v
	}
	if v, err := time.Parse(time.RFC3339, r.URL.Query().Get("to")); err == nil {
		to = &v
	}
	return from, to
}

func (h *SafetyHandler) IncidentStats(w http.ResponseWriter, r *http.Request) {
	from, to := windowParams(r)
	stats, err := h.engine.IncidentStats(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *SafetyHandler) CAPAStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.CAPAFilter{
		Status:     strings.ToLower(strings.TrimSpace(q.Get("status"))),
		Type:       strings.ToLower(strings.TrimSpace(q.Get("type"))),
		AssignedTo: strings.TrimSpace(q.Get("assigned_to")),
	}
	stats, err := h.engine.CAPAStats(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Dashboard returns the full KPI rollup. hours_worked scales the TRIR/LTIFR
// denominators; when omitted the configured default applies.
func (h *SafetyHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	from, to := windowParams(r)
	var hours float64
	if raw := r.URL.Query().Get("hours_worked"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid hours_worked"})
			return
		}
		hours = v
	}
	dash, err := h.engine.Dashboard(r.Context(), from, to, hours)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (h *SafetyHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 30)
	items, err := h.engine.Snapshots(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"aeria-sms/config"
	"aeria-sms/core/incidents"
	"aeria-sms/core/store"
)

type IncidentsHandler struct {
	cfg    *config.AppConfig
	svc    *incidents.Service
	logger *logrus.Logger
}

func NewIncidentsHandler(cfg *config.AppConfig, svc *incidents.Service, logger *logrus.Logger) *IncidentsHandler {
	return &IncidentsHandler{cfg: cfg, svc: svc, logger: logger}
}

type createIncidentPayload struct {
	Title           string                      `json:"title" validate:"required"`
	Description     string                      `json:"description"`
	Type            string                      `json:"type" validate:"required"`
	RPASType        string                      `json:"rpas_type"`
	Severity        string                      `json:"severity" validate:"required"`
	OccurredAt      time.Time                   `json:"occurred_at" validate:"required"`
	ReportedDate    *time.Time                  `json:"reported_date"`
	ReportedBy      string                      `json:"reported_by"`
	Location        string                      `json:"location"`
	GPSLat          *float64                    `json:"gps_lat"`
	GPSLng          *float64                    `json:"gps_lng"`
	ProjectRef      string                      `json:"project_ref"`
	AircraftRef     string                      `json:"aircraft_ref"`
	InvolvedPersons []store.InvolvedPerson      `json:"involved_persons"`
	EquipmentDamage []store.EquipmentDamageItem `json:"equipment_damage"`
}

func (h *IncidentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createIncidentPayload
	if !readJSON(w, r, &payload) {
		return
	}
	payload.Type = strings.ToLower(strings.TrimSpace(payload.Type))
	payload.Severity = strings.ToLower(strings.TrimSpace(payload.Severity))
	payload.RPASType = strings.ToLower(strings.TrimSpace(payload.RPASType))
	if _, ok := incidents.ValidTypes[payload.Type]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown incident type"})
		return
	}
	if !incidents.ValidSeverity(payload.Severity) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown severity"})
		return
	}
	if payload.RPASType != "" {
		if _, ok := incidents.ValidRPASTypes[payload.RPASType]; !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown rpas type"})
			return
		}
	}
	inc := &store.Incident{
		Title:           payload.Title,
		Description:     payload.Description,
		Type:            payload.Type,
		RPASType:        payload.RPASType,
		Severity:        payload.Severity,
		OccurredAt:      payload.OccurredAt,
		ReportedBy:      payload.ReportedBy,
		Location:        payload.Location,
		GPSLat:          payload.GPSLat,
		GPSLng:          payload.GPSLng,
		ProjectRef:      payload.ProjectRef,
		AircraftRef:     payload.AircraftRef,
		InvolvedPersons: payload.InvolvedPersons,
		EquipmentDamage: payload.EquipmentDamage,
	}
	if payload.ReportedDate != nil {
		inc.ReportedDate = *payload.ReportedDate
	}
	created, err := h.svc.Create(r.Context(), inc, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *IncidentsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.IncidentFilter{
		Search:   strings.TrimSpace(q.Get("q")),
		Status:   strings.ToLower(strings.TrimSpace(q.Get("status"))),
		Severity: strings.ToLower(strings.TrimSpace(q.Get("severity"))),
		Type:     strings.ToLower(strings.TrimSpace(q.Get("type"))),
		RPASType: strings.ToLower(strings.TrimSpace(q.Get("rpas_type"))),
		Limit:    parseIntDefault(q.Get("limit"), 0),
		Offset:   parseIntDefault(q.Get("offset"), 0),
	}
	if from, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		filter.To = &to
	}
	items, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *IncidentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	inc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *IncidentsHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	entries, err := h.svc.Timeline(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

type changeStatusPayload struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes"`
}

func (h *IncidentsHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var payload changeStatusPayload
	if !readJSON(w, r, &payload) {
		return
	}
	inc, err := h.svc.ChangeStatus(r.Context(), id, strings.ToLower(strings.TrimSpace(payload.Status)), actor(r), payload.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

type closeIncidentPayload struct {
	Notes string `json:"notes"`
}

func (h *IncidentsHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var payload closeIncidentPayload
	if !readJSON(w, r, &payload) {
		return
	}
	inc, err := h.svc.Close(r.Context(), id, actor(r), payload.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

type markNotifiedPayload struct {
	NotifiedDate *time.Time `json:"notified_date"`
	Reference    string     `json:"reference"`
}

func (h *IncidentsHandler) MarkNotified(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	body := strings.ToLower(strings.TrimSpace(chiURLParam(r, "body")))
	var payload markNotifiedPayload
	if !readJSON(w, r, &payload) {
		return
	}
	var date time.Time
	if payload.NotifiedDate != nil {
		date = *payload.NotifiedDate
	}
	inc, err := h.svc.MarkNotified(r.Context(), id, body, date, payload.Reference, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

type investigationPayload struct {
	AssignedTo            string   `json:"assigned_to"`
	SubstandardActs       []string `json:"substandard_acts"`
	SubstandardConditions []string `json:"substandard_conditions"`
	PersonalFactors       []string `json:"personal_factors"`
	JobFactors            []string `json:"job_factors"`
	FiveWhys              []string `json:"five_whys"`
	Findings              string   `json:"findings"`
	Recommendations       string   `json:"recommendations"`
	ExpectedVersion       int      `json:"expected_version"`
}

func (h *IncidentsHandler) UpdateInvestigation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var payload investigationPayload
	if !readJSON(w, r, &payload) {
		return
	}
	inv := store.Investigation{
		AssignedTo:            payload.AssignedTo,
		SubstandardActs:       payload.SubstandardActs,
		SubstandardConditions: payload.SubstandardConditions,
		PersonalFactors:       payload.PersonalFactors,
		JobFactors:            payload.JobFactors,
		FiveWhys:              payload.FiveWhys,
		Findings:              payload.Findings,
		Recommendations:       payload.Recommendations,
	}
	inc, err := h.svc.UpdateInvestigation(r.Context(), id, inv, actor(r), payload.ExpectedVersion)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *IncidentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	if err := h.svc.Delete(r.Context(), id, actor(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"aeria-sms/config"
	"aeria-sms/core/capas"
	"aeria-sms/core/incidents"
	"aeria-sms/core/store"
)

type CAPAsHandler struct {
	cfg          *config.AppConfig
	svc          *capas.Service
	incidentsSvc *incidents.Service
	logger       *logrus.Logger
}

func NewCAPAsHandler(cfg *config.AppConfig, svc *capas.Service, incidentsSvc *incidents.Service, logger *logrus.Logger) *CAPAsHandler {
	return &CAPAsHandler{cfg: cfg, svc: svc, incidentsSvc: incidentsSvc, logger: logger}
}

type createCAPAPayload struct {
	SourceType  string `json:"source_type" validate:"required"`
	SourceID    *int64 `json:"source_id"`
	SourceLabel string `json:"source_label"`

	Type     string `json:"type" validate:"required"`
	Priority string `json:"priority"`
	Category string `json:"category"`

	AssignedTo string     `json:"assigned_to"`
	AssignedBy string     `json:"assigned_by"`
	TargetDate *time.Time `json:"target_date"`

	Description   string   `json:"description" validate:"required"`
	Methodology   string   `json:"methodology"`
	Resources     []string `json:"resources"`
	EstimatedCost float64  `json:"estimated_cost"`

	VerificationRequired    bool   `json:"verification_required"`
	VerificationMethod      string `json:"verification_method"`
	SuccessCriteria         string `json:"success_criteria"`
	RecurrenceCheckRequired bool   `json:"recurrence_check_required"`

	IncidentID *int64 `json:"incident_id"`
}

// Create registers a CAPA and, when an incident id is supplied, links the
// new record back to that incident as a second explicit step.
func (h *CAPAsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createCAPAPayload
	if !readJSON(w, r, &payload) {
		return
	}
	payload.SourceType = strings.ToLower(strings.TrimSpace(payload.SourceType))
	payload.Type = strings.ToLower(strings.TrimSpace(payload.Type))
	payload.Priority = strings.ToLower(strings.TrimSpace(payload.Priority))
	if _, ok := capas.ValidSources[payload.SourceType]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown source type"})
		return
	}
	if _, ok := capas.ValidTypes[payload.Type]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown capa type"})
		return
	}
	if payload.Priority != "" {
		if _, ok := capas.ValidPriorities[payload.Priority]; !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown priority"})
			return
		}
	}
	if payload.IncidentID != nil {
		if _, err := h.incidentsSvc.Get(r.Context(), *payload.IncidentID); err != nil {
			writeError(w, err)
			return
		}
	}
	c := &store.CAPA{
		SourceType:  payload.SourceType,
		SourceID:    payload.SourceID,
		SourceLabel: payload.SourceLabel,
		Type:        payload.Type,
		Priority:    payload.Priority,
		Category:    payload.Category,
		AssignedTo:  payload.AssignedTo,
		AssignedBy:  payload.AssignedBy,
		TargetDate:  payload.TargetDate,
		IncidentID:  payload.IncidentID,
		Action: store.CAPAAction{
			Description:   payload.Description,
			Methodology:   payload.Methodology,
			Resources:     payload.Resources,
			EstimatedCost: payload.EstimatedCost,
		},
		Verification: store.CAPAVerification{
			Required:        payload.VerificationRequired,
			Method:          payload.VerificationMethod,
			SuccessCriteria: payload.SuccessCriteria,
			RecurrenceCheck: store.RecurrenceCheck{Required: payload.RecurrenceCheckRequired},
		},
	}
	created, err := h.svc.Create(r.Context(), c, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if payload.IncidentID != nil {
		if err := h.incidentsSvc.LinkCAPA(r.Context(), *payload.IncidentID, created.ID); err != nil {
			h.logger.WithError(err).WithField("capa", created.RegNo).Warn("incident link failed")
		}
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *CAPAsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.CAPAFilter{
		Status:     strings.ToLower(strings.TrimSpace(q.Get("status"))),
		Type:       strings.ToLower(strings.TrimSpace(q.Get("type"))),
		Priority:   strings.ToLower(strings.TrimSpace(q.Get("priority"))),
		SourceType: strings.ToLower(strings.TrimSpace(q.Get("source_type"))),
		AssignedTo: strings.TrimSpace(q.Get("assigned_to")),
		Search:     strings.TrimSpace(q.Get("q")),
		IncidentID: int64(parseIntDefault(q.Get("incident_id"), 0)),
		Limit:      parseIntDefault(q.Get("limit"), 0),
		Offset:     parseIntDefault(q.Get("offset"), 0),
	}
	items, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *CAPAsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CAPAsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	entries, err := h.svc.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

type startCAPAPayload struct {
	Reason string `json:"reason"`
}

func (h *CAPAsHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var payload startCAPAPayload
	if !readJSON(w, r, &payload) {
		return
	}
	c, err := h.svc.Start(r.Context(), id, actor(r), payload.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type completeCAPAPayload struct {
	ActionsTaken string               `json:"actions_taken" validate:"required"`
	Evidence     []store.EvidenceItem `json:"evidence"`
	Notes        string               `json:"notes"`
	ActualCost   float64              `json:"actual_cost"`
}

func (h *CAPAsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var payload completeCAPAPayload
	if !readJSON(w, r, &payload) {
		return
	}
	c, err := h.svc.Complete(r.Context(), id, capas.CompleteInput{
		ActionsTaken: payload.ActionsTaken,
		Evidence:     payload.Evidence,
		Notes:        payload.Notes,
		ActualCost:   payload.ActualCost,
	}, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type verifyCAPAPayload struct {
	Effective *bool                `json:"effective" validate:"required"`
	Method    string               `json:"method"`
	Findings  string               `json:"findings"`
	Evidence  []store.EvidenceItem `json:"evidence"`
}

func (h *CAPAsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var payload verifyCAPAPayload
	if !readJSON(w, r, &payload) {
		return
	}
	c, err := h.svc.Verify(r.Context(), id, capas.VerifyInput{
		Effective: *payload.Effective,
		Method:    payload.Method,
		Findings:  payload.Findings,
		Evidence:  payload.Evidence,
	}, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"effective": *payload.Effective, "status": c.Status, "capa": c})
}

type recurrencePayload struct {
	Recurred *bool  `json:"recurred" validate:"required"`
	Notes    string `json:"notes"`
}

func (h *CAPAsHandler) RecurrenceCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var payload recurrencePayload
	if !readJSON(w, r, &payload) {
		return
	}
	c, err := h.svc.RecordRecurrenceCheck(r.Context(), id, capas.RecurrenceInput{
		Recurred: *payload.Recurred,
		Notes:    payload.Notes,
	}, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type closeCAPAPayload struct {
	Notes string `json:"notes"`
}

func (h *CAPAsHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var payload closeCAPAPayload
	if !readJSON(w, r, &payload) {
		return
	}
	c, err := h.svc.Close(r.Context(), id, actor(r), payload.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type reviseTargetPayload struct {
	TargetDate time.Time `json:"target_date" validate:"required"`
	Reason     string    `json:"reason" validate:"required"`
}

func (h *CAPAsHandler) ReviseTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var payload reviseTargetPayload
	if !readJSON(w, r, &payload) {
		return
	}
	c, err := h.svc.ReviseTarget(r.Context(), id, payload.TargetDate, payload.Reason, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type commentPayload struct {
	Body string `json:"body" validate:"required"`
}

func (h *CAPAsHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var payload commentPayload
	if !readJSON(w, r, &payload) {
		return
	}
	comment, err := h.svc.AddComment(r.Context(), id, actor(r), payload.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *CAPAsHandler) Comments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	items, err := h.svc.Comments(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// followUpCAPAPayload carries only the fields the caller controls; the
// source and incident linkage are inherited from the ineffective original.
type followUpCAPAPayload struct {
	SourceLabel string `json:"source_label"`

	Type     string `json:"type" validate:"required"`
	Priority string `json:"priority"`
	Category string `json:"category"`

	AssignedTo string     `json:"assigned_to"`
	AssignedBy string     `json:"assigned_by"`
	TargetDate *time.Time `json:"target_date"`

	Description   string   `json:"description" validate:"required"`
	Methodology   string   `json:"methodology"`
	Resources     []string `json:"resources"`
	EstimatedCost float64  `json:"estimated_cost"`

	VerificationRequired    bool   `json:"verification_required"`
	VerificationMethod      string `json:"verification_method"`
	SuccessCriteria         string `json:"success_criteria"`
	RecurrenceCheckRequired bool   `json:"recurrence_check_required"`
}

func (h *CAPAsHandler) CreateFollowUp(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var payload followUpCAPAPayload
	if !readJSON(w, r, &payload) {
		return
	}
	payload.Type = strings.ToLower(strings.TrimSpace(payload.Type))
	payload.Priority = strings.ToLower(strings.TrimSpace(payload.Priority))
	if _, ok := capas.ValidTypes[payload.Type]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown capa type"})
		return
	}
	if payload.Priority != "" {
		if _, ok := capas.ValidPriorities[payload.Priority]; !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown priority"})
			return
		}
	}
	followUp := &store.CAPA{
		SourceLabel: payload.SourceLabel,
		Type:        payload.Type,
		Priority:    payload.Priority,
		Category:    payload.Category,
		AssignedTo:  payload.AssignedTo,
		AssignedBy:  payload.AssignedBy,
		TargetDate:  payload.TargetDate,
		Action: store.CAPAAction{
			Description:   payload.Description,
			Methodology:   payload.Methodology,
			Resources:     payload.Resources,
			EstimatedCost: payload.EstimatedCost,
		},
		Verification: store.CAPAVerification{
			Required:        payload.VerificationRequired,
			Method:          payload.VerificationMethod,
			SuccessCriteria: payload.SuccessCriteria,
			RecurrenceCheck: store.RecurrenceCheck{Required: payload.RecurrenceCheckRequired},
		},
	}
	created, err := h.svc.CreateFollowUp(r.Context(), id, followUp, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if created.IncidentID != nil {
		if err := h.incidentsSvc.LinkCAPA(r.Context(), *created.IncidentID, created.ID); err != nil {
			h.logger.WithError(err).WithField("capa", created.RegNo).Warn("incident link failed")
		}
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *CAPAsHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

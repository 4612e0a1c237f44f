package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"aeria-sms/core/store"
)

type LogsHandler struct {
	audits store.AuditStore
	logger *logrus.Logger
}

func NewLogsHandler(audits store.AuditStore, logger *logrus.Logger) *LogsHandler {
	return &LogsHandler{audits: audits, logger: logger}
}

func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := h.audits.List(r.Context(), parseIntDefault(q.Get("limit"), 100), parseIntDefault(q.Get("offset"), 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

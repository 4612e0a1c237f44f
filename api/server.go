package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"aeria-sms/api/handlers"
	"aeria-sms/config"
	"aeria-sms/core/capas"
	"aeria-sms/core/incidents"
	"aeria-sms/core/safety"
	"aeria-sms/core/store"
)

// BackgroundWorker is anything the server starts alongside HTTP serving and
// stops on shutdown.
type BackgroundWorker interface {
	StartWithContext(ctx context.Context)
	StopWithContext(ctx context.Context) error
}

type ServerDeps struct {
	Audits       store.AuditStore
	IncidentsSvc *incidents.Service
	CAPAsSvc     *capas.Service
	SafetyEngine *safety.Engine
}

type Server struct {
	cfg    *config.AppConfig
	logger *logrus.Logger

	audits       store.AuditStore
	incidentsSvc *incidents.Service
	capasSvc     *capas.Service
	safetyEngine *safety.Engine
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *logrus.Logger) *Server {
	return &Server{
		cfg:          cfg,
		logger:       logger,
		audits:       deps.Audits,
		incidentsSvc: deps.IncidentsSvc,
		capasSvc:     deps.CAPAsSvc,
		safetyEngine: deps.SafetyEngine,
	}
}

type routeHandlers struct {
	incidents *handlers.IncidentsHandler
	capas     *handlers.CAPAsHandler
	safety    *handlers.SafetyHandler
	logs      *handlers.LogsHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	return routeHandlers{
		incidents: handlers.NewIncidentsHandler(s.cfg, s.incidentsSvc, s.logger),
		capas:     handlers.NewCAPAsHandler(s.cfg, s.capasSvc, s.incidentsSvc, s.logger),
		safety:    handlers.NewSafetyHandler(s.cfg, s.safetyEngine, s.logger),
		logs:      handlers.NewLogsHandler(s.audits, s.logger),
	}
}

func (s *Server) Router() http.Handler {
	h := s.newRouteHandlers()

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/incidents", func(r chi.Router) {
			r.Post("/", h.incidents.Create)
			r.Get("/", h.incidents.List)
			r.Get("/{id:[0-9]+}", h.incidents.Get)
			r.Delete("/{id:[0-9]+}", h.incidents.Delete)
			r.Get("/{id:[0-9]+}/timeline", h.incidents.Timeline)
			r.Post("/{id:[0-9]+}/status", h.incidents.ChangeStatus)
			r.Post("/{id:[0-9]+}/close", h.incidents.Close)
			r.Post("/{id:[0-9]+}/notifications/{body}", h.incidents.MarkNotified)
			r.Put("/{id:[0-9]+}/investigation", h.incidents.UpdateInvestigation)
		})

		r.Route("/capas", func(r chi.Router) {
			r.Post("/", h.capas.Create)
			r.Get("/", h.capas.List)
			r.Get("/{id:[0-9]+}", h.capas.Get)
			r.Delete("/{id:[0-9]+}", h.capas.Delete)
			r.Get("/{id:[0-9]+}/history", h.capas.History)
			r.Post("/{id:[0-9]+}/start", h.capas.Start)
			r.Post("/{id:[0-9]+}/complete", h.capas.Complete)
			r.Post("/{id:[0-9]+}/verify", h.capas.Verify)
			r.Post("/{id:[0-9]+}/recurrence-check", h.capas.RecurrenceCheck)
			r.Post("/{id:[0-9]+}/close", h.capas.Close)
			r.Post("/{id:[0-9]+}/revise-target", h.capas.ReviseTarget)
			r.Post("/{id:[0-9]+}/follow-up", h.capas.CreateFollowUp)
			r.Get("/{id:[0-9]+}/comments", h.capas.Comments)
			r.Post("/{id:[0-9]+}/comments", h.capas.AddComment)
		})

		r.Route("/safety", func(r chi.Router) {
			r.Get("/incidents/stats", h.safety.IncidentStats)
			r.Get("/capas/stats", h.safety.CAPAStats)
			r.Get("/dashboard", h.safety.Dashboard)
			r.Get("/snapshots", h.safety.Snapshots)
		})

		r.Get("/logs", h.logs.List)
	})

	return r
}

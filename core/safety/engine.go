package safety

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"aeria-sms/config"
	"aeria-sms/core/capas"
	"aeria-sms/core/store"
)

// Engine fetches incident/CAPA collections and runs the pure KPI math over
// them. Aggregation happens on demand; nothing is kept warm between calls.
type Engine struct {
	cfg       *config.AppConfig
	incidents store.IncidentsStore
	capas     store.CAPAsStore
	snapshots store.SnapshotsStore
	logger    *logrus.Logger
}

func NewEngine(cfg *config.AppConfig, is store.IncidentsStore, cs store.CAPAsStore, snaps store.SnapshotsStore, logger *logrus.Logger) *Engine {
	return &Engine{cfg: cfg, incidents: is, capas: cs, snapshots: snaps, logger: logger}
}

// Dashboard is the rolled-up KPI summary for a reporting window.
type Dashboard struct {
	GeneratedAt           time.Time           `json:"generated_at"`
	WindowFrom            *time.Time          `json:"window_from,omitempty"`
	WindowTo              *time.Time          `json:"window_to,omitempty"`
	HoursWorked           float64             `json:"hours_worked,omitempty"`
	Incidents             IncidentStats       `json:"incidents"`
	CAPAs                 CAPAStats           `json:"capas"`
	TRIR                  Rate                `json:"trir"`
	LTIFR                 Rate                `json:"ltifr"`
	NearMissRatio         NearMissRatioResult `json:"near_miss_ratio"`
	DaysSinceLastIncident *int                `json:"days_since_last_incident,omitempty"`
	SafetyScore           *int                `json:"safety_score,omitempty"`
}

func (e *Engine) IncidentStats(ctx context.Context, from, to *time.Time) (IncidentStats, error) {
	items, err := e.incidents.ListIncidents(ctx, store.IncidentFilter{From: from, To: to})
	if err != nil {
		return IncidentStats{}, err
	}
	return ComputeIncidentStats(items), nil
}

func (e *Engine) CAPAStats(ctx context.Context, filter store.CAPAFilter) (CAPAStats, error) {
	items, err := e.capas.ListCAPAs(ctx, filter)
	if err != nil {
		return CAPAStats{}, err
	}
	return ComputeCAPAStats(items, time.Now().UTC()), nil
}

func (e *Engine) Dashboard(ctx context.Context, from, to *time.Time, hoursWorked float64) (*Dashboard, error) {
	if hoursWorked <= 0 {
		hoursWorked = e.cfg.Safety.DefaultHoursWorked
	}
	incidentItems, err := e.incidents.ListIncidents(ctx, store.IncidentFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	capaItems, err := e.capas.ListCAPAs(ctx, store.CAPAFilter{})
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	capaStats := ComputeCAPAStats(capaItems, now)

	scoreInputs := map[string]float64{}
	if capaStats.OnTimeRate != nil {
		scoreInputs["capaOnTime"] = *capaStats.OnTimeRate
	}
	if capaStats.Total > 0 {
		closed := capaStats.ByStatus[capas.StatusClosed]
		scoreInputs["actionClosure"] = float64(closed) / float64(capaStats.Total)
	}

	return &Dashboard{
		GeneratedAt:           now,
		WindowFrom:            from,
		WindowTo:              to,
		HoursWorked:           hoursWorked,
		Incidents:             ComputeIncidentStats(incidentItems),
		CAPAs:                 capaStats,
		TRIR:                  TRIR(incidentItems, hoursWorked),
		LTIFR:                 LTIFR(incidentItems, hoursWorked),
		NearMissRatio:         NearMissRatio(incidentItems),
		DaysSinceLastIncident: DaysSinceLastIncident(incidentItems, true, now),
		SafetyScore:           SafetyScore(scoreInputs),
	}, nil
}

// WriteSnapshot persists today's dashboard rollup for trend history. Called
// by the scheduler; safe to run more than once per day (upsert).
func (e *Engine) WriteSnapshot(ctx context.Context, now time.Time) error {
	dash, err := e.Dashboard(ctx, nil, nil, 0)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(dash)
	if err != nil {
		return err
	}
	date := now.UTC().Format("2006-01-02")
	if err := e.snapshots.UpsertSnapshot(ctx, date, string(payload)); err != nil {
		return err
	}
	e.logger.WithField("date", date).Debug("safety snapshot written")
	return nil
}

func (e *Engine) Snapshots(ctx context.Context, limit int) ([]store.SafetySnapshot, error) {
	return e.snapshots.ListSnapshots(ctx, limit)
}

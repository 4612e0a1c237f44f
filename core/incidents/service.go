package incidents

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"aeria-sms/config"
	"aeria-sms/core/store"
)

// Notification channel names accepted by MarkNotified.
const (
	BodyTSB             = "tsb"
	BodyTransportCanada = "transport_canada"
	BodyWorkSafeBC      = "worksafebc"
	BodyAeria           = "aeria"
)

// Service owns the incident lifecycle. All mutations go through it so the
// timeline append contract holds.
type Service struct {
	cfg    *config.AppConfig
	store  store.IncidentsStore
	audits store.AuditStore
	logger *logrus.Logger
}

func NewService(cfg *config.AppConfig, is store.IncidentsStore, audits store.AuditStore, logger *logrus.Logger) *Service {
	return &Service{cfg: cfg, store: is, audits: audits, logger: logger}
}

// Create registers a new incident: assigns the registration number, resolves
// regulatory notification requirements, computes the reporting delay and
// seeds the timeline.
func (s *Service) Create(ctx context.Context, inc *store.Incident, actor string) (*store.Incident, error) {
	now := time.Now().UTC()
	if inc.ReportedDate.IsZero() {
		inc.ReportedDate = now
	}
	if inc.OccurredAt.IsZero() {
		inc.OccurredAt = inc.ReportedDate
	}
	inc.Status = StatusReported
	inc.CreatedBy = actor
	inc.Notifications = DetermineNotifications(inc)
	inc.ReportingDelayDays = ceilDays(inc.ReportedDate.Sub(inc.OccurredAt))

	id, err := s.store.CreateIncident(ctx, inc, s.cfg.Incidents.RegNoFormat)
	if err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}
	if _, err := s.store.AddTimelineEntry(ctx, &store.TimelineEntry{
		IncidentID: id,
		Action:     "Incident reported",
		Actor:      actor,
		Notes:      inc.Title,
	}); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "incident.create", inc.RegNo)
	s.logger.WithFields(logrus.Fields{"reg_no": inc.RegNo, "severity": inc.Severity}).Info("incident created")
	return inc, nil
}

// ChangeStatus advances the incident to a later lifecycle state and records
// the transition on the timeline.
func (s *Service) ChangeStatus(ctx context.Context, id int64, newStatus, actor, notes string) (*store.Incident, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanTransition(inc.Status, newStatus); err != nil {
		return nil, err
	}
	from := inc.Status
	inc.Status = newStatus
	if err := s.store.UpdateIncident(ctx, inc, inc.Version); err != nil {
		return nil, err
	}
	if _, err := s.store.AddTimelineEntry(ctx, &store.TimelineEntry{
		IncidentID: id,
		Action:     fmt.Sprintf("Status changed from %s to %s", from, newStatus),
		Actor:      actor,
		Notes:      notes,
	}); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "incident.status", fmt.Sprintf("%s: %s -> %s", inc.RegNo, from, newStatus))
	return inc, nil
}

// Close terminates the incident from any non-terminal state, stamps the
// closure fields and computes the total resolution time in whole days.
func (s *Service) Close(ctx context.Context, id int64, actor, notes string) (*store.Incident, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc.Status == StatusClosed {
		return nil, ErrTerminalStatus
	}
	now := time.Now().UTC()
	resolution := ceilDays(now.Sub(inc.CreatedAt))
	inc.Status = StatusClosed
	inc.ClosedAt = &now
	inc.ClosedBy = actor
	inc.ResolutionDays = &resolution
	if err := s.store.UpdateIncident(ctx, inc, inc.Version); err != nil {
		return nil, err
	}
	if _, err := s.store.AddTimelineEntry(ctx, &store.TimelineEntry{
		IncidentID: id,
		Action:     "Incident closed",
		Actor:      actor,
		Notes:      notes,
	}); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "incident.close", inc.RegNo)
	return inc, nil
}

// MarkNotified records that a regulatory body was notified. Re-marking
// overwrites the date and reference.
func (s *Service) MarkNotified(ctx context.Context, id int64, body string, notifiedDate time.Time, reference, actor string) (*store.Incident, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	var rec *store.NotificationRecord
	switch strings.ToLower(strings.TrimSpace(body)) {
	case BodyTSB:
		rec = &inc.Notifications.TSB
	case BodyTransportCanada:
		rec = &inc.Notifications.TransportCanada
	case BodyWorkSafeBC:
		rec = &inc.Notifications.WorkSafeBC
	case BodyAeria:
		rec = &inc.Notifications.Aeria
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBody, body)
	}
	if notifiedDate.IsZero() {
		notifiedDate = time.Now().UTC()
	}
	date := notifiedDate.UTC()
	rec.Notified = true
	rec.NotifiedDate = &date
	rec.Reference = reference
	if err := s.store.UpdateIncident(ctx, inc, inc.Version); err != nil {
		return nil, err
	}
	if _, err := s.store.AddTimelineEntry(ctx, &store.TimelineEntry{
		IncidentID: id,
		Action:     fmt.Sprintf("Notification recorded: %s", body),
		Actor:      actor,
		Notes:      reference,
	}); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "incident.notify", fmt.Sprintf("%s: %s", inc.RegNo, body))
	return inc, nil
}

// UpdateInvestigation replaces the investigation block. expectedVersion
// guards against a concurrent editor.
func (s *Service) UpdateInvestigation(ctx context.Context, id int64, inv store.Investigation, actor string, expectedVersion int) (*store.Incident, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion == 0 {
		expectedVersion = inc.Version
	}
	inc.Investigation = inv
	if err := s.store.UpdateIncident(ctx, inc, expectedVersion); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "incident.investigation", inc.RegNo)
	return inc, nil
}

// LinkCAPA appends a CAPA id to the incident's back-reference list. This is
// the explicit second step of CAPA creation; the CAPA side holds its own
// incident reference independently.
func (s *Service) LinkCAPA(ctx context.Context, incidentID, capaID int64) error {
	inc, err := s.store.GetIncident(ctx, incidentID)
	if err != nil {
		return err
	}
	for _, existing := range inc.LinkedCAPAIDs {
		if existing == capaID {
			return nil
		}
	}
	inc.LinkedCAPAIDs = append(inc.LinkedCAPAIDs, capaID)
	if err := s.store.UpdateIncident(ctx, inc, inc.Version); err != nil {
		return err
	}
	_, err = s.store.AddTimelineEntry(ctx, &store.TimelineEntry{
		IncidentID: incidentID,
		Action:     fmt.Sprintf("CAPA %d linked", capaID),
	})
	return err
}

func (s *Service) Get(ctx context.Context, id int64) (*store.Incident, error) {
	return s.store.GetIncident(ctx, id)
}

func (s *Service) List(ctx context.Context, filter store.IncidentFilter) ([]store.Incident, error) {
	return s.store.ListIncidents(ctx, filter)
}

func (s *Service) Timeline(ctx context.Context, id int64) ([]store.TimelineEntry, error) {
	if _, err := s.store.GetIncident(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListTimeline(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64, actor string) error {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteIncident(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor, "incident.delete", inc.RegNo)
	return nil
}

func (s *Service) audit(ctx context.Context, username, action, details string) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Append(ctx, username, action, details); err != nil {
		s.logger.WithError(err).Warn("audit append failed")
	}
}

// ceilDays converts a duration to whole days, rounding partial days up.
// Negative durations clamp to zero.
func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}

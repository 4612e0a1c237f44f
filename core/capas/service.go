package capas

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/sirupsen/logrus"

	"aeria-sms/config"
	"aeria-sms/core/store"
)

// Service owns the CAPA lifecycle. Every status change appends to the
// status-history log; the on-time flag and effectiveness score are each set
// exactly once (at completion and verification) and never recomputed.
type Service struct {
	cfg    *config.AppConfig
	store  store.CAPAsStore
	audits store.AuditStore
	logger *logrus.Logger
}

func NewService(cfg *config.AppConfig, cs store.CAPAsStore, audits store.AuditStore, logger *logrus.Logger) *Service {
	return &Service{cfg: cfg, store: cs, audits: audits, logger: logger}
}

// Create registers a new CAPA in status open with a seeded status-history
// entry. When no target date is supplied, the priority's default resolution
// window sets one. Linking to a source incident is the caller's separate
// step (incidents.Service.LinkCAPA), keeping the two lifecycles independent.
func (s *Service) Create(ctx context.Context, c *store.CAPA, actor string) (*store.CAPA, error) {
	now := time.Now().UTC()
	c.Status = StatusOpen
	c.CreatedBy = actor
	if c.Priority == "" {
		c.Priority = PriorityMedium
	}
	if c.Implementation.Status == "" {
		c.Implementation.Status = ImplementationNotStarted
	}
	if c.AssignedTo != "" && c.AssignedDate == nil {
		c.AssignedDate = &now
	}
	if c.TargetDate == nil {
		target := now.AddDate(0, 0, s.cfg.CAPAs.TargetWindowDays(c.Priority))
		c.TargetDate = &target
	}
	stampEvidence(c.Implementation.Evidence, actor, now)
	stampEvidence(c.Verification.Evidence, actor, now)

	id, err := s.store.CreateCAPA(ctx, c, s.cfg.CAPAs.RegNoFormat)
	if err != nil {
		return nil, fmt.Errorf("create capa: %w", err)
	}
	if _, err := s.store.AddStatusHistory(ctx, &store.StatusHistoryEntry{
		CAPAID:   id,
		ToStatus: StatusOpen,
		Actor:    actor,
		Reason:   "created",
	}); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "capa.create", c.RegNo)
	s.logger.WithFields(logrus.Fields{"reg_no": c.RegNo, "priority": c.Priority}).Info("capa created")
	return c, nil
}

// Start moves an open CAPA into in_progress.
func (s *Service) Start(ctx context.Context, id int64, actor, reason string) (*store.CAPA, error) {
	c, err := s.store.GetCAPA(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusOpen {
		return nil, transitionErr(c.Status)
	}
	c.Implementation.Status = ImplementationInProgress
	return s.move(ctx, c, StatusInProgress, actor, reason)
}

type CompleteInput struct {
	ActionsTaken string
	Evidence     []store.EvidenceItem
	Notes        string
	ActualCost   float64
}

// Complete marks implementation done and moves the CAPA to
// pending_verification. The on-time flag is computed here, once, against the
// effective target date; no target date counts as on time.
func (s *Service) Complete(ctx context.Context, id int64, in CompleteInput, actor string) (*store.CAPA, error) {
	c, err := s.store.GetCAPA(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusOpen && c.Status != StatusInProgress {
		return nil, transitionErr(c.Status)
	}
	now := time.Now().UTC()
	c.CompletedDate = &now
	c.Implementation.Status = ImplementationComplete
	c.Implementation.ActionsTaken = in.ActionsTaken
	c.Implementation.CompletionNotes = in.Notes
	stampEvidence(in.Evidence, actor, now)
	c.Implementation.Evidence = append(c.Implementation.Evidence, in.Evidence...)
	if in.ActualCost > 0 {
		c.Action.ActualCost = in.ActualCost
	}
	onTime := true
	if target := c.EffectiveTargetDate(); target != nil {
		onTime = !now.After(*target)
	}
	c.OnTime = &onTime
	return s.move(ctx, c, StatusPendingVerification, actor, "implementation complete")
}

type VerifyInput struct {
	Effective bool
	Method    string
	Findings  string
	Evidence  []store.EvidenceItem
}

// Verify records the verification-of-effectiveness outcome. The
// effectiveness score is set exactly once: 100 when effective, 0 when not.
// verified_ineffective is terminal; the caller decides whether to spawn a
// follow-up CAPA.
func (s *Service) Verify(ctx context.Context, id int64, in VerifyInput, actor string) (*store.CAPA, error) {
	c, err := s.store.GetCAPA(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusPendingVerification {
		if Terminal(c.Status) {
			return nil, ErrTerminalStatus
		}
		return nil, ErrNotVerifiable
	}
	now := time.Now().UTC()
	effective := in.Effective
	c.Verification.VerifiedBy = actor
	c.Verification.VerifiedDate = &now
	c.Verification.Effective = &effective
	if in.Method != "" {
		c.Verification.Method = in.Method
	}
	c.Verification.Findings = in.Findings
	stampEvidence(in.Evidence, actor, now)
	c.Verification.Evidence = append(c.Verification.Evidence, in.Evidence...)

	score := 0
	next := StatusVerifiedIneffective
	if effective {
		score = 100
		next = StatusVerifiedEffective
	}
	c.EffectivenessScore = &score
	return s.move(ctx, c, next, actor, fmt.Sprintf("verified effective=%t", effective))
}

type RecurrenceInput struct {
	Recurred bool
	Notes    string
}

// RecordRecurrenceCheck finishes a verified-effective CAPA. A recurrence
// reopens the dead-end path (verified_ineffective, no closure stamp); no
// recurrence closes the record.
func (s *Service) RecordRecurrenceCheck(ctx context.Context, id int64, in RecurrenceInput, actor string) (*store.CAPA, error) {
	c, err := s.store.GetCAPA(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusVerifiedEffective {
		return nil, ErrNoRecurrenceCheck
	}
	now := time.Now().UTC()
	recurred := in.Recurred
	c.Verification.RecurrenceCheck.CheckDate = &now
	c.Verification.RecurrenceCheck.CheckedBy = actor
	c.Verification.RecurrenceCheck.Recurred = &recurred
	c.Verification.RecurrenceCheck.Notes = in.Notes
	if recurred {
		return s.move(ctx, c, StatusVerifiedIneffective, actor, "problem recurred")
	}
	c.ClosedAt = &now
	c.ClosedBy = actor
	return s.move(ctx, c, StatusClosed, actor, "no recurrence")
}

// Close is the direct closure path for CAPAs that do not require VOE. It is
// available from any non-terminal state.
func (s *Service) Close(ctx context.Context, id int64, actor, notes string) (*store.CAPA, error) {
	c, err := s.store.GetCAPA(ctx, id)
	if err != nil {
		return nil, err
	}
	if Terminal(c.Status) {
		return nil, ErrTerminalStatus
	}
	now := time.Now().UTC()
	c.ClosedAt = &now
	c.ClosedBy = actor
	return s.move(ctx, c, StatusClosed, actor, notes)
}

// ReviseTarget records a new target date with a reason. The original target
// date is kept so the revision stays visible.
func (s *Service) ReviseTarget(ctx context.Context, id int64, newTarget time.Time, reason, actor string) (*store.CAPA, error) {
	c, err := s.store.GetCAPA(ctx, id)
	if err != nil {
		return nil, err
	}
	if Terminal(c.Status) {
		return nil, ErrTerminalStatus
	}
	target := newTarget.UTC()
	c.RevisedTargetDate = &target
	c.RevisionReason = reason
	if err := s.store.UpdateCAPA(ctx, c, c.Version); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "capa.revise_target", fmt.Sprintf("%s: %s", c.RegNo, target.Format("2006-01-02")))
	refreshDerived(c, time.Now().UTC())
	return c, nil
}

// AddComment appends to the CAPA's comment log.
func (s *Service) AddComment(ctx context.Context, id int64, author, body string) (*store.CAPAComment, error) {
	if _, err := s.store.GetCAPA(ctx, id); err != nil {
		return nil, err
	}
	comment := &store.CAPAComment{CAPAID: id, Author: author, Body: body}
	if _, err := s.store.AddComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateFollowUp spawns a new CAPA linked to an ineffective one and
// cross-references the two records.
func (s *Service) CreateFollowUp(ctx context.Context, originalID int64, followUp *store.CAPA, actor string) (*store.CAPA, error) {
	original, err := s.store.GetCAPA(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if original.Status != StatusVerifiedIneffective {
		return nil, fmt.Errorf("follow-up requires a verified-ineffective capa, got %s", original.Status)
	}
	followUp.SourceType = original.SourceType
	followUp.SourceID = original.SourceID
	if followUp.SourceLabel == "" {
		followUp.SourceLabel = fmt.Sprintf("Follow-up to %s", original.RegNo)
	}
	followUp.IncidentID = original.IncidentID
	followUp.RelatedCAPAIDs = append(followUp.RelatedCAPAIDs, original.ID)
	created, err := s.Create(ctx, followUp, actor)
	if err != nil {
		return nil, err
	}
	original.RelatedCAPAIDs = append(original.RelatedCAPAIDs, created.ID)
	if err := s.store.UpdateCAPA(ctx, original, original.Version); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*store.CAPA, error) {
	c, err := s.store.GetCAPA(ctx, id)
	if err != nil {
		return nil, err
	}
	refreshDerived(c, time.Now().UTC())
	return c, nil
}

func (s *Service) List(ctx context.Context, filter store.CAPAFilter) ([]store.CAPA, error) {
	items, err := s.store.ListCAPAs(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for i := range items {
		refreshDerived(&items[i], now)
	}
	return items, nil
}

func (s *Service) History(ctx context.Context, id int64) ([]store.StatusHistoryEntry, error) {
	if _, err := s.store.GetCAPA(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListStatusHistory(ctx, id)
}

func (s *Service) Comments(ctx context.Context, id int64) ([]store.CAPAComment, error) {
	if _, err := s.store.GetCAPA(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64, actor string) error {
	c, err := s.store.GetCAPA(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCAPA(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor, "capa.delete", c.RegNo)
	return nil
}

// move persists a status change and appends the history entry.
func (s *Service) move(ctx context.Context, c *store.CAPA, to, actor, reason string) (*store.CAPA, error) {
	from := c.Status
	c.Status = to
	if err := s.store.UpdateCAPA(ctx, c, c.Version); err != nil {
		return nil, err
	}
	if _, err := s.store.AddStatusHistory(ctx, &store.StatusHistoryEntry{
		CAPAID:     c.ID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Reason:     reason,
	}); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "capa.status", fmt.Sprintf("%s: %s -> %s", c.RegNo, from, to))
	refreshDerived(c, time.Now().UTC())
	return c, nil
}

// refreshDerived recomputes the read-time day metrics: how long the record
// has been (or was) open, and how far an active record is past its effective
// target. Closed and verified records are never overdue.
func refreshDerived(c *store.CAPA, now time.Time) {
	end := now
	if c.ClosedAt != nil {
		end = *c.ClosedAt
	}
	c.DaysOpen = int(end.Sub(c.CreatedAt).Hours() / 24)
	if c.DaysOpen < 0 {
		c.DaysOpen = 0
	}
	c.DaysOverdue = 0
	if c.Status == StatusOpen || c.Status == StatusInProgress {
		if target := c.EffectiveTargetDate(); target != nil && now.After(*target) {
			c.DaysOverdue = int(math.Ceil(now.Sub(*target).Hours() / 24))
		}
	}
}

func (s *Service) audit(ctx context.Context, username, action, details string) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Append(ctx, username, action, details); err != nil {
		s.logger.WithError(err).Warn("audit append failed")
	}
}

func transitionErr(status string) error {
	if Terminal(status) {
		return ErrTerminalStatus
	}
	return ErrInvalidTransition
}

// stampEvidence fills in ids and attribution on new evidence items.
func stampEvidence(items []store.EvidenceItem, actor string, now time.Time) {
	for i := range items {
		if items[i].ID == "" {
			if id, err := uuid.NewV4(); err == nil {
				items[i].ID = id.String()
			}
		}
		if items[i].AddedBy == "" {
			items[i].AddedBy = actor
		}
		if items[i].AddedAt.IsZero() {
			items[i].AddedAt = now
		}
	}
}

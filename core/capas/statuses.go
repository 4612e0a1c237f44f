package capas

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTerminalStatus    = errors.New("capa is terminal")
	ErrNotVerifiable     = errors.New("capa is not awaiting verification")
	ErrNoRecurrenceCheck = errors.New("recurrence check requires a verified-effective capa")
)

const (
	StatusOpen                = "open"
	StatusInProgress          = "in_progress"
	StatusPendingVerification = "pending_verification"
	StatusVerifiedEffective   = "verified_effective"
	StatusVerifiedIneffective = "verified_ineffective"
	StatusClosed              = "closed"
)

// Terminal states: verified_ineffective is a dead end that demands a
// follow-up CAPA rather than further transitions on the same record.
func Terminal(status string) bool {
	return status == StatusVerifiedIneffective || status == StatusClosed
}

const (
	TypeCorrective  = "corrective"
	TypePreventive  = "preventive"
	TypeImprovement = "improvement"
)

var ValidTypes = map[string]struct{}{
	TypeCorrective:  {},
	TypePreventive:  {},
	TypeImprovement: {},
}

const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

var ValidPriorities = map[string]struct{}{
	PriorityCritical: {},
	PriorityHigh:     {},
	PriorityMedium:   {},
	PriorityLow:      {},
}

const (
	SourceIncident    = "incident"
	SourceAudit       = "audit"
	SourceObservation = "observation"
	SourceInspection  = "inspection"
	SourceMeeting     = "meeting"
	SourceDrill       = "drill"
)

var ValidSources = map[string]struct{}{
	SourceIncident:    {},
	SourceAudit:       {},
	SourceObservation: {},
	SourceInspection:  {},
	SourceMeeting:     {},
	SourceDrill:       {},
}

const (
	ImplementationNotStarted = "not_started"
	ImplementationInProgress = "in_progress"
	ImplementationComplete   = "complete"
)

package incidents

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTerminalStatus    = errors.New("incident is closed")
	ErrUnknownStatus     = errors.New("unknown status")
	ErrUnknownBody       = errors.New("unknown notification body")
)

const (
	StatusReported            = "reported"
	StatusUnderInvestigation  = "under_investigation"
	StatusRootCauseIdentified = "root_cause_identified"
	StatusCAPAInProgress      = "capa_in_progress"
	StatusPendingVerification = "pending_verification"
	StatusClosed              = "closed"
)

// statusOrder gives each lifecycle state its display position. Transitions
// must move forward through this order; closure is handled separately and is
// reachable from any non-terminal state.
var statusOrder = map[string]int{
	StatusReported:            1,
	StatusUnderInvestigation:  2,
	StatusRootCauseIdentified: 3,
	StatusCAPAInProgress:      4,
	StatusPendingVerification: 5,
	StatusClosed:              6,
}

const (
	TypeNearMiss       = "near_miss"
	TypeFirstAid       = "first_aid"
	TypeMedicalAid     = "medical_aid"
	TypeLostTime       = "lost_time"
	TypePropertyDamage = "property_damage"
	TypeEnvironmental  = "environmental"
	TypeRegulatory     = "regulatory"
	TypeAircraft       = "aircraft"
)

var ValidTypes = map[string]struct{}{
	TypeNearMiss:       {},
	TypeFirstAid:       {},
	TypeMedicalAid:     {},
	TypeLostTime:       {},
	TypePropertyDamage: {},
	TypeEnvironmental:  {},
	TypeRegulatory:     {},
	TypeAircraft:       {},
}

const (
	RPASFlyAway           = "fly_away"
	RPASLossOfControl     = "loss_of_control"
	RPASCollision         = "collision"
	RPASBoundaryViolation = "boundary_violation"
	RPASAirspaceIncursion = "airspace_incursion"
	RPASEquipmentFailure  = "equipment_failure"
	RPASBatteryIssue      = "battery_issue"
	RPASC2LinkLoss        = "c2_link_loss"
	RPASGPSFailure        = "gps_failure"
	RPASNearMissAircraft  = "near_miss_aircraft"
)

var ValidRPASTypes = map[string]struct{}{
	RPASFlyAway:           {},
	RPASLossOfControl:     {},
	RPASCollision:         {},
	RPASBoundaryViolation: {},
	RPASAirspaceIncursion: {},
	RPASEquipmentFailure:  {},
	RPASBatteryIssue:      {},
	RPASC2LinkLoss:        {},
	RPASGPSFailure:        {},
	RPASNearMissAircraft:  {},
}

const (
	SeverityNearMiss = "near_miss"
	SeverityMinor    = "minor"
	SeverityModerate = "moderate"
	SeveritySerious  = "serious"
	SeverityCritical = "critical"
	SeverityFatal    = "fatal"
)

var severityOrder = map[string]int{
	SeverityNearMiss: 1,
	SeverityMinor:    2,
	SeverityModerate: 3,
	SeveritySerious:  4,
	SeverityCritical: 5,
	SeverityFatal:    6,
}

// Recordable reports whether a severity counts toward TRIR: moderate and
// above.
func Recordable(severity string) bool {
	return severityOrder[severity] >= severityOrder[SeverityModerate]
}

func ValidSeverity(severity string) bool {
	_, ok := severityOrder[severity]
	return ok
}

func ValidStatus(status string) bool {
	_, ok := statusOrder[status]
	return ok
}

// CanTransition reports whether an incident may move from one status to
// another. The lifecycle is monotonic forward; closed is terminal and only
// reachable through Close.
func CanTransition(from, to string) error {
	fromOrd, ok := statusOrder[from]
	if !ok {
		return ErrUnknownStatus
	}
	toOrd, ok := statusOrder[to]
	if !ok {
		return ErrUnknownStatus
	}
	if from == StatusClosed {
		return ErrTerminalStatus
	}
	if to == StatusClosed {
		return ErrInvalidTransition
	}
	if toOrd <= fromOrd {
		return ErrInvalidTransition
	}
	return nil
}
